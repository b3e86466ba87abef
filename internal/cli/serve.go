package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-kit/log/level"
	commands "github.com/urfave/cli/v3"

	"github.com/st3v3nmw/replcheck/internal/cluster"
)

// Serve runs reference nodes until SIGINT/SIGTERM. With --nodes > 1 the
// nodes listen on consecutive ports starting at --port and share one store.
func Serve(ctx context.Context, cmd *commands.Command) error {
	logger := newLogger(os.Stderr, level.AllowInfo())
	if cmd.Bool("verbose") {
		logger = newLogger(os.Stderr, level.AllowDebug())
	}

	count := cmd.Int("nodes")
	if count < 1 {
		return fmt.Errorf("--nodes must be at least 1, got %d", count)
	}

	store, err := cluster.OpenStore(cmd.String("store"), cmd.String("store-dsn"))
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := cmd.Int("port")
	nodes := make([]*cluster.Node, 0, count)
	errs := make(chan error, count)
	var wg sync.WaitGroup

	for i := range count {
		name := cmd.String("node")
		if count > 1 {
			name = fmt.Sprintf("%s-%d", name, i+1)
		}

		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port+i))
		if err != nil {
			stop()
			shutdown(nodes)
			wg.Wait()
			return fmt.Errorf("failed to listen for %s: %w", name, err)
		}

		node := cluster.NewNode(cluster.NodeConfig{
			Name:          name,
			HandlerPath:   cmd.String("handler-path"),
			AdminUser:     cmd.String("admin-user"),
			AdminPassword: cmd.String("admin-password"),
			Logger:        logger,
		}, store)
		nodes = append(nodes, node)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := node.Serve(l); err != nil {
				errs <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		level.Info(logger).Log("msg", "shutting down")
	case err = <-errs:
		level.Error(logger).Log("msg", "node failed", "err", err)
	}

	shutdown(nodes)
	wg.Wait()

	return err
}

func shutdown(nodes []*cluster.Node) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, node := range nodes {
		if err := node.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "shutdown %s: %v\n", node.Name(), err)
		}
	}
}
