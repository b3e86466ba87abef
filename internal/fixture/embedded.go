package fixture

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/st3v3nmw/replcheck/internal/cluster"
)

// EmbeddedConfig configures co-located reference nodes.
type EmbeddedConfig struct {
	Nodes       int
	HandlerPath string
	StoreDriver string
	StoreDSN    string
	Logger      log.Logger
}

// Embedded runs reference nodes inside this process on OS-assigned ports,
// all sharing one store.
type Embedded struct {
	cfg    EmbeddedConfig
	logger log.Logger

	store cluster.Store
	nodes []*cluster.Node
	wg    sync.WaitGroup
}

// NewEmbedded creates the fixture; nothing starts until Setup.
func NewEmbedded(cfg EmbeddedConfig) *Embedded {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	return &Embedded{cfg: cfg, logger: log.WithPrefix(logger, "component", "embedded")}
}

func (f *Embedded) Setup(ctx context.Context) ([]string, error) {
	if f.cfg.Nodes < 2 {
		return nil, fmt.Errorf("cluster needs at least 2 nodes, got %d", f.cfg.Nodes)
	}

	store, err := cluster.OpenStore(f.cfg.StoreDriver, f.cfg.StoreDSN)
	if err != nil {
		return nil, err
	}
	f.store = store

	hc := healthCheck{client: &http.Client{Timeout: time.Second}}

	addrs := make([]string, 0, f.cfg.Nodes)
	for i := range f.cfg.Nodes {
		name := nodeName(i)

		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, fmt.Errorf("failed to get OS-assigned port for %s: %w", name, err)
		}

		node := cluster.NewNode(cluster.NodeConfig{
			Name:        name,
			HandlerPath: f.cfg.HandlerPath,
			Logger:      f.cfg.Logger,
		}, store)
		f.nodes = append(f.nodes, node)

		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			if err := node.Serve(l); err != nil {
				level.Error(f.logger).Log("msg", "node stopped", "node", name, "err", err)
			}
		}()

		base := "http://" + l.Addr().String()
		if err := hc.waitHealthy(ctx, base, name, 5*time.Second); err != nil {
			return nil, err
		}

		level.Info(f.logger).Log("msg", "node started", "node", name, "addr", base)
		addrs = append(addrs, base)
	}

	return addrs, nil
}

func (f *Embedded) Teardown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for _, node := range f.nodes {
		if err := node.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", node.Name(), err))
		}
	}
	f.wg.Wait()
	f.nodes = nil

	if f.store != nil {
		if err := f.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		f.store = nil
	}

	return errors.Join(errs...)
}
