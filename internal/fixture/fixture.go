// Package fixture brings up (or just points at) the cluster a run verifies.
package fixture

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/log"

	"github.com/st3v3nmw/replcheck/internal/config"
	"github.com/st3v3nmw/replcheck/internal/failover"
)

var (
	_ failover.Fixture = (*External)(nil)
	_ failover.Fixture = (*Embedded)(nil)
	_ failover.Fixture = (*Forked)(nil)
)

// New picks the fixture for the configured run mode.
func New(cfg *config.Config, logger log.Logger) (failover.Fixture, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	switch cfg.Cluster.Mode {
	case config.ModeExternal:
		return NewExternal(cfg.Endpoints), nil
	case config.ModeEmbedded:
		return NewEmbedded(EmbeddedConfig{
			Nodes:       cfg.Cluster.Nodes,
			HandlerPath: cfg.HandlerPath,
			StoreDriver: cfg.Cluster.Store.Driver,
			StoreDSN:    cfg.Cluster.Store.DSN,
			Logger:      logger,
		}), nil
	case config.ModeForked:
		return NewForked(ForkedConfig{
			Nodes:           cfg.Cluster.Nodes,
			Command:         cfg.Cluster.ServerCommand,
			WorkingDir:      cfg.Cluster.WorkingDir,
			HandlerPath:     cfg.HandlerPath,
			AdminUser:       cfg.Cluster.AdminUser,
			AdminPassword:   cfg.Cluster.AdminPassword,
			StoreDriver:     cfg.Cluster.Store.Driver,
			StoreDSN:        cfg.Cluster.Store.DSN,
			StartTimeout:    cfg.Cluster.StartTimeout,
			ShutdownTimeout: cfg.Cluster.ShutdownTimeout,
			Logger:          logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown cluster mode %q", cfg.Cluster.Mode)
	}
}

// nodeName is the name of the i-th reference node.
func nodeName(i int) string {
	return fmt.Sprintf("node-%d", i+1)
}

// pollInterval is how often readiness is re-checked.
const pollInterval = 100 * time.Millisecond

// External targets nodes someone else runs.
type External struct {
	addrs []string
}

// NewExternal wraps fixed node addresses.
func NewExternal(addrs []string) *External {
	return &External{addrs: addrs}
}

func (f *External) Setup(ctx context.Context) ([]string, error) {
	if len(f.addrs) == 0 {
		return nil, fmt.Errorf("no endpoints configured")
	}

	return f.addrs, nil
}

func (f *External) Teardown() error {
	return nil
}
