// Package scenarios registers the verification runs the CLI offers.
package scenarios

import (
	"github.com/go-kit/log"

	"github.com/st3v3nmw/replcheck/internal/attest"
	"github.com/st3v3nmw/replcheck/internal/config"
	"github.com/st3v3nmw/replcheck/internal/failover"
	"github.com/st3v3nmw/replcheck/internal/registry"
	"github.com/st3v3nmw/replcheck/internal/session"
)

func init() {
	registry.Register("smoke", &registry.Scenario{
		Name: "Session Failover Smoke Test",
		Summary: `Alternates bursts of GET requests between the nodes and checks that one
logical session answers all of them with a counter that grows by exactly one,
then invalidates it on the first node and checks it is gone on the others.`,
		Fn: Smoke,
	})

	registry.Register("invalidation", &registry.Scenario{
		Name: "Cluster-Wide Invalidation",
		Summary: `Touches the session once on every node, invalidates it on the first node
and checks that no node, including the first, still resolves it.`,
		Fn: Invalidation,
	})
}

// Smoke is the reference schedule: rounds × endpoints × burst GETs with the
// grace period between node switches.
func Smoke(cfg *config.Config, fx failover.Fixture, logger log.Logger) *attest.Suite {
	opts := options(cfg, logger)
	return failover.NewSuite("Session Failover Smoke Test", fx, cfg.HandlerPath, opts)
}

// Invalidation establishes the session on every node with a single GET each.
func Invalidation(cfg *config.Config, fx failover.Fixture, logger log.Logger) *attest.Suite {
	opts := options(cfg, logger)
	opts.Schedule = failover.Schedule{Rounds: 1, Burst: 1}
	opts.VerifyAll = true
	return failover.NewSuite("Cluster-Wide Invalidation", fx, cfg.HandlerPath, opts)
}

func options(cfg *config.Config, logger log.Logger) failover.Options {
	return failover.Options{
		Schedule: failover.Schedule{
			Rounds: cfg.Schedule.Rounds,
			Burst:  cfg.Schedule.Burst,
		},
		GracePeriod: cfg.GracePeriod,
		Client: session.ClientConfig{
			Timeout: cfg.RequestTimeout,
			Cookies: cfg.Cookies,
		},
		Logger: logger,
	}
}
