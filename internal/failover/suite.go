package failover

import (
	"context"
	"errors"
	"fmt"

	"github.com/st3v3nmw/replcheck/internal/attest"
	"github.com/st3v3nmw/replcheck/internal/session"
)

// Fixture brings the cluster up for a run and takes it down afterwards.
type Fixture interface {
	// Setup returns the base address of every node, in schedule order.
	Setup(ctx context.Context) ([]string, error)
	// Teardown releases whatever Setup acquired.
	Teardown() error
}

// NewSuite wraps a run as a suite: setup brings the fixture up and opens the
// client, one test per round, then invalidation and the HEAD check. Teardown closes
// the client and the fixture whether or not a step failed.
func NewSuite(name string, fx Fixture, handlerPath string, opts Options) *attest.Suite {
	var seq *Sequencer

	suite := attest.New(name).
		Setup(func(ctx context.Context) error {
			addrs, err := fx.Setup(ctx)
			if err != nil {
				return err
			}

			endpoints, err := session.NewEndpoints(addrs, handlerPath)
			if err != nil {
				return err
			}

			seq, err = New(endpoints, opts)
			if err != nil {
				return err
			}

			return seq.Open()
		}).
		Teardown(func() error {
			if seq != nil {
				seq.Close()
			}

			return fx.Teardown()
		})

	for round := 1; round <= opts.Schedule.Rounds; round++ {
		suite.Test(fmt.Sprintf("Round %d: session survives node switches", round), func(ctx context.Context) error {
			return ready(seq).Round(ctx, round)
		})
	}

	suite.
		Test("Invalidate session on first node", func(ctx context.Context) error {
			return ready(seq).Invalidate(ctx)
		}).
		Test("Session is gone on every other node", func(ctx context.Context) error {
			return ready(seq).Verify(ctx)
		})

	return suite
}

// ready panics when setup never built the sequencer; the suite reports it.
func ready(seq *Sequencer) *Sequencer {
	if seq == nil {
		panic(errors.New("sequencer was not set up"))
	}

	return seq
}
