// Package failover drives the alternating request schedule against the
// cluster and checks the session survives node switches and dies everywhere
// once invalidated.
package failover

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/st3v3nmw/replcheck/internal/attest"
	"github.com/st3v3nmw/replcheck/internal/session"
)

// DefaultGracePeriod is the pause after each endpoint's burst.
const DefaultGracePeriod = 500 * time.Millisecond

// Options configures a run.
type Options struct {
	Schedule Schedule

	// GracePeriod is slept after finishing the requests to one endpoint so
	// that asynchronous replication can converge before the session is used
	// on another node. Zero disables it.
	GracePeriod time.Duration

	// VerifyAll also checks the endpoint that received the DELETE.
	VerifyAll bool

	Client session.ClientConfig
	Logger log.Logger
}

// DefaultOptions matches the reference scenario.
func DefaultOptions() Options {
	return Options{
		Schedule:    DefaultSchedule(),
		GracePeriod: DefaultGracePeriod,
		Client:      session.ClientConfig{Timeout: 5 * time.Second, Cookies: true},
	}
}

// Sequencer runs the schedule against a fixed, ordered set of endpoints.
type Sequencer struct {
	endpoints []session.Endpoint
	opts      Options
	steps     []attest.Step

	client  *session.Client
	tracker *session.Tracker
	logger  log.Logger
	sleep   func(context.Context, time.Duration) error
}

// New validates the schedule against endpoints.
func New(endpoints []session.Endpoint, opts Options) (*Sequencer, error) {
	if err := opts.Schedule.Validate(len(endpoints)); err != nil {
		return nil, err
	}

	if opts.GracePeriod < 0 {
		return nil, fmt.Errorf("grace period cannot be negative, got %s", opts.GracePeriod)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	if opts.Client.Logger == nil {
		opts.Client.Logger = logger
	}

	return &Sequencer{
		endpoints: endpoints,
		opts:      opts,
		steps:     opts.Schedule.Steps(endpoints),
		tracker:   session.NewTracker(),
		logger:    log.WithPrefix(logger, "component", "sequencer"),
		sleep:     sleepContext,
	}, nil
}

// Run acquires the client, runs every round, invalidates the session and
// checks the remaining endpoints. The client is released on every path.
func (s *Sequencer) Run(ctx context.Context) error {
	if err := s.Open(); err != nil {
		return err
	}
	defer s.Close()

	for round := 1; round <= s.opts.Schedule.Rounds; round++ {
		if err := s.Round(ctx, round); err != nil {
			return err
		}
	}

	if err := s.Invalidate(ctx); err != nil {
		return err
	}

	return s.Verify(ctx)
}

// Open acquires the HTTP client for the run.
func (s *Sequencer) Open() error {
	if s.client != nil {
		return errors.New("sequencer already open")
	}

	client, err := session.NewClient(s.opts.Client)
	if err != nil {
		return err
	}

	s.client = client
	return nil
}

// Close releases the HTTP client. It is safe to call more than once.
func (s *Sequencer) Close() {
	if s.client == nil {
		return
	}

	s.client.Close()
	s.client = nil
}

// Tracker exposes the expectation state.
func (s *Sequencer) Tracker() *session.Tracker {
	return s.tracker
}

// Round issues one round: Burst GETs to each endpoint in order, with the
// grace period after each endpoint.
func (s *Sequencer) Round(ctx context.Context, round int) error {
	if s.client == nil {
		return errors.New("sequencer is not open")
	}

	if round < 1 || round > s.opts.Schedule.Rounds {
		return fmt.Errorf("round %d outside 1..%d", round, s.opts.Schedule.Rounds)
	}

	perRound := len(s.endpoints) * s.opts.Schedule.Burst
	offset := (round - 1) * perRound

	for i, ep := range s.endpoints {
		start := offset + i*s.opts.Schedule.Burst
		for _, step := range s.steps[start : start+s.opts.Schedule.Burst] {
			if err := s.get(ctx, ep, step); err != nil {
				level.Error(s.logger).Log("msg", "verification failed", "step", step.String(), "kind", attest.KindOf(err))
				return err
			}
		}

		// Let replication settle before the session is used on another node
		if err := s.sleep(ctx, s.opts.GracePeriod); err != nil {
			return err
		}
	}

	level.Info(s.logger).Log("msg", "round complete", "round", round, "next", s.tracker.Next(), "session", s.tracker.SessionID())
	return nil
}

func (s *Sequencer) get(ctx context.Context, ep session.Endpoint, step attest.Step) error {
	site := attest.Site{Step: step, Method: http.MethodGet, URI: ep.URI()}

	resp, err := s.client.Get(ctx, ep)
	if err != nil {
		return attest.Fail(site, attest.Transport, err)
	}

	if err := attest.Check(site, attest.Protocol, resp.Status, attest.Is(http.StatusOK)); err != nil {
		return err
	}

	if err := attest.Check(site, attest.Protocol, resp.HasValue, attest.Present(session.HeaderValue)); err != nil {
		return err
	}

	value, err := resp.Value()
	if err != nil {
		return attest.Fail(site, attest.Protocol, err)
	}

	if err := attest.Check(site, attest.Invalidation, resp.HasSessionID, attest.Present(session.HeaderSessionID)); err != nil {
		return err
	}

	return attest.At(s.tracker.Observe(step, resp.SessionID, value), site.Method, site.URI)
}

// Invalidate deletes the session through the first endpoint and checks the
// node destroyed the session that was tracked.
func (s *Sequencer) Invalidate(ctx context.Context) error {
	if s.client == nil {
		return errors.New("sequencer is not open")
	}

	ep := s.endpoints[0]
	site := attest.Site{Step: attest.Step{Endpoint: ep.Name()}, Method: http.MethodDelete, URI: ep.URI()}

	resp, err := s.client.Delete(ctx, ep)
	if err != nil {
		return attest.Fail(site, attest.Transport, err)
	}

	if err := attest.Check(site, attest.Protocol, resp.Status, attest.Is(http.StatusOK)); err != nil {
		return err
	}

	if err := attest.Check(site, attest.Invalidation, resp.HasSessionID, attest.Present(session.HeaderSessionID)); err != nil {
		return err
	}

	if err := attest.Check(site, attest.Affinity, resp.SessionID, attest.Is(s.tracker.SessionID())); err != nil {
		return err
	}

	level.Info(s.logger).Log("msg", "session invalidated", "endpoint", ep.Name(), "session", resp.SessionID)
	return nil
}

// Verify sends HEAD to every other endpoint and checks no session resolves.
func (s *Sequencer) Verify(ctx context.Context) error {
	if s.client == nil {
		return errors.New("sequencer is not open")
	}

	targets := s.endpoints[1:]
	if s.opts.VerifyAll {
		targets = s.endpoints
	}

	for _, ep := range targets {
		site := attest.Site{Step: attest.Step{Endpoint: ep.Name()}, Method: http.MethodHead, URI: ep.URI()}

		resp, err := s.client.Head(ctx, ep)
		if err != nil {
			return attest.Fail(site, attest.Transport, err)
		}

		if err := attest.Check(site, attest.Protocol, resp.Status, attest.Is(http.StatusOK)); err != nil {
			return err
		}

		if err := attest.Check(site, attest.Invalidation, resp.HasSessionID, attest.Absent(session.HeaderSessionID)); err != nil {
			return err
		}

		level.Debug(s.logger).Log("msg", "no live session", "endpoint", ep.Name())
	}

	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
