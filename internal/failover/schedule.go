package failover

import (
	"fmt"

	"github.com/st3v3nmw/replcheck/internal/attest"
	"github.com/st3v3nmw/replcheck/internal/session"
)

// Schedule is how many rounds are run and how many consecutive GETs each
// endpoint receives per round.
type Schedule struct {
	Rounds int
	Burst  int
}

// DefaultSchedule is 4 rounds of 4 requests per endpoint.
func DefaultSchedule() Schedule {
	return Schedule{Rounds: 4, Burst: 4}
}

// Validate checks the schedule against the number of endpoints.
func (s Schedule) Validate(endpoints int) error {
	if s.Rounds < 1 {
		return fmt.Errorf("rounds must be at least 1, got %d", s.Rounds)
	}

	if s.Burst < 1 {
		return fmt.Errorf("burst must be at least 1, got %d", s.Burst)
	}

	if endpoints < 2 {
		return fmt.Errorf("failover needs at least 2 endpoints, got %d", endpoints)
	}

	return nil
}

// Len returns the number of GETs issued over the whole schedule.
func (s Schedule) Len(endpoints int) int {
	return s.Rounds * endpoints * s.Burst
}

// Steps enumerates the GETs in issue order: each endpoint receives Burst
// consecutive requests before the next one, every round.
func (s Schedule) Steps(endpoints []session.Endpoint) []attest.Step {
	steps := make([]attest.Step, 0, s.Len(len(endpoints)))

	seq := 0
	for round := 1; round <= s.Rounds; round++ {
		for _, ep := range endpoints {
			for req := 1; req <= s.Burst; req++ {
				seq++
				steps = append(steps, attest.Step{
					Round:    round,
					Endpoint: ep.Name(),
					Request:  req,
					Sequence: seq,
				})
			}
		}
	}

	return steps
}
