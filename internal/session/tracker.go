package session

import (
	"github.com/st3v3nmw/replcheck/internal/attest"
)

// Tracker holds what the next response of the logical session must look
// like. It is used from a single goroutine.
type Tracker struct {
	sessionID string
	next      int
	observed  int
}

// NewTracker returns a tracker expecting a first counter value of 0.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Observe validates one GET response against the expected counter and session.
// The first observation records the session and must carry counter 0.
func (t *Tracker) Observe(step attest.Step, sessionID string, value int) error {
	site := attest.Site{Step: step}

	if err := attest.Check(site, attest.Continuity, value, attest.Is(t.next)); err != nil {
		return err
	}

	if t.observed == 0 {
		t.sessionID = sessionID
	} else if err := attest.Check(site, attest.Affinity, sessionID, attest.Is(t.sessionID)); err != nil {
		return err
	}

	t.next++
	t.observed++

	return nil
}

// SessionID returns the session recorded on the first observation.
func (t *Tracker) SessionID() string {
	return t.sessionID
}

// Observed returns how many responses passed validation.
func (t *Tracker) Observed() int {
	return t.observed
}

// Next returns the counter value the next response must carry.
func (t *Tracker) Next() int {
	return t.next
}
