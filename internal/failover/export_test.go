package failover

import (
	"context"
	"time"
)

// SetSleep replaces the grace-period sleep.
func (s *Sequencer) SetSleep(fn func(context.Context, time.Duration) error) {
	s.sleep = fn
}

// ClientOpen reports whether the HTTP client is still held.
func (s *Sequencer) ClientOpen() bool {
	return s.client != nil
}

var SleepContext = sleepContext
