package attest

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a verification failure.
type Kind int

const (
	// Transport means the request never produced a response.
	Transport Kind = iota + 1
	// Protocol means the response broke the HTTP contract (status, headers).
	Protocol
	// Continuity means the counter skipped or went backwards.
	Continuity
	// Affinity means a different logical session answered.
	Affinity
	// Invalidation means the session survived, or vanished before, termination.
	Invalidation
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport failure"
	case Protocol:
		return "protocol violation"
	case Continuity:
		return "state continuity violated"
	case Affinity:
		return "session affinity violated"
	case Invalidation:
		return "invalidation violated"
	default:
		return fmt.Sprintf("failure(%d)", int(k))
	}
}

// help is the remediation hint printed under each kind of failure.
func (k Kind) help() string {
	switch k {
	case Transport:
		return "The node could not be reached.\n" +
			"Make sure every node of the cluster is running before the run starts."
	case Protocol:
		return "The node answered outside the session contract.\n" +
			"GET, DELETE and HEAD on the handler path must return 200 with X-Value and X-Session-Id headers."
	case Continuity:
		return "The session counter must grow by exactly one per request, whichever node serves it.\n" +
			"Session state written on one node was not visible on the next one."
	case Affinity:
		return "Every request of the run must resolve to the same logical session.\n" +
			"The cluster created a new session instead of reusing the replicated one."
	case Invalidation:
		return "Invalidating a session on one node must remove it from every node.\n" +
			"Check that session removal is replicated, not just applied locally."
	default:
		return ""
	}
}

// Step locates a request inside the schedule. Round, Request and Sequence are
// 1-based; a zero Round marks a request outside the GET schedule.
type Step struct {
	Round    int
	Endpoint string
	Request  int
	Sequence int
}

func (s Step) String() string {
	if s.Round == 0 {
		if s.Endpoint == "" {
			return "outside schedule"
		}

		return fmt.Sprintf("endpoint %s", s.Endpoint)
	}

	return fmt.Sprintf("round %d, endpoint %s, request %d (#%d overall)",
		s.Round, s.Endpoint, s.Request, s.Sequence)
}

// Site is the request an assertion is made against.
type Site struct {
	Step   Step
	Method string
	URI    string
}

// Failure is a failed verification with its expected/actual pair.
type Failure struct {
	Kind     Kind
	Site     Site
	Expected string
	Actual   string
	Err      error
}

func (f *Failure) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s at %s", f.Kind, f.Site.Step)
	if f.Site.Method != "" {
		fmt.Fprintf(&b, "\n  %s %s", f.Site.Method, f.Site.URI)
	}

	if f.Err != nil {
		fmt.Fprintf(&b, "\n  Error: %v", f.Err)
	} else {
		fmt.Fprintf(&b, "\n  Expected: %s\n  Actual: %s", f.Expected, f.Actual)
	}

	if help := f.Kind.help(); help != "" {
		b.WriteString("\n\n  " + strings.ReplaceAll(help, "\n", "\n  "))
	}

	return b.String()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Check runs the checkers against actual and returns a *Failure for the first
// one that does not hold, or nil.
func Check[T any](site Site, kind Kind, actual T, checkers ...Checker[T]) error {
	var failure error
	checkAll(actual, checkers, func(c Checker[T], v T) {
		failure = &Failure{
			Kind:     kind,
			Site:     site,
			Expected: c.Expected(),
			Actual:   describe(c, v),
		}
	})

	return failure
}

// Fail wraps err as a failure of the given kind.
func Fail(site Site, kind Kind, err error) error {
	return &Failure{Kind: kind, Site: site, Err: err}
}

// At fills in the request of a failure raised without one.
func At(err error, method, uri string) error {
	var failure *Failure
	if errors.As(err, &failure) && failure.Site.Method == "" {
		failure.Site.Method = method
		failure.Site.URI = uri
	}

	return err
}

// KindOf returns the failure kind carried by err, or 0.
func KindOf(err error) Kind {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Kind
	}

	return 0
}
