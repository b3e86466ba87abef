package attest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	green     = color.New(color.FgGreen).SprintFunc()
	red       = color.New(color.FgRed).SprintFunc()
	yellow    = color.New(color.FgYellow).SprintFunc()
	bold      = color.New(color.Bold).SprintFunc()
	checkMark = green("✓")
	crossMark = red("✗")
)

// Suite represents an ordered verification run with setup and teardown.
type Suite struct {
	name       string
	setupFn    func(context.Context) error
	teardownFn func() error
	tests      []TestFunc
	out        io.Writer
}

// TestFunc represents a single named step of the run
type TestFunc struct {
	Name string
	Fn   func(context.Context) error
}

// New creates a new empty suite
func New(name string) *Suite {
	return &Suite{name: name, tests: make([]TestFunc, 0), out: os.Stdout}
}

// Output redirects the report, stdout by default
func (s *Suite) Output(w io.Writer) *Suite {
	s.out = w
	return s
}

// Setup adds a setup function that runs before all tests
func (s *Suite) Setup(fn func(context.Context) error) *Suite {
	s.setupFn = fn
	return s
}

// Teardown adds a function that runs after the last test, on every exit path
func (s *Suite) Teardown(fn func() error) *Suite {
	s.teardownFn = fn
	return s
}

// Test adds a test case to the suite
func (s *Suite) Test(name string, fn func(context.Context) error) *Suite {
	s.tests = append(s.tests, TestFunc{Name: name, Fn: fn})
	return s
}

// Len returns the number of tests.
func (s *Suite) Len() int {
	return len(s.tests)
}

// Run executes setup and tests in order, stopping on the first failure, and
// returns that failure.
func (s *Suite) Run(ctx context.Context) (err error) {
	if s.name != "" {
		fmt.Fprintf(s.out, "%s\n\n", bold(s.name))
	}

	defer func() {
		if s.teardownFn != nil {
			if tdErr := s.teardownFn(); tdErr != nil {
				fmt.Fprintf(s.out, "%s %s\n", yellow("!"), "TEARDOWN")
				fmt.Fprintf(s.out, "\n%s\n", indent(tdErr.Error()))
				if err == nil {
					err = fmt.Errorf("teardown: %w", tdErr)
				}
			}
		}

		if err != nil {
			fmt.Fprintf(s.out, "\n%s %s\n", bold("FAILED"), crossMark)
		} else {
			fmt.Fprintf(s.out, "\n%s %s\n", bold("PASSED"), checkMark)
		}
	}()

	// Run setup function if defined
	if s.setupFn != nil {
		if err := protect(ctx, s.setupFn); err != nil {
			fmt.Fprintf(s.out, "%s %s\n", crossMark, "SETUP")
			fmt.Fprintf(s.out, "\n%s\n", indent(err.Error()))
			return fmt.Errorf("setup: %w", err)
		}
	}

	// Run each test, stopping on first failure or cancellation
	for _, test := range s.tests {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := protect(ctx, test.Fn); err != nil {
			fmt.Fprintf(s.out, "%s %s\n", crossMark, test.Name)
			fmt.Fprintf(s.out, "\n%s\n", indent(err.Error()))
			return err
		}

		fmt.Fprintf(s.out, "%s %s\n", checkMark, test.Name)
	}

	return nil
}

// protect runs fn and turns a panic into an error.
func protect(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case error:
				err = v
			default:
				err = errors.New(fmt.Sprint(v))
			}
		}
	}()

	return fn(ctx)
}

func indent(msg string) string {
	return "  " + strings.ReplaceAll(msg, "\n", "\n  ")
}
