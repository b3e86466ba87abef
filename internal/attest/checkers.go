package attest

import (
	"fmt"
)

// Checker is a composable predicate used in assertions to validate actual values
// against expected conditions.
type Checker[T any] interface {
	// Check returns true if actual satisfies this checker's condition.
	Check(actual T) bool
	// Expected returns a human-readable description of what was expected.
	Expected() string
}

// describer is implemented by checkers that render the actual value themselves.
type describer[T any] interface {
	Describe(actual T) string
}

// isChecker validates exact value matching.
type isChecker[T comparable] struct {
	value T
}

// Is creates a checker that validates exact equality.
func Is[T comparable](value T) isChecker[T] {
	return isChecker[T]{value: value}
}

func (m isChecker[T]) Check(actual T) bool {
	return actual == m.value
}

func (m isChecker[T]) Expected() string {
	return fmt.Sprintf("%v", m.value)
}

// presenceChecker validates whether a response header was sent at all.
type presenceChecker struct {
	header string
	want   bool
}

// Present creates a checker that requires the named header to be sent.
func Present(header string) presenceChecker {
	return presenceChecker{header: header, want: true}
}

// Absent creates a checker that requires the named header to be missing.
func Absent(header string) presenceChecker {
	return presenceChecker{header: header, want: false}
}

func (m presenceChecker) Check(actual bool) bool {
	return actual == m.want
}

func (m presenceChecker) Expected() string {
	return m.describe(m.want)
}

func (m presenceChecker) Describe(actual bool) string {
	return m.describe(actual)
}

func (m presenceChecker) describe(present bool) string {
	if present {
		return fmt.Sprintf("header %s present", m.header)
	}

	return fmt.Sprintf("header %s absent", m.header)
}

// checkAll returns true if all checkers pass for the given value.
// If onFail is provided, it's called with the first failing checker.
func checkAll[T any](value T, checkers []Checker[T], onFail func(Checker[T], T)) bool {
	for _, checker := range checkers {
		if !checker.Check(value) {
			if onFail != nil {
				onFail(checker, value)
			}

			return false
		}
	}

	return true
}

// describe renders actual for a failure message.
func describe[T any](checker Checker[T], actual T) string {
	if d, ok := checker.(describer[T]); ok {
		return d.Describe(actual)
	}

	return fmt.Sprintf("%v", actual)
}
