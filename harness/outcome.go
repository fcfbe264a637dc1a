package harness

import (
	"fmt"
)

// Categories recorded when an invocation fails outside the function under
// test. Errors raised by the function itself use the Python exception class
// name as their category.
const (
	CategoryTimeout       = "Timeout"
	CategoryStartFailure  = "StartFailure"
	CategoryCrash         = "Crash"
	CategoryProtocolError = "ProtocolError"
)

// Outcome is the observed result of one invocation: a returned value, or a
// raised error identified by its category.
type Outcome struct {
	Raised   bool   `json:"raised"`
	Category string `json:"category,omitempty"`
	// Value is the canonical rendering of the returned object. Sets and dicts
	// are rendered in sorted order, so equal objects render identically.
	Value string `json:"value,omitempty"`
	// Stderr is diagnostic output; it never takes part in comparisons.
	Stderr string `json:"-"`
}

// Returned builds the outcome of a call that returned value.
func Returned(value string) Outcome {
	return Outcome{Value: value}
}

// Raised builds the outcome of a call that failed with category.
func Raised(category string) Outcome {
	return Outcome{Raised: true, Category: category}
}

// Transient reports whether the outcome reflects the machine it ran on
// rather than the function: a timeout or a failure to start the interpreter.
func (o Outcome) Transient() bool {
	return o.Raised && (o.Category == CategoryTimeout || o.Category == CategoryStartFailure)
}

func (o Outcome) String() string {
	if o.Raised {
		return "raised " + o.Category
	}
	return "returned " + o.Value
}

// ExecutionError describes an invocation that could not produce an outcome
// from the function itself: it did not start, crashed, timed out or spoke a
// garbled protocol. It is always recovered into an Outcome.
type ExecutionError struct {
	Category string
	Err      error
	Stderr   string
}

func (e *ExecutionError) Error() string {
	if e.Err == nil {
		return "execution failed: " + e.Category
	}
	return fmt.Sprintf("execution failed: %s: %v", e.Category, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Outcome converts the error into a raised outcome of its category.
func (e *ExecutionError) Outcome() Outcome {
	o := Raised(e.Category)
	o.Stderr = e.Stderr
	return o
}
