package types

import (
	"slices"
	"strings"
)

// TestCase is one argument tuple for the function under test, in parameter
// declaration order.
type TestCase struct {
	args []Value
}

// NewTestCase copies args into a test case.
func NewTestCase(args ...Value) TestCase {
	return TestCase{args: slices.Clone(args)}
}

// Len returns the number of arguments.
func (tc TestCase) Len() int { return len(tc.args) }

// Arg returns the i-th argument.
func (tc TestCase) Arg(i int) Value { return tc.args[i] }

// Args returns a copy of the arguments.
func (tc TestCase) Args() []Value { return slices.Clone(tc.args) }

// Key is the element-wise canonical encoding used for deduplication.
func (tc TestCase) Key() string {
	return "(" + joinKeys(tc.args) + ")"
}

// Equal reports element-wise value equality.
func (tc TestCase) Equal(other TestCase) bool {
	return slices.EqualFunc(tc.args, other.args, Equal)
}

// ArgLiterals renders each argument as a Python literal.
func (tc TestCase) ArgLiterals() []string {
	out := make([]string, len(tc.args))
	for i, a := range tc.args {
		out[i] = a.Literal()
	}
	return out
}

// Literal renders the arguments as a Python tuple, e.g. "(0,)".
func (tc TestCase) Literal() string {
	if len(tc.args) == 1 {
		return "(" + tc.args[0].Literal() + ",)"
	}
	return "(" + strings.Join(tc.ArgLiterals(), ", ") + ")"
}

func (tc TestCase) String() string { return tc.Literal() }
