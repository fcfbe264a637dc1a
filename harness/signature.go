package harness

import (
	"fmt"
	"strings"
)

// Kind is the coarse class of a discrepancy signature
type Kind int

const (
	// Match means both sides returned equal values, or, unless the policy
	// separates them, both raised the same category.
	Match Kind = iota
	ValueMismatch
	ReferenceRaised
	CandidateRaised
	BothRaisedDifferently
	// BothRaisedIdentically is only produced when Policy.SeparateIdenticalFailures is set.
	BothRaisedIdentically
)

var kindNames = map[Kind]string{
	Match:                 "Match",
	ValueMismatch:         "ValueMismatch",
	ReferenceRaised:       "ReferenceRaised",
	CandidateRaised:       "CandidateRaised",
	BothRaisedDifferently: "BothRaisedDifferently",
	BothRaisedIdentically: "BothRaisedIdentically",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Granularity controls how finely signatures partition test cases
type Granularity int

const (
	// GranularityKind keys signatures by Kind alone.
	GranularityKind Granularity = iota
	// GranularityCategory also keys them by the raised error categories, so
	// a ZeroDivisionError and a KeyError in the candidate are distinct.
	GranularityCategory
)

func (g Granularity) String() string {
	switch g {
	case GranularityKind:
		return "kind"
	case GranularityCategory:
		return "category"
	}
	return fmt.Sprintf("Granularity(%d)", int(g))
}

// ParseGranularity parses "kind" or "category".
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kind":
		return GranularityKind, nil
	case "category":
		return GranularityCategory, nil
	}
	return 0, fmt.Errorf("unknown granularity %q, want kind or category", s)
}

// Policy decides the signature partition.
type Policy struct {
	Granularity Granularity
	// SeparateIdenticalFailures gives cases where both sides raise the same
	// category their own BothRaisedIdentically signature instead of Match.
	SeparateIdenticalFailures bool
}

// DefaultPolicy is the five-way split: Match, ValueMismatch,
// ReferenceRaised, CandidateRaised and BothRaisedDifferently.
func DefaultPolicy() Policy {
	return Policy{Granularity: GranularityKind}
}

// Signature classifies one test case. It is comparable and usable as a map
// key; two test cases are in the same class exactly when their signatures
// are equal.
type Signature struct {
	Kind Kind `json:"kind"`
	// Reference and Candidate hold the raised categories under
	// GranularityCategory and are empty otherwise.
	Reference string `json:"reference,omitempty"`
	Candidate string `json:"candidate,omitempty"`
}

func (s Signature) String() string {
	if s.Reference == "" && s.Candidate == "" {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s(reference=%s, candidate=%s)", s.Kind, orDash(s.Reference), orDash(s.Candidate))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Classify derives the signature of a test case from its two outcomes.
func Classify(ref, cand Outcome, p Policy) Signature {
	var sig Signature
	switch {
	case !ref.Raised && !cand.Raised:
		if ref.Value == cand.Value {
			sig.Kind = Match
		} else {
			sig.Kind = ValueMismatch
		}
	case ref.Raised && !cand.Raised:
		sig.Kind = ReferenceRaised
	case !ref.Raised && cand.Raised:
		sig.Kind = CandidateRaised
	case ref.Category != cand.Category:
		sig.Kind = BothRaisedDifferently
	case p.SeparateIdenticalFailures:
		sig.Kind = BothRaisedIdentically
	default:
		sig.Kind = Match
	}

	if p.Granularity == GranularityCategory {
		if ref.Raised {
			sig.Reference = ref.Category
		}
		if cand.Raised {
			sig.Candidate = cand.Category
		}
	}
	return sig
}
