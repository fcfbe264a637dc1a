// Package domain models the generation rule for each parameter of the
// function under test: a tree of typed nodes, each carrying an exhaustive
// domain that is enumerated completely and a random domain that is sampled.
package domain

import (
	"errors"
	"math/rand/v2"
	"slices"
)

var (
	// ErrEmptyDomain is returned when a node is given a domain with no entries.
	ErrEmptyDomain = errors.New("domain has no entries")
	// ErrNegativeLength is returned when an iterable length domain has an entry below zero.
	ErrNegativeLength = errors.New("length domain has a negative entry")
	// ErrInvalidBool is returned when a bool domain has an entry other than 0 or 1.
	ErrInvalidBool = errors.New("bool domain entries must be 0 or 1")
	// ErrEmptyAlphabet is returned when a str node with no characters may produce a non-empty string.
	ErrEmptyAlphabet = errors.New("str alphabet is empty but lengths above zero are allowed")
)

// Domain is a finite list of admissible entries: values for leaf nodes,
// lengths for iterable nodes. Entries may repeat; repeats do not change the
// exhaustive set but do weight random draws.
type Domain[T int64 | float64] struct {
	entries []T
}

// NewDomain copies entries into a domain.
func NewDomain[T int64 | float64](entries ...T) Domain[T] {
	return Domain[T]{entries: slices.Clone(entries)}
}

// Range builds the inclusive integer range [lo, hi].
func Range(lo, hi int64) Domain[int64] {
	if lo > hi {
		return Domain[int64]{}
	}
	entries := make([]int64, 0, uint64(hi-lo)+1)
	for i := lo; ; i++ {
		entries = append(entries, i)
		if i == hi {
			break
		}
	}
	return Domain[int64]{entries: entries}
}

// Len returns the number of entries, counting repeats.
func (d Domain[T]) Len() int { return len(d.entries) }

// Entries returns a copy of the entries in declaration order.
func (d Domain[T]) Entries() []T { return slices.Clone(d.entries) }

// Distinct returns the entries with repeats removed, in order of first
// occurrence.
func (d Domain[T]) Distinct() []T {
	seen := make(map[T]bool, len(d.entries))
	out := make([]T, 0, len(d.entries))
	for _, e := range d.entries {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

// Min returns the smallest entry. The domain must not be empty.
func (d Domain[T]) Min() T { return slices.Min(d.entries) }

// Max returns the largest entry. The domain must not be empty.
func (d Domain[T]) Max() T { return slices.Max(d.entries) }

// Contiguous reports whether the distinct entries form an unbroken integer
// run from Min to Max.
func (d Domain[T]) Contiguous() bool {
	if len(d.entries) == 0 {
		return false
	}
	lo, hi := d.Min(), d.Max()
	if T(int64(lo)) != lo || T(int64(hi)) != hi {
		return false
	}
	distinct := d.Distinct()
	for _, e := range distinct {
		if T(int64(e)) != e {
			return false
		}
	}
	return int64(hi)-int64(lo)+1 == int64(len(distinct))
}

// Pick draws one entry uniformly at random.
func (d Domain[T]) Pick(r *rand.Rand) T {
	return d.entries[r.IntN(len(d.entries))]
}

func (d Domain[T]) validate() error {
	if len(d.entries) == 0 {
		return ErrEmptyDomain
	}
	return nil
}

func validateLengths(d Domain[int64]) error {
	if err := d.validate(); err != nil {
		return err
	}
	if d.Min() < 0 {
		return ErrNegativeLength
	}
	return nil
}
