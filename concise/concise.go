// Package concise reduces classified test cases to a concise suite: one
// witness per distinct discrepancy signature.
package concise

import (
	"github.com/CatConfLang/pytestgen/harness"
	"github.com/CatConfLang/pytestgen/types"
)

// Options adjusts the cover.
type Options struct {
	// ExcludeMatches drops the Match witness, leaving only cases that expose
	// a discrepancy.
	ExcludeMatches bool
}

// Cover returns the first result, in input order, for each distinct
// signature. Every signature needs a single witness, so the result is as
// small as any cover can be: its length equals the number of distinct
// signatures. Covering a cover returns it unchanged.
func Cover(results []harness.Result) []harness.Result {
	return CoverWith(results, Options{})
}

// CoverWith is Cover with options.
func CoverWith(results []harness.Result, opts Options) []harness.Result {
	covered := make(map[harness.Signature]bool)
	var out []harness.Result
	for _, r := range results {
		if covered[r.Signature] {
			continue
		}
		covered[r.Signature] = true
		if opts.ExcludeMatches && r.Signature.Kind == harness.Match {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SetCover returns the test cases of Cover.
func SetCover(results []harness.Result) []types.TestCase {
	return Cases(Cover(results))
}

// Cases extracts the test cases of results, in order.
func Cases(results []harness.Result) []types.TestCase {
	cases := make([]types.TestCase, len(results))
	for i, r := range results {
		cases[i] = r.Case
	}
	return cases
}

// Signatures counts the results per signature.
func Signatures(results []harness.Result) map[harness.Signature]int {
	counts := make(map[harness.Signature]int)
	for _, r := range results {
		counts[r.Signature]++
	}
	return counts
}
