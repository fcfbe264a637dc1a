// Package report renders a concise test suite for people and for tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"

	"github.com/CatConfLang/pytestgen/harness"
	"github.com/CatConfLang/pytestgen/types"
)

// Format selects a rendering.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat accepts "text" or "json".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown report format %q (want text or json)", s)
}

// Entry is one case of the suite with the signature it witnesses.
type Entry struct {
	Case      types.TestCase
	Signature harness.Signature
}

// Suite is the concise test suite of one function.
type Suite struct {
	FunctionName string
	Entries      []Entry
}

// NewSuite builds a suite from classified results, keeping their order.
func NewSuite(functionName string, results []harness.Result) *Suite {
	s := &Suite{FunctionName: functionName, Entries: make([]Entry, len(results))}
	for i, r := range results {
		s.Entries[i] = Entry{Case: r.Case, Signature: r.Signature}
	}
	return s
}

// Cases returns the test cases of the suite in order.
func (s *Suite) Cases() []types.TestCase {
	cases := make([]types.TestCase, len(s.Entries))
	for i, e := range s.Entries {
		cases[i] = e.Case
	}
	return cases
}

// Write renders the suite in the given format.
func Write(w io.Writer, s *Suite, f Format) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, s)
	case FormatText, "":
		return WriteText(w, s)
	default:
		return fmt.Errorf("unknown report format %q", f)
	}
}

// WriteText prints each case as "Testcase N :" followed by its tuple literal.
func WriteText(w io.Writer, s *Suite) error {
	for i, e := range s.Entries {
		if _, err := fmt.Fprintf(w, "Testcase %d :\n%s\n", i+1, e.Case.Literal()); err != nil {
			return err
		}
	}
	return nil
}

type jsonSuite struct {
	Function string      `json:"function"`
	Cases    []jsonEntry `json:"cases"`
}

type jsonEntry struct {
	Index     int           `json:"index"`
	Args      []string      `json:"args"`
	Literal   string        `json:"literal"`
	Signature jsonSignature `json:"signature"`
}

type jsonSignature struct {
	Kind      string `json:"kind"`
	Reference string `json:"reference,omitempty"`
	Candidate string `json:"candidate,omitempty"`
}

// WriteJSON emits the suite as RFC 8785 canonical JSON followed by a newline.
// Arguments are carried as Python literals.
func WriteJSON(w io.Writer, s *Suite) error {
	doc := jsonSuite{Function: s.FunctionName, Cases: make([]jsonEntry, len(s.Entries))}
	for i, e := range s.Entries {
		doc.Cases[i] = jsonEntry{
			Index:   i + 1,
			Args:    e.Case.ArgLiterals(),
			Literal: e.Case.Literal(),
			Signature: jsonSignature{
				Kind:      e.Signature.Kind.String(),
				Reference: e.Signature.Reference,
				Candidate: e.Signature.Candidate,
			},
		}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal suite: %w", err)
	}
	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return fmt.Errorf("failed to canonicalize suite: %w", err)
	}
	_, err = w.Write(append(canonical, '\n'))
	return err
}
