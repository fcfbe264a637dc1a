// Package config parses the generation configuration: the document naming
// the function under test and, per parameter, a type descriptor plus
// exhaustive and random domain descriptors.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/CatConfLang/pytestgen/domain"
)

// Document field names. A document must have exactly these keys.
const (
	FieldFunctionName      = "function name"
	FieldRandomSampleCount = "random sample count"
	FieldTypes             = "types"
	FieldExhaustiveDomain  = "exhaustive domain"
	FieldRandomDomain      = "random domain"
)

// RequiredFields lists the document keys in canonical order.
func RequiredFields() []string {
	return []string{
		FieldFunctionName,
		FieldRandomSampleCount,
		FieldTypes,
		FieldExhaustiveDomain,
		FieldRandomDomain,
	}
}

// ConfigError types
const (
	ErrTypeInvalidDocument = "invalid_document"
	ErrTypeInvalidField    = "invalid_field"
	ErrTypeLengthMismatch  = "length_mismatch"
	ErrTypeInvalidType     = "invalid_type"
	ErrTypeInvalidDomain   = "invalid_domain"
)

// ConfigError represents a malformed configuration document or descriptor
type ConfigError struct {
	Type    string
	Message string

	// Param is the zero-based parameter index, or -1 for document-level errors.
	Param int
	// Field is the document field the error was found in, if any.
	Field string
	// Offset is the byte offset within the descriptor, or -1.
	Offset int

	Cause error
}

func (e *ConfigError) Error() string {
	msg := e.Type + ": " + e.Message
	var where []string
	if e.Param >= 0 {
		where = append(where, fmt.Sprintf("parameter %d", e.Param))
	}
	if e.Field != "" {
		where = append(where, fmt.Sprintf("%q", e.Field))
	}
	if e.Offset >= 0 {
		where = append(where, fmt.Sprintf("offset %d", e.Offset))
	}
	if len(where) > 0 {
		msg += " (" + strings.Join(where, ", ") + ")"
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *ConfigError) Unwrap() error { return e.Cause }

func documentError(typ, field, format string, args ...any) *ConfigError {
	return &ConfigError{
		Type:    typ,
		Message: fmt.Sprintf(format, args...),
		Param:   -1,
		Field:   field,
		Offset:  -1,
	}
}

// Document is the decoded, not yet validated, configuration document
type Document struct {
	FunctionName      string
	RandomSampleCount int
	Types             []string
	ExhaustiveDomain  []string
	RandomDomain      []string
}

// Spec is the parsed configuration: the function name, one domain node per
// parameter in declaration order, and the number of random samples.
type Spec struct {
	FunctionName      string
	Params            []domain.Node
	RandomSampleCount int
}

// ParseDocument decodes and parses a configuration document. JSON and YAML
// are both accepted.
func ParseDocument(data []byte) (*Spec, error) {
	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, err
	}
	return Parse(doc)
}

// DecodeDocument checks the document shape: exactly the five required keys,
// a string function name, a non-negative integer sample count and three
// lists of strings.
func DecodeDocument(data []byte) (Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		e := documentError(ErrTypeInvalidDocument, "", "failed to decode document: %v", err)
		e.Cause = err
		return Document{}, e
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) != 1 || root.Content[0].Kind != yaml.MappingNode {
		return Document{}, documentError(ErrTypeInvalidDocument, "", "document must be a single object")
	}

	fields := make(map[string]*yaml.Node)
	mapping := root.Content[0]
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i]
		if key.Kind != yaml.ScalarNode {
			return Document{}, documentError(ErrTypeInvalidDocument, "", "keys must be strings")
		}
		if _, dup := fields[key.Value]; dup {
			return Document{}, documentError(ErrTypeInvalidDocument, key.Value, "duplicate key")
		}
		fields[key.Value] = mapping.Content[i+1]
	}

	required := RequiredFields()
	for _, name := range required {
		if _, ok := fields[name]; !ok {
			return Document{}, documentError(ErrTypeInvalidDocument, name, "missing required key")
		}
	}
	if len(fields) != len(required) {
		var extra []string
		for name := range fields {
			if !slices.Contains(required, name) {
				extra = append(extra, name)
			}
		}
		slices.Sort(extra)
		return Document{}, documentError(ErrTypeInvalidDocument, "", "unexpected keys: %s", strings.Join(extra, ", "))
	}

	var doc Document
	var err error
	if doc.FunctionName, err = stringField(fields, FieldFunctionName); err != nil {
		return Document{}, err
	}
	if doc.RandomSampleCount, err = countField(fields, FieldRandomSampleCount); err != nil {
		return Document{}, err
	}
	if doc.Types, err = stringListField(fields, FieldTypes); err != nil {
		return Document{}, err
	}
	if doc.ExhaustiveDomain, err = stringListField(fields, FieldExhaustiveDomain); err != nil {
		return Document{}, err
	}
	if doc.RandomDomain, err = stringListField(fields, FieldRandomDomain); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func stringField(fields map[string]*yaml.Node, name string) (string, error) {
	n := fields[name]
	if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!str" {
		return "", documentError(ErrTypeInvalidField, name, "must be a string")
	}
	return n.Value, nil
}

func countField(fields map[string]*yaml.Node, name string) (int, error) {
	n := fields[name]
	if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!int" {
		return 0, documentError(ErrTypeInvalidField, name, "must be an integer")
	}
	var count int
	if err := n.Decode(&count); err != nil {
		e := documentError(ErrTypeInvalidField, name, "must be an integer: %v", err)
		e.Cause = err
		return 0, e
	}
	if count < 0 {
		return 0, documentError(ErrTypeInvalidField, name, "must not be negative, got %d", count)
	}
	return count, nil
}

func stringListField(fields map[string]*yaml.Node, name string) ([]string, error) {
	n := fields[name]
	if n.Kind != yaml.SequenceNode {
		return nil, documentError(ErrTypeInvalidField, name, "must be a list of strings")
	}
	out := make([]string, len(n.Content))
	for i, item := range n.Content {
		if item.Kind != yaml.ScalarNode || item.ShortTag() != "!!str" {
			return nil, documentError(ErrTypeInvalidField, name, "entry %d must be a string", i)
		}
		out[i] = item.Value
	}
	return out, nil
}

// Parse builds the domain tree for every parameter of doc.
func Parse(doc Document) (*Spec, error) {
	if doc.RandomSampleCount < 0 {
		return nil, documentError(ErrTypeInvalidField, FieldRandomSampleCount, "must not be negative, got %d", doc.RandomSampleCount)
	}
	if len(doc.Types) != len(doc.ExhaustiveDomain) || len(doc.Types) != len(doc.RandomDomain) {
		return nil, documentError(ErrTypeLengthMismatch, "",
			"%q, %q and %q must have the same length, got %d, %d and %d",
			FieldTypes, FieldExhaustiveDomain, FieldRandomDomain,
			len(doc.Types), len(doc.ExhaustiveDomain), len(doc.RandomDomain))
	}

	spec := &Spec{
		FunctionName:      doc.FunctionName,
		Params:            make([]domain.Node, len(doc.Types)),
		RandomSampleCount: doc.RandomSampleCount,
	}
	for i := range doc.Types {
		node, err := ParseParam(doc.Types[i], doc.ExhaustiveDomain[i], doc.RandomDomain[i])
		if err != nil {
			var cfgErr *ConfigError
			if errors.As(err, &cfgErr) {
				cfgErr.Param = i
			}
			return nil, err
		}
		spec.Params[i] = node
	}
	return spec, nil
}

// ParseParam builds the domain node for one parameter from its type,
// exhaustive domain and random domain descriptors.
func ParseParam(typ, exhaustive, random string) (domain.Node, error) {
	t, err := parseTypeDescriptor(typ)
	if err != nil {
		return nil, err
	}
	ex, err := parseDomainDescriptor(t, exhaustive, FieldExhaustiveDomain)
	if err != nil {
		return nil, err
	}
	rnd, err := parseDomainDescriptor(t, random, FieldRandomDomain)
	if err != nil {
		return nil, err
	}
	return build(t, ex, rnd)
}
