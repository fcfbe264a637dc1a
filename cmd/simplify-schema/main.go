package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// droppedKeywords are JSON schema keywords that only constrain values and
// have no bearing on the generated Go types.
var droppedKeywords = map[string]bool{
	"$comment":  true,
	"examples":  true,
	"pattern":   true,
	"minLength": true,
	"maxLength": true,
	"allOf":     true,
	"anyOf":     true,
	"oneOf":     true,
	"if":        true,
	"then":      true,
	"else":      true,
}

// SchemaSimplifier strips validation-only keywords from a JSON schema so
// go-jsonschema emits plain types for it
type SchemaSimplifier struct {
	inputFile  string
	outputFile string
}

func main() {
	if len(os.Args) != 3 {
		fmt.Printf("Usage: %s <input-schema.json> <output-schema.json>\n", os.Args[0])
		fmt.Println("Strips validation-only keywords before go-jsonschema type generation")
		os.Exit(1)
	}

	simplifier := &SchemaSimplifier{
		inputFile:  os.Args[1],
		outputFile: os.Args[2],
	}

	if err := simplifier.simplify(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Simplified schema: %s -> %s\n", simplifier.inputFile, simplifier.outputFile)
}

func (s *SchemaSimplifier) simplify() error {
	data, err := os.ReadFile(s.inputFile)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	var schema any
	if err := json.Unmarshal(data, &schema); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	output, err := json.MarshalIndent(stripKeywords(schema, false), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(s.outputFile, append(output, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// stripKeywords removes droppedKeywords at every level. Inside a
// "properties" object the keys are property names, never keywords, so they
// are kept even when they collide with one.
func stripKeywords(v any, propertyNames bool) any {
	switch v := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(v))
		for key, value := range v {
			if !propertyNames && droppedKeywords[key] {
				continue
			}
			result[key] = stripKeywords(value, !propertyNames && key == "properties")
		}
		return result
	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = stripKeywords(item, false)
		}
		return result
	default:
		return v
	}
}
