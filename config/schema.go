package config

//go:generate go run ../cmd/simplify-schema/main.go ../schemas/config.schema.json ../schemas/config.simple.json
//go:generate go-jsonschema -p generated -o generated/document.go ../schemas/config.simple.json

// This file contains only go:generate directives for schema-based type generation.
// Documents are decoded by DecodeDocument in config.go.
