// Package pytestgen generates concise test suites for Python functions: it
// expands a parameter configuration into a base set of test cases, runs them
// against a reference and a candidate implementation, and keeps one case per
// observed discrepancy.
package pytestgen

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/CatConfLang/pytestgen/concise"
	"github.com/CatConfLang/pytestgen/config"
	"github.com/CatConfLang/pytestgen/generator"
	"github.com/CatConfLang/pytestgen/harness"
	"github.com/CatConfLang/pytestgen/loader"
	"github.com/CatConfLang/pytestgen/report"
	"github.com/CatConfLang/pytestgen/types"
)

// Version of the pytestgen package
const Version = "v0.1.0"

// BaseSetOptions controls base set generation.
type BaseSetOptions struct {
	// Seed makes the random phase deterministic when set.
	Seed *int64
	// MaxRejections overrides generator.DefaultMaxRejections when non-zero.
	// Negative values remove the bound.
	MaxRejections int
	Logger        *zap.Logger
}

func (o BaseSetOptions) generatorOptions() []generator.Option {
	opts := []generator.Option{generator.WithLogger(o.Logger)}
	if o.Seed != nil {
		opts = append(opts, generator.WithSeed(*o.Seed))
	}
	if o.MaxRejections != 0 {
		opts = append(opts, generator.WithMaxRejections(o.MaxRejections))
	}
	return opts
}

// LoadSpec is a convenience function for reading a configuration document
func LoadSpec(path string, logger *zap.Logger) (*config.Spec, error) {
	return loader.NewConfigLoader(logger).LoadFile(path)
}

// GenerateBaseSet loads the configuration at path and returns its base set:
// the exhaustive cases followed by the random samples.
func GenerateBaseSet(path string, opts BaseSetOptions) (*config.Spec, []types.TestCase, error) {
	spec, err := LoadSpec(path, opts.Logger)
	if err != nil {
		return nil, nil, err
	}
	cases, err := generator.New(spec, opts.generatorOptions()...).Generate()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate base set: %w", err)
	}
	return spec, cases, nil
}

// Request describes one end-to-end run.
type Request struct {
	ConfigPath    string
	ReferencePath string
	CandidatePath string

	BaseSet BaseSetOptions
	Harness harness.Options
	Concise concise.Options
}

// Generate loads the configuration, builds the base set, runs every case
// against both implementations, and returns the concise suite.
func Generate(ctx context.Context, req Request) (*report.Suite, error) {
	logger := req.BaseSet.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	spec, cases, err := GenerateBaseSet(req.ConfigPath, req.BaseSet)
	if err != nil {
		return nil, err
	}
	logger.Info("base set generated",
		zap.String("function", spec.FunctionName),
		zap.Int("cases", len(cases)))

	hopts := req.Harness
	if hopts.Logger == nil {
		hopts.Logger = logger
	}
	h, err := harness.New(harness.Target{
		FunctionName:  spec.FunctionName,
		ReferencePath: req.ReferencePath,
		CandidatePath: req.CandidatePath,
	}, hopts)
	if err != nil {
		return nil, fmt.Errorf("failed to create harness: %w", err)
	}
	defer h.Close()

	results, err := h.Run(ctx, cases)
	if err != nil {
		return nil, err
	}

	suite := report.NewSuite(spec.FunctionName, concise.CoverWith(results, req.Concise))
	logger.Info("concise suite selected",
		zap.Int("base_cases", len(cases)),
		zap.Int("concise_cases", len(suite.Entries)))
	return suite, nil
}
