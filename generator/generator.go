// Package generator builds the base set of test cases for a parsed
// configuration: every combination of the parameters' exhaustive values,
// followed by random samples drawn from the random domains.
package generator

import (
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/CatConfLang/pytestgen/config"
	"github.com/CatConfLang/pytestgen/types"
)

// DefaultMaxRejections bounds the consecutive random draws that may produce
// no new test case before the random phase gives up.
const DefaultMaxRejections = 10000

const maxCapacityHint = 1 << 16

// ExhaustionError reports that the random phase could not find enough
// distinct test cases.
type ExhaustionError struct {
	Requested  int
	Accepted   int
	Rejections int
}

func (e *ExhaustionError) Error() string {
	return fmt.Sprintf("random domain exhausted: accepted %d of %d samples, last %d draws were duplicates",
		e.Accepted, e.Requested, e.Rejections)
}

// Option configures a Generator
type Option func(*Generator)

// WithSeed makes the random phase deterministic.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>32|uint64(seed)<<32))
	}
}

// WithMaxRejections sets how many consecutive duplicate draws the random
// phase tolerates. A negative n removes the bound, so a random domain
// smaller than the requested sample count never terminates.
func WithMaxRejections(n int) Option {
	return func(g *Generator) { g.maxRejections = n }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Generator produces the base test set for one spec
type Generator struct {
	spec          *config.Spec
	rng           *rand.Rand
	maxRejections int
	logger        *zap.Logger
}

// New creates a generator for spec. Without WithSeed the random phase is
// seeded from the runtime's random source.
func New(spec *config.Spec, opts ...Option) *Generator {
	g := &Generator{
		spec:          spec,
		maxRejections: DefaultMaxRejections,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return g
}

// Generate returns the exhaustive test cases followed by
// spec.RandomSampleCount random ones, none repeated.
func (g *Generator) Generate() ([]types.TestCase, error) {
	exhaustive, err := g.Exhaustive()
	if err != nil {
		return nil, err
	}
	random, err := g.Random(exhaustive)
	if err != nil {
		return nil, err
	}

	all := make([]types.TestCase, 0, len(exhaustive)+len(random))
	all = append(all, exhaustive...)
	all = append(all, random...)
	return all, nil
}

// Exhaustive returns the Cartesian product of every parameter's exhaustive
// values, the first parameter varying slowest. A spec without parameters
// yields a single empty test case.
func (g *Generator) Exhaustive() ([]types.TestCase, error) {
	choices := make([][]types.Value, len(g.spec.Params))
	total := 1
	for i, node := range g.spec.Params {
		vals, err := node.Exhaustive()
		if err != nil {
			return nil, fmt.Errorf("parameter %d (%s): %w", i, node.Type(), err)
		}
		if len(vals) == 0 {
			return nil, nil
		}
		choices[i] = vals
		if total > maxCapacityHint/len(vals) {
			total = maxCapacityHint
		} else {
			total *= len(vals)
		}
	}

	seen := make(map[string]bool, total)
	cases := make([]types.TestCase, 0, total)
	idx := make([]int, len(choices))
	for {
		args := make([]types.Value, len(choices))
		for i, j := range idx {
			args[i] = choices[i][j]
		}
		tc := types.NewTestCase(args...)
		if key := tc.Key(); !seen[key] {
			seen[key] = true
			cases = append(cases, tc)
		}

		// Advance the odometer, last parameter fastest.
		p := len(idx) - 1
		for ; p >= 0; p-- {
			idx[p]++
			if idx[p] < len(choices[p]) {
				break
			}
			idx[p] = 0
		}
		if p < 0 {
			break
		}
	}

	g.logger.Debug("exhaustive phase complete",
		zap.String("function", g.spec.FunctionName),
		zap.Int("cases", len(cases)))
	return cases, nil
}

// Random draws spec.RandomSampleCount test cases that are neither in
// exclude nor repeated among themselves. Each draw takes one random value
// per parameter.
func (g *Generator) Random(exclude []types.TestCase) ([]types.TestCase, error) {
	want := g.spec.RandomSampleCount
	if want <= 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(exclude)+min(want, maxCapacityHint))
	for _, tc := range exclude {
		seen[tc.Key()] = true
	}

	cases := make([]types.TestCase, 0, min(want, maxCapacityHint))
	rejections := 0
	for len(cases) < want {
		args := make([]types.Value, len(g.spec.Params))
		for i, node := range g.spec.Params {
			v, err := node.Random(g.rng)
			if err != nil {
				return nil, fmt.Errorf("parameter %d (%s): %w", i, node.Type(), err)
			}
			args[i] = v
		}

		tc := types.NewTestCase(args...)
		key := tc.Key()
		if seen[key] {
			rejections++
			if g.maxRejections >= 0 && rejections >= g.maxRejections {
				g.logger.Debug("random phase exhausted",
					zap.String("function", g.spec.FunctionName),
					zap.Int("accepted", len(cases)),
					zap.Int("requested", want))
				return nil, &ExhaustionError{Requested: want, Accepted: len(cases), Rejections: rejections}
			}
			continue
		}

		seen[key] = true
		cases = append(cases, tc)
		rejections = 0
	}

	g.logger.Debug("random phase complete",
		zap.String("function", g.spec.FunctionName),
		zap.Int("cases", len(cases)))
	return cases, nil
}
