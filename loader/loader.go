// Package loader reads generation configuration documents from disk, in
// JSON or YAML, and turns them into parsed specs.
package loader

import (
	"fmt"
	"math"
	"math/bits"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/CatConfLang/pytestgen/config"
	"github.com/CatConfLang/pytestgen/domain"
)

// Patterns lists the file patterns LoadDir picks up.
var Patterns = []string{"*.json", "*.yaml", "*.yml"}

// ConfigLoader loads configuration documents
type ConfigLoader struct {
	Logger *zap.Logger
}

// Loaded is a spec together with the file it came from
type Loaded struct {
	Path string
	Spec *config.Spec
}

// NewConfigLoader creates a loader. A nil logger disables logging.
func NewConfigLoader(logger *zap.Logger) *ConfigLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigLoader{Logger: logger}
}

// LoadDocument reads path and checks the document shape without parsing the
// descriptors.
func (l *ConfigLoader) LoadDocument(path string) (config.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return config.Document{}, fmt.Errorf("failed to read file: %w", err)
	}
	doc, err := config.DecodeDocument(data)
	if err != nil {
		return config.Document{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return doc, nil
}

// LoadFile reads and parses the configuration document at path.
func (l *ConfigLoader) LoadFile(path string) (*config.Spec, error) {
	doc, err := l.LoadDocument(path)
	if err != nil {
		return nil, err
	}
	spec, err := config.Parse(doc)
	if err != nil {
		l.Logger.Debug("configuration rejected", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	l.Logger.Debug("configuration loaded",
		zap.String("path", path),
		zap.String("function", spec.FunctionName),
		zap.Int("params", len(spec.Params)),
		zap.Int("random_samples", spec.RandomSampleCount))
	return spec, nil
}

// LoadDir loads every configuration document in dir, ordered by path. It
// stops at the first document that fails to load.
func (l *ConfigLoader) LoadDir(dir string) ([]Loaded, error) {
	var files []string
	for _, pattern := range Patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to find configuration files: %w", err)
		}
		files = append(files, matches...)
	}
	slices.Sort(files)

	loaded := make([]Loaded, 0, len(files))
	for _, file := range files {
		spec, err := l.LoadFile(file)
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, Loaded{Path: file, Spec: spec})
	}
	return loaded, nil
}

// SpecStatistics summarizes a parsed spec
type SpecStatistics struct {
	FunctionName       string
	Params             int
	RandomSampleCount  int
	ByKind             map[string]int // top-level parameter kinds
	ExhaustivePerParam []int          // distinct exhaustive values per parameter
	ExhaustiveSize     uint64         // size of the exhaustive cross product, saturating at MaxUint64
}

// GetSpecStatistics enumerates the exhaustive set of each parameter and
// reports the size of the cross product the generator will produce.
func GetSpecStatistics(spec *config.Spec) (SpecStatistics, error) {
	stats := SpecStatistics{
		FunctionName:       spec.FunctionName,
		Params:             len(spec.Params),
		RandomSampleCount:  spec.RandomSampleCount,
		ByKind:             make(map[string]int),
		ExhaustivePerParam: make([]int, len(spec.Params)),
		ExhaustiveSize:     1,
	}

	for i, node := range spec.Params {
		stats.ByKind[node.Kind().String()]++

		vals, err := node.Exhaustive()
		if err != nil {
			return SpecStatistics{}, fmt.Errorf("parameter %d (%s): %w", i, node.Type(), err)
		}
		stats.ExhaustivePerParam[i] = len(vals)
		stats.ExhaustiveSize = mulSaturating(stats.ExhaustiveSize, uint64(len(vals)))
	}
	return stats, nil
}

// DescribeSpec renders the parameter trees of spec, one block per parameter.
func DescribeSpec(spec *config.Spec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "function %s, %d random samples\n", spec.FunctionName, spec.RandomSampleCount)
	for i, node := range spec.Params {
		fmt.Fprintf(&b, "param %d: %s\n", i, node.Type())
		for _, line := range strings.SplitAfter(domain.Describe(node), "\n") {
			if line != "" {
				b.WriteString("  " + line)
			}
		}
	}
	return b.String()
}

func mulSaturating(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}
