// Package harness runs a reference and a candidate implementation of one
// Python function against every test case and classifies each case by how
// the two outcomes differ.
package harness

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/CatConfLang/pytestgen/types"
)

// Target names the function under test and the two source files that
// implement it.
type Target struct {
	FunctionName  string
	ReferencePath string
	CandidatePath string
}

// Options configures a Harness. Zero values select the defaults.
type Options struct {
	// Workers bounds concurrent invocations; defaults to runtime.NumCPU().
	Workers int
	// Executor runs invocations. When nil a ProcessExecutor is created from
	// Python, Timeout and MaxOutputBytes, and released by Close.
	Executor       Executor
	Python         string
	Timeout        time.Duration
	MaxOutputBytes int64
	Policy         Policy
	Logger         *zap.Logger

	// Store, when set, persists reference outcomes so that later harnesses
	// for the same reference source skip rerunning it.
	Store ReferenceStore
}

// ReferenceStore persists reference outcomes keyed by TestCase.Key. The
// scope identifies the reference source and function the outcomes belong to.
type ReferenceStore interface {
	LoadOutcomes(ctx context.Context, scope string, keys []string) (map[string]Outcome, error)
	SaveOutcomes(ctx context.Context, scope string, outcomes map[string]Outcome) error
}

// Result is one classified test case
type Result struct {
	Case      types.TestCase
	Reference Outcome
	Candidate Outcome
	Signature Signature
}

// Harness executes test cases against a target. The reference outcomes are
// cached across calls.
type Harness struct {
	target  Target
	opts    Options
	exec    Executor
	owned   *ProcessExecutor
	logger  *zap.Logger
	runID   string
	workers int
	scope   string

	mu        sync.RWMutex
	reference map[string]Outcome
}

// New creates a harness for target. The source paths are made absolute and
// must exist.
func New(target Target, opts Options) (*Harness, error) {
	if target.FunctionName == "" {
		return nil, fmt.Errorf("target function name is empty")
	}
	var err error
	if target.ReferencePath, err = sourcePath(target.ReferencePath); err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	if target.CandidatePath, err = sourcePath(target.CandidatePath); err != nil {
		return nil, fmt.Errorf("candidate: %w", err)
	}

	runID := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("run_id", runID), zap.String("function", target.FunctionName))

	h := &Harness{
		target:    target,
		opts:      opts,
		exec:      opts.Executor,
		logger:    logger,
		runID:     runID,
		workers:   opts.Workers,
		reference: make(map[string]Outcome),
	}
	if h.workers <= 0 {
		h.workers = runtime.NumCPU()
	}
	if opts.Store != nil {
		if h.scope, err = referenceScope(target); err != nil {
			return nil, err
		}
	}
	if h.exec == nil {
		pe, err := NewProcessExecutor(ExecutorConfig{
			Python:         opts.Python,
			Timeout:        opts.Timeout,
			MaxOutputBytes: opts.MaxOutputBytes,
		}, logger)
		if err != nil {
			return nil, err
		}
		h.exec, h.owned = pe, pe
	}
	return h, nil
}

func sourcePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("failed to stat source: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", abs)
	}
	return abs, nil
}

// referenceScope digests the function name and the reference source, so
// stored outcomes are dropped whenever the reference changes.
func referenceScope(target Target) (string, error) {
	src, err := os.ReadFile(target.ReferencePath)
	if err != nil {
		return "", fmt.Errorf("failed to read reference: %w", err)
	}
	sum := sha256.New()
	sum.Write([]byte(target.FunctionName))
	sum.Write([]byte{0})
	sum.Write(src)
	return hex.EncodeToString(sum.Sum(nil)), nil
}

// RunID identifies this harness in log output.
func (h *Harness) RunID() string { return h.runID }

// Target returns the resolved target.
func (h *Harness) Target() Target { return h.target }

// Close releases the process executor created by New, if any.
func (h *Harness) Close() error {
	if h.owned == nil {
		return nil
	}
	return h.owned.Close()
}

// ComputeReferenceResults runs the reference implementation for every case
// whose reference outcome is not cached yet, and returns the outcomes of all
// cases keyed by TestCase.Key. Outcomes become visible only after the whole
// batch has finished. With a Store, stored outcomes are used instead of
// running the reference, and new ones are saved.
func (h *Harness) ComputeReferenceResults(ctx context.Context, cases []types.TestCase) (map[string]Outcome, error) {
	h.mu.RLock()
	var missing []types.TestCase
	queued := make(map[string]bool)
	for _, tc := range cases {
		key := tc.Key()
		if _, ok := h.reference[key]; !ok && !queued[key] {
			queued[key] = true
			missing = append(missing, tc)
		}
	}
	h.mu.RUnlock()

	fresh := make(map[string]Outcome, len(missing))
	if len(missing) > 0 && h.opts.Store != nil {
		missing = h.loadStored(ctx, missing, fresh)
	}
	if len(missing) > 0 {
		h.logger.Info("running reference implementation", zap.Int("cases", len(missing)))
		outcomes, err := h.runAll(ctx, h.target.ReferencePath, missing)
		if err != nil {
			return nil, err
		}

		ran := make(map[string]Outcome, len(missing))
		for i, tc := range missing {
			ran[tc.Key()] = outcomes[i]
			fresh[tc.Key()] = outcomes[i]
		}
		if h.opts.Store != nil {
			h.saveStored(ctx, ran)
		}
	}
	if len(fresh) > 0 {
		h.mu.Lock()
		for key, out := range fresh {
			h.reference[key] = out
		}
		h.mu.Unlock()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]Outcome, len(cases))
	for _, tc := range cases {
		key := tc.Key()
		out[key] = h.reference[key]
	}
	return out, nil
}

// loadStored copies the stored outcomes of missing into the given map and returns the
// cases the store has no outcome for. Store failures count as misses.
func (h *Harness) loadStored(ctx context.Context, missing []types.TestCase, into map[string]Outcome) []types.TestCase {
	keys := make([]string, len(missing))
	for i, tc := range missing {
		keys[i] = tc.Key()
	}
	stored, err := h.opts.Store.LoadOutcomes(ctx, h.scope, keys)
	if err != nil {
		h.logger.Warn("failed to load stored reference outcomes", zap.Error(err))
		return missing
	}

	var rest []types.TestCase
	for _, tc := range missing {
		if out, ok := stored[tc.Key()]; ok {
			into[tc.Key()] = out
			continue
		}
		rest = append(rest, tc)
	}
	h.logger.Debug("reference outcomes loaded from store",
		zap.Int("hits", len(missing)-len(rest)),
		zap.Int("misses", len(rest)))
	return rest
}

// saveStored persists outcomes except those that depend on the machine
// rather than on the reference.
func (h *Harness) saveStored(ctx context.Context, outcomes map[string]Outcome) {
	keep := make(map[string]Outcome, len(outcomes))
	for key, out := range outcomes {
		if !out.Transient() {
			keep[key] = out
		}
	}
	if len(keep) == 0 {
		return
	}
	if err := h.opts.Store.SaveOutcomes(ctx, h.scope, keep); err != nil {
		h.logger.Warn("failed to store reference outcomes", zap.Error(err))
	}
}

// Run runs the candidate implementation for every case and classifies it
// against the reference outcome under the configured policy. Reference
// outcomes that are missing are computed first. Results are in the order of
// cases. If ctx is canceled the in-flight processes are killed and Run
// returns ctx.Err().
func (h *Harness) Run(ctx context.Context, cases []types.TestCase) ([]Result, error) {
	reference, err := h.ComputeReferenceResults(ctx, cases)
	if err != nil {
		return nil, err
	}

	h.logger.Info("running candidate implementation", zap.Int("cases", len(cases)))
	candidate, err := h.runAll(ctx, h.target.CandidatePath, cases)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(cases))
	counts := make(map[Kind]int)
	for i, tc := range cases {
		ref := reference[tc.Key()]
		sig := Classify(ref, candidate[i], h.opts.Policy)
		results[i] = Result{Case: tc, Reference: ref, Candidate: candidate[i], Signature: sig}
		counts[sig.Kind]++
	}

	fields := []zap.Field{zap.Int("cases", len(cases))}
	for kind := Match; kind <= BothRaisedIdentically; kind++ {
		if counts[kind] > 0 {
			fields = append(fields, zap.Int(kind.String(), counts[kind]))
		}
	}
	h.logger.Info("classification complete", fields...)
	return results, nil
}

// runAll invokes source once per case on the worker pool. Each worker
// writes only its own slot of the returned slice.
func (h *Harness) runAll(ctx context.Context, source string, cases []types.TestCase) ([]Outcome, error) {
	outcomes := make([]Outcome, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.workers)

	for i, tc := range cases {
		if gctx.Err() != nil {
			break
		}
		inv := Invocation{
			Source:   source,
			Function: h.target.FunctionName,
			Args:     tc.ArgLiterals(),
		}
		g.Go(func() error {
			out, err := h.exec.Execute(gctx, inv)
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
