package harness

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/CatConfLang/pytestgen/types"
)

// fakeExecutor answers invocations from a function instead of a process.
type fakeExecutor struct {
	mu       sync.Mutex
	calls    map[string]int
	inFlight atomic.Int32
	peak     atomic.Int32
	respond  func(inv Invocation) Outcome
	block    bool
}

func newFakeExecutor(respond func(inv Invocation) Outcome) *fakeExecutor {
	return &fakeExecutor{calls: make(map[string]int), respond: respond}
}

func (f *fakeExecutor) Execute(ctx context.Context, inv Invocation) (Outcome, error) {
	f.mu.Lock()
	f.calls[filepath.Base(inv.Source)]++
	f.mu.Unlock()

	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if f.block {
		<-ctx.Done()
		return Outcome{}, ctx.Err()
	}
	time.Sleep(time.Millisecond)
	return f.respond(inv), nil
}

func (f *fakeExecutor) callCount(source string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[source]
}

func writeSources(t *testing.T, reference, candidate string) Target {
	t.Helper()
	dir := t.TempDir()
	ref := filepath.Join(dir, "reference.py")
	cand := filepath.Join(dir, "candidate.py")
	require.NoError(t, os.WriteFile(ref, []byte(reference), 0644))
	require.NoError(t, os.WriteFile(cand, []byte(candidate), 0644))
	return Target{FunctionName: "f", ReferencePath: ref, CandidatePath: cand}
}

func intCases(values ...int64) []types.TestCase {
	cases := make([]types.TestCase, len(values))
	for i, v := range values {
		cases[i] = types.NewTestCase(types.Int(v))
	}
	return cases
}

// respondByArg maps the first argument literal to an outcome per source file.
func respondByArg(ref, cand map[string]Outcome) func(Invocation) Outcome {
	return func(inv Invocation) Outcome {
		table := ref
		if filepath.Base(inv.Source) == "candidate.py" {
			table = cand
		}
		if out, ok := table[inv.Args[0]]; ok {
			return out
		}
		return Returned(inv.Args[0])
	}
}

func TestNew_ValidatesTarget(t *testing.T) {
	target := writeSources(t, "", "")
	exec := newFakeExecutor(nil)

	_, err := New(Target{ReferencePath: target.ReferencePath, CandidatePath: target.CandidatePath}, Options{Executor: exec})
	assert.Error(t, err, "empty function name")

	missing := target
	missing.CandidatePath = filepath.Join(t.TempDir(), "missing.py")
	_, err = New(missing, Options{Executor: exec})
	assert.ErrorIs(t, err, os.ErrNotExist)

	dir := target
	dir.ReferencePath = t.TempDir()
	_, err = New(dir, Options{Executor: exec})
	assert.Error(t, err)

	h, err := New(target, Options{Executor: exec})
	require.NoError(t, err)
	assert.NotEmpty(t, h.RunID())
	assert.True(t, filepath.IsAbs(h.Target().ReferencePath))
	assert.NoError(t, h.Close())
}

func TestRun_ClassifiesInInputOrder(t *testing.T) {
	target := writeSources(t, "", "")
	exec := newFakeExecutor(respondByArg(
		map[string]Outcome{"3": Raised("ValueError"), "4": Raised("KeyError"), "5": Raised("KeyError")},
		map[string]Outcome{"1": Returned("100"), "2": Raised(CategoryTimeout), "4": Raised("IndexError"), "5": Raised("KeyError")},
	))

	h, err := New(target, Options{Executor: exec, Workers: 3})
	require.NoError(t, err)

	cases := intCases(0, 1, 2, 3, 4, 5)
	results, err := h.Run(context.Background(), cases)
	require.NoError(t, err)
	require.Len(t, results, len(cases))

	want := []Kind{Match, ValueMismatch, CandidateRaised, ReferenceRaised, BothRaisedDifferently, Match}
	for i, r := range results {
		assert.True(t, r.Case.Equal(cases[i]), "result %d is out of order", i)
		assert.Equal(t, want[i], r.Signature.Kind, "case %s", r.Case)
	}
	assert.Equal(t, Raised(CategoryTimeout), results[2].Candidate)
	assert.LessOrEqual(t, exec.peak.Load(), int32(3))
}

func TestRun_ReferenceReturnsCandidateTimesOut(t *testing.T) {
	target := writeSources(t, "", "")
	exec := newFakeExecutor(func(inv Invocation) Outcome {
		if filepath.Base(inv.Source) == "candidate.py" {
			return Raised(CategoryTimeout)
		}
		return Returned("5")
	})

	h, err := New(target, Options{Executor: exec})
	require.NoError(t, err)

	results, err := h.Run(context.Background(), intCases(1))
	require.NoError(t, err)
	assert.Equal(t, Signature{Kind: CandidateRaised}, results[0].Signature)
}

func TestRun_PolicyIsApplied(t *testing.T) {
	target := writeSources(t, "", "")
	exec := newFakeExecutor(func(inv Invocation) Outcome { return Raised("KeyError") })

	h, err := New(target, Options{Executor: exec, Policy: Policy{Granularity: GranularityCategory, SeparateIdenticalFailures: true}})
	require.NoError(t, err)

	results, err := h.Run(context.Background(), intCases(1))
	require.NoError(t, err)
	assert.Equal(t, Signature{Kind: BothRaisedIdentically, Reference: "KeyError", Candidate: "KeyError"}, results[0].Signature)
}

func TestComputeReferenceResults_Caches(t *testing.T) {
	target := writeSources(t, "", "")
	exec := newFakeExecutor(func(inv Invocation) Outcome { return Returned(inv.Args[0]) })

	h, err := New(target, Options{Executor: exec})
	require.NoError(t, err)

	cases := intCases(1, 2, 2, 3)
	ref, err := h.ComputeReferenceResults(context.Background(), cases)
	require.NoError(t, err)
	assert.Len(t, ref, 3)
	assert.Equal(t, Returned("2"), ref[cases[1].Key()])
	assert.Equal(t, 3, exec.callCount("reference.py"), "duplicate cases run once")

	_, err = h.Run(context.Background(), cases)
	require.NoError(t, err)
	assert.Equal(t, 3, exec.callCount("reference.py"), "reference outcomes are reused by Run")
	assert.Equal(t, 4, exec.callCount("candidate.py"))
}

func TestRun_EmptyInput(t *testing.T) {
	target := writeSources(t, "", "")
	h, err := New(target, Options{Executor: newFakeExecutor(nil)})
	require.NoError(t, err)

	results, err := h.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRun_CancellationStopsWorkers(t *testing.T) {
	defer goleak.VerifyNone(t)

	target := writeSources(t, "", "")
	exec := newFakeExecutor(nil)
	exec.block = true

	h, err := New(target, Options{Executor: exec, Workers: 2})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = h.Run(ctx, intCases(1, 2, 3, 4, 5, 6, 7, 8))
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, exec.callCount("reference.py"), 8)
	assert.Equal(t, 0, exec.callCount("candidate.py"))
	assert.Equal(t, int32(0), exec.inFlight.Load())
}

func TestLimitedWriter(t *testing.T) {
	var sb strings.Builder
	lw := &limitedWriter{w: &sb, max: 5}

	n, err := lw.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = lw.Write([]byte("defg"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = lw.Write([]byte("hij"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, "abcde", sb.String())
	assert.True(t, lw.truncated)
	assert.Equal(t, int64(5), lw.discarded)
}

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Outcome
		wantErr bool
	}{
		{"returned", `{"status": "returned", "value": "[1, 2]"}`, Returned("[1, 2]"), false},
		{"returned empty string", `{"status": "returned", "value": "''"}`, Returned("''"), false},
		{"raised", `{"status": "raised", "category": "KeyError"}`, Raised("KeyError"), false},
		{"missing value", `{"status": "returned"}`, Outcome{}, true},
		{"missing category", `{"status": "raised"}`, Outcome{}, true},
		{"driver error", `{"status": "driver_error", "message": "bad argument"}`, Outcome{}, true},
		{"unknown status", `{"status": "maybe"}`, Outcome{}, true},
		{"garbage", `not json`, Outcome{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeEnvelope(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLastMarkedLine(t *testing.T) {
	stdout := []byte("noise\n" + outcomeMarker + `{"status": "raised", "category": "A"}` + "\nmore\n" +
		outcomeMarker + `{"status": "returned", "value": "1"}` + "\n")
	line, ok := lastMarkedLine(stdout)
	require.True(t, ok)
	assert.Equal(t, `{"status": "returned", "value": "1"}`, line)

	_, ok = lastMarkedLine([]byte("nothing here\n"))
	assert.False(t, ok)
	_, ok = lastMarkedLine(nil)
	assert.False(t, ok)
}

func TestExecutionError(t *testing.T) {
	cause := errors.New("boom")
	err := &ExecutionError{Category: CategoryCrash, Err: cause, Stderr: "Traceback"}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Crash")

	out := err.Outcome()
	assert.True(t, out.Raised)
	assert.Equal(t, CategoryCrash, out.Category)
	assert.Equal(t, "Traceback", out.Stderr)
}

// memoryStore is a ReferenceStore kept in a map; failing makes every call
// return an error.
type memoryStore struct {
	mu      sync.Mutex
	scopes  map[string]map[string]Outcome
	failing bool
}

func (m *memoryStore) LoadOutcomes(ctx context.Context, scope string, keys []string) (map[string]Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return nil, errors.New("store unavailable")
	}
	out := make(map[string]Outcome)
	for _, k := range keys {
		if o, ok := m.scopes[scope][k]; ok {
			out[k] = o
		}
	}
	return out, nil
}

func (m *memoryStore) SaveOutcomes(ctx context.Context, scope string, outcomes map[string]Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("store unavailable")
	}
	if m.scopes == nil {
		m.scopes = make(map[string]map[string]Outcome)
	}
	if m.scopes[scope] == nil {
		m.scopes[scope] = make(map[string]Outcome)
	}
	for k, o := range outcomes {
		m.scopes[scope][k] = o
	}
	return nil
}

func TestComputeReferenceResults_UsesStore(t *testing.T) {
	target := writeSources(t, "def f(x): return x", "")
	store := &memoryStore{}
	respond := respondByArg(map[string]Outcome{"3": Raised(CategoryTimeout)}, nil)

	first := newFakeExecutor(respond)
	h, err := New(target, Options{Executor: first, Store: store})
	require.NoError(t, err)
	_, err = h.ComputeReferenceResults(context.Background(), intCases(1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, first.callCount("reference.py"))
	require.Len(t, store.scopes, 1)
	for _, stored := range store.scopes {
		assert.Len(t, stored, 2, "transient outcomes are not stored")
	}

	second := newFakeExecutor(respond)
	h, err = New(target, Options{Executor: second, Store: store})
	require.NoError(t, err)
	ref, err := h.ComputeReferenceResults(context.Background(), intCases(1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, 1, second.callCount("reference.py"))
	assert.Equal(t, Returned("2"), ref[intCases(2)[0].Key()])
}

func TestComputeReferenceResults_StoreFailureIsNotFatal(t *testing.T) {
	target := writeSources(t, "", "")
	exec := newFakeExecutor(func(inv Invocation) Outcome { return Returned(inv.Args[0]) })
	core, logs := observer.New(zap.WarnLevel)

	h, err := New(target, Options{Executor: exec, Store: &memoryStore{failing: true}, Logger: zap.New(core)})
	require.NoError(t, err)

	ref, err := h.ComputeReferenceResults(context.Background(), intCases(1, 2))
	require.NoError(t, err)
	assert.Len(t, ref, 2)
	assert.Equal(t, 2, exec.callCount("reference.py"))
	assert.Equal(t, 2, logs.Len(), "both the load and the save failure are logged")
}

func TestOutcome_Transient(t *testing.T) {
	assert.True(t, Raised(CategoryTimeout).Transient())
	assert.True(t, Raised(CategoryStartFailure).Transient())
	assert.False(t, Raised(CategoryCrash).Transient())
	assert.False(t, Raised("KeyError").Transient())
	assert.False(t, Returned("Timeout").Transient())
}
