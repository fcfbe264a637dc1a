package harness

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

//go:embed driver.py
var driverSource []byte

const outcomeMarker = "@@pytestgen-outcome@@ "

// Invocation is a single call of a function in a Python source file
type Invocation struct {
	Source   string
	Function string
	// Args are the arguments rendered as Python literals.
	Args []string
}

// Executor runs invocations. Execute reports the function's outcome,
// recovering every execution failure into a raised Outcome; it returns an
// error only when ctx is done.
type Executor interface {
	Execute(ctx context.Context, inv Invocation) (Outcome, error)
}

// ExecutorConfig configures a ProcessExecutor
type ExecutorConfig struct {
	Python         string        // interpreter binary
	Timeout        time.Duration // per invocation
	MaxOutputBytes int64         // per output stream
	WaitDelay      time.Duration // grace period for pipes after a kill
}

// DefaultExecutorConfig returns the defaults: python3, a 5s timeout and
// 1 MiB of output per stream.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Python:         "python3",
		Timeout:        5 * time.Second,
		MaxOutputBytes: 1 << 20,
		WaitDelay:      time.Second,
	}
}

// ProcessExecutor runs every invocation in a fresh interpreter process with
// an embedded driver script.
type ProcessExecutor struct {
	config  ExecutorConfig
	dir     string
	driver  string
	logger  *zap.Logger
	environ []string
}

// NewProcessExecutor writes the driver script to a private scratch
// directory. Close removes it.
func NewProcessExecutor(config ExecutorConfig, logger *zap.Logger) (*ProcessExecutor, error) {
	defaults := DefaultExecutorConfig()
	if config.Python == "" {
		config.Python = defaults.Python
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxOutputBytes <= 0 {
		config.MaxOutputBytes = defaults.MaxOutputBytes
	}
	if config.WaitDelay <= 0 {
		config.WaitDelay = defaults.WaitDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := filepath.Join(os.TempDir(), "pytestgen-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create driver directory: %w", err)
	}
	driver := filepath.Join(dir, "driver.py")
	if err := os.WriteFile(driver, driverSource, 0o600); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to write driver: %w", err)
	}

	logger.Debug("process executor ready",
		zap.String("python", config.Python),
		zap.Duration("timeout", config.Timeout),
		zap.String("driver", driver))

	return &ProcessExecutor{
		config:  config,
		dir:     dir,
		driver:  driver,
		logger:  logger,
		environ: append(os.Environ(), "PYTHONHASHSEED=0", "PYTHONDONTWRITEBYTECODE=1", "PYTHONIOENCODING=utf-8"),
	}, nil
}

// Close removes the driver directory.
func (e *ProcessExecutor) Close() error {
	return os.RemoveAll(e.dir)
}

// Config returns the effective configuration.
func (e *ProcessExecutor) Config() ExecutorConfig { return e.config }

func (e *ProcessExecutor) Execute(ctx context.Context, inv Invocation) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	execCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	args := append([]string{e.driver, inv.Source, inv.Function}, inv.Args...)
	cmd := exec.CommandContext(execCtx, e.config.Python, args...)
	cmd.Env = e.environ
	setupProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = e.config.WaitDelay

	var stdoutBuf, stderrBuf bytes.Buffer
	stdout := &limitedWriter{w: &stdoutBuf, max: e.config.MaxOutputBytes}
	stderr := &limitedWriter{w: &stderrBuf, max: e.config.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	if stdout.truncated || stderr.truncated {
		e.logger.Warn("invocation output truncated",
			zap.String("source", inv.Source),
			zap.Int64("discarded_bytes", stdout.discarded+stderr.discarded))
	}

	outcome, execErr := e.interpret(execCtx, runErr, stdoutBuf.Bytes(), stderrBuf.String())
	if execErr != nil {
		e.logger.Debug("invocation failed",
			zap.String("source", inv.Source),
			zap.Strings("args", inv.Args),
			zap.Duration("elapsed", elapsed),
			zap.Error(execErr))
		return execErr.Outcome(), nil
	}

	e.logger.Debug("invocation complete",
		zap.String("source", inv.Source),
		zap.Strings("args", inv.Args),
		zap.Duration("elapsed", elapsed),
		zap.Stringer("outcome", outcome))
	return outcome, nil
}

func (e *ProcessExecutor) interpret(execCtx context.Context, runErr error, stdout []byte, stderr string) (Outcome, *ExecutionError) {
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return Outcome{}, &ExecutionError{
			Category: CategoryTimeout,
			Err:      fmt.Errorf("no result after %s", e.config.Timeout),
			Stderr:   stderr,
		}
	}

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		return Outcome{}, &ExecutionError{Category: CategoryStartFailure, Err: runErr, Stderr: stderr}
	}

	line, found := lastMarkedLine(stdout)
	if !found {
		if exitErr != nil {
			return Outcome{}, &ExecutionError{Category: CategoryCrash, Err: exitErr, Stderr: stderr}
		}
		return Outcome{}, &ExecutionError{
			Category: CategoryProtocolError,
			Err:      errors.New("driver exited without reporting an outcome"),
			Stderr:   stderr,
		}
	}

	outcome, err := decodeEnvelope(line)
	if err != nil {
		return Outcome{}, &ExecutionError{Category: CategoryProtocolError, Err: err, Stderr: stderr}
	}
	outcome.Stderr = stderr
	return outcome, nil
}

type envelope struct {
	Status   string  `json:"status"`
	Value    *string `json:"value"`
	Category string  `json:"category"`
	Message  string  `json:"message"`
}

func decodeEnvelope(line string) (Outcome, error) {
	var env envelope
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		return Outcome{}, fmt.Errorf("malformed outcome envelope: %w", err)
	}
	switch env.Status {
	case "returned":
		if env.Value == nil {
			return Outcome{}, errors.New("returned outcome has no value")
		}
		return Returned(*env.Value), nil
	case "raised":
		if env.Category == "" {
			return Outcome{}, errors.New("raised outcome has no category")
		}
		return Raised(env.Category), nil
	case "driver_error":
		return Outcome{}, fmt.Errorf("driver error: %s", env.Message)
	}
	return Outcome{}, fmt.Errorf("unknown outcome status %q", env.Status)
}

func lastMarkedLine(stdout []byte) (string, bool) {
	var (
		line  string
		found bool
	)
	sc := bufio.NewScanner(bytes.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64*1024), len(stdout)+1)
	for sc.Scan() {
		if rest, ok := strings.CutPrefix(sc.Text(), outcomeMarker); ok {
			line, found = rest, true
		}
	}
	return line, found
}

// limitedWriter is an io.Writer that keeps at most max bytes and discards
// the rest while reporting full writes.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
	discarded int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		lw.truncated = true
		lw.discarded += int64(n)
		return n, nil
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		lw.discarded += int64(n) - remaining
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
