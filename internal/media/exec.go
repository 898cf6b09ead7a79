package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
)

// Executor starts encode/decode subprocesses.
type Executor interface {
	// Start launches bin and returns immediately.
	Start(ctx context.Context, bin string, args []string) (Process, error)
	// Output runs bin to completion and returns its stdout.
	Output(ctx context.Context, bin string, args []string) ([]byte, RunResult)
}

// Process is a started subprocess.
type Process interface {
	Wait() RunResult
}

// SubprocessExecutor is the os/exec implementation of Executor.
type SubprocessExecutor struct {
	logger *slog.Logger
}

func NewSubprocessExecutor(logger *slog.Logger) *SubprocessExecutor {
	return &SubprocessExecutor{logger: logger}
}

type subprocess struct {
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	start  time.Time
	logger *slog.Logger
}

func (e *SubprocessExecutor) Start(ctx context.Context, bin string, args []string) (Process, error) {
	cmd := exec.CommandContext(ctx, bin, args...)

	// Capture stderr with bounded buffer
	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = io.Discard

	e.logger.Debug("starting media command", "bin", bin, "args", args)

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &subprocess{cmd: cmd, stderr: &stderrBuf, start: time.Now(), logger: e.logger}, nil
}

func (p *subprocess) Wait() RunResult {
	err := p.cmd.Wait()
	res := RunResult{
		ExitCode:   exitCode(err),
		StderrTail: p.stderr.String(),
		Duration:   time.Since(p.start),
	}
	if err != nil {
		res.Err = err
		p.logger.Warn("media command failed",
			"exit_code", res.ExitCode,
			"duration_ms", res.Duration.Milliseconds(),
			"stderr_tail", truncate(res.StderrTail, 512),
		)
	} else {
		p.logger.Debug("media command succeeded", "duration_ms", res.Duration.Milliseconds())
	}
	return res
}

func (e *SubprocessExecutor) Output(ctx context.Context, bin string, args []string) ([]byte, RunResult) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderrBuf bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}

	err := cmd.Run()
	return stdout.Bytes(), RunResult{
		ExitCode:   exitCode(err),
		StderrTail: stderrBuf.String(),
		Duration:   time.Since(start),
		Err:        err,
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
