// Package generation runs the talking-avatar pipeline for a session: resolve
// the driving audio, then drive the lip-sync model, with a timeout per stage
// and at most one in-flight run per session.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avatarstudio/avatar-studio/internal/avatar"
)

type Stage string

const (
	StageSynthesis  Stage = "synthesis"
	StageExtraction Stage = "extraction"
	StageGeneration Stage = "generation"
	StageExport     Stage = "export"
	StageUpload     Stage = "upload"
)

// Bounded runs fn under its own deadline. If that deadline is what ended the
// stage the error is reported as avatar.ErrTimeout; cancellation of the
// parent context is passed through unchanged. Bounded returns as soon as the
// deadline fires even when fn ignores its context; fn is left to finish in
// the background and its result is discarded.
func Bounded[T any](ctx context.Context, stage Stage, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		out T
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := fn(stageCtx)
		done <- result{out: out, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err == nil {
			return r.out, nil
		}
		if ctx.Err() == nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
			return zero, timeoutError(stage, timeout)
		}
		return r.out, r.err
	case <-stageCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, timeoutError(stage, timeout)
	}
}

func timeoutError(stage Stage, timeout time.Duration) error {
	return fmt.Errorf("%w: %s exceeded %s", avatar.ErrTimeout, stage, timeout)
}
