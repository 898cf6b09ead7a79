package generation

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrSuperseded is the cancellation cause of a run replaced by a newer run
// of the same session.
var ErrSuperseded = errors.New("run superseded by a newer run")

type activeRun struct {
	id     string
	cancel context.CancelCauseFunc
}

// Registry tracks the in-flight run of each session. Starting a run cancels
// the session's previous one.
type Registry struct {
	mu   sync.Mutex
	runs map[string]activeRun
}

func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]activeRun)}
}

// Begin registers a new run for sessionID and returns its id, a context that
// is canceled when the run is superseded, and a release func to call when
// the run ends.
func (r *Registry) Begin(parent context.Context, sessionID string) (string, context.Context, func()) {
	runID := uuid.NewString()
	ctx, cancel := context.WithCancelCause(parent)

	r.mu.Lock()
	if prev, ok := r.runs[sessionID]; ok {
		prev.cancel(ErrSuperseded)
	}
	r.runs[sessionID] = activeRun{id: runID, cancel: cancel}
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		if cur, ok := r.runs[sessionID]; ok && cur.id == runID {
			delete(r.runs, sessionID)
		}
		r.mu.Unlock()
		cancel(nil)
	}
	return runID, ctx, release
}

// CancelSession cancels the session's in-flight run unless it is keepRunID.
// It reports whether a run was canceled.
func (r *Registry) CancelSession(sessionID, keepRunID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.runs[sessionID]
	if !ok || cur.id == keepRunID {
		return false
	}
	cur.cancel(ErrSuperseded)
	delete(r.runs, sessionID)
	return true
}

// Active returns the in-flight run id for sessionID.
func (r *Registry) Active(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.runs[sessionID]
	return cur.id, ok
}
