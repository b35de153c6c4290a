package orchestrator

import (
	"path/filepath"
	"sync"
)

// WorkspaceLocks serializes work per workspace directory.
type WorkspaceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// processLocks is shared by every Executor in the process, so two runs on
// the same workspace never execute tasks at the same time.
var processLocks = NewWorkspaceLocks()

// NewWorkspaceLocks creates an empty lock table.
func NewWorkspaceLocks() *WorkspaceLocks {
	return &WorkspaceLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until workspace is free and returns the unlock function.
func (w *WorkspaceLocks) Lock(workspace string) func() {
	key := filepath.Clean(workspace)

	w.mu.Lock()
	m, ok := w.locks[key]
	if !ok {
		m = &sync.Mutex{}
		w.locks[key] = m
	}
	w.mu.Unlock()

	m.Lock()
	return m.Unlock
}
