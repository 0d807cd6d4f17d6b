package build

import (
	"fmt"
	"sync"
)

// PageStatus tracks a page through the build lifecycle.
type PageStatus string

const (
	StatusUnbuilt   PageStatus = "unbuilt"
	StatusStale     PageStatus = "stale"
	StatusRendering PageStatus = "rendering"
	StatusBuilt     PageStatus = "built"
	StatusEvicted   PageStatus = "evicted"
)

// statusTransitions is the allowed state machine. Unbuilt goes straight to
// Built when the cached output is reused; Rendering falls back to Stale on a
// failed render so the next build retries. Evicted is terminal.
var statusTransitions = map[PageStatus]map[PageStatus]bool{
	StatusUnbuilt:   {StatusStale: true, StatusBuilt: true},
	StatusStale:     {StatusRendering: true, StatusEvicted: true},
	StatusRendering: {StatusBuilt: true, StatusStale: true},
	StatusBuilt:     {StatusStale: true, StatusEvicted: true},
	StatusEvicted:   {},
}

// StatusTracker holds the per-page build status. It is safe for concurrent
// use by render workers.
type StatusTracker struct {
	mu       sync.Mutex
	statuses map[string]PageStatus
}

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{statuses: make(map[string]PageStatus)}
}

// Register adds a page in the Unbuilt state. Registering an already-known
// page is a no-op.
func (t *StatusTracker) Register(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.statuses[path]; !ok {
		t.statuses[path] = StatusUnbuilt
	}
}

// RegisterBuilt seeds a page from a previous build in the Built state, so
// eviction transitions validate. Registering an already-known page is a no-op.
func (t *StatusTracker) RegisterBuilt(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.statuses[path]; !ok {
		t.statuses[path] = StatusBuilt
	}
}

// Transition moves a page to the next status, rejecting moves the state
// machine does not allow.
func (t *StatusTracker) Transition(path string, next PageStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.statuses[path]
	if !ok {
		return fmt.Errorf("unknown page %q", path)
	}
	if !statusTransitions[cur][next] {
		return fmt.Errorf("invalid transition %s -> %s for %q", cur, next, path)
	}
	t.statuses[path] = next
	return nil
}

// Status returns the current status, or StatusUnbuilt for unknown pages.
func (t *StatusTracker) Status(path string) PageStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.statuses[path]; ok {
		return s
	}
	return StatusUnbuilt
}

// Counts aggregates pages per status.
func (t *StatusTracker) Counts() map[PageStatus]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	counts := make(map[PageStatus]int, len(statusTransitions))
	for _, s := range t.statuses {
		counts[s]++
	}
	return counts
}
