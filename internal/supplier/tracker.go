package supplier

import (
	"sort"
	"sync"
	"time"
)

// DirtyTracker records suppliers whose feature rows need recomputing.
// All operations are thread-safe.
type DirtyTracker struct {
	mu         sync.RWMutex
	dirtyFlags map[string]time.Time // supplierID -> time marked dirty
}

// NewDirtyTracker creates a new DirtyTracker instance.
func NewDirtyTracker() *DirtyTracker {
	return &DirtyTracker{
		dirtyFlags: make(map[string]time.Time),
	}
}

// MarkDirty marks a supplier as needing recomputation. Marking an already
// dirty supplier keeps the original timestamp.
func (t *DirtyTracker) MarkDirty(supplierID string) {
	t.mu.Lock()
	if _, exists := t.dirtyFlags[supplierID]; !exists {
		t.dirtyFlags[supplierID] = time.Now()
	}
	t.mu.Unlock()
}

// ClearDirty removes the dirty flag for a supplier after recomputation.
func (t *DirtyTracker) ClearDirty(supplierID string) {
	t.mu.Lock()
	delete(t.dirtyFlags, supplierID)
	t.mu.Unlock()
}

// DirtySuppliers returns the dirty supplier IDs, oldest mark first.
func (t *DirtyTracker) DirtySuppliers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.dirtyFlags))
	for id := range t.dirtyFlags {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := t.dirtyFlags[ids[i]], t.dirtyFlags[ids[j]]
		if ti.Equal(tj) {
			return ids[i] < ids[j]
		}
		return ti.Before(tj)
	})
	return ids
}

// IsDirty checks if a supplier is marked dirty.
func (t *DirtyTracker) IsDirty(supplierID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, exists := t.dirtyFlags[supplierID]
	return exists
}

// DirtyCount returns the number of dirty suppliers.
func (t *DirtyTracker) DirtyCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.dirtyFlags)
}
