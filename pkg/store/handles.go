package store

import (
	"sync"

	"github.com/google/uuid"
)

// pageRef identifies a stored page image by its composite key parts.
type pageRef struct {
	JobID     string
	PageIndex int // 0-based
}

// Handles is the process-local registry behind item image handles. A handle
// is an opaque token resolving to a (jobId, pageIndex) pair, owned by
// exactly one item. Handles are never persisted; items keep only the stable
// composite reference in durable storage, and restore synthesizes one fresh
// handle per item whose page image still exists.
type Handles struct {
	mu     sync.RWMutex
	byID   map[string]pageRef
	byItem map[string]string // item id -> handle id
}

func NewHandles() *Handles {
	return &Handles{
		byID:   make(map[string]pageRef),
		byItem: make(map[string]string),
	}
}

// Allocate mints a fresh handle owned by the item, replacing (and freeing)
// any handle the item already held. Restore uses this, so every restore
// yields newly allocated handles.
func (h *Handles) Allocate(itemID, jobID string, pageIndex int) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.byItem[itemID]; ok {
		delete(h.byID, old)
	}
	id := uuid.New().String()
	h.byID[id] = pageRef{JobID: jobID, PageIndex: pageIndex}
	h.byItem[itemID] = id
	return id
}

// Ensure returns the item's live handle, allocating one only if none
// exists. Read paths use this so repeated fetches do not leak.
func (h *Handles) Ensure(itemID, jobID string, pageIndex int) string {
	h.mu.RLock()
	id, ok := h.byItem[itemID]
	h.mu.RUnlock()
	if ok {
		return id
	}
	return h.Allocate(itemID, jobID, pageIndex)
}

// Resolve maps a handle back to its page reference.
func (h *Handles) Resolve(id string) (jobID string, pageIndex int, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ref, ok := h.byID[id]
	if !ok {
		return "", 0, false
	}
	return ref.JobID, ref.PageIndex, true
}

// ReleaseItem frees the handle owned by the item, if any. Called whenever
// an item leaves the working set: single delete, job purge, page purge.
func (h *Handles) ReleaseItem(itemID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if id, ok := h.byItem[itemID]; ok {
		delete(h.byItem, itemID)
		delete(h.byID, id)
	}
}

// ReleaseJob frees every handle whose page belongs to the job.
func (h *Handles) ReleaseJob(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for itemID, id := range h.byItem {
		if ref, ok := h.byID[id]; ok && ref.JobID == jobID {
			delete(h.byItem, itemID)
			delete(h.byID, id)
		}
	}
}

// ReleaseAll frees everything; called on shutdown and on clear-everything.
func (h *Handles) ReleaseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.byID = make(map[string]pageRef)
	h.byItem = make(map[string]string)
}

// Len reports the number of live handles.
func (h *Handles) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byID)
}
