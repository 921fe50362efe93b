package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateAndResolve(t *testing.T) {
	h := NewHandles()

	id := h.Allocate("item-1", "job-1", 0)
	require.NotEmpty(t, id)

	jobID, pageIndex, ok := h.Resolve(id)
	require.True(t, ok)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, 0, pageIndex)
}

func TestAllocateReplacesExistingHandle(t *testing.T) {
	h := NewHandles()

	first := h.Allocate("item-1", "job-1", 0)
	second := h.Allocate("item-1", "job-1", 0)

	assert.NotEqual(t, first, second)
	_, _, ok := h.Resolve(first)
	assert.False(t, ok, "replaced handle must be dead")
	_, _, ok = h.Resolve(second)
	assert.True(t, ok)
	assert.Equal(t, 1, h.Len())
}

func TestEnsureReusesLiveHandle(t *testing.T) {
	h := NewHandles()

	first := h.Ensure("item-1", "job-1", 2)
	second := h.Ensure("item-1", "job-1", 2)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.Len())
}

func TestSiblingItemsOwnIndependentHandles(t *testing.T) {
	h := NewHandles()

	// Two items on the same page each own their own handle; releasing one
	// must not kill the other's.
	a := h.Allocate("item-a", "job-1", 0)
	b := h.Allocate("item-b", "job-1", 0)
	require.NotEqual(t, a, b)

	h.ReleaseItem("item-a")

	_, _, ok := h.Resolve(a)
	assert.False(t, ok)
	_, _, ok = h.Resolve(b)
	assert.True(t, ok)
}

func TestReleaseItemUnknownIsNoOp(t *testing.T) {
	h := NewHandles()
	h.ReleaseItem("ghost")
	assert.Equal(t, 0, h.Len())
}

func TestReleaseJobScopesToJob(t *testing.T) {
	h := NewHandles()
	h.Allocate("item-a", "job-1", 0)
	h.Allocate("item-b", "job-1", 1)
	kept := h.Allocate("item-c", "job-2", 0)

	h.ReleaseJob("job-1")

	assert.Equal(t, 1, h.Len())
	_, _, ok := h.Resolve(kept)
	assert.True(t, ok)
}

func TestReleaseAll(t *testing.T) {
	h := NewHandles()
	h.Allocate("item-a", "job-1", 0)
	h.Allocate("item-b", "job-2", 3)

	h.ReleaseAll()

	assert.Equal(t, 0, h.Len())
}

func TestResolveUnknownHandle(t *testing.T) {
	h := NewHandles()
	_, _, ok := h.Resolve("nope")
	assert.False(t, ok)
}
