package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateAndPayload(t *testing.T) {
	s := NewStore()
	h := s.Allocate("hello")
	v, ok := s.Payload(h)
	require.True(t, ok)
	assert.Equal(t, "hello", v)
	assert.Equal(t, 1, s.Len())
}

func TestDropHandleFreesAndBumpsGeneration(t *testing.T) {
	s := NewStore()
	h := s.Allocate(42)

	payload, freed, ok := s.DropHandle(h)
	require.True(t, ok)
	require.True(t, freed)
	assert.Equal(t, 42, payload)
	assert.Equal(t, 0, s.Len())

	// the slot is reused, but the old handle must now read as stale.
	h2 := s.Allocate("reused")
	_, stillValid := s.Payload(h)
	assert.False(t, stillValid, "old handle must be invalidated by generation bump")
	v2, ok := s.Payload(h2)
	require.True(t, ok)
	assert.Equal(t, "reused", v2)
	assert.NotEqual(t, h.Generation(), h2.Generation())
}

func TestCloneHandleKeepsCellAliveUntilAllDropped(t *testing.T) {
	s := NewStore()
	h := s.Allocate("shared")
	h2, ok := s.CloneHandle(h)
	require.True(t, ok)

	_, freed1, _ := s.DropHandle(h)
	assert.False(t, freed1)
	_, stillAlive := s.Payload(h2)
	assert.True(t, stillAlive)

	_, freed2, _ := s.DropHandle(h2)
	assert.True(t, freed2)
}

func TestAccessCounterTransitions(t *testing.T) {
	s := NewStore()
	h := s.Allocate("x")

	assert.True(t, s.AcquireShared(h))
	assert.True(t, s.AcquireShared(h))
	assert.False(t, s.AcquireExclusive(h), "exclusive must fail while shared borrows are live")
	s.ReleaseShared(h)
	s.ReleaseShared(h)

	assert.True(t, s.AcquireExclusive(h))
	assert.False(t, s.AcquireShared(h), "shared must fail while exclusive is live")
	s.ReleaseExclusive(h)
}

func TestDropDeferredUntilGuardReleases(t *testing.T) {
	s := NewStore()
	h := s.Allocate("borrowed")
	require.True(t, s.AcquireExclusive(h))

	_, freed, ok := s.DropHandle(h)
	require.True(t, ok)
	assert.False(t, freed, "cell must not be freed while a guard is outstanding")

	s.ReleaseExclusive(h)
	assert.Equal(t, 0, s.Len(), "releasing the last guard on an orphaned cell frees it")
}

func TestChunkGrowthAcrossManyAllocations(t *testing.T) {
	s := NewStore()
	handles := make([]Handle, 0, 200)
	for i := 0; i < 200; i++ {
		handles = append(handles, s.Allocate(i))
	}
	for i, h := range handles {
		v, ok := s.Payload(h)
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, 200, s.Len())
}
