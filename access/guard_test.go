package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/rnvm/heap"
)

func TestSharedGuardsStack(t *testing.T) {
	store := heap.NewStore()
	h := store.Allocate([]int{1, 2, 3})

	g1, err := BorrowShared(store, h)
	require.NoError(t, err)
	g2, err := BorrowShared(store, h)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, g1.Payload())

	_, err = BorrowExclusive(store, h)
	assert.Error(t, err, "exclusive must fail while shared borrows are outstanding")

	g1.Release()
	g2.Release()

	g3, err := BorrowExclusive(store, h)
	require.NoError(t, err)
	g3.Release()
}

func TestExclusiveGuardExclusion(t *testing.T) {
	store := heap.NewStore()
	h := store.Allocate("x")

	g1, err := BorrowExclusive(store, h)
	require.NoError(t, err)

	_, err = BorrowShared(store, h)
	assert.Error(t, err)

	g1.Release()

	g2, err := BorrowShared(store, h)
	require.NoError(t, err)
	g2.Release()
}

func TestRawGuardSurvivesAcrossSuspension(t *testing.T) {
	store := heap.NewStore()
	h := store.Allocate(42)

	shared, err := BorrowShared(store, h)
	require.NoError(t, err)
	payload, raw := shared.IntoRaw()
	assert.Equal(t, 42, payload)

	// simulate a suspension point: nothing else may take an exclusive
	// borrow until the raw guard releases.
	_, err = BorrowExclusive(store, h)
	assert.Error(t, err)

	raw.Release()
	g, err := BorrowExclusive(store, h)
	require.NoError(t, err)
	g.Release()
}
