package convert

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/vcs-tools/subconvert/internal/gitstore"
	"gitlab.com/vcs-tools/subconvert/internal/log"
)

func snapshotTree(t *testing.T) *gitstore.Object {
	t.Helper()

	repo, err := gitstore.InitInMemory(log.Discard())
	require.NoError(t, err)
	return repo.CreateTree("")
}

func TestTreeCachePastTree(t *testing.T) {
	c := newTreeCache()

	t1 := snapshotTree(t)
	t5 := snapshotTree(t)
	t9 := snapshotTree(t)
	c.put(1, t1)
	c.put(5, t5)
	c.put(9, t9)

	t.Run("exact key", func(t *testing.T) {
		got, err := c.pastTree(5)
		require.NoError(t, err)
		require.Same(t, t5, got)
	})

	t.Run("greatest key below", func(t *testing.T) {
		got, err := c.pastTree(7)
		require.NoError(t, err)
		require.Same(t, t5, got)

		got, err = c.pastTree(100)
		require.NoError(t, err)
		require.Same(t, t9, got)
	})

	t.Run("lenient fallback when all keys are newer", func(t *testing.T) {
		got, err := c.pastTree(0)
		require.NoError(t, err)
		require.Same(t, t9, got)
	})

	t.Run("empty cache misses", func(t *testing.T) {
		_, err := newTreeCache().pastTree(3)
		require.ErrorIs(t, err, ErrMissingSnapshot)
	})
}

func TestTreeCachePruneThrough(t *testing.T) {
	c := newTreeCache()
	for _, rev := range []int{1, 5, 9, 12} {
		c.put(rev, snapshotTree(t))
	}

	// Pruning through 9 keeps 9 (the greatest key ≤ 9) and everything
	// newer, dropping 1 and 5.
	require.Equal(t, 2, c.pruneThrough(9))
	require.Equal(t, 2, c.len())

	min, max, ok := c.span()
	require.True(t, ok)
	require.Equal(t, 9, min)
	require.Equal(t, 12, max)

	// Pruning below the oldest key is a no-op.
	require.Zero(t, c.pruneThrough(3))
	require.Equal(t, 2, c.len())
}

func TestReservationSet(t *testing.T) {
	var s reservationSet

	require.True(t, s.add(10, 5))
	require.False(t, s.add(10, 5)) // tail dedup
	require.True(t, s.add(12, 3))
	require.True(t, s.add(10, 5)) // non-adjacent repeats survive
	require.Equal(t, 3, s.len())

	s.sortBySource()
	require.Equal(t, []reservation{{12, 3}, {10, 5}, {10, 5}}, s.items)

	// Nothing pops while the current revision is inside a reservation.
	require.Equal(t, -1, s.popThrough(10, nil))
	require.Equal(t, 3, s.len())

	var popped []reservation
	require.Equal(t, 5, s.popThrough(13, func(r reservation) { popped = append(popped, r) }))
	require.Zero(t, s.len())
	require.Len(t, popped, 3)
}
