package convert

import (
	"errors"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"

	"gitlab.com/vcs-tools/subconvert/internal/gitstore"
)

// ErrMissingSnapshot is returned when a copy-from references a revision for
// which no historical-tree snapshot remains cached.
var ErrMissingSnapshot = errors.New("no snapshot for revision")

// treeCache is the historical-tree cache: a sparse, ordered map from
// revision number to the snapshot taken at that revision's close. A snapshot
// is added at the close of every revision that changed anything; older
// entries are dropped only as copy-from reservations are popped.
type treeCache struct {
	m *treemap.Map
}

func newTreeCache() *treeCache {
	return &treeCache{m: treemap.NewWith(utils.IntComparator)}
}

// put records tree as the snapshot at rev. Boundaries pass each revision at
// most once, keeping the map monotone.
func (c *treeCache) put(rev int, tree *gitstore.Object) {
	c.m.Put(rev, tree)
}

// pastTree returns the snapshot with the greatest key ≤ rev. When every
// cached key is newer than rev the greatest-keyed snapshot is returned as a
// lenient fallback; an empty cache is a hard miss.
func (c *treeCache) pastTree(rev int) (*gitstore.Object, error) {
	if k, v := c.m.Floor(rev); k != nil {
		return v.(*gitstore.Object), nil
	}
	if !c.m.Empty() {
		_, v := c.m.Max()
		return v.(*gitstore.Object), nil
	}
	return nil, ErrMissingSnapshot
}

// pruneThrough discards every entry strictly older than the greatest key ≤
// popped; that entry itself stays since the next copy-from at or above
// popped resolves to it.
func (c *treeCache) pruneThrough(popped int) (dropped int) {
	keepKey, _ := c.m.Floor(popped)
	if keepKey == nil {
		return 0
	}
	keep := keepKey.(int)

	for _, k := range c.m.Keys() {
		if k.(int) >= keep {
			break
		}
		c.m.Remove(k)
		dropped++
	}
	return dropped
}

func (c *treeCache) len() int {
	return c.m.Size()
}

// span returns the oldest and newest cached keys; ok is false when empty.
func (c *treeCache) span() (min, max int, ok bool) {
	if c.m.Empty() {
		return 0, 0, false
	}
	minKey, _ := c.m.Min()
	maxKey, _ := c.m.Max()
	return minKey.(int), maxKey.(int), true
}
