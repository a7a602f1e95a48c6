package gitstore

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/vcs-tools/subconvert/internal/log"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()

	r, err := InitInMemory(log.Discard())
	require.NoError(t, err)
	return r
}

func mustBlob(t *testing.T, r *Repository, name, content string) *Object {
	t.Helper()

	blob, err := r.CreateBlob(name, []byte(content))
	require.NoError(t, err)
	return blob
}

func TestCreateBlob(t *testing.T) {
	r := testRepo(t)

	a := mustBlob(t, r, "a.txt", "x")
	require.False(t, a.ID().IsZero())
	require.False(t, a.IsTree())

	// Identifiers are content-addressed: same bytes, same id, regardless of
	// the entry name.
	b := mustBlob(t, r, "b.txt", "x")
	require.Equal(t, a.ID(), b.ID())

	c := mustBlob(t, r, "a.txt", "y")
	require.NotEqual(t, a.ID(), c.ID())
}

func TestBlobCopyToName(t *testing.T) {
	r := testRepo(t)

	a := mustBlob(t, r, "a.txt", "x")
	require.Same(t, a, a.CopyToName("a.txt"))

	renamed := a.CopyToName("b.txt")
	require.Equal(t, "b.txt", renamed.Name())
	require.Equal(t, a.ID(), renamed.ID())
}

func TestTreeUpdateLookupRemove(t *testing.T) {
	r := testRepo(t)

	tree := r.CreateTree("")
	require.True(t, tree.Empty())

	blob := mustBlob(t, r, "baz.c", "#include <stdio.h>\n")
	require.NoError(t, tree.Update("foo/bar/baz.c", blob))
	require.False(t, tree.Empty())

	found := tree.Lookup("foo/bar/baz.c")
	require.NotNil(t, found)
	require.Equal(t, blob.ID(), found.ID())

	require.Nil(t, tree.Lookup("foo/missing.c"))
	require.Nil(t, tree.Lookup("foo/bar/baz.c/under-blob"))

	// Removing the only file cascades away the emptied directories.
	tree.Remove("foo/bar/baz.c")
	require.True(t, tree.Empty())

	// Removing a path that never existed is tolerated.
	tree.Remove("no/such/path")
}

func TestTreeCopyOnWrite(t *testing.T) {
	r := testRepo(t)

	tree := r.CreateTree("")
	require.NoError(t, tree.Update("dir/a.txt", mustBlob(t, r, "a.txt", "x")))

	snapshot := tree.Copy()

	require.NoError(t, tree.Update("dir/b.txt", mustBlob(t, r, "b.txt", "y")))
	tree.Remove("dir/a.txt")

	// The snapshot still sees the original state.
	require.NotNil(t, snapshot.Lookup("dir/a.txt"))
	require.Nil(t, snapshot.Lookup("dir/b.txt"))
	require.Nil(t, tree.Lookup("dir/a.txt"))
}

func TestTreeWrittenFlags(t *testing.T) {
	r := testRepo(t)

	tree := r.CreateTree("")
	require.NoError(t, tree.Update("a.txt", mustBlob(t, r, "a.txt", "x")))

	id, err := tree.write(r)
	require.NoError(t, err)
	require.False(t, id.IsZero())
	require.True(t, tree.written)
	require.False(t, tree.modified)

	// A second write of an unchanged tree is the identity.
	again, err := tree.write(r)
	require.NoError(t, err)
	require.Equal(t, id, again)

	require.NoError(t, tree.Update("b.txt", mustBlob(t, r, "b.txt", "y")))
	require.True(t, tree.modified)
	require.False(t, tree.written)

	updated, err := tree.write(r)
	require.NoError(t, err)
	require.NotEqual(t, id, updated)
}

func TestTreeWriteDeterministic(t *testing.T) {
	build := func(t *testing.T) string {
		r := testRepo(t)
		tree := r.CreateTree("")
		// Insertion order must not leak into the identifier.
		require.NoError(t, tree.Update("z.txt", mustBlob(t, r, "z.txt", "z")))
		require.NoError(t, tree.Update("dir/inner.txt", mustBlob(t, r, "inner.txt", "i")))
		require.NoError(t, tree.Update("a.txt", mustBlob(t, r, "a.txt", "a")))
		id, err := tree.write(r)
		require.NoError(t, err)
		return id.String()
	}

	require.Equal(t, build(t), build(t))
}

func TestCommitLifecycle(t *testing.T) {
	r := testRepo(t)

	c := r.CreateCommit(nil)
	require.NoError(t, c.Update("foo/bar.c", mustBlob(t, r, "bar.c", "int x;\n")))
	c.SetAuthor("Alice Smith", "alice@example.com", time.Date(2011, 4, 7, 22, 13, 13, 0, time.UTC))
	c.SetMessage("first\n\nSVN-Revision: 1")

	require.NoError(t, c.write())
	require.False(t, c.ID().IsZero())

	next := c.Clone()
	require.Same(t, c, next.Parent())
	next.Remove("foo/bar.c")
	require.True(t, next.Tree().Empty())

	// The parent's tree is untouched by the successor's edits.
	require.NotNil(t, c.Lookup("foo/bar.c"))

	// An emptied-out tree still commits; only a nil tree means deletion.
	next.SetAuthor("Alice Smith", "alice@example.com", time.Date(2011, 4, 8, 0, 0, 0, 0, time.UTC))
	next.SetMessage("empty now")
	require.NoError(t, next.write())
	require.False(t, next.ID().IsZero())
	require.NotEqual(t, c.ID(), next.ID())
}

func TestBranchGetCommit(t *testing.T) {
	r := testRepo(t)

	b := r.AddBranch("master", "trunk", false)

	c := b.GetCommit(nil)
	require.True(t, c.IsNewBranch())
	require.Nil(t, c.Parent())

	// Repeated requests within one revision return the same pending commit
	// and enqueue it only once.
	require.Same(t, c, b.GetCommit(nil))
	require.Len(t, r.queue, 1)

	require.NoError(t, c.Update("a.txt", mustBlob(t, r, "a.txt", "x")))
	c.SetAuthor("alice", "", time.Unix(100, 0))

	modified, err := r.Write(1)
	require.NoError(t, err)
	require.True(t, modified)
	require.Same(t, c, b.Commit())

	// The next revision clones the flushed commit.
	c2 := b.GetCommit(nil)
	require.NotSame(t, c, c2)
	require.Same(t, c, c2.Parent())
	require.False(t, c2.IsNewBranch())
	require.NotNil(t, c2.Lookup("a.txt"))
}

func TestBranchFromBranch(t *testing.T) {
	r := testRepo(t)

	master := r.AddBranch("master", "trunk", false)
	topic := r.AddBranch("topic", "branches/topic", false)

	c := master.GetCommit(nil)
	require.NoError(t, c.Update("a.txt", mustBlob(t, r, "a.txt", "x")))
	c.SetAuthor("alice", "", time.Unix(100, 0))
	_, err := r.Write(1)
	require.NoError(t, err)

	tc := topic.GetCommit(master)
	require.True(t, tc.IsNewBranch())
	require.Same(t, master.Commit(), tc.Parent())
	require.NotNil(t, tc.Lookup("a.txt"))
}

func TestWriteEmptyTreeDeletesBranch(t *testing.T) {
	r := testRepo(t)

	b := r.AddBranch("v1", "tags/v1", true)

	c := b.GetCommit(nil)
	require.NoError(t, c.Update("a.txt", mustBlob(t, r, "a.txt", "x")))
	c.SetAuthor("alice", "", time.Unix(100, 0))
	_, err := r.Write(2)
	require.NoError(t, err)
	taggedID := b.Commit().ID()

	// The next revision deletes the branch root wholesale.
	c2 := b.GetCommit(nil)
	c2.SetTree(nil)
	modified, err := r.Write(3)
	require.NoError(t, err)
	require.False(t, modified)
	require.Nil(t, b.Commit())

	id, err := r.Reference("refs/tags/v1__deleted_r3")
	require.NoError(t, err)
	require.Equal(t, taggedID, id)

	// No live reference remains for the deleted tag.
	require.NoError(t, r.WriteBranches())
	_, err = r.Reference("refs/tags/v1")
	require.Error(t, err)
}

func TestWriteBranches(t *testing.T) {
	r := testRepo(t)

	master := r.AddBranch("master", "trunk", false)
	v1 := r.AddBranch("v1", "tags/v1", true)

	mc := master.GetCommit(nil)
	require.NoError(t, mc.Update("a.txt", mustBlob(t, r, "a.txt", "x")))
	mc.SetAuthor("alice", "", time.Unix(100, 0))

	vc := v1.GetCommit(nil)
	require.NoError(t, vc.Update("a.txt", mustBlob(t, r, "a.txt", "x")))
	vc.SetAuthor("alice", "", time.Unix(100, 0))

	_, err := r.Write(1)
	require.NoError(t, err)
	require.NoError(t, r.WriteBranches())

	head, err := r.Reference("refs/heads/master")
	require.NoError(t, err)
	require.Equal(t, master.Commit().ID(), head)

	tag, err := r.Reference("refs/tags/v1")
	require.NoError(t, err)
	require.Equal(t, v1.Commit().ID(), tag)

	// A tag branch never gains a head reference.
	_, err = r.Reference("refs/heads/v1")
	require.Error(t, err)
}

func TestFindBranchByPath(t *testing.T) {
	t.Run("implicit master without routing", func(t *testing.T) {
		r := testRepo(t)

		b, err := r.FindBranchByPath("anything/at/all.txt")
		require.NoError(t, err)
		require.Equal(t, DefaultBranchName, b.Name)

		again, err := r.FindBranchByPath("other.txt")
		require.NoError(t, err)
		require.Same(t, b, again)
	})

	t.Run("longest ancestor wins", func(t *testing.T) {
		r := testRepo(t)
		r.AddBranch("master", "trunk", false)
		r.AddBranch("topic", "branches/topic", false)

		b, err := r.FindBranchByPath("branches/topic/deep/file.c")
		require.NoError(t, err)
		require.Equal(t, "topic", b.Name)

		b, err = r.FindBranchByPath("trunk")
		require.NoError(t, err)
		require.Equal(t, "master", b.Name)

		_, err = r.FindBranchByPath("branches/other/file.c")
		require.ErrorIs(t, err, ErrNoBranch)
	})
}

func TestAdoptAcrossStores(t *testing.T) {
	parent := testRepo(t)
	sub := testRepo(t)

	tree := parent.CreateTree("")
	require.NoError(t, tree.Update("dir/a.txt", mustBlob(t, parent, "a.txt", "shared")))
	id, err := tree.write(parent)
	require.NoError(t, err)
	require.False(t, sub.has(id))

	// Writing the same tree into the submodule store grafts the closure.
	grafted, err := tree.write(sub)
	require.NoError(t, err)
	require.Equal(t, id, grafted)
	require.True(t, sub.has(id))
}

func TestDumpTree(t *testing.T) {
	r := testRepo(t)

	tree := r.CreateTree("")
	require.NoError(t, tree.Update("dir/a.txt", mustBlob(t, r, "a.txt", "x")))
	require.NoError(t, tree.Update("top.txt", mustBlob(t, r, "top.txt", "y")))

	var out strings.Builder
	tree.DumpTree(&out, 0)
	require.Equal(t, "dir\n  a.txt\ntop.txt\n", out.String())
}
