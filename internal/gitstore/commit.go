package gitstore

import (
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Commit is a commit under construction for one branch. It owns its tree
// (copy-on-write shared with the parent commit's tree) and is persisted when
// the enclosing revision closes.
type Commit struct {
	repo   *Repository
	branch *Branch
	parent *Commit

	tree    *Object
	id      plumbing.Hash
	author  object.Signature
	message string

	// newBranch marks the first commit of a fresh branch so flush logic
	// emits it even when its tree matches the parent's.
	newBranch bool
}

// ID returns the persisted identifier; zero while pending.
func (c *Commit) ID() plumbing.Hash { return c.id }

// Tree returns the commit's root tree, nil while no change has landed.
func (c *Commit) Tree() *Object { return c.tree }

// Parent returns the parent commit, if any.
func (c *Commit) Parent() *Commit { return c.parent }

// Branch returns the branch the commit is pending on.
func (c *Commit) Branch() *Branch { return c.branch }

// Message returns the commit message.
func (c *Commit) Message() string { return c.message }

// Author returns the stamped author signature.
func (c *Commit) Author() object.Signature { return c.author }

// IsNewBranch reports whether this is the first commit of its branch.
func (c *Commit) IsNewBranch() bool { return c.newBranch }

// SetAuthor stamps the author and committer signature. when is normalized to
// UTC so converted ids are reproducible across hosts.
func (c *Commit) SetAuthor(name, email string, when time.Time) {
	c.author = object.Signature{Name: name, Email: email, When: when.UTC()}
}

// SetMessage sets the commit message.
func (c *Commit) SetMessage(message string) {
	c.message = message
}

// SetTree replaces the commit's root tree wholesale. Used for operations on
// a branch's own root path: a directory copy onto the prefix installs the
// copied tree as the branch content, a delete of the prefix empties it.
func (c *Commit) SetTree(tree *Object) {
	c.tree = tree
}

// Update inserts obj at pathname, materializing the root tree on first use.
func (c *Commit) Update(pathname string, obj *Object) error {
	if c.tree == nil {
		c.tree = c.repo.CreateTree("")
	}
	return c.tree.Update(pathname, obj)
}

// Remove deletes pathname from the commit's tree.
func (c *Commit) Remove(pathname string) {
	if c.tree != nil {
		c.tree.Remove(pathname)
	}
}

// Lookup resolves pathname in the commit's tree.
func (c *Commit) Lookup(pathname string) *Object {
	if c.tree == nil {
		return nil
	}
	return c.tree.Lookup(pathname)
}

// Clone returns a pending successor of c: same tree (copy-on-write), c as
// parent. Signature and message are stamped separately for the new revision.
func (c *Commit) Clone() *Commit {
	clone := &Commit{repo: c.repo, parent: c}
	if c.tree != nil {
		clone.tree = c.tree.Copy()
	}
	return clone
}

// write persists the commit and everything it references. The parent is
// written first when still pending; flush order normally guarantees this
// already.
func (c *Commit) write() error {
	if !c.id.IsZero() {
		return nil
	}

	var parents []plumbing.Hash
	if c.parent != nil {
		if c.parent.id.IsZero() && c.parent.tree != nil && !c.parent.tree.Empty() {
			if err := c.parent.write(); err != nil {
				return err
			}
		}
		if !c.parent.id.IsZero() {
			parents = append(parents, c.parent.id)
		}
	}

	treeID, err := c.tree.write(c.repo)
	if err != nil {
		return err
	}

	sig := c.author
	if sig.When.IsZero() {
		sig.When = time.Unix(0, 0).UTC()
	}

	encoded := c.repo.storer.NewEncodedObject()
	if err := (&object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      c.message,
		TreeHash:     treeID,
		ParentHashes: parents,
	}).Encode(encoded); err != nil {
		return newStoreError("encode commit", err)
	}

	id, err := c.repo.storer.SetEncodedObject(encoded)
	if err != nil {
		return newStoreError("write commit", err)
	}
	c.id = id
	return nil
}
