package gitstore

// Branch tracks one destination reference: its routing prefix, the last
// flushed commit, and the commit pending for the current revision.
type Branch struct {
	repo *Repository

	Name   string
	Prefix string
	IsTag  bool

	commit     *Commit
	nextCommit *Commit
}

// Commit returns the branch's last flushed commit, nil for a branch that has
// not received one (or whose history was moved to a preservation tag).
func (b *Branch) Commit() *Commit {
	return b.commit
}

// GetCommit returns the branch's pending commit for the current revision,
// materializing it on first request: the previous commit is cloned, or, for
// a branch springing from another (directory copy across prefixes), the
// source branch's commit is. A branch with no history starts a parentless
// new-branch commit. The pending commit is enqueued on the store's flush
// queue and stamped with the current revision's signature and message.
func (b *Branch) GetCommit(from *Branch) *Commit {
	if b.nextCommit != nil {
		return b.nextCommit
	}

	var c *Commit
	switch {
	case b.commit != nil:
		c = b.commit.Clone()
	case from != nil && from.pendingOrLast() != nil:
		c = from.pendingOrLast().Clone()
		c.newBranch = true
	default:
		c = &Commit{repo: b.repo, newBranch: true}
	}
	c.branch = b

	b.nextCommit = c
	b.repo.enqueue(c)
	if b.repo.SetCommitInfo != nil {
		b.repo.SetCommitInfo(c)
	}
	return c
}

// pendingOrLast prefers the in-flight commit so same-revision branch copies
// see the state accumulated so far.
func (b *Branch) pendingOrLast() *Commit {
	if b.nextCommit != nil {
		return b.nextCommit
	}
	return b.commit
}
