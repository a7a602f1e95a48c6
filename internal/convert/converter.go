// Package convert orchestrates the dump-to-git translation: it routes each
// node to the branches it affects, maintains the historical tree and its
// snapshot cache, and flushes per-branch commits at revision boundaries.
package convert

import (
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"gitlab.com/vcs-tools/subconvert/internal/authors"
	"gitlab.com/vcs-tools/subconvert/internal/branches"
	"gitlab.com/vcs-tools/subconvert/internal/gitstore"
	"gitlab.com/vcs-tools/subconvert/internal/log"
	"gitlab.com/vcs-tools/subconvert/internal/status"
	"gitlab.com/vcs-tools/subconvert/internal/svndump"
)

// Options bundles the conversion knobs from the command line.
type Options struct {
	Verbose bool
	Debug   bool
	Quiet   bool

	// GCInterval runs reference writes and a repack every N revisions;
	// zero disables the cadence.
	GCInterval int

	// StoreFactory creates submodule stores. There is no default:
	// LoadSubmodules fails when it is nil. The command line supplies on-disk
	// sibling directories of the main store; tests supply in-memory stores.
	StoreFactory func(name string) (*gitstore.Repository, error)
}

// Converter is the conversion driver. It is fed nodes in stream order, one
// at a time, by Prescan during the first pass and Apply during the second.
type Converter struct {
	repo    *gitstore.Repository
	authors *authors.Table
	logger  log.Logger
	display *status.Display
	dumpOut io.Writer
	opts    Options

	rev     int
	lastRev int

	revTrees     *treeCache
	reservations reservationSet
	submodules   *submoduleTable

	node *svndump.Node

	sigName  string
	sigEmail string
	sigWhen  time.Time
	message  string
}

// New returns a converter writing into repo. dumpOut receives the textual
// tree dump emitted when a copy-from source path cannot be found.
func New(repo *gitstore.Repository, authorTable *authors.Table, logger log.Logger, display *status.Display, dumpOut io.Writer, opts Options) *Converter {
	c := &Converter{
		repo:       repo,
		authors:    authorTable,
		logger:     logger,
		display:    display,
		dumpOut:    dumpOut,
		opts:       opts,
		lastRev:    -1,
		revTrees:   newTreeCache(),
		submodules: newSubmoduleTable(),
	}
	repo.SetCommitInfo = c.setCommitInfo
	return c
}

// LoadBranches registers the validated branch table for routing.
func (c *Converter) LoadBranches(table *branches.Table) {
	for _, d := range table.All() {
		c.repo.AddBranch(d.Name, d.Prefix, d.IsTag)
	}
}

// LoadSubmodules reads the modules file and eagerly initializes each
// submodule's store. Returns the validation error count.
func (c *Converter) LoadSubmodules(pathname string) (int, error) {
	factory := c.opts.StoreFactory
	if factory == nil {
		return 0, fmt.Errorf("no submodule store factory configured")
	}

	table, errs, err := loadSubmodules(pathname, c.repo, factory, c.logger)
	if err != nil {
		return errs, err
	}
	c.submodules = table
	return errs, nil
}

// Submodules returns the loaded submodules in declaration order.
func (c *Converter) Submodules() []*Submodule {
	return c.submodules.list
}

// Prescan validates one node: the author must be known when an author table
// is loaded, the node's path and copy-from path must route to branches when
// a branch table is loaded, and every copy-from edge is reserved. Returns
// the number of errors found.
func (c *Converter) Prescan(node *svndump.Node) int {
	c.display.Update(node.Rev)

	errors := 0

	if !c.authors.Empty() {
		if _, ok := c.authors.Lookup(node.RevAuthor); !ok {
			c.revLogger(node.Rev).Warnf("Unrecognized author id: %s", node.RevAuthor)
			errors++
		}
	}

	if node.HasCopyFrom() {
		c.revLogger(node.Rev).Debugf("Copy from: %d <- %d", node.Rev, node.CopyFromRev)
		c.reservations.add(node.Rev, node.CopyFromRev)
	}

	if c.repo.HasRouting() {
		// Plain directory adds and modifications never route anywhere;
		// files, deletions and directory copies must.
		if node.Action == svndump.ActionDelete ||
			node.Kind == svndump.KindFile ||
			node.HasCopyFrom() {
			if _, err := c.repo.FindBranchByPath(node.Path); err != nil {
				c.revLogger(node.Rev).Warnf("Could not find branch for %s in r%d", node.Path, node.Rev)
				errors++
			}
			if node.HasCopyFrom() {
				if _, err := c.repo.FindBranchByPath(node.CopyFromPath); err != nil {
					c.revLogger(node.Rev).Warnf("Could not find branch for %s in r%d", node.CopyFromPath, node.Rev)
					errors++
				}
			}
		}
	}

	return errors
}

// SortReservations orders the reservation set by source revision, the order
// the apply pass pops it in. Called once between the passes.
func (c *Converter) SortReservations() {
	c.reservations.sortBySource()

	if c.logger.DebugEnabled() {
		for _, res := range c.reservations.items {
			c.logger.Debugf("%d <- %d", res.dependent, res.source)
		}
	}
}

// Apply routes one node into the destination stores, closing the previous
// revision first when the node opens a new one.
func (c *Converter) Apply(node *svndump.Node) error {
	if node.Path == "" {
		return nil
	}

	c.node = node
	c.rev = node.Rev

	if c.rev != c.lastRev {
		if err := c.closeRevision(); err != nil {
			return err
		}

		c.display.Update(c.rev)
		c.lastRev = c.rev
		c.establishCommitInfo(node)
	}

	return c.processChange(c.repo, node.Path, nil)
}

// closeRevision flushes pending commits for the previous revision, snapshots
// the historical tree when that flush produced a commit, and prunes what the
// stream has moved past.
func (c *Converter) closeRevision() error {
	modified, err := c.repo.Write(c.lastRev)
	if err != nil {
		return err
	}
	if modified {
		if hc := c.repo.History.Commit(); hc != nil && hc.Tree() != nil {
			c.revTrees.put(c.lastRev, hc.Tree())
		}
		if err := c.maybeCollect(c.repo); err != nil {
			return err
		}
	}

	for _, sub := range c.submodules.list {
		subModified, err := sub.Repo.Write(c.lastRev)
		if err != nil {
			return err
		}
		if subModified {
			if err := c.maybeCollect(sub.Repo); err != nil {
				return err
			}
		}
	}

	c.freePastTrees()
	return nil
}

func (c *Converter) maybeCollect(repo *gitstore.Repository) error {
	if c.opts.GCInterval == 0 || c.rev%c.opts.GCInterval != 0 {
		return nil
	}
	if err := repo.WriteBranches(); err != nil {
		return err
	}
	return repo.GarbageCollect()
}

// freePastTrees pops reservations the stream has passed and discards the
// snapshots only they were holding alive. A reservation (d, s) is live while
// the revision being entered is ≤ either end.
func (c *Converter) freePastTrees() {
	popped := c.reservations.popThrough(c.rev, func(res reservation) {
		c.revLogger(c.rev).Debugf("r%d no longer needs r%d", res.dependent, res.source)
	})
	if popped < 0 {
		return
	}

	if c.logger.DebugEnabled() {
		c.logger.Debugf("%d tree reservations remain", c.reservations.len())
		if min, max, ok := c.revTrees.span(); ok {
			c.logger.Debugf("rev_trees exist from r%d to r%d", min, max)
		}
	}

	if dropped := c.revTrees.pruneThrough(popped); dropped > 0 {
		c.logger.Debugf("deleted %d past trees through r%d", dropped, popped)
	}
}

// establishCommitInfo computes the signature and message every commit of the
// opening revision will carry.
func (c *Converter) establishCommitInfo(node *svndump.Node) {
	if id := node.RevAuthor; id != "" {
		if author, ok := c.authors.Lookup(id); ok {
			c.sigName, c.sigEmail = author.Name, author.Email
		} else {
			if !c.authors.Empty() {
				c.revLogger(c.rev).Warnf("Unrecognized author id: %s", id)
			}
			c.sigName, c.sigEmail = id, ""
		}
	}
	c.sigWhen = node.RevDate

	c.message = fmt.Sprintf("SVN-Revision: %d", c.rev)
	if msg := strings.TrimSpace(node.RevLog); msg != "" {
		c.message = msg + "\n\n" + c.message
	}
}

// setCommitInfo stamps a freshly materialized pending commit; installed as
// the store's commit-info hook so submodule stores share it.
func (c *Converter) setCommitInfo(commit *gitstore.Commit) {
	commit.SetAuthor(c.sigName, c.sigEmail, c.sigWhen)
	commit.SetMessage(c.message)
}

// processChange applies the current node at pathname inside repo. related is
// nil for the top-level route and carries the originating branch when
// recursing into a submodule store.
func (c *Converter) processChange(repo *gitstore.Repository, pathname string, related *gitstore.Branch) error {
	node := c.node

	changed := false
	var err error
	switch {
	case node.Kind == svndump.KindFile &&
		(node.Action == svndump.ActionAdd || node.Action == svndump.ActionChange || node.Action == svndump.ActionReplace):
		changed, err = c.addFile(repo, pathname, related)

	case node.Action == svndump.ActionDelete:
		changed, err = c.deleteItem(repo, pathname, related)

	case node.HasCopyFrom() && node.Kind == svndump.KindDir &&
		(node.Action == svndump.ActionAdd || node.Action == svndump.ActionReplace):
		changed, err = c.addDirectory(repo, pathname, related)
	}
	if err != nil {
		return err
	}

	if !changed {
		c.revLogger(c.rev).Debugf("Change ignored: %s %s",
			strings.ToUpper(nonEmpty(node.Action.String(), "none")),
			strings.ToUpper(nonEmpty(node.Kind.String(), "none")))
	}
	return nil
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func (c *Converter) addFile(repo *gitstore.Repository, pathname string, related *gitstore.Branch) (bool, error) {
	node := c.node

	verb := "A"
	if node.Action == svndump.ActionChange {
		verb = "C"
	}
	debugText := fmt.Sprintf("F%s: %s", verb, pathname)

	if node.HasCopyFrom() {
		past, err := c.revTrees.pastTree(node.CopyFromRev)
		if err != nil {
			return false, fmt.Errorf("%w: r%d for %s", err, node.CopyFromRev, node.CopyFromPath)
		}

		obj := past.Lookup(node.CopyFromPath)
		if obj == nil {
			c.revLogger(c.rev).Warnf("Could not find %s in tree r%d:", node.CopyFromPath, node.CopyFromRev)
			past.DumpTree(c.dumpOut, 0)
			return false, nil
		}

		obj = obj.CopyToName(path.Base(pathname))
		from := c.findBranch(repo, node.CopyFromPath, related)
		return true, c.updateObject(repo, pathname, obj, from, related, debugText)
	}

	// A plain change with no text carries nothing to apply; the previous
	// blob stays.
	if node.Action == svndump.ActionChange && !node.HasText() {
		return false, nil
	}

	blob, err := repo.CreateBlob(path.Base(pathname), node.Text())
	if err != nil {
		return false, err
	}
	return true, c.updateObject(repo, pathname, blob, nil, related, debugText)
}

func (c *Converter) addDirectory(repo *gitstore.Repository, pathname string, related *gitstore.Branch) (bool, error) {
	node := c.node

	past, err := c.revTrees.pastTree(node.CopyFromRev)
	if err != nil {
		return false, fmt.Errorf("%w: r%d for %s", err, node.CopyFromRev, node.CopyFromPath)
	}

	// The source may have been a directory with no files in it, which was
	// never materialized; nothing to copy then.
	obj := past.Lookup(node.CopyFromPath)
	if obj == nil {
		return false, nil
	}

	debugText := fmt.Sprintf("DA: %s [r%d] -> %s", node.CopyFromPath, node.CopyFromRev, pathname)

	obj = obj.CopyToName(path.Base(pathname))
	from := c.findBranch(repo, node.CopyFromPath, related)
	return true, c.updateObject(repo, pathname, obj, from, related, debugText)
}

func (c *Converter) deleteItem(repo *gitstore.Repository, pathname string, related *gitstore.Branch) (bool, error) {
	return true, c.updateObject(repo, pathname, nil, nil, related, "?D: "+pathname)
}

// findBranch resolves the branch for pathname, honoring the originating
// branch when recursing into a submodule.
func (c *Converter) findBranch(repo *gitstore.Repository, pathname string, related *gitstore.Branch) *gitstore.Branch {
	if related != nil {
		return repo.FindBranchByName(related.Name)
	}
	b, err := repo.FindBranchByPath(pathname)
	if err != nil {
		return nil
	}
	return b
}

// updateObject lands one change: first on the store's flat-history branch at
// the full path, then on the routed branch at the prefix-relative path, and
// finally into any matching submodule store.
func (c *Converter) updateObject(repo *gitstore.Repository, pathname string, obj *gitstore.Object, from, related *gitstore.Branch, debugText string) error {
	historyCommit := repo.History.GetCommit(nil)
	if obj != nil {
		if err := historyCommit.Update(pathname, obj); err != nil {
			return err
		}
	} else {
		historyCommit.Remove(pathname)
	}

	var branch *gitstore.Branch
	if related != nil {
		branch = repo.FindBranchByName(related.Name)
		if branch == nil {
			// The implicit master branch materializes lazily, after the
			// submodule copied the parent's declared branches; propagate it.
			branch = repo.AddBranch(related.Name, related.Prefix, related.IsTag)
		}
	} else {
		var err error
		branch, err = repo.FindBranchByPath(pathname)
		if err != nil {
			return err
		}
	}
	commit := branch.GetCommit(from)

	if repo.Name != "" {
		c.revLogger(c.rev).Infof("%s <%s> {%s}", debugText, branch.Name, repo.Name)
	} else {
		c.revLogger(c.rev).Infof("%s <%s>", debugText, branch.Name)
	}

	subpath := pathname
	if related == nil && branch.Prefix != "" {
		if pathname == branch.Prefix {
			// The operation targets the branch root itself: a directory
			// copy installs its tree as the branch content, a delete
			// empties the branch.
			if obj != nil && obj.IsTree() {
				commit.SetTree(obj.Copy())
			} else if obj == nil {
				// Clearing the tree entirely marks the branch deleted at
				// flush time.
				commit.SetTree(nil)
			}
			subpath = ""
		} else {
			subpath = pathname[len(branch.Prefix)+1:]
		}
	}

	if subpath != "" {
		if obj != nil {
			if err := commit.Update(subpath, obj); err != nil {
				return err
			}
		} else {
			commit.Remove(subpath)
		}
	}

	if repo == c.repo && !c.submodules.empty() && related == nil {
		if subPathname, sub := c.submodules.find(subpath); sub != nil {
			c.revLogger(c.rev).Debugf("matched to submodule %s -> %s", sub.Name, subPathname)
			return c.processChange(sub.Repo, subPathname, branch)
		}
	}

	return nil
}

// Finish flushes the final revision, writes every reference, runs a last
// collection when enabled, and finalizes each store's flat-history branch as
// a tag.
func (c *Converter) Finish() error {
	stores := append([]*gitstore.Repository{c.repo}, c.submoduleRepos()...)

	for _, repo := range stores {
		if _, err := repo.Write(c.lastRev); err != nil {
			return err
		}
		if err := repo.WriteBranches(); err != nil {
			return err
		}
	}

	if c.opts.GCInterval > 0 {
		for _, repo := range stores {
			if err := repo.GarbageCollect(); err != nil {
				return err
			}
		}
	}

	for _, repo := range stores {
		if hc := repo.History.Commit(); hc != nil {
			if err := repo.CreateTag(hc, repo.History.Name); err != nil {
				return err
			}
			c.logger.Infof("Wrote tag %s", repo.History.Name)
		}
	}

	c.display.Finish()
	return nil
}

func (c *Converter) submoduleRepos() []*gitstore.Repository {
	repos := make([]*gitstore.Repository, 0, len(c.submodules.list))
	for _, sub := range c.submodules.list {
		repos = append(repos, sub.Repo)
	}
	return repos
}

func (c *Converter) revLogger(rev int) log.Logger {
	return c.logger.WithField("revision", rev)
}
