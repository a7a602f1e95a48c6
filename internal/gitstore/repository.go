package gitstore

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/go-git/go-git/v5/storage/memory"

	"gitlab.com/vcs-tools/subconvert/internal/log"
)

// DefaultBranchName is the implicit branch used when no branch table is
// loaded.
const DefaultBranchName = "master"

// Repository is the destination object store: a thin facade over go-git's
// object database plus the per-branch commit queue the converter flushes at
// revision boundaries.
type Repository struct {
	git    *git.Repository
	storer storage.Storer
	logger log.Logger

	// Name labels the store in diagnostics; empty for the main store,
	// the submodule name for fanned-out stores.
	Name string

	byName map[string]*Branch
	byPath map[string]*Branch
	queue  []*Commit

	// History is the flat-history branch: a synthetic branch mirroring the
	// full unmapped source tree. It stays out of the routing maps and is
	// finalized as a tag at completion.
	History *Branch

	// SetCommitInfo is invoked for each newly materialized pending commit
	// to stamp the current revision's signature and message.
	SetCommitInfo func(*Commit)
}

// Init opens the store at path, initializing a bare repository when none
// exists yet.
func Init(path string, logger log.Logger) (*Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		if !errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, newStoreError("open repository "+path, err)
		}
		st := filesystem.NewStorage(osfs.New(path), cache.NewObjectLRUDefault())
		repo, err = git.Init(st, nil)
		if err != nil {
			return nil, newStoreError("init repository "+path, err)
		}
	}
	return fromGit(repo, logger), nil
}

// InitInMemory returns a store backed by in-memory storage; used by tests.
func InitInMemory(logger log.Logger) (*Repository, error) {
	repo, err := git.Init(memory.NewStorage(), nil)
	if err != nil {
		return nil, newStoreError("init in-memory repository", err)
	}
	return fromGit(repo, logger), nil
}

func fromGit(repo *git.Repository, logger log.Logger) *Repository {
	r := &Repository{
		git:    repo,
		storer: repo.Storer,
		logger: logger,
		byName: map[string]*Branch{},
		byPath: map[string]*Branch{},
	}
	r.History = r.NewBranch("flat-history", "", true)
	return r
}

// CreateBlob persists data eagerly and returns the blob object.
func (r *Repository) CreateBlob(name string, data []byte) (*Object, error) {
	encoded := r.storer.NewEncodedObject()
	encoded.SetType(plumbing.BlobObject)
	w, err := encoded.Writer()
	if err != nil {
		return nil, newStoreError("create blob", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, newStoreError("create blob", err)
	}
	if err := w.Close(); err != nil {
		return nil, newStoreError("create blob", err)
	}

	id, err := r.storer.SetEncodedObject(encoded)
	if err != nil {
		return nil, newStoreError("write blob", err)
	}

	return &Object{
		kind:    KindBlob,
		name:    name,
		mode:    filemode.Regular,
		id:      id,
		repo:    r,
		written: true,
	}, nil
}

// CreateTree returns an empty in-memory tree.
func (r *Repository) CreateTree(name string) *Object {
	return &Object{
		kind:    KindTree,
		name:    name,
		mode:    filemode.Dir,
		repo:    r,
		entries: map[string]*Object{},
	}
}

// CreateCommit returns a pending commit with the given parent.
func (r *Repository) CreateCommit(parent *Commit) *Commit {
	c := &Commit{repo: r, parent: parent}
	if parent != nil && parent.tree != nil {
		c.tree = parent.tree.Copy()
	}
	return c
}

// NewBranch constructs a branch bound to this store without registering it;
// the flat-history branch stays out of the routing maps.
func (r *Repository) NewBranch(name, prefix string, isTag bool) *Branch {
	return &Branch{repo: r, Name: name, Prefix: prefix, IsTag: isTag}
}

// AddBranch registers a branch for routing. The branch table is validated
// before it gets here, so collisions are programmer errors.
func (r *Repository) AddBranch(name, prefix string, isTag bool) *Branch {
	b := r.NewBranch(name, prefix, isTag)
	r.byName[name] = b
	if prefix != "" {
		r.byPath[prefix] = b
	}
	return b
}

// HasRouting reports whether any prefix-routed branches are registered.
func (r *Repository) HasRouting() bool {
	return len(r.byPath) > 0
}

// FindBranchByName returns the branch named name, or nil.
func (r *Repository) FindBranchByName(name string) *Branch {
	return r.byName[name]
}

// FindBranchByPath routes pathname by longest-ancestor prefix match. With no
// branch table loaded every path routes to the implicit master branch.
func (r *Repository) FindBranchByPath(pathname string) (*Branch, error) {
	if len(r.byPath) == 0 {
		b := r.byName[DefaultBranchName]
		if b == nil {
			b = r.AddBranch(DefaultBranchName, "", false)
		}
		return b, nil
	}

	for p := pathname; p != ""; p = parentDir(p) {
		if b, ok := r.byPath[p]; ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoBranch, pathname)
}

func parentDir(p string) string {
	idx := strings.LastIndexByte(p, '/')
	if idx < 0 {
		return ""
	}
	return p[:idx]
}

// Branches returns all registered branches sorted by name.
func (r *Repository) Branches() []*Branch {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)

	bs := make([]*Branch, 0, len(names))
	for _, name := range names {
		bs = append(bs, r.byName[name])
	}
	return bs
}

func (r *Repository) enqueue(c *Commit) {
	r.queue = append(r.queue, c)
}

// Write flushes every pending commit. A pending commit with no tree at all
// means the branch's content was deleted wholesale: its history moves to a
// preservation tag. A present-but-empty tree still commits (files removed
// one by one leave an empty tree in history). Write reports whether any
// branch gained a commit.
func (r *Repository) Write(relatedRev int) (bool, error) {
	modified := false
	for _, c := range r.queue {
		b := c.branch

		if c.tree == nil {
			if b != nil {
				if err := r.DeleteBranch(b, relatedRev); err != nil {
					return modified, err
				}
				b.nextCommit = nil
			}
			continue
		}

		if err := c.write(); err != nil {
			return modified, err
		}
		if b != nil {
			b.commit = c
			b.nextCommit = nil
		}
		modified = true
	}
	r.queue = r.queue[:0]
	return modified, nil
}

// WriteBranches points each branch's reference at its latest commit:
// refs/tags/<name> for tag branches, refs/heads/<name> otherwise.
func (r *Repository) WriteBranches() error {
	for _, b := range r.Branches() {
		if b.commit == nil || b.commit.id.IsZero() {
			continue
		}

		if b.IsTag {
			if err := r.CreateTag(b.commit, b.Name); err != nil {
				return err
			}
			continue
		}

		ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(b.Name), b.commit.id)
		if err := r.storer.SetReference(ref); err != nil {
			return newStoreError("update branch "+b.Name, err)
		}
	}
	return nil
}

// DeleteBranch preserves the branch's last commit under the tag
// "<name>__deleted_r<revision>" and clears the branch so no head reference
// is written for it.
func (r *Repository) DeleteBranch(b *Branch, relatedRev int) error {
	if b.commit == nil {
		return nil
	}

	if err := r.CreateTag(b.commit, fmt.Sprintf("%s__deleted_r%d", b.Name, relatedRev)); err != nil {
		return err
	}

	// Drop any reference an earlier collection cycle may have written.
	// Usually none exists yet; references land at completion.
	refName := plumbing.NewBranchReferenceName(b.Name)
	if b.IsTag {
		refName = plumbing.NewTagReferenceName(b.Name)
	}
	if err := r.storer.RemoveReference(refName); err != nil {
		r.logger.Debugf("remove reference %s: %v", refName, err)
	}

	b.commit = nil
	return nil
}

// CreateTag writes a lightweight tag reference for commit.
func (r *Repository) CreateTag(c *Commit, name string) error {
	if c.id.IsZero() {
		if err := c.write(); err != nil {
			return err
		}
	}

	ref := plumbing.NewHashReference(plumbing.NewTagReferenceName(name), c.id)
	if err := r.storer.SetReference(ref); err != nil {
		return newStoreError("create tag "+name, err)
	}
	return nil
}

// Reference resolves a reference by full name, e.g. "refs/tags/v1".
func (r *Repository) Reference(name string) (plumbing.Hash, error) {
	ref, err := r.storer.Reference(plumbing.ReferenceName(name))
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return ref.Hash(), nil
}

// GarbageCollect repacks loose objects. Invoked on the --gc cadence and once
// at completion.
func (r *Repository) GarbageCollect() error {
	if err := r.git.RepackObjects(&git.RepackConfig{}); err != nil {
		return newStoreError("repack objects", err)
	}
	return nil
}

func (r *Repository) has(id plumbing.Hash) bool {
	return r.storer.HasEncodedObject(id) == nil
}

// adopt copies the object closure rooted at id from src into this store.
// Submodule fan-out resolves copy-from sources against the parent's
// historical tree; the resulting objects must exist in the submodule's
// database too before anything there can reference them.
func (r *Repository) adopt(src *Repository, id plumbing.Hash) error {
	if src == nil || src == r || r.has(id) {
		return nil
	}

	encoded, err := src.storer.EncodedObject(plumbing.AnyObject, id)
	if err != nil {
		return newStoreError("read object "+id.String(), err)
	}
	if _, err := r.storer.SetEncodedObject(encoded); err != nil {
		return newStoreError("adopt object "+id.String(), err)
	}

	if encoded.Type() == plumbing.TreeObject {
		tree, err := object.GetTree(src.storer, id)
		if err != nil {
			return newStoreError("decode tree "+id.String(), err)
		}
		for _, entry := range tree.Entries {
			if err := r.adopt(src, entry.Hash); err != nil {
				return err
			}
		}
	}
	return nil
}
