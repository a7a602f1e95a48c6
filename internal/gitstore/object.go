package gitstore

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Kind discriminates the object variants held in trees.
type Kind int

const (
	// KindBlob is immutable file content, persisted eagerly at creation.
	KindBlob Kind = iota + 1
	// KindTree is an in-memory tree built copy-on-write; it is persisted
	// on flush.
	KindTree
)

// Object is a named entry in a tree: either a blob or a subtree. Blobs carry
// a stable identifier from birth. Trees track two flags: written means the
// identifier matches the persisted content, modified means the in-memory
// entry set has diverged since the last write.
type Object struct {
	kind Kind
	name string
	mode filemode.FileMode
	id   plumbing.Hash

	// repo is the store whose object database holds the persisted form.
	// Objects can be grafted into other stores; see Repository.adopt.
	repo *Repository

	entries  map[string]*Object
	written  bool
	modified bool
}

// Name returns the object's basename within its parent tree.
func (o *Object) Name() string { return o.name }

// Mode returns the object's git filemode.
func (o *Object) Mode() filemode.FileMode { return o.mode }

// ID returns the object's identifier; the zero hash for unwritten trees.
func (o *Object) ID() plumbing.Hash { return o.id }

// IsTree reports whether the object is a tree.
func (o *Object) IsTree() bool { return o.kind == KindTree }

// Empty reports whether a tree has no entries. Empty subtrees are left out
// when their parent is written; an empty root tree is still written for a
// commit.
func (o *Object) Empty() bool {
	return o.kind == KindTree && len(o.entries) == 0
}

// Copy returns a copy sharing all entry references. For blobs the receiver
// itself is returned since blobs are immutable.
func (o *Object) Copy() *Object {
	if o.kind == KindBlob {
		return o
	}

	entries := make(map[string]*Object, len(o.entries))
	for name, child := range o.entries {
		entries[name] = child
	}

	clone := *o
	clone.entries = entries
	return &clone
}

// CopyToName returns the object under a new basename. Identifiers carry
// over: renaming does not change content.
func (o *Object) CopyToName(name string) *Object {
	if o.kind == KindBlob {
		if o.name == name {
			return o
		}
		clone := *o
		clone.name = name
		return &clone
	}

	clone := o.Copy()
	clone.name = name
	return clone
}

// Lookup resolves pathname inside the tree, returning nil when any segment
// is missing or descends into a blob.
func (o *Object) Lookup(pathname string) *Object {
	if o.kind != KindTree {
		return nil
	}

	name, rest, descend := strings.Cut(pathname, "/")
	child := o.entries[name]
	if child == nil || !descend {
		return child
	}
	return child.Lookup(rest)
}

// Update inserts obj at pathname, creating intermediate trees eagerly and
// cloning the touched spine so structure shared with snapshots stays intact.
// obj's basename must already match the final path segment.
func (o *Object) Update(pathname string, obj *Object) error {
	if o.kind != KindTree {
		return fmt.Errorf("update %s: %w", pathname, ErrNotTree)
	}

	name, rest, descend := strings.Cut(pathname, "/")
	if !descend {
		o.entries[name] = obj
		o.written = false
		o.modified = true
		return nil
	}

	child := o.entries[name]
	if child == nil || child.kind != KindTree {
		child = o.repo.CreateTree(name)
	} else {
		child = child.CopyToName(name)
	}
	o.entries[name] = child
	o.written = false
	o.modified = true

	return child.Update(rest, obj)
}

// Remove deletes pathname from the tree. A miss is not an error: the dump
// may remove an empty directory that was never materialized. Subtrees
// emptied by the removal are cascaded away.
func (o *Object) Remove(pathname string) {
	if o.kind != KindTree {
		return
	}
	o.doRemove(pathname)
}

func (o *Object) doRemove(pathname string) bool {
	name, rest, descend := strings.Cut(pathname, "/")
	child, ok := o.entries[name]
	if !ok {
		return false
	}

	if !descend {
		delete(o.entries, name)
		o.written = false
		o.modified = true
		return true
	}

	if child.kind != KindTree {
		return false
	}

	sub := child.CopyToName(name)
	o.entries[name] = sub
	if !sub.doRemove(rest) {
		return false
	}

	if sub.Empty() {
		delete(o.entries, name)
	}
	o.written = false
	o.modified = true
	return true
}

// write persists the object into target and returns its identifier. Written,
// unmodified subtrees are skipped; subtrees persisted in a different store
// are grafted over (submodule fan-out shares structure across stores).
func (o *Object) write(target *Repository) (plumbing.Hash, error) {
	if o.kind == KindBlob {
		if o.repo != target && !target.has(o.id) {
			if err := target.adopt(o.repo, o.id); err != nil {
				return plumbing.ZeroHash, err
			}
		}
		return o.id, nil
	}

	if o.written && !o.modified && !o.id.IsZero() {
		if target.has(o.id) {
			return o.id, nil
		}
		if o.repo != target {
			if err := target.adopt(o.repo, o.id); err == nil {
				return o.id, nil
			}
		}
		// Fall through and re-encode from the in-memory entry set.
	}

	entries := make([]object.TreeEntry, 0, len(o.entries))
	for name, child := range o.entries {
		if child.kind == KindTree && child.Empty() {
			continue
		}
		id, err := child.write(target)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries = append(entries, object.TreeEntry{Name: name, Mode: child.mode, Hash: id})
	}
	sortTreeEntries(entries)

	encoded := target.storer.NewEncodedObject()
	if err := (&object.Tree{Entries: entries}).Encode(encoded); err != nil {
		return plumbing.ZeroHash, newStoreError("encode tree", err)
	}
	id, err := target.storer.SetEncodedObject(encoded)
	if err != nil {
		return plumbing.ZeroHash, newStoreError("write tree", err)
	}

	o.id = id
	o.repo = target
	o.written = true
	o.modified = false
	return id, nil
}

// sortTreeEntries orders entries the way git trees are serialized:
// bytewise by name, with directories compared as if their name ended in "/".
func sortTreeEntries(entries []object.TreeEntry) {
	key := func(e object.TreeEntry) string {
		if e.Mode == filemode.Dir {
			return e.Name + "/"
		}
		return e.Name
	}
	sort.Slice(entries, func(i, j int) bool {
		return key(entries[i]) < key(entries[j])
	})
}

// DumpTree writes an indented listing of the tree to out. Emitted as a
// diagnostic when a copy-from source cannot be found in a snapshot.
func (o *Object) DumpTree(out io.Writer, depth int) {
	if o.kind != KindTree {
		return
	}

	names := make([]string, 0, len(o.entries))
	for name := range o.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		child := o.entries[name]
		fmt.Fprintf(out, "%*s%s\n", depth*2, "", name)
		child.DumpTree(out, depth+1)
	}
}
