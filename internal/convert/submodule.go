package convert

import (
	"bufio"
	"os"
	"path"
	"strings"

	"gitlab.com/vcs-tools/subconvert/internal/gitstore"
	"gitlab.com/vcs-tools/subconvert/internal/log"
)

// ignoreSentinel suppresses a mapping (or a whole module section) in the
// modules file. A module name gets no mapping of its own; only the
// "source: destination" lines under its section bind prefixes.
const ignoreSentinel = "<ignore>"

// Submodule is one fanned-out destination: a peer store receiving rewritten
// mutations for its source prefixes.
type Submodule struct {
	Name string
	Repo *gitstore.Repository
}

type submoduleTarget struct {
	dest string
	mod  *Submodule
}

// submoduleTable routes branch-relative paths into submodule stores.
type submoduleTable struct {
	list     []*Submodule
	bySource map[string]submoduleTarget
}

func newSubmoduleTable() *submoduleTable {
	return &submoduleTable{bySource: map[string]submoduleTarget{}}
}

func (t *submoduleTable) empty() bool {
	return len(t.list) == 0
}

// find routes pathname to a submodule by exact or ancestor source-prefix
// match, returning the rewritten destination path.
func (t *submoduleTable) find(pathname string) (string, *Submodule) {
	if target, ok := t.bySource[pathname]; ok {
		return target.dest, target.mod
	}

	for dir := parentPath(pathname); dir != ""; dir = parentPath(dir) {
		if target, ok := t.bySource[dir]; ok {
			suffix := pathname[len(dir)+1:]
			return path.Join(target.dest, suffix), target.mod
		}
	}
	return "", nil
}

func parentPath(p string) string {
	idx := strings.LastIndexByte(p, '/')
	if idx < 0 {
		return ""
	}
	return p[:idx]
}

// loadSubmodules reads the modules file: "[name]" opens a module whose store
// is created via newStore, "source: destination" lines bind prefixes. The
// new store copies the parent's branch descriptors so routing inside the
// submodule matches the parent's.
func loadSubmodules(pathname string, parent *gitstore.Repository, newStore func(name string) (*gitstore.Repository, error), logger log.Logger) (*submoduleTable, int, error) {
	f, err := os.Open(pathname)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	table := newSubmoduleTable()
	errors := 0

	var curr *Submodule
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue

		case strings.HasPrefix(line, "["):
			name := strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			if name == ignoreSentinel {
				curr = nil
				continue
			}

			repo, err := newStore(name)
			if err != nil {
				return nil, errors, err
			}
			repo.Name = name
			repo.SetCommitInfo = parent.SetCommitInfo
			for _, b := range parent.Branches() {
				repo.AddBranch(b.Name, b.Prefix, b.IsTag)
			}

			curr = &Submodule{Name: name, Repo: repo}
			table.list = append(table.list, curr)

		default:
			source, dest, ok := strings.Cut(line, ":")
			if !ok || curr == nil {
				continue
			}

			source = strings.TrimSuffix(strings.TrimSpace(source), "/")
			dest = strings.TrimSuffix(strings.TrimSpace(dest), "/")
			if dest == "." {
				dest = ""
			}
			if source == ignoreSentinel {
				continue
			}

			if _, dup := table.bySource[source]; dup {
				logger.Warnf("Submodule source path repeated: [%s]: %s -> %s", curr.Name, source, dest)
				errors++
				continue
			}
			table.bySource[source] = submoduleTarget{dest: dest, mod: curr}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors, err
	}

	return table, errors, nil
}
