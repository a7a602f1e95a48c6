package branches

import (
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"gitlab.com/vcs-tools/subconvert/internal/svndump"
)

type rootInfo struct {
	lastRev  int
	lastDate time.Time
	changes  int
}

// Scanner infers probable branch roots from a dump. A directory that files
// land under becomes a root; when a parent directory is later copied whole,
// the child roots collapse into it. Roots touched by exactly one revision
// are reported as tags. It backs the "branches" subcommand and produces a
// skeleton branch table for hand-editing.
type Scanner struct {
	roots   map[string]*rootInfo
	lastRev int
}

// NewScanner returns a scanner ready to observe nodes.
func NewScanner() *Scanner {
	return &Scanner{roots: map[string]*rootInfo{}, lastRev: -1}
}

// Observe feeds one node to the inference.
func (s *Scanner) Observe(n *svndump.Node) {
	s.lastRev = n.Rev

	if n.Action == svndump.ActionDelete {
		return
	}
	if n.Kind != svndump.KindFile && !n.HasCopyFrom() {
		return
	}

	pathname := n.Path
	if n.Kind != svndump.KindDir {
		pathname = path.Dir(n.Path)
		if pathname == "." {
			return
		}
	}

	s.apply(n.Rev, n.RevDate, pathname)
}

func (s *Scanner) apply(rev int, date time.Time, pathname string) {
	root, ok := s.roots[pathname]
	if !ok {
		// A copy of a whole parent directory supersedes any roots nested
		// under it.
		for key := range s.roots {
			if strings.HasPrefix(key, pathname+"/") {
				delete(s.roots, key)
			}
		}

		for key, info := range s.roots {
			if strings.HasPrefix(pathname, key+"/") {
				root = info
				break
			}
		}

		if root == nil {
			root = &rootInfo{}
			s.roots[pathname] = root
		}
	}

	if root.lastRev != rev {
		root.lastRev = rev
		root.lastDate = date
		root.changes++
	}
}

// WriteTo emits one inferred root per line: kind, last revision, last date,
// change count, then the prefix twice (source and proposed name columns),
// sorted by prefix.
func (s *Scanner) WriteTo(out io.Writer) {
	prefixes := make([]string, 0, len(s.roots))
	for prefix := range s.roots {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	for _, prefix := range prefixes {
		info := s.roots[prefix]
		kind := "branch"
		if info.changes == 1 {
			kind = "tag"
		}
		fmt.Fprintf(out, "%s\t%d\t%s\t%d\t%s\t%s\n",
			kind, info.lastRev, info.lastDate.Format("2006-01-02"),
			info.changes, prefix, prefix)
	}
}
