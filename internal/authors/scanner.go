package authors

import (
	"fmt"
	"io"
	"sort"

	"gitlab.com/vcs-tools/subconvert/internal/svndump"
)

// Scanner tallies author occurrences across a dump, one occurrence per
// revision regardless of how many nodes the revision carries. It backs the
// "authors" subcommand and produces a skeleton table for hand-editing.
type Scanner struct {
	counts  map[string]int
	lastRev int
}

// NewScanner returns a scanner ready to observe nodes.
func NewScanner() *Scanner {
	return &Scanner{counts: map[string]int{}, lastRev: -1}
}

// Observe records the revision author of n, once per revision.
func (s *Scanner) Observe(n *svndump.Node) {
	if n.Rev == s.lastRev {
		return
	}
	s.lastRev = n.Rev

	if n.RevAuthor != "" {
		s.counts[n.RevAuthor]++
	}
}

// WriteTo emits one "<id>\t\t\t<count>" line per author, sorted by id.
func (s *Scanner) WriteTo(out io.Writer) {
	ids := make([]string, 0, len(s.counts))
	for id := range s.counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		fmt.Fprintf(out, "%s\t\t\t%d\n", id, s.counts[id])
	}
}
