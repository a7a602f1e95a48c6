// Package authors maps dump author ids to commit signatures. The table file
// is tab-separated: id, display name, encoded email. The email encoding is a
// legacy escape convention where "<>" stands for "@" and "~" for ".".
package authors

import (
	"bufio"
	"os"
	"strings"

	"gitlab.com/vcs-tools/subconvert/internal/log"
)

// Author is one decoded table entry.
type Author struct {
	Name  string
	Email string
}

// Table holds the id → author mapping.
type Table struct {
	byID map[string]Author
}

// NewTable returns an empty table; lookups against it always miss.
func NewTable() *Table {
	return &Table{byID: map[string]Author{}}
}

// Empty reports whether any authors are loaded.
func (t *Table) Empty() bool {
	return len(t.byID) == 0
}

// Lookup returns the author for id.
func (t *Table) Lookup(id string) (Author, bool) {
	a, ok := t.byID[id]
	return a, ok
}

func unescape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '<' && i+1 < len(s) && s[i+1] == '>':
			b.WriteByte('@')
			i++
		case s[i] == '~':
			b.WriteByte('.')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Load reads the table at path. Validation failures are warned about and
// counted rather than aborting the load; the caller decides whether a
// non-zero count is fatal.
func (t *Table) Load(path string, logger log.Logger) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	errors := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		id := fields[0]
		author := Author{}
		if len(fields) > 1 {
			author.Name = unescape(fields[1])
			if author.Name == "Unknown" {
				author.Name = id
			}
		}
		if len(fields) > 2 {
			author.Email = unescape(fields[2])
		}

		if _, dup := t.byID[id]; dup {
			logger.Warnf("Author id repeated: %s", id)
			errors++
			continue
		}
		t.byID[id] = author
	}
	if err := scanner.Err(); err != nil {
		return errors, err
	}

	return errors, nil
}
