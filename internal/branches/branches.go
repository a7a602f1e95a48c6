// Package branches declares how source path prefixes route to destination
// branches. The table file is tab-separated; column 0 is "t" for tags,
// columns 1–3 are reserved, column 4 is the source prefix and column 5 the
// destination branch name.
package branches

import (
	"bufio"
	"os"
	"path"
	"strings"

	"gitlab.com/vcs-tools/subconvert/internal/log"
)

// Descriptor declares one prefix → branch mapping.
type Descriptor struct {
	Prefix string
	Name   string
	IsTag  bool
}

// Table is the loaded set of descriptors. Prefixes and names are unique and
// no prefix may be nested under another; those properties are what make
// longest-ancestor routing unambiguous.
type Table struct {
	byPrefix map[string]Descriptor
	byName   map[string]Descriptor
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		byPrefix: map[string]Descriptor{},
		byName:   map[string]Descriptor{},
	}
}

// Empty reports whether any descriptors are loaded.
func (t *Table) Empty() bool {
	return len(t.byPrefix) == 0
}

// All returns every descriptor, in no particular order.
func (t *Table) All() []Descriptor {
	descs := make([]Descriptor, 0, len(t.byPrefix))
	for _, d := range t.byPrefix {
		descs = append(descs, d)
	}
	return descs
}

// FindByName returns the descriptor named name.
func (t *Table) FindByName(name string) (Descriptor, bool) {
	d, ok := t.byName[name]
	return d, ok
}

// FindByPath routes pathname to a descriptor by longest-ancestor prefix
// match.
func (t *Table) FindByPath(pathname string) (Descriptor, bool) {
	for p := pathname; p != "" && p != "."; p = parentPath(p) {
		if d, ok := t.byPrefix[p]; ok {
			return d, true
		}
	}
	return Descriptor{}, false
}

func parentPath(p string) string {
	parent := path.Dir(p)
	if parent == "." || parent == "/" {
		return ""
	}
	return parent
}

// Add inserts one descriptor, enforcing the table invariants. It returns the
// number of validation errors found (0 or more; the descriptor is dropped on
// any error).
func (t *Table) Add(d Descriptor, logger log.Logger) int {
	if d.Prefix == "" || d.Name == "" {
		return 0
	}

	errors := 0
	if _, dup := t.byPrefix[d.Prefix]; dup {
		logger.Warnf("Branch prefix repeated: %s", d.Prefix)
		errors++
	}
	for p := parentPath(d.Prefix); p != ""; p = parentPath(p) {
		if parent, ok := t.byPrefix[p]; ok {
			logger.Warnf("Parent of branch prefix %s exists: %s", d.Prefix, parent.Prefix)
			errors++
		}
	}
	for p := range t.byPrefix {
		if strings.HasPrefix(p, d.Prefix+"/") {
			logger.Warnf("Parent of branch prefix %s exists: %s", p, d.Prefix)
			errors++
		}
	}
	if _, dup := t.byName[d.Name]; dup {
		logger.Warnf("Branch name repeated: %s", d.Name)
		errors++
	}

	if errors == 0 {
		t.byPrefix[d.Prefix] = d
		t.byName[d.Name] = d
	}
	return errors
}

// Load reads the table at path, warning about and counting validation
// failures.
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
		d := Descriptor{IsTag: len(fields) > 0 && strings.HasPrefix(fields[0], "t")}
		if len(fields) > 4 {
			d.Prefix = strings.TrimSuffix(fields[4], "/")
		}
		if len(fields) > 5 {
			d.Name = fields[5]
		}

		errors += t.Add(d, logger)
	}
	if err := scanner.Err(); err != nil {
		return errors, err
	}

	return errors, nil
}
