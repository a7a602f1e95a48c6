package authors

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/vcs-tools/subconvert/internal/log"
	"gitlab.com/vcs-tools/subconvert/internal/svndump"
)

func loadTable(t *testing.T, content string) (*Table, int) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "authors.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table := NewTable()
	errors, err := table.Load(path, log.Discard())
	require.NoError(t, err)
	return table, errors
}

func TestTableLoad(t *testing.T) {
	table, errors := loadTable(t, strings.Join([]string{
		"# comment line",
		"alice\tAlice Smith\talice<>example~com",
		"bob\tUnknown\tbob<>example~org",
	}, "\n")+"\n")
	require.Zero(t, errors)

	alice, ok := table.Lookup("alice")
	require.True(t, ok)
	require.Equal(t, "Alice Smith", alice.Name)
	require.Equal(t, "alice@example.com", alice.Email)

	// "Unknown" display names alias back to the id.
	bob, ok := table.Lookup("bob")
	require.True(t, ok)
	require.Equal(t, "bob", bob.Name)
	require.Equal(t, "bob@example.org", bob.Email)

	_, ok = table.Lookup("carol")
	require.False(t, ok)
}

func TestTableDuplicateID(t *testing.T) {
	table, errors := loadTable(t, "alice\tAlice\ta<>b\nalice\tOther\tc<>d\n")
	require.Equal(t, 1, errors)

	alice, ok := table.Lookup("alice")
	require.True(t, ok)
	require.Equal(t, "Alice", alice.Name)
}

func TestScannerCountsPerRevision(t *testing.T) {
	s := NewScanner()

	when := time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Observe(&svndump.Node{Rev: 1, RevAuthor: "alice", RevDate: when})
	s.Observe(&svndump.Node{Rev: 1, RevAuthor: "alice", RevDate: when})
	s.Observe(&svndump.Node{Rev: 2, RevAuthor: "alice", RevDate: when})
	s.Observe(&svndump.Node{Rev: 3, RevAuthor: "bob", RevDate: when})
	s.Observe(&svndump.Node{Rev: 4})

	var out strings.Builder
	s.WriteTo(&out)
	require.Equal(t, "alice\t\t\t2\nbob\t\t\t1\n", out.String())
}
