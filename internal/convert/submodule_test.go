package convert

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/vcs-tools/subconvert/internal/gitstore"
	"gitlab.com/vcs-tools/subconvert/internal/log"
)

func loadModuleTable(t *testing.T, content string) (*submoduleTable, int) {
	t.Helper()

	parent, err := gitstore.InitInMemory(log.Discard())
	require.NoError(t, err)
	parent.AddBranch("master", "trunk", false)

	path := filepath.Join(t.TempDir(), "manifest.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, errors, err := loadSubmodules(path, parent, inMemoryFactory, log.Discard())
	require.NoError(t, err)
	return table, errors
}

func TestLoadSubmodules(t *testing.T) {
	table, errors := loadModuleTable(t, strings.Join([]string{
		"# manifest",
		"[libcore]",
		"src/core: .",
		"src/core-extras: extras",
		"[<ignore>]",
		"src/attic: .",
		"[docs]",
		"<ignore>: .",
		"doc/manual: manual/",
	}, "\n")+"\n")
	require.Zero(t, errors)
	require.Len(t, table.list, 2)

	// Declared branches are copied into each submodule store.
	for _, sub := range table.list {
		require.NotNil(t, sub.Repo.FindBranchByName("master"))
	}

	t.Run("routes exact and nested paths", func(t *testing.T) {
		dest, sub := table.find("src/core/alloc.c")
		require.NotNil(t, sub)
		require.Equal(t, "libcore", sub.Name)
		require.Equal(t, "alloc.c", dest)

		dest, sub = table.find("src/core-extras/vec.c")
		require.Equal(t, "libcore", sub.Name)
		require.Equal(t, "extras/vec.c", dest)

		dest, sub = table.find("doc/manual/intro.txt")
		require.Equal(t, "docs", sub.Name)
		require.Equal(t, "manual/intro.txt", dest)
	})

	t.Run("ignored sections and sources bind nothing", func(t *testing.T) {
		_, sub := table.find("src/attic/old.c")
		require.Nil(t, sub)
	})

	t.Run("unrelated paths miss", func(t *testing.T) {
		_, sub := table.find("src/unrelated.c")
		require.Nil(t, sub)
	})
}

func TestLoadSubmodulesDuplicateSource(t *testing.T) {
	_, errors := loadModuleTable(t, "[a]\nsrc/core: .\n[b]\nsrc/core: .\n")
	require.Equal(t, 1, errors)
}
