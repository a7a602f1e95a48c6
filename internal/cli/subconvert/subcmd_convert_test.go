package subconvert

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func testApp() *cli.App {
	app := NewApp()
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app
}

func propBlock(pairs ...[2]string) string {
	var b strings.Builder
	for _, kv := range pairs {
		fmt.Fprintf(&b, "K %d\n%s\nV %d\n%s\n", len(kv[0]), kv[0], len(kv[1]), kv[1])
	}
	b.WriteString("PROPS-END\n")
	return b.String()
}

func revisionRecord(rev int, author, log string) string {
	props := propBlock(
		[2]string{"svn:author", author},
		[2]string{"svn:date", fmt.Sprintf("2011-01-%02dT10:00:00.000000Z", rev)},
		[2]string{"svn:log", log},
	)
	return fmt.Sprintf("Revision-number: %d\nProp-content-length: %d\nContent-length: %d\n\n%s\n",
		rev, len(props), len(props), props)
}

func fileRecord(path, action, text string) string {
	return fmt.Sprintf("Node-path: %s\nNode-kind: file\nNode-action: %s\nText-content-length: %d\nContent-length: %d\n\n%s\n",
		path, action, len(text), len(text), text)
}

func writeLifecycleDump(t *testing.T) string {
	t.Helper()

	content := revisionRecord(1, "alice", "add a file") +
		fileRecord("trunk/a.txt", "add", "x") +
		revisionRecord(2, "alice", "change it") +
		fileRecord("trunk/a.txt", "change", "y") +
		revisionRecord(3, "alice", "remove it") +
		"Node-path: trunk/a.txt\nNode-action: delete\n\n"

	path := filepath.Join(t.TempDir(), "lifecycle.dump")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestConvertCommand(t *testing.T) {
	dump := writeLifecycleDump(t)
	repoDir := filepath.Join(t.TempDir(), "out.git")

	require.NoError(t, testApp().Run([]string{"subconvert", "-q", "convert", dump, repoDir}))

	repo, err := git.PlainOpen(repoDir)
	require.NoError(t, err)

	head, err := repo.Reference(plumbing.NewBranchReferenceName("master"), false)
	require.NoError(t, err)

	// Walk the chain: three commits, each stamped with its revision.
	commit, err := object.GetCommit(repo.Storer, head.Hash())
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(commit.Message, "SVN-Revision: 3"))
	require.Equal(t, "alice", commit.Author.Name)
	require.Equal(t, "remove it\n\nSVN-Revision: 3", commit.Message)

	parent, err := commit.Parent(0)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(parent.Message, "SVN-Revision: 2"))

	grandparent, err := parent.Parent(0)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(grandparent.Message, "SVN-Revision: 1"))
	require.Zero(t, grandparent.NumParents())

	// r1's tree carries the file at its full source path.
	tree, err := grandparent.Tree()
	require.NoError(t, err)
	entry, err := tree.FindEntry("trunk/a.txt")
	require.NoError(t, err)
	require.False(t, entry.Hash.IsZero())

	// The flat-history tag mirrors the final state.
	_, err = repo.Reference(plumbing.NewTagReferenceName("flat-history"), false)
	require.NoError(t, err)
}

func TestConvertCommandPrescanFailure(t *testing.T) {
	dump := writeLifecycleDump(t)
	repoDir := filepath.Join(t.TempDir(), "out.git")

	// An author table without alice makes the prescan fail.
	authorsFile := filepath.Join(t.TempDir(), "authors.txt")
	require.NoError(t, os.WriteFile(authorsFile, []byte("bob\tBob\tbob<>example~org\n"), 0o644))

	err := testApp().Run([]string{"subconvert", "-q", "-A", authorsFile, "convert", dump, repoDir})
	var exitErr cli.ExitCoder
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 1, exitErr.ExitCode())

	// With --skip the same conversion goes through, stamping the raw id.
	require.NoError(t, testApp().Run([]string{"subconvert", "-q", "--skip", "-A", authorsFile, "convert", dump, repoDir}))

	repo, err := git.PlainOpen(repoDir)
	require.NoError(t, err)
	head, err := repo.Reference(plumbing.NewBranchReferenceName("master"), false)
	require.NoError(t, err)
	commit, err := object.GetCommit(repo.Storer, head.Hash())
	require.NoError(t, err)
	require.Equal(t, "alice", commit.Author.Name)
	require.Empty(t, commit.Author.Email)
}

func TestScanCommand(t *testing.T) {
	dump := writeLifecycleDump(t)
	require.NoError(t, testApp().Run([]string{"subconvert", "scan", dump}))

	broken := filepath.Join(t.TempDir(), "broken.dump")
	require.NoError(t, os.WriteFile(broken, []byte("Revision-number: nope\n\n"), 0o644))
	require.Error(t, testApp().Run([]string{"subconvert", "scan", broken}))
}

func TestConvertCommandCutoff(t *testing.T) {
	dump := writeLifecycleDump(t)
	repoDir := filepath.Join(t.TempDir(), "out.git")

	// Cutoff at r3 stops before the delete is applied.
	require.NoError(t, testApp().Run([]string{"subconvert", "-q", "--cutoff", "3", "convert", dump, repoDir}))

	repo, err := git.PlainOpen(repoDir)
	require.NoError(t, err)
	head, err := repo.Reference(plumbing.NewBranchReferenceName("master"), false)
	require.NoError(t, err)
	commit, err := object.GetCommit(repo.Storer, head.Hash())
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(commit.Message, "SVN-Revision: 2"))
}
