package subconvert

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"gitlab.com/vcs-tools/subconvert/internal/authors"
	"gitlab.com/vcs-tools/subconvert/internal/branches"
	"gitlab.com/vcs-tools/subconvert/internal/convert"
	"gitlab.com/vcs-tools/subconvert/internal/gitstore"
	"gitlab.com/vcs-tools/subconvert/internal/svndump"
)

func newConvertCommand() *cli.Command {
	return &cli.Command{
		Name:  "convert",
		Usage: "run the dump-to-git translation",
		UsageText: `subconvert [options] convert DUMP-FILE [REPOSITORY]

Example: subconvert -A authors.txt -B branches.txt convert project.dump project.git`,
		Action:    convertAction,
		ArgsUsage: "DUMP-FILE [REPOSITORY]",
	}
}

func convertAction(ctx *cli.Context) error {
	dumpPath, err := dumpArg(ctx)
	if err != nil {
		return err
	}
	repoPath := "."
	if ctx.NArg() > 1 {
		repoPath = ctx.Args().Get(1)
	}

	logger, display := setup(ctx)

	reader, err := svndump.Open(dumpPath)
	if err != nil {
		return fmt.Errorf("open dump: %w", err)
	}
	defer reader.Close()

	repo, err := gitstore.Init(repoPath, logger)
	if err != nil {
		return err
	}

	authorTable := authors.NewTable()
	conv := convert.New(repo, authorTable, logger, display, os.Stderr, convert.Options{
		Verbose:    ctx.Bool(flagVerbose),
		Debug:      ctx.Bool(flagDebug),
		Quiet:      ctx.Bool(flagQuiet),
		GCInterval: ctx.Int(flagGC),
		StoreFactory: func(name string) (*gitstore.Repository, error) {
			return gitstore.Init(filepath.Join(filepath.Dir(repoPath), name), logger)
		},
	})

	// Load the user-provided migration tables before touching the stream.
	errors := 0
	if path := ctx.String(flagAuthors); path != "" {
		n, err := authorTable.Load(path, logger)
		if err != nil {
			return fmt.Errorf("load authors: %w", err)
		}
		errors += n
	}
	if path := ctx.String(flagBranches); path != "" {
		table := branches.NewTable()
		n, err := table.Load(path, logger)
		if err != nil {
			return fmt.Errorf("load branches: %w", err)
		}
		errors += n
		conv.LoadBranches(table)
	}
	if path := ctx.String(flagModules); path != "" {
		n, err := conv.LoadSubmodules(path)
		if err != nil {
			return fmt.Errorf("load modules: %w", err)
		}
		errors += n
	}

	start := ctx.Int(flagStart)
	cutoff := ctx.Int(flagCutoff)

	// Validate as much as possible before wasting the user's time with
	// useless work.
	if !ctx.Bool(flagSkip) {
		display.SetVerb("Scanning")

		pipeline := convert.NewPipeline(reader, false, true, start, cutoff)
		for node := range pipeline.Nodes() {
			display.SetFinalRev(finalRev(node.LastMergedRev, cutoff))
			errors += conv.Prescan(node)
		}
		if err := pipeline.Wait(); err != nil {
			return err
		}
		display.Newline()

		conv.SortReservations()

		if errors > 0 {
			logger.Warnf("Please correct the errors listed above and run again.")
			return cli.Exit("", 1)
		}
		logger.Warnf("Note: --skip can be used to skip this pre-scan.")

		if err := reader.Rewind(); err != nil {
			return fmt.Errorf("rewind dump: %w", err)
		}
	}

	display.SetVerb("Converting")

	pipeline := convert.NewPipeline(reader, false, false, start, cutoff)
	for node := range pipeline.Nodes() {
		display.SetFinalRev(finalRev(node.LastMergedRev, cutoff))
		if err := conv.Apply(node); err != nil {
			pipeline.Abort()
			return err
		}
	}
	if err := pipeline.Wait(); err != nil {
		return err
	}

	return conv.Finish()
}
