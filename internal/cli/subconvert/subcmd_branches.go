package subconvert

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"gitlab.com/vcs-tools/subconvert/internal/branches"
	"gitlab.com/vcs-tools/subconvert/internal/svndump"
)

func newBranchesCommand() *cli.Command {
	return &cli.Command{
		Name:      "branches",
		Usage:     "infer branch roots for building a branch table",
		UsageText: "subconvert branches DUMP-FILE",
		Action:    branchesAction,
		ArgsUsage: "DUMP-FILE",
	}
}

func branchesAction(ctx *cli.Context) error {
	dumpPath, err := dumpArg(ctx)
	if err != nil {
		return err
	}

	_, display := setup(ctx)
	display.SetVerb("Scanning")

	reader, err := svndump.Open(dumpPath)
	if err != nil {
		return fmt.Errorf("open dump: %w", err)
	}
	defer reader.Close()

	scanner := branches.NewScanner()
	for {
		ok, err := reader.ReadNext(true, false)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		display.SetFinalRev(finalRev(reader.LastMergedRev(), -1))
		display.Update(reader.Rev())
		scanner.Observe(reader.CurrNode())
	}
	display.Finish()

	scanner.WriteTo(os.Stdout)
	return nil
}
