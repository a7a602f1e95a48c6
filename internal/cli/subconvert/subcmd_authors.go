package subconvert

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"gitlab.com/vcs-tools/subconvert/internal/authors"
	"gitlab.com/vcs-tools/subconvert/internal/svndump"
)

func newAuthorsCommand() *cli.Command {
	return &cli.Command{
		Name:      "authors",
		Usage:     "tally author ids for building an author table",
		UsageText: "subconvert authors DUMP-FILE",
		Action:    authorsAction,
		ArgsUsage: "DUMP-FILE",
	}
}

func authorsAction(ctx *cli.Context) error {
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

	scanner := authors.NewScanner()
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
