package subconvert

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"gitlab.com/vcs-tools/subconvert/internal/svndump"
)

func newScanCommand() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "verify that a dumpfile parses cleanly",
		UsageText: `subconvert [options] scan DUMP-FILE

With --verify, text checksums are recomputed and compared as well.`,
		Action:    scanAction,
		ArgsUsage: "DUMP-FILE",
	}
}

func scanAction(ctx *cli.Context) error {
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

	verify := ctx.Bool(flagVerify)
	verbose := ctx.Bool(flagVerbose)

	for {
		ok, err := reader.ReadNext(!verify, verify)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if verbose {
			display.SetFinalRev(finalRev(reader.LastMergedRev(), -1))
			display.Update(reader.Rev())
		}
	}
	if verbose {
		display.Finish()
	}
	return nil
}
