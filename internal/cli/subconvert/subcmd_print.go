package subconvert

import (
	"bufio"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"gitlab.com/vcs-tools/subconvert/internal/svndump"
)

func newPrintCommand() *cli.Command {
	return &cli.Command{
		Name:      "print",
		Usage:     "write a human-readable trace of every node",
		UsageText: "subconvert print DUMP-FILE",
		Action:    printAction,
		ArgsUsage: "DUMP-FILE",
	}
}

func printAction(ctx *cli.Context) error {
	dumpPath, err := dumpArg(ctx)
	if err != nil {
		return err
	}

	reader, err := svndump.Open(dumpPath)
	if err != nil {
		return fmt.Errorf("open dump: %w", err)
	}
	defer reader.Close()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for {
		ok, err := reader.ReadNext(true, false)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		svndump.PrintNode(out, reader.CurrNode())
	}
}
