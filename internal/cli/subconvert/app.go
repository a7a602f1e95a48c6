// Package subconvert implements the subconvert command line: subcommands for
// converting, scanning and inspecting Subversion dumpfiles.
package subconvert

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"gitlab.com/vcs-tools/subconvert/internal/log"
	"gitlab.com/vcs-tools/subconvert/internal/status"
)

const (
	flagVerbose  = "verbose"
	flagQuiet    = "quiet"
	flagDebug    = "debug"
	flagVerify   = "verify"
	flagSkip     = "skip"
	flagStart    = "start"
	flagCutoff   = "cutoff"
	flagAuthors  = "authors"
	flagBranches = "branches"
	flagModules  = "modules"
	flagGC       = "gc"
)

// NewApp assembles the subconvert CLI.
func NewApp() *cli.App {
	return &cli.App{
		Name:            "subconvert",
		Usage:           "convert Subversion dumpfiles into git repositories",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: flagVerbose, Aliases: []string{"v"}, Usage: "report each applied change"},
			&cli.BoolFlag{Name: flagQuiet, Aliases: []string{"q"}, Usage: "suppress progress output"},
			&cli.BoolFlag{Name: flagDebug, Aliases: []string{"d"}, Usage: "enable debug logging"},
			&cli.BoolFlag{Name: flagVerify, Usage: "verify text checksums while scanning"},
			&cli.BoolFlag{Name: flagSkip, Usage: "skip the pre-scan validation pass"},
			&cli.IntFlag{Name: flagStart, Value: -1, Usage: "skip nodes below revision `N`"},
			&cli.IntFlag{Name: flagCutoff, Value: -1, Usage: "stop the scan at revision `N`"},
			&cli.StringFlag{Name: flagAuthors, Aliases: []string{"A"}, Usage: "author table `FILE`"},
			&cli.StringFlag{Name: flagBranches, Aliases: []string{"B"}, Usage: "branch table `FILE`"},
			&cli.StringFlag{Name: flagModules, Aliases: []string{"M"}, Usage: "submodule manifest `FILE`"},
			&cli.IntFlag{Name: flagGC, Usage: "collect garbage every `N` revisions"},
		},
		Commands: []*cli.Command{
			newConvertCommand(),
			newScanCommand(),
			newPrintCommand(),
			newAuthorsCommand(),
			newBranchesCommand(),
		},
	}
}

// setup wires the shared stderr surface: one synchronized writer feeding
// both the logger and the progress display.
func setup(ctx *cli.Context) (log.Logger, *status.Display) {
	out := log.NewSyncWriter(os.Stderr)
	logger := log.Configure(out, log.Config{
		Quiet:   ctx.Bool(flagQuiet),
		Verbose: ctx.Bool(flagVerbose),
		Debug:   ctx.Bool(flagDebug),
	})
	display := status.NewWithTTY(out, isatty.IsTerminal(os.Stderr.Fd()), ctx.Bool(flagQuiet))
	return logger, display
}

// dumpArg returns the required dumpfile argument or a usage error.
func dumpArg(ctx *cli.Context) (string, error) {
	if ctx.NArg() < 1 {
		if err := cli.ShowSubcommandHelp(ctx); err != nil {
			return "", err
		}
		return "", cli.Exit("error: dumpfile required", 1)
	}
	return ctx.Args().Get(0), nil
}

// finalRev bounds the progress denominator by the cutoff when one is set.
func finalRev(lastMerged, cutoff int) int {
	if cutoff >= 0 && (lastMerged < 0 || cutoff < lastMerged) {
		return cutoff
	}
	if lastMerged < 0 {
		return 0
	}
	return lastMerged
}
