// Package status renders conversion progress on stderr. It is the moving
// "<verb>: N% (r/total)" line; warnings and errors go through the logger
// instead so verbosity filtering applies to them.
package status

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Display writes transient progress lines terminated by a carriage return,
// and remembers whether the cursor is parked on such a line so the next
// durable write can start cleanly.
type Display struct {
	out      io.Writer
	tty      bool
	quiet    bool
	verb     string
	rev      int
	finalRev int
	needNL   bool
}

// New returns a display writing to out. Progress lines are suppressed when
// quiet is set or when out is not a terminal. The closing "done." line
// follows a progress line only, so it is not written in those cases either.
func New(out io.Writer, quiet bool) *Display {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd())
	}
	return NewWithTTY(out, tty, quiet)
}

// NewWithTTY is New with terminal detection decided by the caller; the CLI
// hands in a synchronized stderr wrapper along with the detection result for
// the real stream.
func NewWithTTY(out io.Writer, tty, quiet bool) *Display {
	return &Display{out: out, tty: tty, quiet: quiet, rev: -1}
}

// SetVerb names the phase shown in progress lines ("Scanning", "Converting").
func (d *Display) SetVerb(verb string) {
	d.verb = verb
}

// SetFinalRev declares the highest revision expected in the stream, enabling
// percentage output. Zero means unknown.
func (d *Display) SetFinalRev(rev int) {
	d.finalRev = rev
}

// Rev returns the revision most recently passed to Update.
func (d *Display) Rev() int {
	return d.rev
}

// Update repaints the progress line for rev.
func (d *Display) Update(rev int) {
	d.rev = rev

	if d.quiet || !d.tty {
		return
	}

	if d.finalRev > 0 {
		fmt.Fprintf(d.out, "%s: %d%% (%d/%d)\r", d.verb, rev*100/d.finalRev, rev, d.finalRev)
	} else {
		fmt.Fprintf(d.out, "%s: %d\r", d.verb, rev)
	}
	d.needNL = true
}

// Newline terminates a pending progress line, if any, so that durable output
// starts at column zero.
func (d *Display) Newline() {
	if d.needNL && !d.quiet {
		fmt.Fprintln(d.out)
		d.needNL = false
	}
}

// Finish closes the phase with a "done." marker when a progress line is
// pending on screen.
func (d *Display) Finish() {
	if d.quiet || !d.needNL {
		return
	}
	fmt.Fprintf(d.out, "%s: done.\n", d.verb)
	d.needNL = false
}
