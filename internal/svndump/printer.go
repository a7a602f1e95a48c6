package svndump

import (
	"fmt"
	"io"
)

// PrintNode writes the one-line human-readable trace used by the print
// command. The rN:T cell is right-aligned in 9 columns, so the example below
// is written with 5 leading spaces:
//
//	r3:2 add     file trunk/a.txt (copied from trunk/b.txt [r2])
func PrintNode(out io.Writer, n *Node) {
	fmt.Fprintf(out, "%9s ", fmt.Sprintf("r%d:%d", n.Rev, n.Txn+1))

	action := " "
	if n.Action != ActionNone {
		action = n.Action.String() + " "
	}
	fmt.Fprintf(out, "%-8s", action)

	kind := " "
	if n.Kind != KindNone {
		kind = n.Kind.String() + " "
	}
	fmt.Fprintf(out, "%-5s", kind)

	fmt.Fprint(out, n.Path)

	if n.HasCopyFrom() {
		fmt.Fprintf(out, " (copied from %s [r%d])", n.CopyFromPath, n.CopyFromRev)
	}

	fmt.Fprintln(out)
}
