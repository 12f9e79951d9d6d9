package errors

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	kindColor = color.New(color.FgRed, color.Bold)
	posColor  = color.New(color.FgYellow)
)

// DisplayErrors prints one line per error to w, in a
// "<Kind> Error at <pos>: <message>" shape, plus a caret-annotated source
// line when src is non-empty and the error carries a real position.
func DisplayErrors(w io.Writer, errs []CoreError, src string) {
	lines := strings.Split(src, "\n")
	for _, e := range errs {
		fmt.Fprintf(w, "%s %s: %s\n", kindColor.Sprint(e.Kind()+" Error"), posColor.Sprint("at "+e.Pos().String()), e.Message())
		pos := e.Pos()
		if src == "" || pos.Line <= 0 || pos.Line > len(lines) {
			continue
		}
		line := lines[pos.Line-1]
		fmt.Fprintf(w, "  %s\n", line)
		col := pos.Column
		if col < 1 {
			col = 1
		}
		if col > len(line)+1 {
			col = len(line) + 1
		}
		fmt.Fprintf(w, "  %s^\n", strings.Repeat(" ", col-1))
	}
}
