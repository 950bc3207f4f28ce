package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

const (
	ansiRed   = "\x1b[31;1m"
	ansiBold  = "\x1b[1m"
	ansiReset = "\x1b[0m"
)

// useColor reports whether w is a terminal that takes ANSI colour.
func useColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// printDiagnostics writes each diagnostic as "file:line:col: error: msg"
// followed by the source line and a caret.
func printDiagnostics(w io.Writer, r *result, color bool) {
	lines := strings.Split(r.Source, "\n")
	for _, d := range r.Diags {
		loc := fmt.Sprintf("%s:%d:%d:", r.Path, d.Pos.Line, d.Pos.Column)
		label := "error:"
		if color {
			loc = ansiBold + loc + ansiReset
			label = ansiRed + label + ansiReset
		}
		fmt.Fprintf(w, "%s %s %s\n", loc, label, d.Msg)

		if d.Pos.Line < 1 || d.Pos.Line > len(lines) {
			continue
		}
		src := strings.TrimRight(lines[d.Pos.Line-1], "\r")
		fmt.Fprintf(w, "    %s\n", src)
		col := min(max(d.Pos.Column-1, 0), len(src))
		// Keep tabs so the caret lines up under tab-indented source.
		pad := strings.Map(func(r rune) rune {
			if r == '\t' {
				return '\t'
			}
			return ' '
		}, src[:col])
		caret := "^"
		if color {
			caret = ansiRed + caret + ansiReset
		}
		fmt.Fprintf(w, "    %s%s\n", pad, caret)
	}
}
