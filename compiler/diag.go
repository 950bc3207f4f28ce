package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// Diagnostic is one compile-time error with its source position.
type Diagnostic struct {
	Pos Position
	Msg string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d, column %d: %s", d.Pos.Line, d.Pos.Column, d.Msg)
}

// Diagnostics is the accumulated error list of a compilation. A non-empty
// list means the compilation failed.
type Diagnostics []Diagnostic

func (ds Diagnostics) Error() string {
	lines := make([]string, len(ds))
	for i, d := range ds {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}

// Sorted returns the diagnostics in source order.
func (ds Diagnostics) Sorted() Diagnostics {
	out := append(Diagnostics(nil), ds...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pos.Line != out[j].Pos.Line {
			return out[i].Pos.Line < out[j].Pos.Line
		}
		return out[i].Pos.Column < out[j].Pos.Column
	})
	return out
}

// diagSink collects diagnostics; shared by the parser and the code
// generator.
type diagSink struct {
	diags Diagnostics
}

func (s *diagSink) errorAt(pos Position, format string, args ...interface{}) {
	s.diags = append(s.diags, Diagnostic{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}
