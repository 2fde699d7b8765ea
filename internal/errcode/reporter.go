package errcode

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"exo/internal/srcinfo"
)

// Reporter renders an *Error with Rust-like styling (`error[Kind]:
// message`, a `--> file:line:col` location line, and a source snippet with
// an underline marker) against one source text.
type Reporter struct {
	filename string
	lines    []string
}

// NewReporter creates a Reporter for one named source text. filename and
// source may both be empty, in which case Format falls back to printing
// just the header line (the common case for errors raised against
// synthetic IR with no originating source span).
func NewReporter(filename, source string) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(source, "\n")}
}

// Format renders err at the given position (srcinfo.Position's zero value
// means "no known location").
func (r *Reporter) Format(err *Error, pos srcinfo.Position) string {
	var b strings.Builder
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()
	levelColor := color.New(color.FgRed, color.Bold).SprintFunc()

	b.WriteString(fmt.Sprintf("%s[%s]: %s\n", levelColor("error"), err.Kind, err.Message))
	if err.Cause != nil {
		b.WriteString(fmt.Sprintf("  %s %v\n", dim("caused by:"), err.Cause))
	}

	if pos.IsZero() || r.filename == "" {
		return b.String()
	}

	width := lineNumberWidth(pos.Line)
	indent := strings.Repeat(" ", width)
	b.WriteString(fmt.Sprintf("%s %s %s:%s\n", indent, dim("-->"), r.filename, pos))
	b.WriteString(fmt.Sprintf("%s %s\n", indent, dim("│")))

	if pos.Line >= 1 && pos.Line <= len(r.lines) {
		b.WriteString(fmt.Sprintf("%s %s %s\n", bold(fmt.Sprintf("%*d", width, pos.Line)), dim("│"), r.lines[pos.Line-1]))
		marker := strings.Repeat(" ", max0(pos.Col-1)) + levelColor("^")
		b.WriteString(fmt.Sprintf("%s %s %s\n", indent, dim("│"), marker))
	}
	return b.String()
}

func lineNumberWidth(line int) int {
	w := len(fmt.Sprintf("%d", line))
	if w < 3 {
		w = 3
	}
	return w
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
