package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	headerColor  = color.New(color.FgBlue, color.Bold)
	nameColor    = color.New(color.FgCyan)
	dimColor     = color.New(color.FgHiBlack)
)

// printSuccess prints a success message with a checkmark.
func printSuccess(w io.Writer, format string, args ...any) {
	_, _ = successColor.Fprintf(w, "✓ %s\n", fmt.Sprintf(format, args...))
}

// printHeader prints a section header.
func printHeader(w io.Writer, title string) {
	_, _ = headerColor.Fprintf(w, "▸ %s\n", title)
}

// printEntry prints a name with an optional dimmed detail.
func printEntry(w io.Writer, name, detail string) {
	_, _ = nameColor.Fprintf(w, "  %s", name)
	if detail != "" {
		_, _ = dimColor.Fprintf(w, "  %s", detail)
	}
	_, _ = fmt.Fprintln(w)
}
