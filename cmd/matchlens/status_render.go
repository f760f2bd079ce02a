package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

// renderStatusLine formats one "Label: [OK] message" summary line; warn
// selects the yellow WARN form.
func renderStatusLine(label, message string, warn, colorize bool) string {
	tag, color := "OK", ansiGreen
	if warn {
		tag, color = "WARN", ansiYellow
	}
	line := fmt.Sprintf("  %-10s [%s] %s", label+":", tag, message)
	if !colorize {
		return line
	}
	return color + line + ansiReset
}

func renderSectionHeader(title string, colorize bool) string {
	heading := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(heading))
	if colorize {
		heading = ansiBlue + heading + ansiReset
	}
	return heading + "\n" + rule
}

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
