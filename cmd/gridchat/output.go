package main

import (
	"fmt"
	"os"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + ansiReset
}

// printLine writes one status line to stderr, keeping stdout clean for
// data output (sheet tables, thread listings, assistant replies).
func printLine(color, marker, format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(color, marker+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { printLine(ansiGreen, "✓ ", format, args...) }
func printError(format string, args ...any)   { printLine(ansiRed, "✗ ", format, args...) }
func printWarning(format string, args ...any) { printLine(ansiYellow, "⚠ ", format, args...) }
func printStep(format string, args ...any)    { printLine(ansiCyan, "→ ", format, args...) }

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(ansiBold, label+":"), val)
}

// printProposal renders a mutation the assistant wants approved. It goes to
// stdout: the proposal is part of the conversation, not a status line.
func printProposal(description string) {
	fmt.Printf("\n%s %s\n", colorize(ansiYellow, "Proposed:"), description)
}
