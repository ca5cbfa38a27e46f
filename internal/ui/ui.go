// Package ui renders command output: colored status lines, PASS/FAIL
// marks, tables, and interactive prompts.
package ui

import (
	"fmt"
	"io"
	"strings"
)

// Printer writes user-facing output. Quiet suppresses everything except
// errors.
type Printer struct {
	Out   io.Writer
	Quiet bool
}

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer, quiet bool) *Printer {
	return &Printer{Out: out, Quiet: quiet}
}

// Printf prints formatted output if not in quiet mode
func (p *Printer) Printf(format string, args ...interface{}) {
	if !p.Quiet {
		fmt.Fprintf(p.Out, format, args...)
	}
}

// Println prints a line if not in quiet mode
func (p *Printer) Println(args ...interface{}) {
	if !p.Quiet {
		fmt.Fprintln(p.Out, args...)
	}
}

// Section prints a section header
func (p *Printer) Section(title string) {
	p.Printf("\n%s %s\n", ColorBold("▶"), ColorBold(title))
	p.Println(strings.Repeat("─", 50))
}

// KeyValue prints a key-value pair in a formatted way
func (p *Printer) KeyValue(key, value string) {
	p.Printf("  %-20s %s\n", ColorDim(key+":"), value)
}

// Success prints a success message
func (p *Printer) Success(message string) {
	p.Printf("%s %s\n", ColorSuccess("✓"), message)
}

// Warning prints a warning message
func (p *Printer) Warning(message string) {
	p.Printf("%s %s\n", ColorWarning("⚠"), message)
}

// Info prints an information message
func (p *Printer) Info(message string) {
	p.Printf("%s %s\n", ColorInfo("ℹ"), message)
}

// Error prints err, its detail lines dimmed, and a hint when one applies.
// Errors are printed even in quiet mode.
func (p *Printer) Error(err error) {
	lines := strings.Split(err.Error(), "\n")
	fmt.Fprintf(p.Out, "%s %s\n", ColorError("✗"), ColorError(lines[0]))
	for _, line := range lines[1:] {
		fmt.Fprintf(p.Out, "  %s\n", ColorDim(line))
	}
	if hint := Suggestion(err.Error()); hint != "" {
		fmt.Fprintf(p.Out, "\n  %s %s\n", ColorInfo("TIP:"), ColorInfo(hint))
	}
}

// Check prints one check result line.
func (p *Printer) Check(name string, passed bool, detail string) {
	if detail == "" {
		p.Printf("  %s  %s\n", Mark(passed), name)
		return
	}
	p.Printf("  %s  %s: %s\n", Mark(passed), name, detail)
}

// Table renders a table if not in quiet mode.
func (p *Printer) Table(header []string, rows [][]string) {
	if !p.Quiet {
		Table(p.Out, header, rows)
	}
}

// Summary prints "passed/total label" colored by outcome.
func (p *Printer) Summary(passed, total int, label string) {
	line := fmt.Sprintf("%d/%d %s", passed, total, label)
	if passed == total && total > 0 {
		p.Success(line)
		return
	}
	p.Printf("%s %s\n", ColorError("✗"), line)
}
