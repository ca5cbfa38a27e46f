package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
	"github.com/olekukonko/tablewriter"
)

var (
	// Check if output supports colors
	supportsColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	// Color functions
	ColorSuccess  = colorFunc(ansi.Green)
	ColorError    = colorFunc(ansi.Red)
	ColorWarning  = colorFunc(ansi.Yellow)
	ColorInfo     = colorFunc(ansi.Cyan)
	ColorProgress = colorFunc(ansi.Blue)
	ColorBold     = colorFunc("default+b")
	ColorDim      = colorFunc("default+h")

	passMark = color.New(color.FgGreen, color.Bold)
	failMark = color.New(color.FgRed, color.Bold)
)

// colorFunc returns a function that colors text if supported
func colorFunc(style string) func(string) string {
	return func(text string) string {
		if supportsColor {
			return ansi.Color(text, style)
		}
		return text
	}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// Mark renders a check outcome as PASS or FAIL.
func Mark(passed bool) string {
	if passed {
		return passMark.Sprint("PASS")
	}
	return failMark.Sprint("FAIL")
}

// Table writes rows under header with the layout used by every report.
func Table(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(rows)
	table.Render()
}

// Suggestion returns a hint for common Snowflake and vault failures, or ""
// when nothing applies.
func Suggestion(message string) string {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "jwt token is invalid"):
		return "Check that the public key registered for the user matches the private key in the vault"
	case strings.Contains(lower, "secret not found"):
		return "Check the secret names under 'secrets' in the configuration"
	case strings.Contains(lower, "insufficient privileges"):
		return "Ensure your role has the necessary privileges, or run 'snowadmin probe' to find the failing step"
	case strings.Contains(lower, "does not exist or not authorized"):
		return "Verify the object exists and that the session role can see it"
	case strings.Contains(lower, "az login"), strings.Contains(lower, "azurecli"):
		return "Run 'az login' before using the azure vault provider"
	default:
		return ""
	}
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", hours, minutes)
}
