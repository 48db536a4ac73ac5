package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
)

// outputWriter is used for printing output, can be overridden in tests
var outputWriter io.Writer = os.Stdout

// setOutputWriter sets the output writer (used for testing)
func setOutputWriter(w io.Writer) {
	outputWriter = w
}

// resetOutputWriter resets output to stdout (used for testing)
func resetOutputWriter() {
	outputWriter = os.Stdout
}

var (
	headerStyle  = color.New(color.FgCyan, color.OpBold)
	sectionStyle = color.New(color.FgYellow)
	okStyle      = color.New(color.FgGreen)
	errStyle     = color.New(color.FgRed)
)

// printHeader prints a framed title
func printHeader(format string, args ...interface{}) {
	title := fmt.Sprintf(format, args...)
	rule := strings.Repeat("=", runewidth.StringWidth(title)+4)
	fmt.Fprintln(outputWriter, headerStyle.Sprint(rule))
	fmt.Fprintf(outputWriter, "  %s\n", headerStyle.Sprint(title))
	fmt.Fprintln(outputWriter, headerStyle.Sprint(rule))
}

// printSection prints a section header
func printSection(title string) {
	fmt.Fprintln(outputWriter, sectionStyle.Sprintf("[%s]", title))
	fmt.Fprintln(outputWriter, strings.Repeat("-", runewidth.StringWidth(title)+2))
}

func printOK(format string, args ...interface{}) {
	fmt.Fprintln(outputWriter, okStyle.Sprintf("✅ "+format, args...))
}

func printFailure(format string, args ...interface{}) {
	fmt.Fprintln(outputWriter, errStyle.Sprintf("❌ "+format, args...))
}

// maxCellWidth truncates long cells so one value cannot stretch a table.
const maxCellWidth = 40

// printTable prints rows under a header, aligning columns by display width.
func printTable(header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i := range row {
			if i >= len(widths) {
				break
			}
			row[i] = runewidth.Truncate(row[i], maxCellWidth, "…")
			if w := runewidth.StringWidth(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	line := func(cells []string) {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = runewidth.FillRight(cell, widths[i])
		}
		fmt.Fprintln(outputWriter, "  "+strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	line(header)
	rule := make([]string, len(widths))
	for i, w := range widths {
		rule[i] = strings.Repeat("-", w)
	}
	line(rule)
	for _, row := range rows {
		line(row)
	}
}

// display renders a value for a table cell.
func display(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []interface{}:
		parts := make([]string, len(t))
		for i, p := range t {
			parts[i] = display(p)
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}
