package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	boldColor    = color.New(color.Bold)
	dimColor     = color.New(color.Faint)
	greenColor   = color.New(color.FgGreen)
	redColor     = color.New(color.FgRed)
	yellowColor  = color.New(color.FgYellow)
	cyanColor    = color.New(color.FgCyan)
	ansiSequence = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

// Output handles formatted output for the CLI.
type Output struct {
	writer       io.Writer
	jsonMode     bool
	colorEnabled bool
}

// NewOutput creates a new Output instance. Colors follow fatih/color's
// terminal detection and are always off in JSON mode.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &Output{
		writer:       cmd.OutOrStdout(),
		jsonMode:     jsonMode,
		colorEnabled: !jsonMode && !color.NoColor,
	}
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as indented JSON.
func (o *Output) JSON(data any) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Println prints a message with newline.
func (o *Output) Println(args ...any) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...any) {
	fmt.Fprintf(o.writer, format, args...)
}

// Header prints a section header.
func (o *Output) Header(format string, args ...any) {
	o.line(headerColor, format, args...)
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...any) {
	o.line(greenColor, format, args...)
}

// Error prints an error message in red.
func (o *Output) Error(format string, args ...any) {
	o.line(redColor, format, args...)
}

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...any) {
	o.line(yellowColor, format, args...)
}

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...any) {
	o.line(boldColor, format, args...)
}

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...any) {
	o.line(dimColor, format, args...)
}

func (o *Output) line(c *color.Color, format string, args ...any) {
	o.Println(o.paint(c, fmt.Sprintf(format, args...)))
}

func (o *Output) paint(c *color.Color, text string) string {
	if !o.colorEnabled {
		return text
	}
	c.EnableColor()
	return c.Sprint(text)
}

// Green returns green colored text.
func (o *Output) Green(text string) string { return o.paint(greenColor, text) }

// Red returns red colored text.
func (o *Output) Red(text string) string { return o.paint(redColor, text) }

// Yellow returns yellow colored text.
func (o *Output) Yellow(text string) string { return o.paint(yellowColor, text) }

// Cyan returns cyan colored text.
func (o *Output) Cyan(text string) string { return o.paint(cyanColor, text) }

// BoldText returns bold text.
func (o *Output) BoldText(text string) string { return o.paint(boldColor, text) }

// DimText returns dimmed text.
func (o *Output) DimText(text string) string { return o.paint(dimColor, text) }

// Signed colors text green for positive values and red for negative ones.
func (o *Output) Signed(v float64, text string) string {
	switch {
	case v > 0:
		return o.Green(text)
	case v < 0:
		return o.Red(text)
	}
	return text
}

// Table represents a simple table for output.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{headers: headers, output: output}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render renders the table with columns padded to their widest cell.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visibleLen(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], visibleLen(cell))
			}
		}
	}

	t.printRow(t.headers, widths, true)
	t.printSeparator(widths)
	for _, row := range t.rows {
		t.printRow(row, widths, false)
	}
}

func (t *Table) printRow(cells []string, widths []int, isHeader bool) {
	parts := make([]string, 0, len(cells))
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		padded := cell + strings.Repeat(" ", max(widths[i]-visibleLen(cell), 0))
		if isHeader {
			padded = t.output.BoldText(padded)
		}
		parts = append(parts, padded)
	}
	t.output.Println(strings.TrimRight(strings.Join(parts, "  "), " "))
}

func (t *Table) printSeparator(widths []int) {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("─", w)
	}
	t.output.Println(t.output.DimText(strings.Join(parts, "──")))
}

// stripANSI removes ANSI escape codes from a string.
func stripANSI(s string) string {
	return ansiSequence.ReplaceAllString(s, "")
}

func visibleLen(s string) int {
	return len([]rune(stripANSI(s)))
}
