package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Color codes using ANSI escape sequences
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// colorsEnabled determines if color output is enabled
var colorsEnabled = true

func init() {
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
	}
}

// colorize wraps text with ANSI color codes if colors are enabled
func colorize(text, color string) string {
	if !colorsEnabled {
		return text
	}
	return color + text + colorReset
}

// Success prints a message with a green checkmark.
func Success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", colorize("✓", colorGreen), fmt.Sprintf(format, args...))
}

// Error prints an error message with a red X.
func Error(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s Error: %s\n", colorize("✗", colorRed), fmt.Sprintf(format, args...))
}

// Warning prints a warning message with a yellow warning sign.
func Warning(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s Warning: %s\n", colorize("⚠", colorYellow), fmt.Sprintf(format, args...))
}

// Field prints a labeled field (key-value pair)
func Field(w io.Writer, label, value string) {
	labelFormatted := fmt.Sprintf("%-16s", label+":")
	fmt.Fprintf(w, "%s %s\n", colorize(labelFormatted, colorGray), value)
}

// Table represents a simple text table
type Table struct {
	Headers []string
	Rows    [][]string
	writer  io.Writer
}

// NewTable creates a new table writing to w.
func NewTable(w io.Writer, headers ...string) *Table {
	return &Table{
		Headers: headers,
		Rows:    [][]string{},
		writer:  w,
	}
}

// AddRow adds a row to the table
func (t *Table) AddRow(values ...string) {
	t.Rows = append(t.Rows, values)
}

// Print renders the table
func (t *Table) Print() {
	if len(t.Headers) == 0 {
		return
	}

	widths := make([]int, len(t.Headers))
	for i, header := range t.Headers {
		widths[i] = len(header)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	// Pad before colorizing so escape codes do not skew the widths.
	cells := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		cells[i] = colorize(pad(h, widths[i]), colorBold)
	}
	_, _ = fmt.Fprintln(t.writer, strings.TrimRight(strings.Join(cells, "  "), " "))

	totalWidth := 2 * (len(widths) - 1)
	for _, w := range widths {
		totalWidth += w
	}
	_, _ = fmt.Fprintln(t.writer, strings.Repeat("-", totalWidth))

	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			if i < len(widths) {
				cell = pad(cell, widths[i])
			}
			cells[i] = cell
		}
		_, _ = fmt.Fprintln(t.writer, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

func pad(s string, width int) string {
	return fmt.Sprintf("%-*s", width, s)
}

// JSON prints v as indented JSON.
func JSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FormatBytes formats byte sizes in human-readable format (B, KB, MB, etc.)
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// TruncateString truncates a string to maxLen with ellipsis
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 4 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
