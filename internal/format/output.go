package format

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
)

// Tabular is implemented by values that have a text table form.
type Tabular interface {
	Headers() []string
	Rows() [][]string
}

// Write writes output in the requested format.
//
// Supported formats:
// - json (default)
// - text: a table for Tabular values, indented JSON otherwise
// - markdown: a rendered summary for Markdowner values, then as text
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch format {
	case "", "json":
		return WriteJSON(w, v, pretty)
	case "text":
		if t, ok := v.(Tabular); ok {
			return WriteTable(w, t)
		}
		return WriteJSON(w, v, true)
	case "markdown", "md":
		if m, ok := v.(Markdowner); ok {
			return WriteMarkdown(w, m.Markdown())
		}
		return Write(w, v, "text", pretty)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteJSON writes strict JSON output for CLI commands.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}

// WriteTable renders t with a color profile detected for w itself: plain when w is not a
// terminal or NO_COLOR is set, colored when CLICOLOR_FORCE is.
func WriteTable(w io.Writer, t Tabular) error {
	r := lipgloss.NewRenderer(w, termenv.WithColorCache(true))
	headerStyle := r.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := r.NewStyle().Padding(0, 1)
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.NewStyle()).
		Headers(t.Headers()...).
		Rows(t.Rows()...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}
