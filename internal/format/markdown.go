package format

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
)

// Markdowner is implemented by values that have a rendered summary form.
type Markdowner interface {
	Markdown() string
}

const markdownWidth = 100

var (
	mdRendererMu sync.Mutex
	// Renderers are cached by style. WithAutoStyle is avoided: it can block on terminal
	// background queries.
	mdRenderers = map[string]*glamour.TermRenderer{}
)

// markdownStyle picks the glamour style from MOODBOARD_MD_STYLE (dark|light|notty|ascii).
func markdownStyle() string {
	switch v := strings.ToLower(strings.TrimSpace(os.Getenv("MOODBOARD_MD_STYLE"))); v {
	case styles.LightStyle, styles.NoTTYStyle, styles.AsciiStyle:
		return v
	default:
		return styles.DarkStyle
	}
}

func renderer(style string) (*glamour.TermRenderer, error) {
	mdRendererMu.Lock()
	defer mdRendererMu.Unlock()
	if r := mdRenderers[style]; r != nil {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(markdownWidth),
	)
	if err != nil {
		return nil, err
	}
	mdRenderers[style] = r
	return r, nil
}

// WriteMarkdown renders md for the terminal. When rendering fails the source is written
// as is.
func WriteMarkdown(w io.Writer, md string) error {
	md = strings.TrimSpace(md)
	out := md
	if r, err := renderer(markdownStyle()); err == nil {
		if rendered, err := r.Render(md); err == nil {
			out = strings.TrimRight(rendered, "\n")
		}
	}
	_, err := fmt.Fprintln(w, out)
	return err
}
