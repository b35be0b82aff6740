package markdown

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
)

// Renderer renders markdown messages for the terminal. Code fences are
// highlighted by glamour's chroma integration.
type Renderer struct {
	r *glamour.TermRenderer
}

// NewRenderer creates a renderer for the given glamour style and wrap width.
// An empty style means auto detection; width 0 disables wrapping.
func NewRenderer(style string, width int) (*Renderer, error) {
	if style == "" {
		style = styles.AutoStyle
	}

	opts := []glamour.TermRendererOption{
		glamour.WithWordWrap(width),
		glamour.WithPreservedNewLines(),
	}
	if style == styles.AutoStyle {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStylePath(style))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create renderer: %w", err)
	}
	return &Renderer{r: r}, nil
}

// Render renders a markdown message.
func (r *Renderer) Render(message string) (string, error) {
	out, err := r.r.Render(message)
	if err != nil {
		return "", fmt.Errorf("unable to render markdown: %w", err)
	}
	return out, nil
}

// ValidStyle reports whether style names a built-in glamour style.
func ValidStyle(style string) bool {
	return style == styles.AutoStyle || styles.DefaultStyles[style] != nil
}
