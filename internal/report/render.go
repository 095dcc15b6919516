package report

import (
	"github.com/charmbracelet/glamour"
)

// RenderTerminal renders the markdown report for terminal display. Falls
// back to the raw markdown when the renderer cannot be built, so a broken
// style never hides the report.
func RenderTerminal(markdown string, width int) string {
	if width <= 0 {
		width = 100
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}
