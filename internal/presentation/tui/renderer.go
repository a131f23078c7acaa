package tui

import (
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders section descriptions (Markdown)
// for the terminal. It falls back to the raw text when no renderer is available.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return func(markdown string) (string, error) {
			return markdown, nil
		}
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}
