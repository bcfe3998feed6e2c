// Package textfmt prepares model output for terminal display.
package textfmt

import (
	"strings"

	"github.com/muesli/reflow/wordwrap"
)

// Width is the column limit applied to wrapped output.
const Width = 80

// Wrap normalizes whitespace and soft-wraps text at word boundaries so that
// no line exceeds Width columns. Paragraph breaks are preserved.
func Wrap(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	paragraphs := strings.Split(text, "\n\n")
	for i, p := range paragraphs {
		p = strings.Join(strings.Fields(p), " ")
		paragraphs[i] = wordwrap.String(p, Width)
	}
	return strings.Join(paragraphs, "\n\n")
}
