package chat

import (
	"bytes"
	"html"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var markdownPolicy = bluemonday.UGCPolicy()

// RenderMarkdown converts an assistant message to sanitized HTML for the chat
// panel. Text that fails to convert is returned escaped.
func RenderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		return html.EscapeString(text)
	}
	return markdownPolicy.Sanitize(buf.String())
}
