package render

import "strings"

const (
	textOpen  = `<div class="explanation-content professional-response">`
	textClose = `</div>`
)

// Text formats prose outside code fences. Whitespace-only input renders
// to the empty string.
func Text(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return textOpen + DefaultPipeline.Apply(text) + textClose
}
