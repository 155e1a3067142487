package render

import "strings"

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// EscapeHTML escapes & < > " and ' for safe insertion as text or attribute.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

var textEscaper = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// escapeText escapes only & < >; quotes stay literal in prose. CR and CRLF
// become LF so the line-anchored rules never capture a trailing \r.
func escapeText(s string) string {
	return textEscaper.Replace(s)
}
