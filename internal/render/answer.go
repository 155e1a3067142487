package render

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// fenceRegex matches a fenced block whose closing fence is the same kind
// as its opening one.
var fenceRegex = regexp.MustCompile("```([\\s\\S]*?)```|~~~([\\s\\S]*?)~~~")

// infoString matches a fence info token such as "js" or "c++".
var infoString = regexp.MustCompile(`^[A-Za-z0-9_+#.-]+$`)

// Answer renders model output: fenced blocks become code blocks and
// everything else goes through Text.
func Answer(text string) string {
	locs := fenceRegex.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return Text(text)
	}
	return renderFenced(text, locs)
}

// renderFenced walks the fence matches, formatting the text between them.
// With no matches it reduces to Text(text), the same as Answer's
// fence-free branch.
func renderFenced(text string, locs [][]int) string {
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		if loc[0] > last {
			b.WriteString(Text(text[last:loc[0]]))
		}
		body := fenceBody(text, loc)
		b.WriteString(CodeBlock(body))
		last = loc[1]
	}
	if last < len(text) {
		b.WriteString(Text(text[last:]))
	}
	return b.String()
}

func fenceBody(text string, loc []int) string {
	if loc[2] >= 0 {
		return text[loc[2]:loc[3]]
	}
	return text[loc[4]:loc[5]]
}

// CodeBlock renders the raw content between two fences. The language is
// sniffed from the first line; an info string on that line is dropped from
// the displayed and copied code.
func CodeBlock(raw string) string {
	lang := SniffLanguage(strings.TrimSpace(raw))
	code := strings.TrimSpace(stripInfoString(raw))

	return fmt.Sprintf(
		`<div class="code-container"><div class="code-header"><span class="code-language">%s</span>`+
			`<button class="code-copy-btn" data-code="%s">Copy Code</button></div>`+
			`<pre class="code-content language-%s">%s</pre></div>`,
		strings.ToUpper(lang),
		EscapeHTML(url.PathEscape(code)),
		lang,
		EscapeHTML(code),
	)
}

func stripInfoString(raw string) string {
	first, rest, found := strings.Cut(raw, "\n")
	if !found {
		return raw
	}
	if infoString.MatchString(strings.TrimSpace(first)) {
		return rest
	}
	return raw
}

// DecodeCopyData reverses the data-code encoding of a copy button.
func DecodeCopyData(data string) (string, error) {
	return url.PathUnescape(data)
}
