package render

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// policy allows exactly the markup Answer emits.
var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("div", "span", "button", "pre", "code", "p",
		"h1", "h2", "h3", "ul", "ol", "li", "strong", "em")
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("data-code").OnElements("button")
	return p
}

// Sanitize strips anything Answer would not have produced.
func Sanitize(html string) string {
	return policy.Sanitize(html)
}

// SafeAnswer renders and sanitizes model output for insertion into a page.
func SafeAnswer(text string) string {
	return Sanitize(Answer(text))
}

// PlainText returns the text content of rendered HTML, without the copy
// button labels. Backs "copy all" actions.
func PlainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("button.code-copy-btn, span.code-language").Remove()
	return strings.TrimSpace(doc.Text()), nil
}

// CodeBlocks returns the raw code of every copy button in rendered HTML,
// in document order. Backs "copy code" actions.
func CodeBlocks(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	var blocks []string
	var decodeErr error
	doc.Find("button.code-copy-btn").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		code, err := DecodeCopyData(s.AttrOr("data-code", ""))
		if err != nil {
			decodeErr = err
			return false
		}
		blocks = append(blocks, code)
		return true
	})
	return blocks, decodeErr
}
