package render

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestAnswer_FenceFreeMatchesLoopPath(t *testing.T) {
	inputs := []string{
		"",
		"   \n\n  ",
		"plain sentence",
		"# Heading\n\nSome **bold** and *em* and `code`.",
		"- one\n- two\n\n1. first\n2. second",
		"a < b && c > d",
		"`` not a fence ``",
		"~~ also not ~~",
	}
	for _, in := range inputs {
		assert.Equal(t, renderFenced(in, nil), Answer(in), "input %q", in)
	}
}

func TestAnswer_TextCodeText(t *testing.T) {
	out := Answer("before ```js\nconsole.log(1)\n``` after")
	doc := parse(t, out)

	paras := doc.Find("p.content-paragraph")
	require.Equal(t, 2, paras.Length())
	assert.Equal(t, "before", strings.TrimSpace(paras.Eq(0).Text()))
	assert.Equal(t, "after", strings.TrimSpace(paras.Eq(1).Text()))

	assert.Equal(t, "JAVASCRIPT", doc.Find("span.code-language").Text())
	assert.Equal(t, "console.log(1)", doc.Find("pre.code-content.language-javascript").Text())

	before := strings.Index(out, "before")
	code := strings.Index(out, "code-container")
	after := strings.Index(out, "after")
	assert.True(t, before < code && code < after, "blocks out of order: %s", out)
}

func TestAnswer_CopyDataRoundTrips(t *testing.T) {
	code := "const s = \"<a href='x'>&</a>\";\nlet p = 50%;"
	doc := parse(t, Answer("```javascript\n"+code+"\n```"))

	data, ok := doc.Find("button.code-copy-btn").Attr("data-code")
	require.True(t, ok)
	decoded, err := DecodeCopyData(data)
	require.NoError(t, err)
	assert.Equal(t, code, decoded)

	assert.Equal(t, code, doc.Find("pre").Text())
	assert.Equal(t, "Copy Code", doc.Find("button").Text())
}

func TestAnswer_EscapesCode(t *testing.T) {
	out := Answer("```html\n<div class=\"a\">x</div>\n```")

	assert.Contains(t, out, "&lt;div class=&quot;a&quot;&gt;x&lt;/div&gt;")
	assert.NotContains(t, out, "<div class=\"a\">")
	assert.Contains(t, out, `<span class="code-language">HTML</span>`)
}

func TestAnswer_TildeFence(t *testing.T) {
	doc := parse(t, Answer("~~~sql\nSELECT 1;\n~~~"))

	assert.Equal(t, "SQL", doc.Find("span.code-language").Text())
	assert.Equal(t, "SELECT 1;", doc.Find("pre.language-sql").Text())
}

func TestAnswer_MismatchedFencesAreText(t *testing.T) {
	out := Answer("```js\nx = 1\n~~~")
	assert.NotContains(t, out, "code-container")
	assert.Contains(t, out, "content-paragraph")
}

func TestAnswer_MultipleBlocks(t *testing.T) {
	out := Answer("```css\na{}\n```\nthen\n```python\nprint(1)\n```")
	doc := parse(t, out)

	langs := doc.Find("span.code-language").Map(func(_ int, s *goquery.Selection) string {
		return s.Text()
	})
	assert.Equal(t, []string{"CSS", "PYTHON"}, langs)
	assert.Equal(t, "then", strings.TrimSpace(doc.Find("p.content-paragraph").Text()))
}

func TestAnswer_NoInfoString(t *testing.T) {
	doc := parse(t, Answer("```\nfunction add(a, b) { return a + b }\n```"))

	assert.Equal(t, "JAVASCRIPT", doc.Find("span.code-language").Text())
	assert.Equal(t, "function add(a, b) { return a + b }", doc.Find("pre").Text())
}

func TestAnswer_SingleLineFenceKeepsContent(t *testing.T) {
	doc := parse(t, Answer("```x = 1```"))

	assert.Equal(t, "GENERIC", doc.Find("span.code-language").Text())
	assert.Equal(t, "x = 1", doc.Find("pre").Text())
}
