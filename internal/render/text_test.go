package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText_EmptyInput(t *testing.T) {
	assert.Equal(t, "", Text(""))
	assert.Equal(t, "", Text(" \n\t\n "))
}

func TestText_Wrapper(t *testing.T) {
	out := Text("hello")
	assert.Equal(t,
		`<div class="explanation-content professional-response"><p class='content-paragraph'>hello</p></div>`,
		out)
}

func TestText_Structure(t *testing.T) {
	in := "# Title\n\n## Part\n\n### Step\n\n- a\n- **b**\n\n1. one\n2. `two`\n\nDone *now*."
	doc := parse(t, Text(in))

	assert.Equal(t, "Title", doc.Find("h1.title-header").Text())
	assert.Equal(t, "Part", doc.Find("h2.main-header").Text())
	assert.Equal(t, "Step", doc.Find("h3.section-header").Text())

	require.Equal(t, 1, doc.Find("ul.bullet-list").Length())
	assert.Equal(t, 2, doc.Find("ul.bullet-list li.list-item").Length())
	assert.Equal(t, "b", doc.Find("li.list-item strong.emphasis").Text())

	require.Equal(t, 1, doc.Find("ol.numbered-list").Length())
	assert.Equal(t, 2, doc.Find("ol.numbered-list li.numbered-item").Length())
	assert.Equal(t, "two", doc.Find("li.numbered-item code.inline-code").Text())

	assert.Equal(t, "now", doc.Find("em.highlight").Text())
}

func TestText_EscapesButKeepsQuotes(t *testing.T) {
	out := Text(`a < b & "c" > 'd'`)
	assert.Contains(t, out, `a &lt; b &amp; "c" &gt; 'd'`)
}

func TestText_CRLFLineEndings(t *testing.T) {
	doc := parse(t, Text("## Title\r\n- item\r\n- next\r\n\r\nbody\r\n"))

	assert.Equal(t, "Title", doc.Find("h2.main-header").Text())
	items := doc.Find("ul.bullet-list li.list-item")
	require.Equal(t, 2, items.Length())
	assert.Equal(t, "item", items.First().Text())
	assert.Equal(t, "body", strings.TrimSpace(doc.Find("p.content-paragraph").Last().Text()))
	assert.NotContains(t, Text("## Title\r\n"), "\r")
}

func TestRules_Individually(t *testing.T) {
	tests := []struct {
		rule string
		in   string
		want string
	}{
		{"escape", "<b>&</b>", "&lt;b&gt;&amp;&lt;/b&gt;"},
		{"escape", "a\r\nb\rc", "a\nb\nc"},
		{"h3", "### Setup", "<h3 class='section-header'>Setup</h3>"},
		{"h2", "## Setup", "<h2 class='main-header'>Setup</h2>"},
		{"h1", "# Setup", "<h1 class='title-header'>Setup</h1>"},
		{"h1", "#Setup", "#Setup"},
		{"bullet-item", "- item", "<li class='list-item'>item</li>"},
		{"numbered-item", "12. item", "<li class='numbered-item'>item</li>"},
		{"bold", "a **b** c", "a <strong class='emphasis'>b</strong> c"},
		{"italic", "a *b* c", "a <em class='highlight'>b</em> c"},
		{"inline-code", "run `go` now", "run <code class='inline-code'>go</code> now"},
		{"paragraphs", "a\n\n\nb\n\n  \n\nc", "<p class='content-paragraph'>a</p><p class='content-paragraph'>b</p><p class='content-paragraph'>c</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			r := DefaultPipeline.Rule(tt.rule)
			require.NotNil(t, r, "rule %q missing", tt.rule)
			assert.Equal(t, tt.want, r.Apply(tt.in))
		})
	}
}

func TestRules_ListsGroupConsecutiveItems(t *testing.T) {
	in := "<li class='list-item'>a</li>\n<li class='list-item'>b</li>\ntext\n<li class='numbered-item'>c</li>\n<li class='list-item'>d</li>"
	want := "<ul class='bullet-list'><li class='list-item'>a</li>\n<li class='list-item'>b</li></ul>\n" +
		"text\n" +
		"<ol class='numbered-list'><li class='numbered-item'>c</li></ol>\n" +
		"<ul class='bullet-list'><li class='list-item'>d</li></ul>"

	assert.Equal(t, want, DefaultPipeline.Rule("lists").Apply(in))
}

func TestPipeline_Order(t *testing.T) {
	names := make([]string, len(DefaultPipeline))
	for i, r := range DefaultPipeline {
		names[i] = r.Name()
	}
	assert.Equal(t, []string{
		"escape", "h3", "h2", "h1", "bullet-item", "numbered-item",
		"bold", "italic", "inline-code", "lists", "paragraphs",
	}, names)
}
