package render

import (
	"regexp"
	"strings"
)

// Rule is one named rewrite step of the text formatter.
type Rule interface {
	Name() string
	Apply(s string) string
}

type regexRule struct {
	name string
	re   *regexp.Regexp
	repl string
}

func (r regexRule) Name() string          { return r.name }
func (r regexRule) Apply(s string) string { return r.re.ReplaceAllString(s, r.repl) }

type funcRule struct {
	name string
	fn   func(string) string
}

func (r funcRule) Name() string          { return r.name }
func (r funcRule) Apply(s string) string { return r.fn(s) }

// Pipeline applies rules in order.
type Pipeline []Rule

// Apply runs every rule over s.
func (p Pipeline) Apply(s string) string {
	for _, r := range p {
		s = r.Apply(s)
	}
	return s
}

// Rule returns the rule called name, or nil.
func (p Pipeline) Rule(name string) Rule {
	for _, r := range p {
		if r.Name() == name {
			return r
		}
	}
	return nil
}

const (
	bulletItemOpen   = "<li class='list-item'>"
	numberedItemOpen = "<li class='numbered-item'>"
)

// DefaultPipeline is the formatter used by Text. Inline spans are rewritten
// before list and paragraph wrapping, so markers inside list text are
// already converted when items are grouped.
var DefaultPipeline = Pipeline{
	funcRule{"escape", escapeText},
	regexRule{"h3", regexp.MustCompile(`(?m)^### (.*)$`), "<h3 class='section-header'>${1}</h3>"},
	regexRule{"h2", regexp.MustCompile(`(?m)^## (.*)$`), "<h2 class='main-header'>${1}</h2>"},
	regexRule{"h1", regexp.MustCompile(`(?m)^# (.*)$`), "<h1 class='title-header'>${1}</h1>"},
	regexRule{"bullet-item", regexp.MustCompile(`(?m)^- (.*)$`), bulletItemOpen + "${1}</li>"},
	regexRule{"numbered-item", regexp.MustCompile(`(?m)^\d+\. (.*)$`), numberedItemOpen + "${1}</li>"},
	regexRule{"bold", regexp.MustCompile(`\*\*(.*?)\*\*`), "<strong class='emphasis'>${1}</strong>"},
	regexRule{"italic", regexp.MustCompile(`\*(.*?)\*`), "<em class='highlight'>${1}</em>"},
	regexRule{"inline-code", regexp.MustCompile("`(.*?)`"), "<code class='inline-code'>${1}</code>"},
	funcRule{"lists", wrapLists},
	funcRule{"paragraphs", wrapParagraphs},
}

// wrapLists groups runs of consecutive list-item lines into one container.
func wrapLists(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))

	var run []string
	var kind string
	flush := func() {
		if len(run) == 0 {
			return
		}
		body := strings.Join(run, "\n")
		if kind == bulletItemOpen {
			out = append(out, "<ul class='bullet-list'>"+body+"</ul>")
		} else {
			out = append(out, "<ol class='numbered-list'>"+body+"</ol>")
		}
		run, kind = nil, ""
	}

	for _, line := range lines {
		var k string
		switch {
		case strings.HasPrefix(line, bulletItemOpen):
			k = bulletItemOpen
		case strings.HasPrefix(line, numberedItemOpen):
			k = numberedItemOpen
		}
		if k == "" || k != kind {
			flush()
		}
		if k == "" {
			out = append(out, line)
			continue
		}
		kind = k
		run = append(run, line)
	}
	flush()

	return strings.Join(out, "\n")
}

var blankLines = regexp.MustCompile(`\n{2,}`)

// wrapParagraphs splits on blank lines and wraps each non-blank segment.
func wrapParagraphs(s string) string {
	var b strings.Builder
	for _, p := range blankLines.Split(s, -1) {
		if strings.TrimSpace(p) == "" {
			continue
		}
		b.WriteString("<p class='content-paragraph'>")
		b.WriteString(p)
		b.WriteString("</p>")
	}
	return b.String()
}
