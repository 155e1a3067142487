// Package separator splits a combined HTML document into its markup,
// stylesheet and script parts.
//
// Scanning is regex based and best effort: nested or malformed markup,
// comments containing tag-like text and tags inside string literals are
// not handled.
package separator

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Parts holds the three fragments of a combined document.
type Parts struct {
	HTML string `json:"html"`
	CSS  string `json:"css"`
	JS   string `json:"js"`
}

// Empty reports whether no fragment has content.
func (p Parts) Empty() bool {
	return p.HTML == "" && p.CSS == "" && p.JS == ""
}

var (
	styleRegion  = regexp.MustCompile(`(?is)<style.*?</style>`)
	scriptRegion = regexp.MustCompile(`(?is)<script.*?</script>`)

	styleBody      = regexp.MustCompile(`(?is)<style[^>]*>(.*?)</style>`)
	stylesheetLink = regexp.MustCompile(`(?i)<link\b[^>]*rel=["']?stylesheet["']?[^>]*>`)
	scriptTag      = regexp.MustCompile(`(?is)<script\b([^>]*)>(.*?)</script>`)

	hrefAttr = regexp.MustCompile(`(?i)href\s*=\s*("([^"]*)"|'([^']*)'|([^\s>]+))`)
	srcAttr  = regexp.MustCompile(`(?i)src\s*=\s*("([^"]*)"|'([^']*)'|([^\s>]+))`)
)

// Extract splits raw into its parts. It never fails; empty input yields
// empty parts.
func Extract(raw string) Parts {
	if raw == "" {
		return Parts{}
	}

	html := styleRegion.ReplaceAllString(raw, "")
	html = scriptRegion.ReplaceAllString(html, "")

	return Parts{
		HTML: strings.TrimSpace(html),
		CSS:  extractCSS(raw),
		JS:   extractJS(raw),
	}
}

func extractCSS(raw string) string {
	var blocks []string
	for _, m := range styleBody.FindAllStringSubmatch(raw, -1) {
		if block := strings.TrimSpace(m[1]); block != "" {
			blocks = append(blocks, block)
		}
	}
	for _, tag := range stylesheetLink.FindAllString(raw, -1) {
		if href := attrValue(hrefAttr, tag); href != "" {
			blocks = append(blocks, fmt.Sprintf("/* External stylesheet: %s */", href))
		}
	}
	return strings.Join(blocks, "\n\n")
}

func extractJS(raw string) string {
	var blocks []string
	for _, m := range scriptTag.FindAllStringSubmatch(raw, -1) {
		if src := attrValue(srcAttr, m[1]); src != "" {
			blocks = append(blocks, fmt.Sprintf("// External script: %s", src))
		}
		if body := strings.TrimSpace(m[2]); body != "" {
			blocks = append(blocks, body)
		}
	}
	return strings.Join(blocks, "\n\n")
}

// attrValue returns the first non-empty of the double-quoted, single-quoted
// or bare value groups.
func attrValue(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	for _, v := range m[2:] {
		if v != "" {
			return v
		}
	}
	return ""
}

// PreviewDocument recombines parts into a document that runs them.
func PreviewDocument(p Parts) string {
	return fmt.Sprintf("%s\n<style>%s</style>\n<script>%s</script>", p.HTML, p.CSS, p.JS)
}

// MaxFileSize bounds files read by ExtractFile.
const MaxFileSize = 5 << 20

// ExtractFile reads a single file and extracts it.
func ExtractFile(path string) (Parts, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Parts{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if info.Size() > MaxFileSize {
		return Parts{}, fmt.Errorf("%s is larger than %d bytes", path, MaxFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Parts{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return Extract(string(data)), nil
}

// Fragment returns the named part: html, css or js.
func (p Parts) Fragment(name string) (string, error) {
	switch strings.ToLower(name) {
	case "html":
		return p.HTML, nil
	case "css":
		return p.CSS, nil
	case "js", "javascript":
		return p.JS, nil
	default:
		return "", fmt.Errorf("unknown fragment %q: must be html, css or js", name)
	}
}
