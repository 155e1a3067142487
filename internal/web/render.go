package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/yuin/goldmark"

	"github.com/hpungsan/qsyntax/internal/errors"
	"github.com/hpungsan/qsyntax/internal/render"
	"github.com/hpungsan/qsyntax/internal/separator"
	"github.com/hpungsan/qsyntax/internal/session"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "chat", "separator"
}

// MessageView is one rendered chat message.
type MessageView struct {
	IsUser    bool
	Text      string
	HTML      template.HTML // model messages only
	Plain     string        // text for "copy all"
	Timestamp int64
}

// ChatPageData is the template data for the chat page.
type ChatPageData struct {
	PageData
	Sessions        []session.Summary
	ActiveID        string
	ActiveTitle     string
	Messages        []MessageView
	FallbackDelayMS int64
}

// TranscriptPageData is the template data for a session transcript.
type TranscriptPageData struct {
	PageData
	ID           string
	RenderedHTML template.HTML
}

// SeparatorPageData is the template data for the separator page.
type SeparatorPageData struct {
	PageData
	Code      string
	FileName  string
	Parts     separator.Parts
	Fragments []Fragment
	HasResult bool
}

// Fragment is one extracted part shown on the separator page.
type Fragment struct {
	Name string
	Code string
}

// fragments lists parts in display order.
func fragments(p separator.Parts) []Fragment {
	return []Fragment{
		{Name: "HTML", Code: p.HTML},
		{Name: "CSS", Code: p.CSS},
		{Name: "JavaScript", Code: p.JS},
	}
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	logger    *log.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string, logger *log.Logger) *Renderer {
	funcMap := template.FuncMap{
		"formatTime":  formatTime,
		"formatChars": formatChars,
		"countChars":  session.CountChars,
	}

	// Parse layout as the base template
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"chat":       "chat.html",
		"transcript": "transcript.html",
		"separator":  "separator.html",
		"error":      "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		logger:    logger,
	}
}

// page returns PageData for a page titled title under nav.
func (r *Renderer) page(title, nav string) PageData {
	return PageData{Title: title, Version: r.version, Nav: nav}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
// For htmx requests, only the "content" block is rendered to avoid duplicating the layout.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	block := "layout"
	if isHTMX(req) {
		block = "content"
	}
	r.renderBlock(w, status, name, block, data)
}

// renderBlock renders a specific named block from a page template.
// Used for partial swaps that target a sub-section of the page.
func (r *Renderer) renderBlock(w http.ResponseWriter, status int, page, block string, data any) {
	t, ok := r.templates[page]
	if !ok {
		r.logger.Error("template not found", "page", page)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		r.logger.Error("template execution failed", "page", page, "block", block, "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	qErr, ok := errors.As(err)
	if !ok {
		qErr = errors.NewInternal(err)
	}
	if qErr.Status >= 500 {
		r.logger.Error("request failed", "path", req.URL.Path, "code", qErr.Code, "err", err)
	}

	status := qErr.Status
	message := qErr.Message

	// htmx request: return HTML fragment
	if isHTMX(req) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	if wantsJSON(req) {
		renderJSON(w, status, map[string]any{
			"error": map[string]any{
				"code":    string(qErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	// Full error page
	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData:   r.page(fmt.Sprintf("Error %d", status), ""),
		StatusCode: status,
		Message:    message,
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts markdown text to HTML using goldmark.
// Raw HTML in the source is omitted by goldmark's default renderer.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// messageViews renders a session's messages for display. Model messages
// go through the markdown-subset renderer and the sanitizer; user messages
// stay plain text and are escaped by the template.
func messageViews(msgs []session.Message) []MessageView {
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, messageView(m))
	}
	return views
}

func messageView(m session.Message) MessageView {
	v := MessageView{IsUser: m.IsUser, Text: m.Text, Timestamp: m.Timestamp}
	if m.IsUser {
		v.Plain = m.Text
		return v
	}
	html := render.SafeAnswer(m.Text)
	v.HTML = template.HTML(html)
	plain, err := render.PlainText(html)
	if err != nil {
		plain = m.Text
	}
	v.Plain = plain
	return v
}

// isHTMX reports whether req came from an htmx-style partial request.
func isHTMX(req *http.Request) bool {
	return req != nil && req.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the client asked for JSON.
func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// formatTime formats a unix millisecond timestamp as "2006-01-02 15:04" UTC.
func formatTime(unixMilli int64) string {
	return time.UnixMilli(unixMilli).UTC().Format("2006-01-02 15:04")
}

// formatChars formats an integer with comma thousands separators.
func formatChars(n int) string {
	if n < 0 {
		return "-" + formatChars(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}
