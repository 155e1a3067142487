package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/hpungsan/qsyntax/internal/cache"
	"github.com/hpungsan/qsyntax/internal/chat"
	"github.com/hpungsan/qsyntax/internal/db"
	"github.com/hpungsan/qsyntax/internal/llm"
	"github.com/hpungsan/qsyntax/internal/logging"
	"github.com/hpungsan/qsyntax/internal/store"
)

const combinedDoc = `<html><body>hi</body><style>body{color:red}</style><script>alert(1)</script></html>`

// fakeProvider answers every request with reply, or fails with err.
type fakeProvider struct {
	mu    sync.Mutex
	reply string
	err   error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(_ context.Context, _ llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Parts: []string{f.reply}}, nil
}

func (f *fakeProvider) set(reply string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply, f.err = reply, err
}

type testEnv struct {
	h        *Handlers
	router   chi.Router
	provider *fakeProvider
}

func setupTest(t *testing.T) *testEnv {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	provider := &fakeProvider{reply: "Hello!"}
	retrier := llm.NewRetrier(provider, llm.DefaultRetryPolicy,
		llm.WithSleep(func(context.Context, time.Duration) error { return nil }))
	manager := chat.NewManager(store.New(database), retrier, cache.New(cache.DefaultSize, cache.DefaultTTL), chat.Options{})
	if err := manager.Init(context.Background()); err != nil {
		t.Fatalf("manager.Init: %v", err)
	}

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("template sub-FS: %v", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		t.Fatalf("static sub-FS: %v", err)
	}

	h := &Handlers{
		manager:  manager,
		renderer: NewRenderer(templateSub, "test", logging.Discard()),
		logger:   logging.Discard(),
	}
	return &testEnv{
		h:        h,
		router:   newRouter(h, staticSub, "127.0.0.1", 8080),
		provider: provider,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) send(t *testing.T, text string) {
	t.Helper()
	if _, err := e.h.manager.Send(context.Background(), text, nil); err != nil {
		t.Fatalf("Send(%q): %v", text, err)
	}
}

func parseHTML(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse HTML: %v", err)
	}
	return doc
}

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req
}

func formRequest(target string, values url.Values) *http.Request {
	req := httptest.NewRequest("POST", target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// --- Routing & middleware ---

func TestRoot_RedirectsToChat(t *testing.T) {
	e := setupTest(t)
	rec := e.do(httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/chat" {
		t.Errorf("Location = %q, want /chat", loc)
	}
}

func TestSecurityHeaders(t *testing.T) {
	e := setupTest(t)
	rec := e.do(httptest.NewRequest("GET", "/chat", nil))

	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("Content-Security-Policy"); !strings.Contains(got, "default-src 'self'") {
		t.Errorf("Content-Security-Policy = %q", got)
	}
}

func TestStaticAssets(t *testing.T) {
	e := setupTest(t)
	for _, path := range []string{"/static/app.js", "/static/style.css"} {
		rec := e.do(httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
	}
}

// --- Chat page ---

func TestHandleChat_RendersActiveSession(t *testing.T) {
	e := setupTest(t)
	e.provider.set("before ```js\nconsole.log(1)\n``` after", nil)
	e.send(t, "make a button")

	rec := e.do(httptest.NewRequest("GET", "/chat", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	doc := parseHTML(t, rec.Body.String())
	if got := strings.TrimSpace(doc.Find(".user-message .message-text").Text()); got != "make a button" {
		t.Errorf("user message = %q", got)
	}
	if got := doc.Find(".ai-message .code-language").Text(); got != "JAVASCRIPT" {
		t.Errorf("code language = %q, want JAVASCRIPT", got)
	}
	if got := doc.Find(".ai-message pre.code-content").Text(); got != "console.log(1)" {
		t.Errorf("code = %q, want console.log(1)", got)
	}
	if got := strings.TrimSpace(doc.Find("#chat-title").Text()); got != "make a button..." {
		t.Errorf("title = %q, want %q", got, "make a button...")
	}
	if n := doc.Find(".history-item.active").Length(); n != 1 {
		t.Errorf("active history items = %d, want 1", n)
	}
	plain, _ := doc.Find(".ai-message .copy-all-btn").Attr("data-plain")
	if !strings.Contains(plain, "console.log(1)") || strings.Contains(plain, "Copy Code") {
		t.Errorf("copy-all text = %q", plain)
	}
}

func TestHandleChat_EmptySessionShowsNoMessagesPreview(t *testing.T) {
	e := setupTest(t)
	rec := e.do(httptest.NewRequest("GET", "/chat", nil))

	doc := parseHTML(t, rec.Body.String())
	if got := strings.TrimSpace(doc.Find(".history-preview").Text()); got != "No messages yet" {
		t.Errorf("preview = %q, want %q", got, "No messages yet")
	}
	if n := doc.Find(".message").Length(); n != 0 {
		t.Errorf("messages = %d, want 0", n)
	}
}

func TestHandleChat_HTMXReturnsContentOnly(t *testing.T) {
	e := setupTest(t)
	req := httptest.NewRequest("GET", "/chat", nil)
	req.Header.Set("HX-Request", "true")
	rec := e.do(req)

	body := rec.Body.String()
	if strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("htmx response should not include the layout")
	}
	if !strings.Contains(body, "chat-layout") {
		t.Error("htmx response should include the content block")
	}
}

func TestHandleChat_ModelMarkupIsEscaped(t *testing.T) {
	e := setupTest(t)
	e.provider.set(`<script>alert("x")</script><img src=x onerror=alert(1)>`, nil)
	e.send(t, "hi")

	rec := e.do(httptest.NewRequest("GET", "/chat", nil))
	doc := parseHTML(t, rec.Body.String())

	ai := doc.Find(".ai-message .message-body")
	if ai.Find("script, img").Length() != 0 {
		t.Errorf("model markup reached the page: %s", rec.Body.String())
	}
	if !strings.Contains(ai.Text(), `<script>alert("x")</script>`) {
		t.Errorf("expected the markup as text, got %q", ai.Text())
	}
}

// --- POST /chat/send ---

func TestHandleSend_JSON(t *testing.T) {
	e := setupTest(t)
	rec := e.do(jsonRequest("POST", "/chat/send", map[string]string{"text": "build a landing page"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp sendResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Text != "Hello!" {
		t.Errorf("Text = %q, want Hello!", resp.Text)
	}
	if !strings.Contains(resp.HTML, "explanation-content") {
		t.Errorf("HTML = %q", resp.HTML)
	}
	if resp.Session.Title != "build a landing page..." {
		t.Errorf("Session.Title = %q", resp.Session.Title)
	}
	if resp.Cached || resp.Failure != nil {
		t.Errorf("unexpected cached/failure: %+v", resp)
	}
}

func TestHandleSend_CachedSecondTime(t *testing.T) {
	e := setupTest(t)
	e.do(jsonRequest("POST", "/chat/send", map[string]string{"text": "Hello There"}))
	rec := e.do(jsonRequest("POST", "/chat/send", map[string]string{"text": "  hello   there "}))

	var resp sendResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Cached {
		t.Error("expected a cached reply for a casing/whitespace variant")
	}
}

func TestHandleSend_FormRedirects(t *testing.T) {
	e := setupTest(t)
	rec := e.do(formRequest("/chat/send", url.Values{"text": {"hello"}}))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	active, _ := e.h.manager.Active()
	if len(active.Messages) != 2 {
		t.Errorf("messages = %d, want 2", len(active.Messages))
	}
}

func TestHandleSend_HTMXReturnsExchange(t *testing.T) {
	e := setupTest(t)
	req := formRequest("/chat/send", url.Values{"text": {"hello"}})
	req.Header.Set("HX-Request", "true")
	rec := e.do(req)

	doc := parseHTML(t, rec.Body.String())
	if n := doc.Find(".message").Length(); n != 2 {
		t.Errorf("messages = %d, want 2", n)
	}
	if strings.Contains(rec.Body.String(), "<!DOCTYPE html>") {
		t.Error("exchange fragment should not include the layout")
	}
}

func TestHandleSend_EmptyText(t *testing.T) {
	e := setupTest(t)
	rec := e.do(jsonRequest("POST", "/chat/send", map[string]string{"text": "   "}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "INVALID_REQUEST" {
		t.Errorf("code = %q, want INVALID_REQUEST", body.Error.Code)
	}
}

func TestHandleSend_InvalidJSON(t *testing.T) {
	e := setupTest(t)
	req := httptest.NewRequest("POST", "/chat/send", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	rec := e.do(req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleSend_OverloadedFailure(t *testing.T) {
	e := setupTest(t)
	e.provider.set("", &llm.APIError{StatusCode: 503, Message: "The model is overloaded."})
	rec := e.do(jsonRequest("POST", "/chat/send", map[string]string{"text": "hi"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp sendResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Failure == nil || resp.Failure.Code != "OVERLOADED" {
		t.Fatalf("Failure = %+v, want OVERLOADED", resp.Failure)
	}
	if !strings.HasPrefix(resp.Text, "⚠️ Error: ") {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Fallback != chat.OverloadFallback {
		t.Errorf("Fallback = %q", resp.Fallback)
	}
}

// --- Sessions ---

func TestSessions_CreateListLoad(t *testing.T) {
	e := setupTest(t)
	first, _ := e.h.manager.Active()

	rec := e.do(jsonRequest("POST", "/sessions", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", rec.Code)
	}

	rec = e.do(jsonRequest("GET", "/sessions", nil))
	var list struct {
		Sessions []struct {
			ID     string `json:"id"`
			Active bool   `json:"active"`
		} `json:"sessions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(list.Sessions))
	}
	if list.Sessions[0].ID == first.ID || !list.Sessions[0].Active {
		t.Errorf("new session should be first and active: %+v", list.Sessions)
	}

	rec = e.do(formRequest("/sessions/"+first.ID+"/load", nil))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("load status = %d, want 303", rec.Code)
	}
	active, _ := e.h.manager.Active()
	if active.ID != first.ID {
		t.Errorf("active = %s, want %s", active.ID, first.ID)
	}
}

func TestSessions_LoadUnknown(t *testing.T) {
	e := setupTest(t)
	rec := e.do(jsonRequest("POST", "/sessions/nope/load", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSessions_DeleteHTMX(t *testing.T) {
	e := setupTest(t)
	active, _ := e.h.manager.Active()

	req := httptest.NewRequest("DELETE", "/sessions/"+active.ID, nil)
	req.Header.Set("HX-Request", "true")
	rec := e.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("HX-Redirect"); got != "/chat" {
		t.Errorf("HX-Redirect = %q, want /chat", got)
	}
	// Deleting the only session leaves a fresh one active
	next, ok := e.h.manager.Active()
	if !ok || next.ID == active.ID {
		t.Errorf("expected a new active session, got %+v", next)
	}
}

func TestSessions_DeleteUnknown(t *testing.T) {
	e := setupTest(t)
	rec := e.do(jsonRequest("DELETE", "/sessions/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestTranscript(t *testing.T) {
	e := setupTest(t)
	e.send(t, "hello world")
	active, _ := e.h.manager.Active()

	rec := e.do(httptest.NewRequest("GET", "/sessions/"+active.ID+"/transcript", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	doc := parseHTML(t, rec.Body.String())
	if got := doc.Find(".markdown-body h1").Text(); got != "hello world..." {
		t.Errorf("h1 = %q", got)
	}
	if n := doc.Find(".markdown-body h3").Length(); n != 2 {
		t.Errorf("h3 count = %d, want 2", n)
	}

	rec = e.do(httptest.NewRequest("GET", "/sessions/"+active.ID+"/transcript?format=md", nil))
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "# hello world...") {
		t.Errorf("markdown = %q", rec.Body.String())
	}
}

func TestTranscript_UnknownRendersErrorPage(t *testing.T) {
	e := setupTest(t)
	rec := e.do(httptest.NewRequest("GET", "/sessions/nope/transcript", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	doc := parseHTML(t, rec.Body.String())
	if got := doc.Find(".error-page h1").Text(); got != "404" {
		t.Errorf("error heading = %q", got)
	}
}

// --- Separator ---

func TestSeparatorPage(t *testing.T) {
	e := setupTest(t)
	rec := e.do(httptest.NewRequest("GET", "/separator", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	doc := parseHTML(t, rec.Body.String())
	if doc.Find("form.separator-form textarea[name=code]").Length() != 1 {
		t.Error("expected the code textarea")
	}
	if doc.Find(".fragment").Length() != 0 {
		t.Error("no fragments expected before separating")
	}
}

func TestHandleSeparate_Form(t *testing.T) {
	e := setupTest(t)
	rec := e.do(formRequest("/separator", url.Values{"code": {combinedDoc}}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	doc := parseHTML(t, rec.Body.String())
	codes := doc.Find(".fragment pre code")
	if codes.Length() != 3 {
		t.Fatalf("fragments = %d, want 3", codes.Length())
	}
	want := []string{"<html><body>hi</body></html>", "body{color:red}", "alert(1)"}
	for i, w := range want {
		if got := codes.Eq(i).Text(); got != w {
			t.Errorf("fragment %d = %q, want %q", i, got, w)
		}
	}
}

func TestHandleSeparate_EmptyInput(t *testing.T) {
	e := setupTest(t)
	rec := e.do(formRequest("/separator", url.Values{"code": {""}}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	doc := parseHTML(t, rec.Body.String())
	if doc.Find(".separator-empty").Length() != 1 {
		t.Error("expected the empty-result notice")
	}
}

func TestHandleSeparate_JSON(t *testing.T) {
	e := setupTest(t)
	rec := e.do(jsonRequest("POST", "/separator", map[string]string{"code": combinedDoc}))

	var parts struct {
		HTML string `json:"html"`
		CSS  string `json:"css"`
		JS   string `json:"js"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&parts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if parts.CSS != "body{color:red}" || parts.JS != "alert(1)" {
		t.Errorf("parts = %+v", parts)
	}
}

func multipartRequest(t *testing.T, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile("file", name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		_, _ = fw.Write([]byte(content))
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart close: %v", err)
	}
	req := httptest.NewRequest("POST", "/separator", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandleSeparate_Upload(t *testing.T) {
	e := setupTest(t)
	rec := e.do(multipartRequest(t, map[string]string{"page.html": combinedDoc}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	doc := parseHTML(t, rec.Body.String())
	if got := doc.Find(".separator-source").Text(); got != "From page.html" {
		t.Errorf("source = %q", got)
	}
	if got := doc.Find(".fragment pre code").Eq(1).Text(); got != "body{color:red}" {
		t.Errorf("css = %q", got)
	}
}

func TestHandleSeparate_UploadRejectsSeveralFiles(t *testing.T) {
	e := setupTest(t)
	req := multipartRequest(t, map[string]string{"a.html": "<p>a</p>", "b.html": "<p>b</p>"})
	req.Header.Set("Accept", "application/json")
	rec := e.do(req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandlePreview(t *testing.T) {
	e := setupTest(t)
	rec := e.do(formRequest("/separator/preview", url.Values{"code": {combinedDoc}}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Security-Policy"); got != "sandbox allow-scripts" {
		t.Errorf("Content-Security-Policy = %q", got)
	}
	want := "<html><body>hi</body></html>\n<style>body{color:red}</style>\n<script>alert(1)</script>"
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
}

func TestHandlePreview_SeparateFields(t *testing.T) {
	e := setupTest(t)
	rec := e.do(formRequest("/separator/preview", url.Values{
		"html": {"<p>x</p>"},
		"css":  {"p{}"},
		"js":   {"go()"},
	}))

	want := "<p>x</p>\n<style>p{}</style>\n<script>go()</script>"
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
}

// --- WebSocket ---

func dialWS(t *testing.T, e *testEnv) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(e.router)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev wsEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	return ev
}

func TestWebSocket_Response(t *testing.T) {
	e := setupTest(t)
	e.provider.set("Here is **bold**", nil)
	conn := dialWS(t, e)

	if err := conn.WriteJSON(wsRequest{Type: "message", Content: "make a navbar"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	ev := readEvent(t, conn)

	if ev.Type != "response" {
		t.Fatalf("type = %q, want response", ev.Type)
	}
	if !strings.Contains(ev.HTML, "bold</strong>") {
		t.Errorf("html = %q", ev.HTML)
	}
	if ev.Title != "make a navbar..." {
		t.Errorf("title = %q", ev.Title)
	}
	if ev.Plain != "Here is bold" {
		t.Errorf("plain = %q", ev.Plain)
	}
}

func TestWebSocket_OverloadProgressAndFallback(t *testing.T) {
	e := setupTest(t)
	e.provider.set("", &llm.APIError{StatusCode: 503, Message: "The model is overloaded."})
	conn := dialWS(t, e)

	if err := conn.WriteJSON(wsRequest{Type: "message", Content: "hi"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	progress := readEvent(t, conn)
	if progress.Type != "progress" || progress.Attempt != 1 || progress.MaxAttempts != 2 {
		t.Errorf("progress = %+v", progress)
	}

	failed := readEvent(t, conn)
	if failed.Type != "error" || failed.Code != "OVERLOADED" {
		t.Errorf("failure = %+v", failed)
	}
	if !strings.Contains(failed.Content, "overloaded") {
		t.Errorf("failure content = %q", failed.Content)
	}

	fallback := readEvent(t, conn)
	if fallback.Type != "fallback" || fallback.Content != chat.OverloadFallback {
		t.Errorf("fallback = %+v", fallback)
	}
}

func TestWebSocket_InvalidMessages(t *testing.T) {
	e := setupTest(t)
	conn := dialWS(t, e)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ev := readEvent(t, conn); ev.Type != "error" || ev.Content != "invalid message format" {
		t.Errorf("event = %+v", ev)
	}

	if err := conn.WriteJSON(wsRequest{Type: "shout", Content: "x"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ev := readEvent(t, conn); ev.Type != "error" || !strings.Contains(ev.Content, "unknown message type") {
		t.Errorf("event = %+v", ev)
	}

	if err := conn.WriteJSON(wsRequest{Type: "message", Content: "  "}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ev := readEvent(t, conn); ev.Type != "error" || ev.Code != "INVALID_REQUEST" {
		t.Errorf("event = %+v", ev)
	}
}

// --- helpers ---

func TestFormatChars(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-1234, "-1,234"},
	}
	for _, tt := range tests {
		if got := formatChars(tt.in); got != tt.want {
			t.Errorf("formatChars(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderMarkdown(t *testing.T) {
	got := string(renderMarkdown("# Title\n\n<script>x</script>\n\n**b**"))
	if !strings.Contains(got, "<h1>Title</h1>") || !strings.Contains(got, "<strong>b</strong>") {
		t.Errorf("renderMarkdown = %q", got)
	}
	if strings.Contains(got, "<script>") {
		t.Errorf("raw HTML should be omitted: %q", got)
	}
}
