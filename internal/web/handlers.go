package web

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/hpungsan/qsyntax/internal/chat"
	"github.com/hpungsan/qsyntax/internal/errors"
	"github.com/hpungsan/qsyntax/internal/separator"
	"github.com/hpungsan/qsyntax/internal/session"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	manager       *chat.Manager
	renderer      *Renderer
	logger        *log.Logger
	fallbackDelay time.Duration
}

// sendResponse is the JSON shape of a chat reply.
type sendResponse struct {
	SessionID string     `json:"session_id"`
	Text      string     `json:"text"`
	HTML      string     `json:"html"`
	Cached    bool       `json:"cached"`
	Fallback  string     `json:"fallback,omitempty"`
	Failure   *failure   `json:"failure,omitempty"`
	Session   sessionRef `json:"session"`
}

type failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type sessionRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// HandleChat handles GET /chat: the active session and the history panel.
func (h *Handlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	h.renderer.renderPage(w, r, "chat", h.chatPageData())
}

func (h *Handlers) chatPageData() ChatPageData {
	data := ChatPageData{
		PageData:        h.renderer.page("Chat", "chat"),
		Sessions:        h.manager.Sessions(),
		FallbackDelayMS: h.fallbackDelay.Milliseconds(),
	}
	if active, ok := h.manager.Active(); ok {
		data.ActiveID = active.ID
		data.ActiveTitle = active.Title
		data.Messages = messageViews(active.Messages)
	}
	return data
}

// HandleSend handles POST /chat/send: one message through the chat pipeline.
// Accepts a form field "text" or a JSON body {"text": "..."}.
func (h *Handlers) HandleSend(w http.ResponseWriter, r *http.Request) {
	text, err := readText(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	reply, err := h.manager.Send(r.Context(), text, nil)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		resp := sendResponse{
			SessionID: reply.SessionID,
			Text:      reply.Text,
			HTML:      string(messageView(session.Message{Text: reply.Text}).HTML),
			Cached:    reply.Cached,
			Fallback:  reply.Fallback,
			Session:   sessionRef{ID: reply.SessionID},
		}
		if reply.Failure != nil {
			resp.Failure = &failure{Code: string(reply.Failure.Code), Message: reply.Failure.Message}
		}
		if s, err := h.manager.Session(reply.SessionID); err == nil {
			resp.Session.Title = s.Title
		}
		renderJSON(w, http.StatusOK, resp)
		return
	}

	// htmx request: return only the new exchange
	if isHTMX(r) {
		now := time.Now().UnixMilli()
		views := []MessageView{
			messageView(session.Message{Text: strings.TrimSpace(text), IsUser: true, Timestamp: now}),
			messageView(session.Message{Text: reply.Text, Timestamp: now}),
		}
		if reply.Fallback != "" {
			views = append(views, messageView(session.Message{Text: reply.Fallback, Timestamp: now}))
		}
		h.renderer.renderBlock(w, http.StatusOK, "chat", "exchange", views)
		return
	}

	http.Redirect(w, r, "/chat", http.StatusSeeOther)
}

// HandleListSessions handles GET /sessions: session summaries as JSON.
func (h *Handlers) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, map[string]any{
		"sessions": h.manager.Sessions(),
	})
}

// HandleNewSession handles POST /sessions: start a new session.
func (h *Handlers) HandleNewSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Create(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.sessionChanged(w, r, http.StatusCreated, s)
}

// HandleLoadSession handles POST /sessions/{id}/load: switch the active session.
func (h *Handlers) HandleLoadSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("session ID is required"))
		return
	}

	s, err := h.manager.Load(r.Context(), id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.sessionChanged(w, r, http.StatusOK, s)
}

// sessionChanged answers a request that switched the active session.
func (h *Handlers) sessionChanged(w http.ResponseWriter, r *http.Request, status int, s *session.Session) {
	// htmx request: redirect via HX-Redirect header
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/chat")
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, status, map[string]any{
			"session": s.ToSummary(s.ID),
		})
		return
	}

	http.Redirect(w, r, "/chat", http.StatusSeeOther)
}

// HandleDeleteSession handles DELETE /sessions/{id}.
func (h *Handlers) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("session ID is required"))
		return
	}

	if err := h.manager.Delete(r.Context(), id); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/chat")
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		active, _ := h.manager.Active()
		resp := map[string]any{"deleted": true, "id": id}
		if active != nil {
			resp["active_id"] = active.ID
		}
		renderJSON(w, http.StatusOK, resp)
		return
	}

	http.Redirect(w, r, "/chat", http.StatusSeeOther)
}

// HandleTranscript handles GET /sessions/{id}/transcript.
// ?format=md returns the raw markdown.
func (h *Handlers) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Session(chi.URLParam(r, "id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	md := s.Transcript()
	if r.URL.Query().Get("format") == "md" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+s.ID+`.md"`)
		_, _ = io.WriteString(w, md)
		return
	}

	h.renderer.renderPage(w, r, "transcript", TranscriptPageData{
		PageData:     h.renderer.page(s.Title, "chat"),
		ID:           s.ID,
		RenderedHTML: renderMarkdown(md),
	})
}

// HandleSeparatorPage handles GET /separator.
func (h *Handlers) HandleSeparatorPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.renderPage(w, r, "separator", SeparatorPageData{
		PageData: h.renderer.page("Separator", "separator"),
	})
}

// HandleSeparate handles POST /separator: split pasted or uploaded code.
func (h *Handlers) HandleSeparate(w http.ResponseWriter, r *http.Request) {
	code, name, err := readCode(w, r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	parts := separator.Extract(code)

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, parts)
		return
	}

	h.renderer.renderPage(w, r, "separator", SeparatorPageData{
		PageData:  h.renderer.page("Separator", "separator"),
		Code:      code,
		FileName:  name,
		Parts:     parts,
		Fragments: fragments(parts),
		HasResult: true,
	})
}

// HandlePreview handles POST /separator/preview. The recombined document
// runs in a sandbox without access to this origin.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	code, _, err := readCode(w, r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// Fragments edited separately on the page arrive as html/css/js fields
	parts := separator.Extract(code)
	if code == "" {
		parts = separator.Parts{HTML: r.FormValue("html"), CSS: r.FormValue("css"), JS: r.FormValue("js")}
	}

	w.Header().Set("Content-Security-Policy", "sandbox allow-scripts")
	w.Header().Set("X-Frame-Options", "SAMEORIGIN")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, separator.PreviewDocument(parts))
}

// readText reads the chat message from a JSON body or form.
func readText(r *http.Request) (string, error) {
	if isJSONBody(r) {
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, separator.MaxFileSize)).Decode(&body); err != nil {
			return "", errors.NewInvalidRequest("invalid JSON body")
		}
		return body.Text, nil
	}
	if err := r.ParseForm(); err != nil {
		return "", errors.NewInvalidRequest("invalid form data")
	}
	return r.FormValue("text"), nil
}

// readCode reads separator input: a single uploaded file, a form field
// "code" or a JSON body {"code": "..."}. Returns the code and the
// uploaded file name, if any.
func readCode(w http.ResponseWriter, r *http.Request) (string, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, separator.MaxFileSize+(1<<20))

	if isJSONBody(r) {
		var body struct {
			Code string `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return "", "", errors.NewInvalidRequest("invalid JSON body")
		}
		return body.Code, "", nil
	}

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "multipart/form-data" {
		if err := r.ParseForm(); err != nil {
			return "", "", errors.NewInvalidRequest("invalid form data")
		}
		return r.FormValue("code"), "", nil
	}

	if err := r.ParseMultipartForm(separator.MaxFileSize); err != nil {
		return "", "", errors.NewInvalidRequest("invalid upload: " + err.Error())
	}
	files := r.MultipartForm.File["file"]
	switch {
	case len(files) > 1:
		return "", "", errors.NewInvalidRequest("upload a single file")
	case len(files) == 0 || files[0].Size == 0:
		return r.FormValue("code"), "", nil
	}

	header := files[0]
	if header.Size > separator.MaxFileSize {
		return "", "", errors.NewInvalidRequest("file is larger than 5 MB")
	}
	f, err := header.Open()
	if err != nil {
		return "", "", errors.NewInternal(err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, separator.MaxFileSize))
	if err != nil {
		return "", "", errors.NewInternal(err)
	}
	return string(data), header.Filename, nil
}

func isJSONBody(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/json"
}
