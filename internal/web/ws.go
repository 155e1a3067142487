package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hpungsan/qsyntax/internal/errors"
	"github.com/hpungsan/qsyntax/internal/llm"
	"github.com/hpungsan/qsyntax/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// wsRequest is the incoming WebSocket message format.
type wsRequest struct {
	Type    string `json:"type"` // "message"
	Content string `json:"content"`
}

// wsEvent is the outgoing WebSocket message format.
type wsEvent struct {
	Type        string `json:"type"` // "progress", "response", "fallback" or "error"
	SessionID   string `json:"session_id,omitempty"`
	Title       string `json:"title,omitempty"`
	Content     string `json:"content,omitempty"`
	HTML        string `json:"html,omitempty"`
	Plain       string `json:"plain,omitempty"`
	Cached      bool   `json:"cached,omitempty"`
	Code        string `json:"code,omitempty"`
	Attempt     int    `json:"attempt,omitempty"`
	MaxAttempts int    `json:"max_attempts,omitempty"`
	DelayMS     int64  `json:"delay_ms,omitempty"`
}

// HandleWebSocket handles GET /ws: live chat with retry progress.
// Requests on one connection are handled in order, so only this goroutine
// writes to the connection.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "err", err)
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			h.send(conn, wsEvent{Type: "error", Code: string(errors.ErrInvalidRequest), Content: "invalid message format"})
			continue
		}

		switch req.Type {
		case "message":
			h.handleWSMessage(conn, r, req)
		default:
			h.send(conn, wsEvent{Type: "error", Code: string(errors.ErrInvalidRequest), Content: "unknown message type: " + req.Type})
		}
	}
}

func (h *Handlers) handleWSMessage(conn *websocket.Conn, r *http.Request, req wsRequest) {
	ctx := r.Context()

	sink := llm.ProgressFunc(func(e llm.RetryEvent) {
		h.send(conn, wsEvent{
			Type:        "progress",
			Content:     e.Reason,
			Attempt:     e.Attempt,
			MaxAttempts: e.MaxAttempts,
			DelayMS:     e.Delay.Milliseconds(),
		})
	})

	reply, err := h.manager.Send(ctx, req.Content, sink)
	if err != nil {
		qErr, ok := errors.As(err)
		if !ok {
			qErr = errors.NewInternal(err)
		}
		h.send(conn, wsEvent{Type: "error", Code: string(qErr.Code), Content: qErr.Message})
		return
	}

	ev := h.messageEvent("response", reply.SessionID, reply.Text)
	ev.Cached = reply.Cached
	if reply.Failure != nil {
		ev.Type = "error"
		ev.Code = string(reply.Failure.Code)
	}
	h.send(conn, ev)

	if reply.Fallback == "" {
		return
	}
	timer := time.NewTimer(h.fallbackDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	h.send(conn, h.messageEvent("fallback", reply.SessionID, reply.Fallback))
}

// messageEvent builds an event carrying a rendered model message.
func (h *Handlers) messageEvent(typ, sessionID, text string) wsEvent {
	view := messageView(session.Message{Text: text})
	ev := wsEvent{
		Type:      typ,
		SessionID: sessionID,
		Content:   text,
		HTML:      string(view.HTML),
		Plain:     view.Plain,
	}
	if s, err := h.manager.Session(sessionID); err == nil {
		ev.Title = s.Title
	}
	return ev
}

func (h *Handlers) send(conn *websocket.Conn, ev wsEvent) {
	if err := conn.WriteJSON(ev); err != nil {
		h.logger.Warn("websocket write failed", "err", err)
	}
}
