package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/qsyntax/internal/chat"
	"github.com/hpungsan/qsyntax/internal/errors"
	"github.com/hpungsan/qsyntax/internal/render"
	"github.com/hpungsan/qsyntax/internal/separator"
	"github.com/hpungsan/qsyntax/internal/session"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	manager *chat.Manager
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(m *chat.Manager) *Handlers {
	return &Handlers{manager: m}
}

// Request types for each tool

// SendRequest represents the arguments for chat_send.
type SendRequest struct {
	Text string `json:"text"`
}

// IDRequest represents the arguments for chat_load and chat_delete.
type IDRequest struct {
	ID string `json:"id"`
}

// CodeRequest represents the arguments for code_separate and code_preview.
type CodeRequest struct {
	Code string `json:"code,omitempty"`
	HTML string `json:"html,omitempty"`
	CSS  string `json:"css,omitempty"`
	JS   string `json:"js,omitempty"`
}

// RenderRequest represents the arguments for markdown_render.
type RenderRequest struct {
	Text string `json:"text"`
}

// SendOutput is the result of chat_send.
type SendOutput struct {
	SessionID string         `json:"session_id"`
	Title     string         `json:"title"`
	Text      string         `json:"text"`
	Cached    bool           `json:"cached"`
	Fallback  string         `json:"fallback,omitempty"`
	Failure   *FailureOutput `json:"failure,omitempty"`
}

// FailureOutput describes a failed remote call.
type FailureOutput struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

// HandleSend handles the chat_send tool call.
func (h *Handlers) HandleSend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SendRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	reply, err := h.manager.Send(ctx, input.Text, nil)
	if err != nil {
		return errorResult(err), nil
	}

	out := SendOutput{
		SessionID: reply.SessionID,
		Text:      reply.Text,
		Cached:    reply.Cached,
		Fallback:  reply.Fallback,
	}
	if reply.Failure != nil {
		out.Failure = &FailureOutput{Code: reply.Failure.Code, Message: reply.Failure.Message}
	}
	if s, err := h.manager.Session(reply.SessionID); err == nil {
		out.Title = s.Title
	}
	return successResult(out)
}

// HandleNew handles the chat_new tool call.
func (h *Handlers) HandleNew(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, err := h.manager.Create(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(s.ToSummary(s.ID))
}

// HandleList handles the chat_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(map[string]any{
		"sessions": h.manager.Sessions(),
	})
}

// HandleLoad handles the chat_load tool call.
func (h *Handlers) HandleLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	s, err := h.manager.Load(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(s)
}

// HandleDelete handles the chat_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	if err := h.manager.Delete(ctx, input.ID); err != nil {
		return errorResult(err), nil
	}

	out := map[string]any{"deleted": true, "id": input.ID}
	if active, ok := h.manager.Active(); ok {
		out["active"] = active.ToSummary(active.ID)
	}
	return successResult(out)
}

// HandleSeparate handles the code_separate tool call.
func (h *Handlers) HandleSeparate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CodeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	return successResult(separator.Extract(input.Code))
}

// HandlePreview handles the code_preview tool call.
func (h *Handlers) HandlePreview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CodeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	parts := separator.Parts{HTML: input.HTML, CSS: input.CSS, JS: input.JS}
	if input.Code != "" {
		parts = separator.Extract(input.Code)
	}
	return successResult(map[string]any{
		"document": separator.PreviewDocument(parts),
	})
}

// HandleRender handles the markdown_render tool call.
func (h *Handlers) HandleRender(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RenderRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	html := render.SafeAnswer(input.Text)
	plain, err := render.PlainText(html)
	if err != nil {
		return errorResult(errors.NewInternal(err)), nil
	}
	return successResult(map[string]any{
		"html":  html,
		"plain": plain,
		"chars": session.CountChars(plain),
	})
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if qErr, ok := errors.As(err); ok {
		errorObj := map[string]any{
			"code":    qErr.Code,
			"message": qErr.Message,
			"status":  qErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if qErr.Code != errors.ErrInternal && qErr.Details != nil {
			errorObj["details"] = qErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
