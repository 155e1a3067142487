package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultGeminiBaseURL is the generative-language API root.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 10 << 20

// GeminiProvider calls the generateContent endpoint over plain HTTP.
type GeminiProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGeminiProvider creates a provider. An empty baseURL uses DefaultGeminiBaseURL.
func NewGeminiProvider(apiKey, model, baseURL string) *GeminiProvider {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	return &GeminiProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

func (p *GeminiProvider) Name() string {
	return "google"
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

func (p *GeminiProvider) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		p.baseURL, url.PathEscape(p.model), url.QueryEscape(p.apiKey))
}

func (p *GeminiProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	apiReq := geminiRequest{Contents: make([]geminiContent, 0, len(req.Contents))}
	for _, turn := range req.Contents {
		apiReq.Contents = append(apiReq.Contents, geminiContent{
			Role:  string(turn.Role),
			Parts: []geminiPart{{Text: turn.Text}},
		})
	}
	if req.SystemInstruction != "" {
		apiReq.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.SystemInstruction}},
		}
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Cache-Control", "no-cache")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("reading gemini response: %w", err)}
	}

	return parseGeminiResponse(httpResp.StatusCode, respBody, p.model)
}

func parseGeminiResponse(status int, body []byte, model string) (*Response, error) {
	if !gjson.ValidBytes(body) {
		if status != http.StatusOK {
			return nil, &APIError{StatusCode: status, Message: "API request failed"}
		}
		return nil, &APIError{StatusCode: status, Message: "invalid JSON in gemini response"}
	}

	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() || status != http.StatusOK {
		text := msg.String()
		if text == "" {
			text = "API request failed"
		}
		return nil, &APIError{StatusCode: status, Message: text}
	}

	resp := &Response{
		Model:        model,
		FinishReason: gjson.GetBytes(body, "candidates.0.finishReason").String(),
	}
	for _, part := range gjson.GetBytes(body, "candidates.0.content.parts").Array() {
		resp.Parts = append(resp.Parts, part.Get("text").String())
	}
	return resp, nil
}
