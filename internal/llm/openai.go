package llm

import (
	"context"
	stderrors "errors"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider using an OpenAI-compatible Chat
// Completions API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates a provider. An empty baseURL uses the OpenAI default.
func NewOpenAIProvider(apiKey, model, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Contents)+1)
	if req.SystemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemInstruction,
		})
	}
	for _, turn := range req.Contents {
		role := openai.ChatMessageRoleUser
		if turn.Role == RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: messages,
	})
	if err != nil {
		return nil, mapOpenAIError(err)
	}

	out := &Response{Model: resp.Model}
	if len(resp.Choices) > 0 {
		out.Parts = []string{resp.Choices[0].Message.Content}
		out.FinishReason = string(resp.Choices[0].FinishReason)
	}
	return out, nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if stderrors.As(err, &reqErr) {
		return &APIError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	return &TransportError{Err: err}
}
