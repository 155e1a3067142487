package chat

import (
	"strings"

	"github.com/hpungsan/qsyntax/internal/errors"
	"github.com/hpungsan/qsyntax/internal/llm"
)

var enhanceKeywords = []string{
	"frontend", "html", "css", "javascript", "website", "web page",
	"ui", "interface", "page", "code", "programming", "development",
}

// EnhancePrompt appends EnhanceSuffix when text mentions any web or
// programming keyword (case-insensitive substring match).
func EnhancePrompt(text string) string {
	lower := strings.ToLower(text)
	for _, kw := range enhanceKeywords {
		if strings.Contains(lower, kw) {
			return text + EnhanceSuffix
		}
	}
	return text
}

// ReplyText joins the text parts of a response with newlines.
// An empty reply becomes NoResponse.
func ReplyText(resp *llm.Response) string {
	var reply string
	if resp != nil {
		reply = strings.TrimSpace(strings.Join(resp.Parts, "\n"))
	}
	if reply == "" {
		return NoResponse
	}
	return reply
}

// NormalizeFences rewrites ```js fences to ```javascript.
func NormalizeFences(text string) string {
	return strings.ReplaceAll(text, "```js\n", "```javascript\n")
}

const errorPrefix = "⚠️ Error: "

// FailureMessage is the chat message shown for a failed remote call.
func FailureMessage(qErr *errors.QSError) string {
	if qErr == nil {
		return errorPrefix + "unknown error"
	}
	switch qErr.Code {
	case errors.ErrOverloaded:
		return errorPrefix + "API is currently overloaded. Please try again in a few moments."
	case errors.ErrInvalidCredential:
		return errorPrefix + "Invalid API key. Please check your Gemini API key."
	case errors.ErrQuotaExceeded:
		return errorPrefix + "API quota exceeded. Please try again later."
	case errors.ErrTransport:
		return errorPrefix + "Network error. Please check your internet connection."
	case errors.ErrInternal:
		if cause, ok := qErr.Details["internal_error"].(string); ok && cause != "" {
			return errorPrefix + cause
		}
	}
	return errorPrefix + qErr.Message
}
