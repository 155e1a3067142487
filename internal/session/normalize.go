package session

import (
	"strings"
	"unicode/utf8"
)

// Normalize trims, lowercases and collapses internal whitespace to single
// spaces. Whitespace is anything unicode.IsSpace accepts, so NBSP, \v and
// the Unicode space characters count. Used as the response cache key.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// titleWords is the number of leading words kept in a derived title.
const titleWords = 4

// DeriveTitle builds a session title from the first four space-separated
// words of text followed by "...".
func DeriveTitle(text string) string {
	words := strings.Split(text, " ")
	if len(words) > titleWords {
		words = words[:titleWords]
	}
	return strings.Join(words, " ") + "..."
}

// previewRunes bounds the last-message preview shown in session lists.
const previewRunes = 50

// NoMessagesPreview is shown for sessions without messages.
const NoMessagesPreview = "No messages yet"

// Preview returns the first 50 runes of the last message, with "..." when
// it was cut.
func Preview(s *Session) string {
	last, ok := s.Last()
	if !ok {
		return NoMessagesPreview
	}
	if CountChars(last.Text) <= previewRunes {
		return last.Text
	}
	runes := []rune(last.Text)
	return string(runes[:previewRunes]) + "..."
}

// CountChars returns the character count as runes (not bytes).
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}
