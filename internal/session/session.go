package session

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultTitle is the title of a session that has no user message yet.
const DefaultTitle = "New Chat"

// Message is one entry of a session's visible history.
type Message struct {
	Text      string `json:"text"`
	IsUser    bool   `json:"isUser"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// Session is a persisted conversation.
type Session struct {
	// ID is a ULID that uniquely identifies this session
	ID string `json:"id"`

	// Title is DefaultTitle until the first user message derives one
	Title string `json:"title"`

	// Messages in the order they were appended
	Messages []Message `json:"messages"`

	// Timestamp is the creation time in unix milliseconds
	Timestamp int64 `json:"timestamp"`
}

// NewID generates a new ULID.
func NewID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), nil
}

// New returns an empty session titled DefaultTitle.
func New(now time.Time) (*Session, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        id,
		Title:     DefaultTitle,
		Messages:  []Message{},
		Timestamp: now.UnixMilli(),
	}, nil
}

// Append adds a message. A user message on a session still titled
// DefaultTitle derives the title, so it happens once per session.
func (s *Session) Append(text string, isUser bool, now time.Time) Message {
	msg := Message{Text: text, IsUser: isUser, Timestamp: now.UnixMilli()}
	s.Messages = append(s.Messages, msg)
	if isUser && s.Title == DefaultTitle {
		s.Title = DeriveTitle(text)
	}
	return msg
}

// Last returns the most recent message, if any.
func (s *Session) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Transcript renders the session as markdown: a title heading followed by
// one section per message.
func (s *Session) Transcript() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.Title)
	for _, m := range s.Messages {
		who := "Assistant"
		if m.IsUser {
			who = "You"
		}
		ts := time.UnixMilli(m.Timestamp).UTC().Format(time.RFC3339)
		fmt.Fprintf(&b, "### %s\n\n_%s_\n\n%s\n\n", who, ts, strings.TrimSpace(m.Text))
	}
	return b.String()
}
