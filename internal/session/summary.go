package session

// Summary is a session's list entry without its message bodies.
type Summary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Preview      string `json:"preview"`
	MessageCount int    `json:"message_count"`
	Timestamp    int64  `json:"timestamp"`
	Active       bool   `json:"active"`
}

// ToSummary converts a Session to a Summary.
func (s *Session) ToSummary(activeID string) Summary {
	return Summary{
		ID:           s.ID,
		Title:        s.Title,
		Preview:      Preview(s),
		MessageCount: len(s.Messages),
		Timestamp:    s.Timestamp,
		Active:       s.ID == activeID,
	}
}
