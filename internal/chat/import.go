package chat

import (
	"context"
	"sort"

	"github.com/hpungsan/qsyntax/internal/errors"
	"github.com/hpungsan/qsyntax/internal/session"
)

// Snapshot returns copies of all sessions, most recent first.
func (m *Manager) Snapshot() []*session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*session.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, clone(s))
	}
	return out
}

// ImportResult counts the outcome of Import.
type ImportResult struct {
	Imported int `json:"imported"`
	Replaced int `json:"replaced"`
	Skipped  int `json:"skipped"`
}

// Import merges sessions into the collection. A session whose ID already
// exists is skipped, or replaces the existing one when replace is set.
// The merged collection is reordered newest first and saved once.
func (m *Manager) Import(ctx context.Context, sessions []*session.Session, replace bool) (ImportResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range sessions {
		if s == nil || s.ID == "" {
			return ImportResult{}, errors.NewInvalidRequest("imported session has no id")
		}
	}

	var res ImportResult
	activeReplaced := false
	for _, s := range sessions {
		s = clone(s)
		if s.Title == "" {
			s.Title = session.DefaultTitle
		}

		idx := m.indexLocked(s.ID)
		switch {
		case idx < 0:
			m.sessions = append(m.sessions, s)
			res.Imported++
		case replace:
			m.sessions[idx] = s
			res.Replaced++
			if s.ID == m.activeID {
				activeReplaced = true
			}
		default:
			res.Skipped++
		}
	}

	if res.Imported == 0 && res.Replaced == 0 {
		return res, nil
	}

	sort.SliceStable(m.sessions, func(i, j int) bool {
		return m.sessions[i].Timestamp > m.sessions[j].Timestamp
	})

	// Only a replaced active session needs its context rebuilt; otherwise the
	// context keeps the enhanced prompts that were actually sent
	if activeReplaced {
		if err := m.loadLocked(m.activeID); err != nil {
			return ImportResult{}, err
		}
	}

	m.logger.Info("sessions imported", "imported", res.Imported, "replaced", res.Replaced, "skipped", res.Skipped)
	return res, m.persistLocked(ctx)
}
