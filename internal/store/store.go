package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/hpungsan/qsyntax/internal/db"
	"github.com/hpungsan/qsyntax/internal/errors"
	"github.com/hpungsan/qsyntax/internal/session"
)

// HistoryKey is the key the whole session collection is stored under.
const HistoryKey = "chatHistory"

// SessionStore persists the session collection as one JSON array.
type SessionStore struct {
	db  *sql.DB
	key string
}

// New returns a SessionStore backed by the kv table of database.
func New(database *sql.DB) *SessionStore {
	return &SessionStore{db: database, key: HistoryKey}
}

// Load returns the persisted sessions, most recent first.
// A missing key yields an empty collection. Unparseable data also yields an
// empty collection together with a STORAGE_CORRUPT error so the caller can
// log it and carry on.
func (s *SessionStore) Load(ctx context.Context) ([]*session.Session, error) {
	raw, ok, err := db.GetValue(ctx, s.db, s.key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []*session.Session{}, nil
	}

	var sessions []*session.Session
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		return []*session.Session{}, errors.NewStorageCorrupt(s.key, err)
	}

	// Drop nulls and repair missing slices so callers can append safely
	out := make([]*session.Session, 0, len(sessions))
	for _, sess := range sessions {
		if sess == nil {
			continue
		}
		if sess.Messages == nil {
			sess.Messages = []session.Message{}
		}
		out = append(out, sess)
	}
	return out, nil
}

// Save replaces the persisted collection.
func (s *SessionStore) Save(ctx context.Context, sessions []*session.Session) error {
	if sessions == nil {
		sessions = []*session.Session{}
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return errors.NewInternal(err)
	}
	return db.PutValue(ctx, s.db, s.key, string(data))
}

// SavedAt returns when the collection was last written.
// ok is false before the first save.
func (s *SessionStore) SavedAt(ctx context.Context) (t time.Time, ok bool, err error) {
	ms, err := db.UpdatedAt(ctx, s.db, s.key)
	if err != nil || ms == 0 {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}
