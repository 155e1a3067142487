package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hpungsan/qsyntax/internal/cache"
	"github.com/hpungsan/qsyntax/internal/errors"
	"github.com/hpungsan/qsyntax/internal/llm"
	"github.com/hpungsan/qsyntax/internal/logging"
	"github.com/hpungsan/qsyntax/internal/session"
)

// DefaultContextTurns caps the turns sent per request.
const DefaultContextTurns = 20

// Persister loads and saves the whole session collection.
type Persister interface {
	Load(ctx context.Context) ([]*session.Session, error)
	Save(ctx context.Context, sessions []*session.Session) error
}

// State is the manager's lifecycle state.
type State int

const (
	StateNoSession State = iota
	StateActive
	StateLoading
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateLoading:
		return "loading"
	default:
		return "no-session"
	}
}

// Options tunes a Manager. Zero values take defaults.
type Options struct {
	ContextTurns int
	Logger       *log.Logger
	Now          func() time.Time
}

// Manager owns the session list, the active session, the outbound
// conversation context and the response cache.
type Manager struct {
	mu       sync.Mutex
	store    Persister
	retrier  *llm.Retrier
	cache    *cache.ResponseCache
	logger   *log.Logger
	now      func() time.Time
	maxTurns int

	sessions []*session.Session // most recent first
	activeID string
	turns    []llm.Turn
	state    State
}

// NewManager returns a manager in StateNoSession. Call Init before use.
func NewManager(store Persister, retrier *llm.Retrier, c *cache.ResponseCache, opts Options) *Manager {
	if opts.ContextTurns <= 0 {
		opts.ContextTurns = DefaultContextTurns
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if c == nil {
		c = cache.New(cache.DefaultSize, cache.DefaultTTL)
	}
	return &Manager{
		store:    store,
		retrier:  retrier,
		cache:    c,
		logger:   opts.Logger,
		now:      opts.Now,
		maxTurns: opts.ContextTurns,
		state:    StateNoSession,
	}
}

// Init loads persisted sessions and activates the first one, creating a
// session when none exist. Corrupt history is logged and replaced.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, err := m.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, errors.ErrStorageCorrupt) {
			return err
		}
		m.logger.Warn("chat history unreadable, starting empty", "err", err)
	}
	m.sessions = sessions

	if len(m.sessions) > 0 {
		return m.loadLocked(m.sessions[0].ID)
	}
	_, err = m.createLocked(ctx)
	return err
}

// Create starts a new empty session and makes it active.
func (m *Manager) Create(ctx context.Context) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.createLocked(ctx)
	if err != nil {
		return nil, err
	}
	return clone(s), nil
}

func (m *Manager) createLocked(ctx context.Context) (*session.Session, error) {
	s, err := session.New(m.now())
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	m.sessions = append([]*session.Session{s}, m.sessions...)
	m.activeID = s.ID
	m.turns = nil
	m.state = StateActive
	m.logger.Info("session created", "id", s.ID)
	return s, m.persistLocked(ctx)
}

// Load makes session id active and rebuilds the context from its messages.
func (m *Manager) Load(ctx context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadLocked(id); err != nil {
		return nil, err
	}
	return clone(m.activeLocked()), nil
}

func (m *Manager) loadLocked(id string) error {
	s := m.findLocked(id)
	if s == nil {
		return errors.NewNotFound(id)
	}

	m.state = StateLoading
	turns := make([]llm.Turn, 0, len(s.Messages))
	for _, msg := range s.Messages {
		role := llm.RoleModel
		if msg.IsUser {
			role = llm.RoleUser
		}
		turns = append(turns, llm.Turn{Role: role, Text: msg.Text})
	}
	m.activeID = id
	m.turns = capTurns(turns, m.maxTurns)
	m.state = StateActive
	return nil
}

// Delete removes a session. Deleting the active session loads the first
// remaining one, or creates a new one.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexLocked(id)
	if idx < 0 {
		return errors.NewNotFound(id)
	}
	m.sessions = append(m.sessions[:idx], m.sessions[idx+1:]...)
	m.logger.Info("session deleted", "id", id)

	if m.activeID == id {
		m.activeID = ""
		m.turns = nil
		m.state = StateNoSession
		if len(m.sessions) > 0 {
			if err := m.loadLocked(m.sessions[0].ID); err != nil {
				return err
			}
		} else if _, err := m.createLocked(ctx); err != nil {
			return err
		}
	}
	return m.persistLocked(ctx)
}

// Append adds a message to the active session. Without an active
// session it does nothing and reports false.
func (m *Manager) Append(ctx context.Context, text string, isUser bool) (session.Message, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.activeLocked()
	if s == nil {
		return session.Message{}, false, nil
	}
	msg := s.Append(text, isUser, m.now())
	return msg, true, m.persistLocked(ctx)
}

// Reply is the outcome of Send.
type Reply struct {
	SessionID string `json:"session_id"`

	// Text is the model message appended to the session: the reply,
	// a cached reply, or a failure message.
	Text string `json:"text"`

	Cached bool `json:"cached"`

	// Failure is set when the remote call failed.
	Failure *errors.QSError `json:"-"`

	// Fallback is an extra message appended after an overload failure.
	// Surfaces show it after a short delay.
	Fallback string `json:"fallback,omitempty"`
}

// Send runs the chat pipeline for one user message. Remote failures are
// not returned as errors; they become failure messages in the session.
func (m *Manager) Send(ctx context.Context, text string, sink llm.ProgressSink) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.NewInvalidRequest("message text is required")
	}

	m.mu.Lock()
	s := m.activeLocked()
	if s == nil {
		var err error
		if s, err = m.createLocked(ctx); err != nil {
			m.mu.Unlock()
			return nil, err
		}
	}
	sessionID := s.ID
	s.Append(text, true, m.now())

	if cached, ok := m.cache.Get(text); ok {
		s.Append(cached, false, m.now())
		m.saveOrLogLocked(ctx)
		m.mu.Unlock()
		m.logger.Debug("cache hit", "session", sessionID)
		return &Reply{SessionID: sessionID, Text: cached, Cached: true}, nil
	}

	m.turns = append(m.turns, llm.Turn{Role: llm.RoleUser, Text: EnhancePrompt(text)})
	req := llm.Request{Contents: append([]llm.Turn(nil), m.turns...)}
	if len(m.turns) == 1 {
		req.SystemInstruction = SystemPrompt
	}
	m.saveOrLogLocked(ctx)
	m.mu.Unlock()

	start := m.now()
	resp, err := m.retrier.Generate(ctx, req, sink)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// The session may have been deleted or switched away from meanwhile
	target := m.findLocked(sessionID)
	stillActive := m.activeID == sessionID

	if err != nil {
		qErr := llm.Classify(err)
		m.logger.Error("chat request failed", "session", sessionID, "code", qErr.Code, "err", err)
		reply := &Reply{SessionID: sessionID, Text: FailureMessage(qErr), Failure: qErr}
		if qErr.Code == errors.ErrOverloaded {
			reply.Fallback = OverloadFallback
		}
		if target != nil {
			target.Append(reply.Text, false, m.now())
			if reply.Fallback != "" {
				target.Append(reply.Fallback, false, m.now())
			}
			m.saveOrLogLocked(ctx)
		}
		return reply, nil
	}

	reply := NormalizeFences(ReplyText(resp))
	m.cache.Set(text, reply)
	m.logger.Info("chat reply", "session", sessionID, "elapsed", m.now().Sub(start).Round(time.Millisecond))

	if stillActive {
		m.turns = append(m.turns, llm.Turn{Role: llm.RoleModel, Text: reply})
		m.turns = capTurns(m.turns, m.maxTurns)
	}
	if target != nil {
		target.Append(reply, false, m.now())
		m.saveOrLogLocked(ctx)
	}
	return &Reply{SessionID: sessionID, Text: reply}, nil
}

// Sessions returns summaries, most recent first.
func (m *Manager) Sessions() []session.Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]session.Summary, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.ToSummary(m.activeID))
	}
	return out
}

// Session returns a copy of session id.
func (m *Manager) Session(id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.findLocked(id)
	if s == nil {
		return nil, errors.NewNotFound(id)
	}
	return clone(s), nil
}

// Active returns a copy of the active session.
func (m *Manager) Active() (*session.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.activeLocked()
	if s == nil {
		return nil, false
	}
	return clone(s), true
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ContextLen returns the number of turns the next request will carry
// before the new user turn.
func (m *Manager) ContextLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}

func (m *Manager) activeLocked() *session.Session {
	if m.activeID == "" {
		return nil
	}
	return m.findLocked(m.activeID)
}

func (m *Manager) findLocked(id string) *session.Session {
	if idx := m.indexLocked(id); idx >= 0 {
		return m.sessions[idx]
	}
	return nil
}

func (m *Manager) indexLocked(id string) int {
	for i, s := range m.sessions {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) persistLocked(ctx context.Context) error {
	return m.store.Save(ctx, m.sessions)
}

func (m *Manager) saveOrLogLocked(ctx context.Context) {
	if err := m.persistLocked(ctx); err != nil {
		m.logger.Error("saving chat history failed", "err", err)
	}
}

func capTurns(turns []llm.Turn, max int) []llm.Turn {
	if len(turns) <= max {
		return turns
	}
	return append([]llm.Turn(nil), turns[len(turns)-max:]...)
}

func clone(s *session.Session) *session.Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = append([]session.Message(nil), s.Messages...)
	if c.Messages == nil {
		c.Messages = []session.Message{}
	}
	return &c
}
