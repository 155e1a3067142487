package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hpungsan/qsyntax/internal/cache"
	"github.com/hpungsan/qsyntax/internal/chat"
	"github.com/hpungsan/qsyntax/internal/config"
	"github.com/hpungsan/qsyntax/internal/db"
	"github.com/hpungsan/qsyntax/internal/errors"
	"github.com/hpungsan/qsyntax/internal/llm"
	"github.com/hpungsan/qsyntax/internal/logging"
	"github.com/hpungsan/qsyntax/internal/store"
)

// appOptions configures the shared application environment.
type appOptions struct {
	// BaseDir holds config.yaml, the database and logs/.
	BaseDir string

	// Provider replaces the configured remote provider.
	Provider llm.Provider

	// Sleep replaces the wait between retries.
	Sleep func(ctx context.Context, d time.Duration) error

	// Stderr receives verbose logs. Defaults to os.Stderr.
	Stderr io.Writer
}

// appEnv opens configuration, logging, storage and the chat manager on
// first use, so commands that need none of them stay cheap.
type appEnv struct {
	opts    appOptions
	verbose bool

	cfg     *config.Config
	logger  *log.Logger
	db      *sql.DB
	store   *store.SessionStore
	manager *chat.Manager
	closers []io.Closer
}

func newAppEnv(opts appOptions) *appEnv {
	return &appEnv{opts: opts}
}

// Config loads and validates the configuration.
func (e *appEnv) Config() (*config.Config, error) {
	if e.cfg != nil {
		return e.cfg, nil
	}
	cfg, err := config.Load(e.opts.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	e.cfg = cfg
	return cfg, nil
}

// Logger opens the rotating log file.
func (e *appEnv) Logger() (*log.Logger, error) {
	if e.logger != nil {
		return e.logger, nil
	}
	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}
	logger, closer, err := logging.New(logging.Options{
		BaseDir: e.opts.BaseDir,
		Level:   cfg.LogLevel,
		Verbose: e.verbose,
		Stderr:  e.opts.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	e.closers = append(e.closers, closer)
	e.logger = logger
	return logger, nil
}

// Manager opens the database and returns an initialized chat manager.
// Without an API key the manager still works; sends fail with
// INVALID_CREDENTIAL messages.
func (e *appEnv) Manager(ctx context.Context) (*chat.Manager, error) {
	if e.manager != nil {
		return e.manager, nil
	}
	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}
	logger, err := e.Logger()
	if err != nil {
		return nil, err
	}

	database, err := db.Init(e.opts.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	e.closers = append(e.closers, database)
	e.db = database
	db.ConfigurePool(database, cfg)

	provider := e.opts.Provider
	if provider == nil {
		p, err := llm.NewProvider(cfg)
		if err != nil {
			logger.Warn("remote provider unavailable", "provider", cfg.Provider, "err", err)
			p = llm.NewUnconfigured(cfg)
		}
		provider = p
	}

	retryOpts := []llm.RetrierOption{llm.WithLogger(logger)}
	if e.opts.Sleep != nil {
		retryOpts = append(retryOpts, llm.WithSleep(e.opts.Sleep))
	}
	retrier := llm.NewRetrier(provider, llm.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Delay:       cfg.RetryDelay,
		Factor:      cfg.RetryFactor,
	}, retryOpts...)

	e.store = store.New(database)
	m := chat.NewManager(e.store, retrier, cache.New(cfg.CacheSize, cfg.CacheTTL), chat.Options{
		ContextTurns: cfg.ContextTurns,
		Logger:       logger,
	})
	if err := m.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	e.manager = m
	e.restoreActive(ctx)
	return m, nil
}

// activeKey remembers the active session between runs.
const activeKey = "active_session"

func (e *appEnv) restoreActive(ctx context.Context) {
	id, ok, err := db.GetValue(ctx, e.db, activeKey)
	if err != nil || !ok {
		return
	}
	if _, err := e.manager.Load(ctx, id); err != nil {
		e.logger.Debug("previous session not restored", "id", id, "err", err)
		if errors.Is(err, errors.ErrNotFound) {
			if err := db.DeleteValue(ctx, e.db, activeKey); err != nil {
				e.logger.Warn("failed to forget active session", "err", err)
			}
		}
	}
}

func (e *appEnv) rememberActive(ctx context.Context) {
	active, ok := e.manager.Active()
	if !ok {
		return
	}
	if err := db.PutValue(ctx, e.db, activeKey, active.ID); err != nil {
		e.logger.Warn("failed to remember active session", "err", err)
	}
}

// Close releases everything opened, most recent first.
func (e *appEnv) Close() error {
	if e.manager != nil {
		e.rememberActive(context.Background())
	}

	var first error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	e.closers = nil
	e.manager = nil
	e.store = nil
	e.db = nil
	e.logger = nil
	return first
}
