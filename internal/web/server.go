package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hpungsan/qsyntax/internal/chat"
	"github.com/hpungsan/qsyntax/internal/config"
	"github.com/hpungsan/qsyntax/internal/logging"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer creates and configures the HTTP server for the qsyntax web UI.
func NewServer(m *chat.Manager, cfg *config.Config, logger *log.Logger, version, bind string, port int) (*http.Server, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	// Create sub-FS for templates (strip "templates/" prefix)
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to create template sub-FS: %w", err)
	}

	// Create sub-FS for static files (strip "static/" prefix)
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to create static sub-FS: %w", err)
	}

	h := &Handlers{
		manager:       m,
		renderer:      NewRenderer(templateSub, version, logger),
		logger:        logger,
		fallbackDelay: cfg.FallbackDelay,
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           newRouter(h, staticSub, bind, port),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// newRouter wires middleware and routes.
func newRouter(h *Handlers, static fs.FS, bind string, port int) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			fmt.Sprintf("http://%s:%d", bind, port),
			fmt.Sprintf("http://localhost:%d", port),
			fmt.Sprintf("http://127.0.0.1:%d", port),
		},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "HX-Request"},
		MaxAge:         300,
	}))
	r.Use(securityHeaders)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/chat", http.StatusFound)
	})

	r.Get("/chat", h.HandleChat)
	r.Post("/chat/send", h.HandleSend)
	r.Get("/ws", h.HandleWebSocket)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.HandleListSessions)
		r.Post("/", h.HandleNewSession)
		r.Post("/{id}/load", h.HandleLoadSession)
		r.Delete("/{id}", h.HandleDeleteSession)
		r.Get("/{id}/transcript", h.HandleTranscript)
	})

	r.Get("/separator", h.HandleSeparatorPage)
	r.Post("/separator", h.HandleSeparate)
	r.Post("/separator/preview", h.HandlePreview)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))

	return r
}

// securityHeaders adds security-related HTTP headers to all responses.
// Handlers may replace them; the preview does.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'; connect-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, logger *log.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	fmt.Fprintf(os.Stderr, "qsyntax UI running at http://%s\n", srv.Addr)
	logger.Info("web UI started", "addr", srv.Addr)

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
