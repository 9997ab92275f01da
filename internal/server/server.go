package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jugalmahida/prodevscore/internal/api"
	"github.com/jugalmahida/prodevscore/internal/config"
	"github.com/jugalmahida/prodevscore/internal/gateway"
	"github.com/jugalmahida/prodevscore/internal/session"
	"github.com/jugalmahida/prodevscore/internal/storage"
	"github.com/jugalmahida/prodevscore/internal/version"
)

// Server is the browser-facing HTTP layer of the dashboard. It holds
// the auth cookies, proxies the backend API, and relays live review
// events to streaming clients.
type Server struct {
	cfg         *config.Config
	db          *storage.DB
	registry    *Registry
	httpServer  *http.Server
	startTime   time.Time
	stopJanitor chan struct{}
}

// NewServer creates a new dashboard server
func NewServer(db *storage.DB, cfg *config.Config) *Server {
	s := &Server{
		cfg:         cfg,
		db:          db,
		startTime:   time.Now(),
		stopJanitor: make(chan struct{}),
	}
	s.registry = NewRegistry(cfg, s.persistReview)

	mux := http.NewServeMux()

	// Pages: presence of the access cookie decides routing; the pages
	// themselves come from the static build when one is configured.
	mux.HandleFunc("/login", s.handleLoginPage)
	mux.HandleFunc("/generate-review", requireAuthPage(s.handlePage))
	mux.HandleFunc("/", s.handlePage)

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/user/login", s.handleLogin)
	mux.HandleFunc("/api/user/register", s.handleRegister)
	mux.HandleFunc("/api/user/verify", s.handleVerifyCode)
	mux.HandleFunc("/api/user/logout", s.handleLogout)
	mux.HandleFunc("/api/user/me", requireAuthAPI(s.handleCurrentUser))
	mux.HandleFunc("/api/user/usage", requireAuthAPI(s.handleUsage))
	mux.HandleFunc("/api/user/forget-password", s.handleForgetPassword)
	mux.HandleFunc("/api/user/reset-password/", s.handleResetPassword)

	mux.HandleFunc("/api/review/contributors", requireAuthAPI(s.handleContributors))
	mux.HandleFunc("/api/review/select", requireAuthAPI(s.handleSelect))
	mux.HandleFunc("/api/review/search", requireAuthAPI(s.handleSearch))
	mux.HandleFunc("/api/review/commit-count", requireAuthAPI(s.handleCommitCount))
	mux.HandleFunc("/api/review/start", requireAuthAPI(s.handleStartReview))
	mux.HandleFunc("/api/review/another", requireAuthAPI(s.handleReviewAnother))
	mux.HandleFunc("/api/review/session", requireAuthAPI(s.handleSessionView))
	mux.HandleFunc("/api/review/events", requireAuthAPI(s.handleReviewEvents))
	mux.HandleFunc("/api/history", requireAuthAPI(s.handleHistory))

	s.httpServer = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	return s
}

// Handler exposes the routing table for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving and the idle-session janitor
func (s *Server) Start() error {
	go s.janitor()

	log.Printf("Starting HTTP server on %s", s.cfg.ListenAddr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	close(s.stopJanitor)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.registry.Close()
	return nil
}

// janitor evicts review sessions that have been idle past the
// configured window, disconnecting their channels.
func (s *Server) janitor() {
	maxIdle := time.Duration(s.cfg.SessionIdleMinutes) * time.Minute
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopJanitor:
			return
		case <-ticker.C:
			if n := s.registry.Sweep(maxIdle); n > 0 {
				log.Printf("Evicted %d idle review session(s)", n)
			}
		}
	}
}

// gateway builds a backend client whose credentials live in this
// exchange's cookies.
func (s *Server) gateway(w http.ResponseWriter, r *http.Request) *gateway.Client {
	return gateway.New(s.cfg.BackendURL, cookieTokenStore{w: w, r: r, cfg: s.cfg})
}

// reviewSession resolves the browser's review session from its cookie,
// creating one (and setting the cookie) on first use.
func (s *Server) reviewSession(w http.ResponseWriter, r *http.Request) *ReviewSession {
	var id string
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}

	sess := s.registry.GetOrCreate(id)
	if sess.ID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.cfg.CookieSecure,
			SameSite: sameSiteMode(s.cfg),
		})
	}
	return sess
}

// persistReview saves a successful review into the local history.
func (s *Server) persistReview(sess *ReviewSession, res *api.FinalResults) {
	if s.db == nil {
		return
	}
	view := sess.Review.Snapshot()
	login := ""
	if view.Selected != nil {
		login = view.Selected.Login
	}
	if _, err := s.db.SaveReview(view.GithubURL, login, view.CommitCount, res); err != nil {
		log.Printf("Warning: failed to save review history: %v", err)
	}
}

// API response helpers

type apiEnvelope struct {
	Success bool   `json:"success"`
	Count   int    `json:"count,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, apiEnvelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiEnvelope{Success: false, Message: msg})
}

// writeAPIError maps a normalized gateway error onto an HTTP status.
// The structured code travels with the envelope so callers branch on
// it, never on the message text.
func writeAPIError(w http.ResponseWriter, err error) {
	ae := api.Normalize(err)
	status := http.StatusBadRequest
	switch {
	case ae.Code == api.CodeUnauthorized:
		status = http.StatusUnauthorized
	case ae.Code == api.CodeUnverified:
		status = http.StatusForbidden
	case errors.Is(err, session.ErrEmptyURL),
		errors.Is(err, session.ErrNotSelecting),
		errors.Is(err, session.ErrNotStartable),
		errors.Is(err, session.ErrNoConnection):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrInFlight):
		status = http.StatusConflict
	}
	writeJSON(w, status, apiEnvelope{Success: false, Message: ae.Message, Code: ae.Code})
}

// Pages

// handleLoginPage redirects authenticated visitors away from the login
// page; everyone else gets the static build when configured.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if hasAccessToken(r) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	s.handlePage(w, r)
}

// handlePage serves the front-end build. Without a static_dir the
// service runs API-only and pages answer with a plain placeholder.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if s.cfg.StaticDir != "" {
		index := filepath.Join(s.cfg.StaticDir, "index.html")
		if _, err := os.Stat(index); err == nil {
			http.ServeFile(w, r, index)
			return
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<!doctype html><title>ProDevScore</title><p>ProDevScore dashboard service ")
	fmt.Fprint(w, version.Version)
	fmt.Fprint(w, "</p>")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	healthy := true
	dbMessage := ""
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			healthy = false
			dbMessage = err.Error()
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"healthy":  healthy,
		"uptime":   time.Since(s.startTime).Round(time.Second).String(),
		"version":  version.Version,
		"sessions": s.registry.Count(),
		"database": dbMessage,
	})
}
