// Package web serves the calendar JSON API, the server-rendered month page
// used for snapshots and the ICS export.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"dyncal/internal/config"
	appLog "dyncal/internal/log"
	"dyncal/internal/model"
	"dyncal/internal/project"
	"dyncal/internal/remote"
	"dyncal/internal/schedule"
)

const projectionTTL = 30 * time.Second

// EventStore holds the input events shown by the server. *refresh.Refresher
// satisfies it.
type EventStore interface {
	Events() []model.InputEvent
	Add(ev model.InputEvent)
}

// EventCreator creates events on the schedule API. *schedule.Client
// satisfies it.
type EventCreator interface {
	Create(ctx context.Context, ev schedule.NewEvent) (model.InputEvent, error)
}

// Authenticator is implemented by *auth.Service.
type Authenticator interface {
	Login(ctx context.Context, userName, password string) error
	CreateUser(ctx context.Context, userName, password, confirm string) error
}

// Deps are the collaborators of the server. Only Store is required; missing
// remote collaborators make their endpoints answer 503, except event
// creation which then stays local.
type Deps struct {
	Store    EventStore
	Schedule EventCreator
	Auth     Authenticator
	// API receives study schedule submissions.
	API *remote.Client
}

// Server provides the HTTP API and pages.
type Server struct {
	cfg  *config.Config
	deps Deps
	mux  *http.ServeMux
	now  func() time.Time

	// Projection of the store's events, reused for projectionTTL or until
	// Invalidate. gen counts invalidations so a projection computed before
	// one is never stored after it.
	cacheMu sync.RWMutex
	cache   *projectionCache
	gen     uint64
}

type projectionCache struct {
	today     model.Date
	result    project.Result
	updatedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mux:  http.NewServeMux(),
		now:  time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler, wrapped in basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Invalidate drops the cached projection.
func (s *Server) Invalidate() {
	s.cacheMu.Lock()
	s.cache = nil
	s.gen++
	s.cacheMu.Unlock()
}

// ListenAndServe serves on cfg.Listen until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="dyncal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/grid", s.handleGrid)
	s.mux.HandleFunc("GET /api/week", s.handleWeek)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("POST /api/study", s.handleStudy)
	s.mux.HandleFunc("GET /api/calendar.ics", s.handleICS)
	s.mux.HandleFunc("GET /calendar", s.handleCalendarPage)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/calendar", http.StatusFound)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePreview serves the last snapshot from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.cfg.Snapshot.Output)
}

func (s *Server) location() *time.Location {
	return s.cfg.Location()
}

func (s *Server) today() model.Date {
	return model.DateOf(s.now().In(s.location()))
}

// projection resolves the store's events against today, reusing the
// cached result while it is fresh and today has not changed.
func (s *Server) projection() project.Result {
	today := s.today()
	now := s.now()

	s.cacheMu.RLock()
	pc, gen := s.cache, s.gen
	s.cacheMu.RUnlock()
	if pc != nil && pc.today == today && now.Sub(pc.updatedAt) < projectionTTL {
		return pc.result
	}

	res := project.Project(s.deps.Store.Events(), today, project.Options{DateFormat: s.cfg.Layout()})
	if len(res.Unresolved) > 0 {
		appLog.Warn("some events could not be placed", "unresolved", len(res.Unresolved))
	}

	s.cacheMu.Lock()
	if s.gen == gen {
		s.cache = &projectionCache{today: today, result: res, updatedAt: now}
	}
	s.cacheMu.Unlock()
	return res
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// writeUpstreamError maps a failed call to the schedule API.
func writeUpstreamError(w http.ResponseWriter, err error) {
	var apiErr *remote.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		writeError(w, http.StatusBadGateway, apiErr.Message)
		return
	}
	writeError(w, http.StatusBadGateway, "schedule API unavailable")
}
