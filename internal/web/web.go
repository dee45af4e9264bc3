package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"

	"eventfeed/internal/config"
	"eventfeed/internal/ics"
	appLog "eventfeed/internal/log"
	"eventfeed/internal/metrics"
	"eventfeed/internal/model"
)

// FeedBuilder builds the feed for one branch, or for all branches when
// branchID is zero.
type FeedBuilder interface {
	Build(ctx context.Context, now time.Time, branchID int64) ([]model.Item, error)
}

// Server provides the feed HTTP API.
type Server struct {
	cfg    *config.Config
	feed   FeedBuilder
	router chi.Router

	// now is replaced in tests.
	now func() time.Time

	// In-memory cache of built feeds keyed by branch id (0 = all).
	feedMu    sync.RWMutex
	feedCache map[int64]*feedCache

	// builds collapses concurrent rebuilds of the same branch.
	builds singleflight.Group
}

// feedCache holds a built feed and its timestamp.
type feedCache struct {
	items     []model.Item
	updatedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, feed FeedBuilder) *Server {
	s := &Server{
		cfg:       cfg,
		feed:      feed,
		router:    chi.NewRouter(),
		now:       time.Now,
		feedCache: make(map[int64]*feedCache),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(chimw.Recoverer)
	r.Use(requestMetrics)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.basicAuthEnabled() {
			appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
			r.Use(s.basicAuthMiddleware)
		}
		if n := s.cfg.RateLimitPerMinute; n > 0 {
			r.Use(rateLimit(n, time.Minute))
		}
		r.Get("/api/feed", s.handleFeed)
		r.Get("/api/feed/{branch}", s.handleFeed)
		r.Get("/feed.ics", s.handleICS)
	})
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="eventfeed", charset="UTF-8"`)
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

// rateLimit limits requests per client IP with a sliding window.
func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		}),
	)
}

// requestMetrics records every request under its route pattern.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordHTTP(r.Method, route, status, time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleFeed returns the feed as a JSON array.
//
// GET /api/feed           all branches
// GET /api/feed/{branch}  one branch
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	branchID, ok := parseBranch(chi.URLParam(r, "branch"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid branch id")
		return
	}

	items, err := s.items(r.Context(), branchID)
	if err != nil {
		appLog.Error("api feed: build failed", err, "branch", branchID)
		writeError(w, http.StatusInternalServerError, "failed to build feed")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// handleICS returns the feed as an iCalendar document.
//
// GET /feed.ics?branch=7
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	branchID, ok := parseBranch(r.URL.Query().Get("branch"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid branch id")
		return
	}

	items, err := s.items(r.Context(), branchID)
	if err != nil {
		appLog.Error("feed.ics: build failed", err, "branch", branchID)
		writeError(w, http.StatusInternalServerError, "failed to build feed")
		return
	}

	body, err := ics.Export(items, s.now())
	if err != nil {
		appLog.Error("feed.ics: export failed", err, "branch", branchID)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// items returns the feed for branchID, served from the in-memory cache while
// it is younger than the configured TTL.
func (s *Server) items(ctx context.Context, branchID int64) ([]model.Item, error) {
	now := s.now()

	s.feedMu.RLock()
	fc := s.feedCache[branchID]
	s.feedMu.RUnlock()
	if fc != nil && now.Sub(fc.updatedAt) < s.cfg.CacheTTL() {
		metrics.RecordCacheLookup(true)
		return fc.items, nil
	}
	metrics.RecordCacheLookup(false)

	return s.rebuild(ctx, branchID, now)
}

// rebuild builds the feed for branchID once for all concurrent callers. The
// build outlives any single caller's cancellation. Empty branch feeds are not
// cached, so unknown branch ids never enter the cache or the refresh set.
func (s *Server) rebuild(ctx context.Context, branchID int64, now time.Time) ([]model.Item, error) {
	buildCtx := context.WithoutCancel(ctx)
	v, err, _ := s.builds.Do(strconv.FormatInt(branchID, 10), func() (any, error) {
		items, err := s.feed.Build(buildCtx, now, branchID)
		if err != nil {
			return nil, err
		}

		s.feedMu.Lock()
		if branchID == 0 || len(items) > 0 {
			s.feedCache[branchID] = &feedCache{items: items, updatedAt: now}
		} else {
			delete(s.feedCache, branchID)
		}
		s.feedMu.Unlock()
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Item), nil
}

// Refresh rebuilds the full feed and every branch feed currently cached.
// Failed rebuilds keep the previous cache entry.
func (s *Server) Refresh(ctx context.Context) {
	s.feedMu.RLock()
	branches := []int64{0}
	for id := range s.feedCache {
		if id != 0 {
			branches = append(branches, id)
		}
	}
	s.feedMu.RUnlock()

	now := s.now()
	for _, id := range branches {
		if _, err := s.rebuild(ctx, id, now); err != nil {
			appLog.Error("feed refresh failed", err, "branch", id)
		}
	}
	appLog.Debug("feed cache refreshed", "branches", len(branches))
}

// parseBranch parses an optional branch id. An empty value means all
// branches.
func parseBranch(v string) (int64, bool) {
	if v == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
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
