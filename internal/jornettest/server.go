// Package jornettest runs an in-process fake of the leaderboard service for
// tests. It creates players, verifies score signatures the way the real
// service does, ranks scores, and records every request it receives.
package jornettest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/jornet/internal/database"
	"github.com/playperu/jornet/internal/handler/health"
	"github.com/playperu/jornet/internal/jornet"
	"github.com/playperu/jornet/internal/migrations"
)

// DefaultMaxSkew is how far a submission timestamp may drift from the
// server clock.
const DefaultMaxSkew = 5 * time.Minute

// Request is a request received by the fake.
type Request struct {
	Method string
	Path   string
	Body   []byte
}

// Server is a running fake leaderboard service.
type Server struct {
	// URL is the base URL to pass as the client host.
	URL string

	tb      testing.TB
	ts      *httptest.Server
	handler http.Handler
	store   *store
	logger  *slog.Logger
	now     func() time.Time
	maxSkew time.Duration

	mu       sync.Mutex
	requests []Request
}

// Option configures a Server.
type Option func(*Server)

// WithLogger makes the fake log every request to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithClock sets the clock submissions are checked against.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithMaxSkew sets the accepted timestamp drift.
func WithMaxSkew(d time.Duration) Option {
	return func(s *Server) { s.maxSkew = d }
}

// NewServer starts a fake backed by a fresh in-memory database. It is shut
// down when the test ends.
func NewServer(tb testing.TB, opts ...Option) *Server {
	tb.Helper()

	s := &Server{
		tb:      tb,
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
		maxSkew: DefaultMaxSkew,
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()
	db, err := database.Open(ctx, database.Memory)
	if err != nil {
		tb.Fatalf("opening database: %v", err)
	}
	if err := migrations.Run(db); err != nil {
		db.Close()
		tb.Fatalf("running migrations: %v", err)
	}
	s.store = &store{db: db}

	s.handler = s.routes()
	s.ts = httptest.NewServer(s.handler)
	s.URL = s.ts.URL

	tb.Cleanup(func() {
		s.ts.Close()
		db.Close()
	})
	return s
}

// Handler returns the fake's router, for tests that drive it directly.
func (s *Server) Handler() http.Handler { return s.handler }

// Client returns an HTTP client configured for the fake.
func (s *Server) Client() *http.Client { return s.ts.Client() }

// AddLeaderboard registers a leaderboard with its secret key.
func (s *Server) AddLeaderboard(id, key uuid.UUID) {
	s.tb.Helper()
	if err := s.store.addLeaderboard(context.Background(), id, key); err != nil {
		s.tb.Fatalf("adding leaderboard: %v", err)
	}
}

// NewLeaderboard registers a leaderboard with random id and key.
func (s *Server) NewLeaderboard() (id, key uuid.UUID) {
	s.tb.Helper()
	id, key = uuid.New(), uuid.New()
	s.AddLeaderboard(id, key)
	return id, key
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Submissions returns the bodies of every score POST received, accepted or
// not.
func (s *Server) Submissions() []jornet.ScoreInput {
	s.tb.Helper()
	var out []jornet.ScoreInput
	for _, r := range s.Requests() {
		if r.Method != http.MethodPost || !strings.HasPrefix(r.Path, "/api/v1/scores/") {
			continue
		}
		var in jornet.ScoreInput
		if err := json.Unmarshal(r.Body, &in); err != nil {
			s.tb.Fatalf("decoding recorded submission: %v", err)
		}
		out = append(out, in)
	}
	return out
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(newStructuredLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Jornet API", "/openapi.json", "/docs"))
	r.Mount("/healthz", health.NewHandler(s.logger, map[string]health.Checker{
		"sqlite": health.CheckerFunc(s.store.ping),
	}).Routes())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.record)
		r.Post("/players", s.handleCreatePlayer())
		r.Post("/scores/{leaderboard}", s.handleAddScore())
		r.Get("/scores/{leaderboard}", s.handleListScores())
	})

	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Body: body})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func newStructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
