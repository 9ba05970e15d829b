package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/feed-collector/internal/models"
	"github.com/feed-collector/internal/scheduler"
	"github.com/feed-collector/internal/storage"
	"github.com/feed-collector/pkg/logger"
)

// StatsSource exposes scheduler counters
type StatsSource interface {
	Snapshot() scheduler.StatsSnapshot
}

// HostCounter reports how many remote hosts the fetchers have contacted
type HostCounter interface {
	Hosts() int
}

// Server serves liveness and pipeline statistics
type Server struct {
	httpServer *http.Server
	stats      StatsSource
	repo       storage.Repository
	strategies []models.Strategy
	hosts      HostCounter
	log        *logger.Logger
}

// Option customises a Server
type Option func(*Server)

// WithStrategies lists the extraction strategies the collector can run
func WithStrategies(strategies []models.Strategy) Option {
	return func(s *Server) { s.strategies = strategies }
}

// WithHostCounter reports rate-limited hosts under /stats
func WithHostCounter(h HostCounter) Option {
	return func(s *Server) { s.hosts = h }
}

type statsResponse struct {
	Scheduler  scheduler.StatsSnapshot `json:"scheduler"`
	Feeds      int                     `json:"feeds"`
	Articles   int64                   `json:"articles"`
	Strategies []models.Strategy       `json:"strategies,omitempty"`
	FetchHosts int                     `json:"fetch_hosts"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates a health server listening on port
func New(port string, stats StatsSource, repo storage.Repository, log *logger.Logger, opts ...Option) *Server {
	s := &Server{
		stats: stats,
		repo:  repo,
		log:   log.WithComponent("health"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.httpServer = &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("feed-collector"))
	})
	return r
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("Health server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := statsResponse{Scheduler: s.stats.Snapshot(), Strategies: s.strategies}
	if s.hosts != nil {
		resp.FetchHosts = s.hosts.Hosts()
	}

	feeds, err := s.repo.ListFeeds(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	resp.Feeds = len(feeds)

	if resp.Articles, err = s.repo.CountArticles(ctx, nil); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
