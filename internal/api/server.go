package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/benmeehan/collar-sync/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// Syncer is the part of the sync service the API drives.
type Syncer interface {
	SyncExternal(ctx context.Context) (models.SyncSummary, error)
	SyncToCollar(ctx context.Context) (models.PushSummary, error)
	LatestPositions(ctx context.Context) ([]models.Position, error)
	Stats() models.CycleStats
	State() string
}

// Server serves the ingestion, trigger and health endpoints.
type Server struct {
	address   string
	syncer    Syncer
	store     storage.PositionStore
	directory storage.DeviceDirectory
	gatherer  prometheus.Gatherer
	now       func() time.Time
	logger    zerolog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	wg         sync.WaitGroup
}

// NewServer creates a server listening on address once started.
func NewServer(address string, syncer Syncer, store storage.PositionStore, directory storage.DeviceDirectory,
	gatherer prometheus.Gatherer, logger zerolog.Logger) *Server {

	return &Server{
		address:   address,
		syncer:    syncer,
		store:     store,
		directory: directory,
		gatherer:  gatherer,
		now:       time.Now,
		logger:    logger,
	}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/location", s.handleCreateLocation)
		r.Get("/locations/latest", s.handleLatest)
		r.Post("/sync-external", s.handleSyncExternal)
		r.Post("/sync-to-collar", s.handleSyncToCollar)
	})
	return r
}

// Start begins serving in a separate goroutine.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return errors.New("api server is already running")
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	server := s.httpServer
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("API server stopped unexpectedly")
		}
	}()

	s.logger.Info().Str("address", listener.Addr().String()).Msg("API server started successfully")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, letting in-flight requests finish.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer == nil {
		return errors.New("api server is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)
	s.wg.Wait()

	s.httpServer = nil
	s.listener = nil
	s.logger.Info().Msg("API server stopped")
	return err
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(started)).
			Msg("HTTP request")
	})
}
