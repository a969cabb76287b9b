package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/benmeehan/field-agent/internal/models"
	"github.com/benmeehan/field-agent/internal/services"
	"github.com/benmeehan/field-agent/pkg/session"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Attendance logs workers in and out.
type Attendance interface {
	Login(ctx context.Context, code string) (session.User, error)
	Logout(ctx context.Context) error
	Current() (session.User, bool)
}

// Deliveries manages the worker's delivery list.
type Deliveries interface {
	List(ctx context.Context) ([]models.Delivery, error)
	Cancel(ctx context.Context, id string) error
	Sign(ctx context.Context, proof models.DeliveryProof) error
}

// Server is the local HTTP API used by the on-device screens.
type Server struct {
	address         string
	shutdownTimeout time.Duration

	locator    services.LocationSource
	attendance Attendance
	deliveries Deliveries
	logger     zerolog.Logger

	mu     sync.Mutex
	server *http.Server
	wg     sync.WaitGroup
}

// NewServer creates the local API server. It does not listen until Start is called.
func NewServer(address string, shutdownTimeout time.Duration, locator services.LocationSource, attendance Attendance,
	deliveries Deliveries, logger zerolog.Logger) *Server {
	return &Server{
		address:         address,
		shutdownTimeout: shutdownTimeout,
		locator:         locator,
		attendance:      attendance,
		deliveries:      deliveries,
		logger:          logger,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/location", s.handleLocation).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)
	r.HandleFunc("/deliveries", s.handleDeliveries).Methods(http.MethodGet)
	r.HandleFunc("/deliveries/{id}/cancel", s.handleCancel).Methods(http.MethodPost)
	r.HandleFunc("/deliveries/{id}/sign", s.handleSign).Methods(http.MethodPost)
	return r
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		s.logger.Warn().Msg("Web server is already running")
		return errors.New("web server is already running")
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.server = srv

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Web server stopped unexpectedly")
		}
	}()

	s.logger.Info().Str("address", listener.Addr().String()).Msg("Web server started")
	return nil
}

// Stop shuts the server down, waiting up to the shutdown timeout for in-flight requests.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		s.logger.Warn().Msg("Web server is not running")
		return errors.New("web server is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	err := s.server.Shutdown(ctx)
	s.wg.Wait()
	s.server = nil

	if err != nil {
		return fmt.Errorf("failed to shut down web server: %w", err)
	}
	s.logger.Info().Msg("Web server stopped")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
