// Package api exposes the booking engine over HTTP. Handlers are
// stateless; all coordination happens in the service and store layers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"agendo/internal/config"
	"agendo/internal/database"
	"agendo/internal/domain"
	"agendo/internal/metrics"

	"github.com/rs/zerolog"
)

// HTTPServer serves the public booking API.
type HTTPServer struct {
	cfg    config.APIConfig
	booker domain.Booker
	store  domain.Store
	server *http.Server
	auth   *HTTPAuth
	logger zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, booker domain.Booker, store domain.Store, shared domain.SharedState, logger *zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:    cfg,
		booker: booker,
		store:  store,
		logger: logger.With().Str("component", "http").Logger(),
	}
	srv.auth = NewHTTPAuth(cfg, shared)

	mux.HandleFunc("/api/v1/professionals/", srv.handleProfessionals)
	mux.HandleFunc("/api/v1/payments/webhook", srv.handlePaymentWebhook)
	mux.HandleFunc("/healthz", srv.handleHealthz)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
		metrics.IncHTTP(r.URL.Path, strconv.Itoa(recorder.status))
	})
}

// mapError converts storage and validation errors to HTTP status codes.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, database.ErrProfessionalNotFound),
		errors.Is(err, database.ErrServiceNotFound),
		errors.Is(err, database.ErrReservationNotFound),
		errors.Is(err, database.ErrAppointmentNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, database.ErrSlotTaken),
		errors.Is(err, database.ErrDayFull):
		return http.StatusConflict, err.Error()
	case errors.Is(err, database.ErrReservationExpired),
		errors.Is(err, database.ErrPastDate),
		errors.Is(err, database.ErrDateTooFar),
		errors.Is(err, database.ErrSlotUnavailable),
		errors.Is(err, database.ErrServiceInactive):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, database.ErrInvalidClient):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *HTTPServer) writeMappedError(w http.ResponseWriter, err error) {
	status, msg := mapError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("Request failed")
	}
	writeError(w, status, msg)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
