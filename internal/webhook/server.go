package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"blinghook/internal/config"
	"blinghook/internal/payload"
	"blinghook/internal/store"
)

// Server is the webhook HTTP server. Each request is handled on its own
// goroutine with no shared mutable state outside the store.
type Server struct {
	cfg    *config.Config
	rec    Reconciler
	logger *slog.Logger
	server *http.Server
}

// New creates a new webhook server instance.
func New(cfg *config.Config, rec Reconciler, logger *slog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		rec:    rec,
		logger: logger,
	}
}

// Start starts the webhook HTTP server (blocking until ctx is canceled).
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server starting", "listen", s.cfg.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// Routes configures the HTTP router.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Post(WebhookPath, s.handleWebhook)
	r.Get("/healthz", s.handleHealth)

	return r
}

// loggingMiddleware logs HTTP requests (excludes payload bodies).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// handleWebhook runs one delivery through the state machine:
// signature check, event-class filter, normalize, reconcile.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limited := io.LimitReader(r.Body, s.cfg.MaxBodySize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}
	if int64(len(body)) > s.cfg.MaxBodySize {
		s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if !Verify(body, signature, s.cfg.ClientSecret) {
		s.logger.Warn("webhook signature verification failed",
			"signature_present", signature != "",
		)
		s.respondError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	env, err := payload.Decode(body)
	if err != nil {
		s.logger.Error("webhook payload decode failed", "error", err)
		s.recordDelivery(ctx, "", nil, store.DeliveryFailed, err)
		s.respondError(w, http.StatusInternalServerError, "malformed payload")
		return
	}

	if !payload.AcceptsEvent(env.Event) {
		s.logger.Info("webhook event ignored", "event", env.Event)
		s.recordDelivery(ctx, env.Event, nil, store.DeliveryIgnored, nil)
		s.respondJSON(w, http.StatusOK, StatusResponse{Status: "ignored", Event: env.Event})
		return
	}

	order, items, err := payload.Normalize(env)
	if err != nil {
		s.logger.Error("webhook payload rejected", "event", env.Event, "error", err)
		s.recordDelivery(ctx, env.Event, nil, store.DeliveryFailed, err)
		s.respondError(w, http.StatusInternalServerError, "invalid order payload")
		return
	}

	if err := s.rec.Reconcile(ctx, order, items); err != nil {
		s.logger.Error("order reconciliation failed",
			"event", env.Event,
			"external_id", order.ExternalID,
			"error", err,
		)
		s.recordDelivery(ctx, env.Event, &order.ExternalID, store.DeliveryFailed, err)
		s.respondError(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}

	s.logger.Info("order reconciled",
		"event", env.Event,
		"external_id", order.ExternalID,
		"items", len(items),
	)
	s.recordDelivery(ctx, env.Event, &order.ExternalID, store.DeliveryReconciled, nil)
	s.respondJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleHealth reports process and store liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rec.Ping(r.Context()); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	s.respondJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// recordDelivery writes a best-effort processing receipt. By the time a
// receipt is written the reconcile outcome is already settled, so a
// failed insert is logged and not surfaced to the sender.
func (s *Server) recordDelivery(ctx context.Context, event string, externalID *string, status string, cause error) {
	d := store.Delivery{
		ID:         uuid.NewString(),
		Event:      event,
		ExternalID: externalID,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	}
	if cause != nil {
		d.Error = cause.Error()
	}
	if err := s.rec.RecordDelivery(ctx, d); err != nil {
		s.logger.Warn("delivery receipt write failed", "event", event, "error", err)
	}
}

// respondJSON sends a JSON response. The status line is already on the
// wire when encoding runs, so a write failure can only be logged.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("response write failed", "status", status, "error", err)
	}
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}
