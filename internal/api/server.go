// Package api exposes the HTTP interface for the enrichment service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/beesyst/zen-crm-bot/internal/config"
	"github.com/beesyst/zen-crm-bot/internal/enrich"
	"github.com/beesyst/zen-crm-bot/internal/metrics"
	"github.com/beesyst/zen-crm-bot/internal/resolver"
)

// Enricher runs page fetch-and-extract attempts.
type Enricher interface {
	Fetch(ctx context.Context, req enrich.FetchRequest) enrich.FetchResult
}

// ProfileResolver resolves social handles to profiles.
type ProfileResolver interface {
	Resolve(ctx context.Context, input string, opts resolver.Options) enrich.SocialProfile
}

// EnrichmentStore persists fetch and resolution outcomes. Optional.
type EnrichmentStore interface {
	SaveFetch(ctx context.Context, result enrich.FetchResult) error
	SaveProfile(ctx context.Context, profile enrich.SocialProfile) error
}

// EventPublisher emits enrichment events for downstream consumers.
// Optional.
type EventPublisher interface {
	Publish(ctx context.Context, payload any, attributes map[string]string) error
}

// SnapshotArchiver stores rendered HTML snapshots. Optional.
type SnapshotArchiver interface {
	Archive(ctx context.Context, pageURL string, html []byte) (string, error)
}

// Server wires HTTP handlers to the engine and resolver.
type Server struct {
	router    chi.Router
	enricher  Enricher
	resolver  ProfileResolver
	store     EnrichmentStore
	publisher EventPublisher
	archiver  SnapshotArchiver
	cfg       config.Config
}

// Deps collects the Server's collaborators. Enricher and Resolver are
// required; the rest may be nil.
type Deps struct {
	Enricher  Enricher
	Resolver  ProfileResolver
	Store     EnrichmentStore
	Publisher EventPublisher
	Archiver  SnapshotArchiver
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config) *Server {
	s := &Server{
		enricher:  deps.Enricher,
		resolver:  deps.Resolver,
		store:     deps.Store,
		publisher: deps.Publisher,
		archiver:  deps.Archiver,
		cfg:       cfg,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)
	r.Use(recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(2 * time.Minute))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/enrich", s.enrichPage)
		r.Post("/resolve", s.resolveProfile)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type enrichRequest struct {
	URL         string                  `json:"url"`
	WaitUntil   string                  `json:"wait_until"`
	TimeoutMs   int                     `json:"timeout_ms"`
	Retries     *int                    `json:"retries"`
	Fingerprint *enrich.FingerprintSpec `json:"fingerprint"`
	Headers     map[string]string       `json:"headers"`
	Cookies     []enrich.Cookie         `json:"cookies"`
	NeedHTML    bool                    `json:"need_html"`
	NeedText    bool                    `json:"need_text"`
	NeedSocials *bool                   `json:"need_socials"`
}

func (s *Server) enrichPage(w http.ResponseWriter, r *http.Request) {
	var req enrichRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}

	fetchReq := enrich.FetchRequest{
		URL:         req.URL,
		WaitUntil:   enrich.WaitCondition(req.WaitUntil),
		Timeout:     time.Duration(req.TimeoutMs) * time.Millisecond,
		Fingerprint: req.Fingerprint,
		Cookies:     req.Cookies,
		Retries:     valueOrDefault(req.Retries, s.cfg.Fetch.Retries),
		NeedHTML:    req.NeedHTML,
		NeedText:    req.NeedText,
		NeedSocials: valueOrDefault(req.NeedSocials, true),
	}
	for k, v := range req.Headers {
		if fetchReq.Headers == nil {
			fetchReq.Headers = http.Header{}
		}
		fetchReq.Headers.Set(k, v)
	}

	result := s.enricher.Fetch(r.Context(), fetchReq)

	outcome := "ok"
	if !result.OK {
		outcome = "failed"
	}
	metrics.ObserveFetch(req.URL, outcome, result.Timing.Duration)
	if result.AntiBot.Detected {
		metrics.ObserveAntiBot(req.URL, result.AntiBot.Kind)
	}
	for key := range result.Socials {
		metrics.ObserveSocialLink(string(key))
	}

	s.persistFetch(r.Context(), result)
	writeJSON(w, http.StatusOK, result)
}

type resolveRequest struct {
	Handle        string `json:"handle"`
	PreferPrimary *bool  `json:"prefer_primary"`
	TimeoutMs     int    `json:"timeout_ms"`
	Retries       *int   `json:"retries"`
}

func (s *Server) resolveProfile(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Handle == "" {
		writeError(w, http.StatusBadRequest, "handle required")
		return
	}

	profile := s.resolver.Resolve(r.Context(), req.Handle, resolver.Options{
		PreferPrimary: valueOrDefault(req.PreferPrimary, s.cfg.Resolver.PreferPrimary),
		Timeout:       time.Duration(req.TimeoutMs) * time.Millisecond,
		Retries:       valueOrDefault(req.Retries, s.cfg.Resolver.Retries),
	})

	outcome := "ok"
	if !profile.OK {
		outcome = "failed"
	}
	metrics.ObserveResolution(string(profile.Source), outcome)

	s.persistProfile(r.Context(), profile)
	writeJSON(w, http.StatusOK, profile)
}

// persistFetch runs the optional side effects: snapshot archive, store
// write and event publish. Failures are logged, never surfaced; the
// enrichment result is already in hand.
func (s *Server) persistFetch(ctx context.Context, result enrich.FetchResult) {
	logger := slog.Default()
	if s.archiver != nil && result.HTML != "" {
		if uri, err := s.archiver.Archive(ctx, result.FinalURL, []byte(result.HTML)); err != nil {
			logger.Error("snapshot archive failed", "url", result.FinalURL, "error", err)
		} else {
			logger.Info("snapshot archived", "uri", uri)
		}
	}
	if s.store != nil {
		if err := s.store.SaveFetch(ctx, result); err != nil {
			logger.Error("fetch persist failed", "url", result.URL, "error", err)
		}
	}
	if s.publisher != nil && result.OK {
		attrs := map[string]string{"type": "page.enriched"}
		if err := s.publisher.Publish(ctx, result, attrs); err != nil {
			logger.Error("fetch publish failed", "url", result.URL, "error", err)
		}
	}
}

func (s *Server) persistProfile(ctx context.Context, profile enrich.SocialProfile) {
	logger := slog.Default()
	if s.store != nil {
		if err := s.store.SaveProfile(ctx, profile); err != nil {
			logger.Error("profile persist failed", "handle", profile.Handle, "error", err)
		}
	}
	if s.publisher != nil && profile.OK {
		attrs := map[string]string{"type": "profile.resolved"}
		if err := s.publisher.Publish(ctx, profile, attrs); err != nil {
			logger.Error("profile publish failed", "handle", profile.Handle, "error", err)
		}
	}
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		logger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered", "error", rec)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Error("write JSON failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
