// Package server exposes the assist pipeline over HTTP: router, auth and
// rate-limit middleware, and the handlers for assist, info, preview, and
// health.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/venture-kit/plan-proxy/internal/config"
	"github.com/venture-kit/plan-proxy/internal/llm"
	"github.com/venture-kit/plan-proxy/internal/planner"
	"github.com/venture-kit/plan-proxy/internal/preview"
	"github.com/venture-kit/plan-proxy/internal/ratelimit"
)

// CallerFactory builds an llm.Caller bound to an API key. The server uses it
// once for the configured key and per-request for dev-header keys.
type CallerFactory func(apiKey string) *llm.Caller

// Options wires a Server.
type Options struct {
	Config       *config.Config
	Orchestrator *planner.Orchestrator
	Counter      ratelimit.Counter
	Previewer    *preview.Fetcher
	NewCaller    CallerFactory
	DefaultKey   string
	// ConfiguredModel is reported by the info endpoint; empty when the
	// operator set none and the chain is all defaults.
	ConfiguredModel string
}

// Server carries the handler dependencies.
type Server struct {
	cfg             *config.Config
	orch            *planner.Orchestrator
	counter         ratelimit.Counter
	previewer       *preview.Fetcher
	newCaller       CallerFactory
	defaultCaller   *llm.Caller
	defaultKey      string
	configuredModel string
}

// New builds a Server. The default caller is constructed eagerly when a key
// is configured.
func New(opts Options) *Server {
	s := &Server{
		cfg:             opts.Config,
		orch:            opts.Orchestrator,
		counter:         opts.Counter,
		previewer:       opts.Previewer,
		newCaller:       opts.NewCaller,
		defaultKey:      opts.DefaultKey,
		configuredModel: opts.ConfiguredModel,
	}
	if s.defaultKey != "" {
		s.defaultCaller = s.newCaller(s.defaultKey)
	}
	return s
}

// Router assembles the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Groq-Key", "X-App-Secret"},
		MaxAge:         300,
	}))
	r.Use(noStore)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/assist", s.handleAssistInfo)
		r.With(s.rateLimited, s.authenticated).Post("/assist", s.handleAssist)
		r.Get("/preview", s.handlePreview)
	})
	return r
}

// noStore keeps proxies and browsers from caching per-request model output.
func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAssistInfo reports readiness and capabilities so clients can verify
// deployment state before posting work.
func (s *Server) handleAssistInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":              "assist endpoint ready. POST JSON to use.",
		"version":              planner.EnvelopeVersion,
		"codeVersion":          s.orch.CodeVersion,
		"configured":           s.defaultKey != "",
		"configuredModel":      s.configuredModel,
		"modelCandidates":      s.orch.Models,
		"planSupported":        true,
		"strictModelSupported": true,
	})
}

func (s *Server) handleAssist(w http.ResponseWriter, r *http.Request) {
	var req planner.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_body"})
		return
	}

	caller, ok := s.resolveCaller(r)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "missing_server_key",
			"hint":  "configure the provider key or enable the dev header outside production",
		})
		return
	}

	env, err := s.orch.Handle(r.Context(), caller, req)
	if err != nil {
		if he, isHTTP := planner.AsHTTPError(err); isHTTP {
			writeJSON(w, he.Status, he.Body())
			return
		}
		zap.L().Error("server: assist failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":  "proxy_error",
			"detail": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, env)
}

// resolveCaller picks the upstream credential: the configured key when
// present, otherwise a per-request X-Groq-Key when the dev header is enabled
// outside production.
func (s *Server) resolveCaller(r *http.Request) (*llm.Caller, bool) {
	if s.defaultCaller != nil {
		return s.defaultCaller, true
	}
	if s.cfg.Proxy.AllowDevHeader && s.cfg.Proxy.Environment != "production" {
		if key := r.Header.Get("X-Groq-Key"); key != "" {
			return s.newCaller(key), true
		}
	}
	return nil, false
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	text, err := s.previewer.Preview(r.Context(), target)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_target"})
		return
	}
	if text == "" {
		writeJSON(w, http.StatusOK, map[string]any{"preview": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"preview": text})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: write response", zap.Error(err))
	}
}
