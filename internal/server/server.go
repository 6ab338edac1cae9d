// Package server exposes the workspace and the enrichment collaborator over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kapu/lead-analyzer-go/internal/domain"
	"github.com/kapu/lead-analyzer-go/internal/service/enrichment"
	"github.com/kapu/lead-analyzer-go/internal/service/expert"
	"github.com/kapu/lead-analyzer-go/internal/service/workspace"
	"github.com/kapu/lead-analyzer-go/internal/util"
	"github.com/kapu/lead-analyzer-go/pkg/errors"
	"go.uber.org/zap"
)

const maxRequestBodySize = 8 << 20

// Enricher is implemented by *enrichment.Service.
type Enricher interface {
	Handle(ctx context.Context, req domain.WebhookRequest) (any, error)
	Analyze(ctx context.Context, username string, training domain.TrainingProfile) (*enrichment.Payload, error)
}

type Deps struct {
	Workspace *workspace.Workspace
	Registry  *expert.Registry
	Enricher  Enricher
	Hub       *Hub
	Logger    *zap.Logger
}

type handlers struct {
	ws       *workspace.Workspace
	registry *expert.Registry
	enricher Enricher
	logger   *zap.Logger
	now      func() time.Time
}

// NewRouter builds the HTTP API. Collaborator routes are mounted only when
// Enricher is set, workspace routes only when Workspace is set.
func NewRouter(deps Deps) http.Handler {
	h := &handlers{
		ws:       deps.Workspace,
		registry: deps.Registry,
		enricher: deps.Enricher,
		logger:   util.OrNop(deps.Logger),
		now:      time.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/health", h.handleHealth)

	if h.enricher != nil {
		r.Post("/webhook", h.handleWebhook)
		r.Post("/api/analyze", h.handleAnalyze)
		r.Post("/api/test", h.handleTest)
	}

	if h.ws != nil && h.registry != nil {
		r.Route("/api/experts", func(r chi.Router) {
			r.Get("/", h.handleListExperts)
			r.Post("/", h.handleAddExpert)
			r.Put("/{id}", h.handleSaveExpert)
			r.Post("/{id}/activate", h.handleActivateExpert)
			r.Delete("/{id}/training", h.handleResetExpert)
		})

		r.Route("/api/workspace", func(r chi.Router) {
			r.Post("/analyze", h.handleWorkspaceAnalyze)
			r.Post("/follow-up", h.handleFollowUp)
			r.Get("/current", h.handleCurrent)
			r.Get("/suggestions", h.handleSuggestions)
			r.Post("/test-connection", h.handleTestConnection)
			r.Delete("/", h.handleClearAll)
		})

		r.Get("/api/history", h.handleListHistory)
		r.Get("/api/history/{id}", h.handleGetHistory)
		r.Post("/api/history/{id}/open", h.handleOpenHistory)

		r.Get("/api/export", h.handleExport)
		r.Post("/api/import", h.handleImport)
		r.Get("/api/settings", h.handleGetSettings)
		r.Put("/api/settings", h.handleSaveSettings)
		r.Post("/api/compose", h.handleCompose)
	}

	if deps.Hub != nil {
		r.Get("/ws/progress", deps.Hub.ServeHTTP)
	}

	return r
}

func (h *handlers) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders err as {error, code} with the status it carries.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errors.StatusOf(err)
	if status >= 500 {
		h.logger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.String("code", code),
			zap.Error(err),
		)
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  code,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return errors.NewValidationError("invalid request body: "+err.Error(), "body", nil)
	}
	return nil
}
