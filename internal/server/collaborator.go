package server

import (
	"net/http"
	"strings"

	"github.com/kapu/lead-analyzer-go/internal/domain"
	"github.com/kapu/lead-analyzer-go/internal/service/enrichment"
	"github.com/kapu/lead-analyzer-go/pkg/errors"
	"go.uber.org/zap"
)

type analyzeRequest struct {
	Username     string                  `json:"username"`
	URL          string                  `json:"url"`
	TrainingData *domain.TrainingProfile `json:"training_data"`
}

// handleWebhook serves the collaborator actions posted by the workspace.
func (h *handlers) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req domain.WebhookRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	out, err := h.enricher.Handle(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleAnalyze serves the legacy analyze endpoint with its Portuguese error messages.
func (h *handlers) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	username := strings.TrimPrefix(strings.TrimSpace(req.Username), "@")
	if username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Username é obrigatório"})
		return
	}

	var training domain.TrainingProfile
	if req.TrainingData != nil {
		training = *req.TrainingData
	}

	h.logger.Info("Analysis requested", zap.String("username", username))
	payload, err := h.enricher.Analyze(r.Context(), username, training)
	if err != nil {
		if status, _ := errors.StatusOf(err); status == http.StatusNotFound {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Perfil não encontrado ou privado"})
			return
		}
		h.logger.Error("Analysis failed", zap.String("username", username), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Erro ao processar análise",
			"message": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *handlers) handleTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, enrichment.TestConnection())
}
