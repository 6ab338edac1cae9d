package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kapu/lead-analyzer-go/internal/domain"
	"github.com/kapu/lead-analyzer-go/internal/service/workspace"
	"github.com/kapu/lead-analyzer-go/pkg/errors"
)

type expertsResponse struct {
	Experts        []domain.Expert `json:"experts"`
	ActiveExpertID string          `json:"activeExpertId"`
}

type workspaceAnalyzeRequest struct {
	Input    string `json:"input"`
	ExpertID string `json:"expertId"`
}

type followUpRequest struct {
	Message string `json:"message"`
}

type currentResponse struct {
	Result domain.AnalysisResult  `json:"result"`
	Thread []domain.ThreadMessage `json:"thread"`
}

type settingsBody struct {
	Webhook string `json:"n8nWebhook"`
}

type testConnectionRequest struct {
	URL string `json:"url"`
}

func (h *handlers) experts() expertsResponse {
	return expertsResponse{Experts: h.registry.List(), ActiveExpertID: h.registry.Active().ID}
}

func (h *handlers) handleListExperts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.experts())
}

func (h *handlers) handleAddExpert(w http.ResponseWriter, r *http.Request) {
	e, err := h.registry.Add(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *handlers) handleSaveExpert(w http.ResponseWriter, r *http.Request) {
	var data domain.TrainingProfile
	if err := decodeBody(w, r, &data); err != nil {
		h.writeError(w, r, err)
		return
	}
	e, err := h.registry.Save(r.Context(), chi.URLParam(r, "id"), data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *handlers) handleActivateExpert(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.SetActive(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.experts())
}

func (h *handlers) handleResetExpert(w http.ResponseWriter, r *http.Request) {
	e, err := h.registry.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *handlers) handleWorkspaceAnalyze(w http.ResponseWriter, r *http.Request) {
	var req workspaceAnalyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ExpertID == "" {
		req.ExpertID = h.registry.Active().ID
	}

	entry, err := h.ws.Analyze(r.Context(), req.Input, req.ExpertID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *handlers) handleFollowUp(w http.ResponseWriter, r *http.Request) {
	var req followUpRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.ws.FollowUp(r.Context(), req.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) handleCurrent(w http.ResponseWriter, r *http.Request) {
	result, thread, ok := h.ws.Current()
	if !ok {
		h.writeError(w, r, errors.ErrNoActiveSession)
		return
	}
	if thread == nil {
		thread = []domain.ThreadMessage{}
	}
	writeJSON(w, http.StatusOK, currentResponse{Result: result, Thread: thread})
}

func (h *handlers) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	s, err := h.ws.Suggestions()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *handlers) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	var req testConnectionRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	if err := h.ws.TestConnection(r.Context(), req.URL); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

func (h *handlers) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.ClearAll(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) handleListHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ws.History())
}

func historyID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.NewValidationError("history id must be a number", "id", raw)
	}
	return id, nil
}

func (h *handlers) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := historyID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	e, err := h.ws.HistoryEntry(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *handlers) handleOpenHistory(w http.ResponseWriter, r *http.Request) {
	id, err := historyID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	e, err := h.ws.Open(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *handlers) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Disposition", `attachment; filename="lead-analyzer-backup.json"`)
	writeJSON(w, http.StatusOK, h.ws.Export())
}

func (h *handlers) handleImport(w http.ResponseWriter, r *http.Request) {
	var b domain.Backup
	if err := decodeBody(w, r, &b); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.ws.Import(r.Context(), b); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"history": len(h.ws.History())})
}

func (h *handlers) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, settingsBody{Webhook: h.ws.WebhookURL()})
}

func (h *handlers) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var body settingsBody
	if err := decodeBody(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.ws.SaveSettings(r.Context(), body.Webhook); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsBody{Webhook: h.ws.WebhookURL()})
}

func (h *handlers) handleCompose(w http.ResponseWriter, r *http.Request) {
	var req workspace.ComposeRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": h.ws.Compose(req)})
}
