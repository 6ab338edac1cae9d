package server

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kapu/lead-analyzer-go/internal/domain"
	"github.com/kapu/lead-analyzer-go/internal/service/enrichment"
	"github.com/kapu/lead-analyzer-go/internal/service/expert"
	"github.com/kapu/lead-analyzer-go/internal/service/history"
	"github.com/kapu/lead-analyzer-go/internal/service/session"
	"github.com/kapu/lead-analyzer-go/internal/service/webhook"
	"github.com/kapu/lead-analyzer-go/internal/service/workspace"
	"github.com/kapu/lead-analyzer-go/internal/store"
	"github.com/kapu/lead-analyzer-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

type fakeEnricher struct {
	payload *enrichment.Payload
	err     error
}

func (f *fakeEnricher) Handle(ctx context.Context, req domain.WebhookRequest) (any, error) {
	return enrichment.TestConnection(), nil
}

func (f *fakeEnricher) Analyze(_ context.Context, username string, _ domain.TrainingProfile) (*enrichment.Payload, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := *f.payload
	p.Profile.Username = username
	return &p, nil
}

type staticScraper struct{}

func (staticScraper) Scrape(_ context.Context, username string) (*domain.ScrapedProfile, error) {
	if username == "ghost" {
		return nil, errors.NewAppError("profile not found or private", errors.CodeNotFound, 404, nil)
	}
	return &domain.ScrapedProfile{
		Username:  username,
		FullName:  "Bob Silva",
		Bio:       "Fotógrafo",
		Followers: "12K",
		Following: "300",
		Posts:     "87",
	}, nil
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(NewRouter(Deps{Logger: zap.NewNop()}))
	defer srv.Close()

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "ok", out["status"])
	_, err := time.Parse(time.RFC3339, out["timestamp"])
	assert.NoError(t, err)
}

func TestAnalyzeEndpointContract(t *testing.T) {
	enricher := &fakeEnricher{payload: &enrichment.Payload{Source: "ai"}}
	srv := httptest.NewServer(NewRouter(Deps{Enricher: enricher, Logger: zap.NewNop()}))
	defer srv.Close()

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/analyze", map[string]string{"url": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Username é obrigatório"}`, string(body))

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/analyze", map[string]string{"username": "@bob"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var payload enrichment.Payload
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "bob", payload.Profile.Username)

	enricher.err = errors.NewAppError("profile not found or private", errors.CodeNotFound, 404, nil)
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/analyze", map[string]string{"username": "ghost"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Perfil não encontrado ou privado"}`, string(body))

	enricher.err = stderrors.New("scraper exploded")
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/analyze", map[string]string{"username": "bob"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Erro ao processar análise","message":"scraper exploded"}`, string(body))

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/test", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"connected","message":"Conexão estabelecida com sucesso!"}`, string(body))
}

type stack struct {
	srv *httptest.Server
	ws  *workspace.Workspace
	hub *Hub
}

// newStack serves the workspace and its own collaborator from one router,
// so analyses go through the real webhook client and back.
func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()
	kv := store.NewMemory()

	registry, err := expert.NewRegistry(ctx, kv, logger)
	require.NoError(t, err)
	ledger, err := history.NewLedger(ctx, kv, logger)
	require.NoError(t, err)

	hub := NewHub(logger)
	ws, err := workspace.New(ctx, workspace.Deps{
		Registry: registry,
		Ledger:   ledger,
		Session:  session.New(ledger, logger),
		Client:   webhook.NewClient(30*time.Second, logger),
		KV:       kv,
		Progress: hub,
		Logger:   logger,
	})
	require.NoError(t, err)

	enricher := enrichment.New(enrichment.Deps{Scraper: staticScraper{}, Progress: hub, Logger: logger})
	srv := httptest.NewServer(NewRouter(Deps{
		Workspace: ws,
		Registry:  registry,
		Enricher:  enricher,
		Hub:       hub,
		Logger:    logger,
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &stack{srv: srv, ws: ws, hub: hub}
}

func TestWorkspaceRoundTripThroughOwnWebhook(t *testing.T) {
	s := newStack(t)
	base := s.srv.URL

	resp, body := doJSON(t, http.MethodPost, base+"/api/workspace/analyze", map[string]string{"input": "@bob"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(body))
	assert.Contains(t, string(body), errors.CodeExpertNotConfigured)

	resp, _ = doJSON(t, http.MethodPut, base+"/api/experts/1", domain.TrainingProfile{UserName: "Ana"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPut, base+"/api/settings", map[string]string{"n8nWebhook": base + "/webhook"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = doJSON(t, http.MethodPost, base+"/api/workspace/test-connection", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = doJSON(t, http.MethodPost, base+"/api/workspace/analyze", map[string]string{"input": "https://www.instagram.com/bob/"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var entry domain.HistoryEntry
	require.NoError(t, json.Unmarshal(body, &entry))
	assert.Equal(t, "bob", entry.Username)
	assert.Equal(t, "Bob Silva", entry.FullName)
	assert.Equal(t, "Perfil @bob com 12K seguidores", entry.Data.ConnectionPoints[0])
	assert.False(t, entry.Data.Demo)

	resp, body = doJSON(t, http.MethodPost, base+"/api/workspace/follow-up", map[string]string{"message": "Oi! Tudo sim"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var reply workspace.FollowUpResult
	require.NoError(t, json.Unmarshal(body, &reply))
	assert.True(t, reply.Local)
	assert.NotEmpty(t, reply.Message)
	assert.Equal(t, "Resposta gerada localmente devido a erro de conexão.", reply.Tips)

	resp, body = doJSON(t, http.MethodGet, base+"/api/workspace/current", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var current currentResponse
	require.NoError(t, json.Unmarshal(body, &current))
	require.Len(t, current.Thread, 2)
	assert.Equal(t, domain.MessageReceived, current.Thread[0].Type)

	resp, body = doJSON(t, http.MethodGet, base+"/api/history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []domain.HistoryEntry
	require.NoError(t, json.Unmarshal(body, &entries))
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Conversation, 2)

	resp, _ = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/history/%d", base, entry.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, base+"/api/history/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), errors.CodeValidation)

	resp, body = doJSON(t, http.MethodPost, base+"/api/compose", workspace.ComposeRequest{Greeting: "Oi {nome}!", Question: "Tudo bem?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Oi Bob! Tudo bem?"}`, string(body))
}

func TestWorkspaceErrorsCarryCode(t *testing.T) {
	s := newStack(t)

	resp, body := doJSON(t, http.MethodPost, s.srv.URL+"/api/workspace/follow-up", map[string]string{"message": "oi"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var out map[string]string
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, errors.CodeNoActiveSession, out["code"])

	resp, body = doJSON(t, http.MethodPost, s.srv.URL+"/api/experts/9/activate", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), errors.CodeUnknownExpert)

	resp, _ = doJSON(t, http.MethodPut, s.srv.URL+"/api/settings", map[string]string{"n8nWebhook": "ftp://nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, s.srv.URL+"/webhook", map[string]string{"action": "analyze_profile", "username": "ghost"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportImport(t *testing.T) {
	s := newStack(t)
	base := s.srv.URL

	backup := domain.Backup{
		TrainingData: domain.TrainingProfile{UserName: "Carla"},
		History:      []domain.HistoryEntry{{ID: 42, Username: "bob"}},
		Settings:     domain.BackupSettings{Webhook: "https://hooks.example.com/x"},
	}
	resp, body := doJSON(t, http.MethodPost, base+"/api/import", backup)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"history":1}`, string(body))

	resp, body = doJSON(t, http.MethodGet, base+"/api/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

	var exported domain.Backup
	require.NoError(t, json.Unmarshal(body, &exported))
	assert.Equal(t, "Carla", exported.TrainingData.UserName)
	assert.Equal(t, "https://hooks.example.com/x", exported.Settings.Webhook)
	require.Len(t, exported.History, 1)
	assert.EqualValues(t, 42, exported.History[0].ID)

	resp, _ = doJSON(t, http.MethodDelete, base+"/api/workspace/", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, s.ws.History())
}

func TestProgressStream(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(NewRouter(Deps{Hub: hub, Logger: zap.NewNop()}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/progress"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(domain.ProgressEvent{Step: domain.StepScrape, Username: "bob", At: time.Now()})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev domain.ProgressEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, domain.StepScrape, ev.Step)
	assert.Equal(t, "bob", ev.Username)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
	hub.Close()
}

func TestHubCloseDisconnectsSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Zero(t, hub.Count())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
