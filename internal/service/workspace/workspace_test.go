package workspace

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kapu/lead-analyzer-go/internal/domain"
	"github.com/kapu/lead-analyzer-go/internal/service/expert"
	"github.com/kapu/lead-analyzer-go/internal/service/history"
	"github.com/kapu/lead-analyzer-go/internal/service/session"
	"github.com/kapu/lead-analyzer-go/internal/store"
	"github.com/kapu/lead-analyzer-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCollaborator struct {
	mu       sync.Mutex
	calls    []domain.WebhookRequest
	analyze  func(req domain.WebhookRequest) ([]byte, error)
	followUp func(req domain.WebhookRequest) ([]byte, error)
	probe    error
}

func (f *fakeCollaborator) record(req domain.WebhookRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
}

func (f *fakeCollaborator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeCollaborator) Analyze(_ context.Context, _ string, req domain.WebhookRequest) ([]byte, error) {
	f.record(req)
	return f.analyze(req)
}

func (f *fakeCollaborator) FollowUp(_ context.Context, _ string, req domain.WebhookRequest) ([]byte, error) {
	f.record(req)
	return f.followUp(req)
}

func (f *fakeCollaborator) TestConnection(context.Context, string) error {
	return f.probe
}

type recordingProgress struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (p *recordingProgress) Publish(ev domain.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingProgress) steps() []domain.ProgressStep {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.ProgressStep, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Step)
	}
	return out
}

func profilePayload(username, fullName string) []byte {
	return []byte(`{"profile":{"username":"` + username + `","full_name":"` + fullName + `","followers":"20K"},"photo_analysis":"ok"}`)
}

type fixture struct {
	ws       *Workspace
	kv       *store.Memory
	registry *expert.Registry
	ledger   *history.Ledger
	client   *fakeCollaborator
	progress *recordingProgress
}

func newFixture(t *testing.T, webhook string) *fixture {
	t.Helper()
	ctx := context.Background()
	kv := store.NewMemory()
	logger := zap.NewNop()

	registry, err := expert.NewRegistry(ctx, kv, logger)
	require.NoError(t, err)
	ledger, err := history.NewLedger(ctx, kv, logger)
	require.NoError(t, err)

	client := &fakeCollaborator{
		analyze: func(req domain.WebhookRequest) ([]byte, error) {
			return profilePayload(req.Username, "Bob Silva"), nil
		},
		followUp: func(domain.WebhookRequest) ([]byte, error) {
			return []byte(`{"follow_up_message":"Que bom!","tips":"seja breve"}`), nil
		},
	}
	progress := &recordingProgress{}

	ws, err := New(ctx, Deps{
		Registry:       registry,
		Ledger:         ledger,
		Session:        session.New(ledger, logger),
		Client:         client,
		KV:             kv,
		Progress:       progress,
		Logger:         logger,
		DefaultWebhook: webhook,
	})
	require.NoError(t, err)
	ws.pick = func(int) int { return 0 }

	return &fixture{ws: ws, kv: kv, registry: registry, ledger: ledger, client: client, progress: progress}
}

func (f *fixture) configureExpert(t *testing.T, id, name string) {
	t.Helper()
	_, err := f.registry.Save(context.Background(), id, domain.TrainingProfile{UserName: name, UserBusiness: "Mentoria"})
	require.NoError(t, err)
}

func TestExtractUsername(t *testing.T) {
	cases := map[string]string{
		"https://www.instagram.com/bob.silva/":       "bob.silva",
		"https://instagram.com/bob_silva?igshid=abc": "bob_silva",
		"@bob":      "bob",
		"  bob.99 ": "bob.99",
	}
	for input, want := range cases {
		got, ok := ExtractUsername(input)
		assert.True(t, ok, input)
		assert.Equal(t, want, got, input)
	}

	for _, bad := range []string{"", "not a handle", "https://example.com/bob"} {
		_, ok := ExtractUsername(bad)
		assert.False(t, ok, bad)
	}
}

func TestAnalyzeRecordsHistoryAndStartsSession(t *testing.T) {
	f := newFixture(t, "http://hook.local/analyze")
	f.configureExpert(t, "1", "Ana")

	entry, err := f.ws.Analyze(context.Background(), "https://instagram.com/bob", "")
	require.NoError(t, err)
	assert.Equal(t, "bob", entry.Username)
	assert.Equal(t, "Bob Silva", entry.FullName)
	assert.False(t, entry.Data.Demo)

	require.Len(t, f.client.calls, 1)
	req := f.client.calls[0]
	assert.Equal(t, domain.ActionAnalyzeProfile, req.Action)
	assert.Equal(t, "https://instagram.com/bob", req.URL)
	require.NotNil(t, req.TrainingData)
	assert.Equal(t, "Ana", req.TrainingData.UserName)

	current, thread, ok := f.ws.Current()
	require.True(t, ok)
	assert.Equal(t, "bob", current.Profile.Username)
	assert.Empty(t, thread)
	assert.Equal(t, 1, f.ledger.Len())
	assert.Equal(t, []domain.ProgressStep{domain.StepConnect, domain.StepFinish}, f.progress.steps())
}

func TestAnalyzeBareHandleBuildsProfileURL(t *testing.T) {
	f := newFixture(t, "http://hook.local/analyze")
	f.configureExpert(t, "1", "Ana")

	_, err := f.ws.Analyze(context.Background(), "@bob", "")
	require.NoError(t, err)
	assert.Equal(t, "https://www.instagram.com/bob/", f.client.calls[0].URL)
}

func TestAnalyzeUnconfiguredExpertFailsBeforeNetwork(t *testing.T) {
	f := newFixture(t, "http://hook.local/analyze")

	_, err := f.ws.Analyze(context.Background(), "bob", "")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrExpertNotConfigured))
	assert.Zero(t, f.client.callCount())
	assert.Zero(t, f.ledger.Len())
	assert.Empty(t, f.progress.steps())
}

func TestAnalyzeUnknownExpert(t *testing.T) {
	f := newFixture(t, "http://hook.local/analyze")

	_, err := f.ws.Analyze(context.Background(), "bob", "42")
	assert.True(t, stderrors.Is(err, errors.ErrUnknownExpertID))
	assert.Zero(t, f.client.callCount())
}

func TestAnalyzeRequiresWebhook(t *testing.T) {
	f := newFixture(t, "")
	f.configureExpert(t, "1", "Ana")

	_, err := f.ws.Analyze(context.Background(), "bob", "")
	assert.True(t, stderrors.Is(err, errors.ErrWebhookNotConfigured))
	assert.Zero(t, f.client.callCount())
}

func TestAnalyzeInvalidInput(t *testing.T) {
	f := newFixture(t, "http://hook.local/analyze")
	f.configureExpert(t, "1", "Ana")

	_, err := f.ws.Analyze(context.Background(), "not a profile", "")
	var vErr *errors.ValidationError
	require.True(t, stderrors.As(err, &vErr))
	assert.Equal(t, "input", vErr.Field)
}

func TestAnalyzeUnreachableUsesDemoResult(t *testing.T) {
	f := newFixture(t, "http://hook.local/analyze")
	f.configureExpert(t, "1", "Ana")
	f.client.analyze = func(domain.WebhookRequest) ([]byte, error) {
		return nil, errors.NewNetworkUnreachable("http://hook.local/analyze", stderrors.New("connection refused"))
	}

	entry, err := f.ws.Analyze(context.Background(), "bob", "")
	require.NoError(t, err)
	assert.True(t, entry.Data.Demo)
	assert.Equal(t, "bob", entry.Data.Profile.Username)
	assert.Equal(t, "15.2K", entry.Data.Profile.Followers)
	assert.Len(t, entry.Data.ConnectionPoints, 5)
	assert.Contains(t, entry.Data.ExecutiveSummary, "@bob")
	assert.Equal(t, 1, f.ledger.Len())
}

func TestAnalyzeOtherErrorsDoNotFallBack(t *testing.T) {
	f := newFixture(t, "http://hook.local/analyze")
	f.configureExpert(t, "1", "Ana")

	cases := []struct {
		name string
		err  error
		body []byte
		want error
	}{
		{name: "timeout", err: errors.NewAnalysisTimedOut("240s", context.DeadlineExceeded), want: errors.ErrAnalysisTimedOut},
		{name: "unknown shape", body: []byte(`{"foo":1}`), want: errors.ErrInvalidResponseShape},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.client.analyze = func(domain.WebhookRequest) ([]byte, error) {
				return tc.body, tc.err
			}
			_, err := f.ws.Analyze(context.Background(), "bob", "")
			assert.True(t, stderrors.Is(err, tc.want), "got %v", err)
		})
	}
	assert.Zero(t, f.ledger.Len())
	_, _, ok := f.ws.Current()
	assert.False(t, ok)
}

func TestAnalyzeSupersededResultIsDiscarded(t *testing.T) {
	f := newFixture(t, "http://hook.local/analyze")
	f.configureExpert(t, "1", "Ana")

	started := make(chan struct{})
	release := make(chan struct{})
	f.client.analyze = func(req domain.WebhookRequest) ([]byte, error) {
		if req.Username == "alice" {
			close(started)
			<-release
		}
		return profilePayload(req.Username, "X"), nil
	}

	errc := make(chan error, 1)
	go func() {
		_, err := f.ws.Analyze(context.Background(), "alice", "")
		errc <- err
	}()

	<-started
	_, err := f.ws.Analyze(context.Background(), "bob", "")
	require.NoError(t, err)
	close(release)

	select {
	case err := <-errc:
		assert.True(t, stderrors.Is(err, errors.ErrAnalysisSuperseded))
	case <-time.After(5 * time.Second):
		t.Fatal("first analysis never returned")
	}

	current, _, ok := f.ws.Current()
	require.True(t, ok)
	assert.Equal(t, "bob", current.Profile.Username)
	require.Equal(t, 1, f.ledger.Len())
	assert.Equal(t, "bob", f.ledger.List()[0].Username)
}

func TestFollowUpRequiresSession(t *testing.T) {
	f := newFixture(t, "http://hook.local/analyze")

	_, err := f.ws.FollowUp(context.Background(), "oi")
	assert.True(t, stderrors.Is(err, errors.ErrNoActiveSession))
}

func TestFollowUpUsesCollaboratorReply(t *testing.T) {
	f := newFixture(t, "http://hook.local/analyze")
	f.configureExpert(t, "1", "Ana")
	ctx := context.Background()

	_, err := f.ws.Analyze(ctx, "bob", "")
	require.NoError(t, err)

	res, err := f.ws.FollowUp(ctx, "Oi, tudo bem!")
	require.NoError(t, err)
	assert.Equal(t, FollowUpResult{Message: "Que bom!", Tips: "seja breve"}, res)

	req := f.client.calls[1]
	assert.Equal(t, domain.ActionFollowUp, req.Action)
	assert.Equal(t, "Oi, tudo bem!", req.LeadResponse)
	assert.Equal(t, `Lead replied: "Oi, tudo bem!"`, req.ConversationHistory)
	require.NotNil(t, req.LeadProfile)
	assert.Equal(t, "bob", req.LeadProfile.Username)
	assert.Equal(t, "Ana", req.TrainingData.UserName)

	_, thread, _ := f.ws.Current()
	require.Len(t, thread, 2)
	assert.Equal(t, domain.MessageReceived, thread[0].Type)
	assert.Equal(t, domain.MessageSent, thread[1].Type)
	assert.Equal(t, "Que bom!", thread[1].Message)

	entry, ok := f.ledger.FindByUsername("bob")
	require.True(t, ok)
	assert.Len(t, entry.Conversation, 2)
}

func TestFollowUpFallsBackToLocalReply(t *testing.T) {
	ctx := context.Background()

	t.Run("transport error", func(t *testing.T) {
		f := newFixture(t, "http://hook.local/analyze")
		f.configureExpert(t, "1", "Ana")
		_, err := f.ws.Analyze(ctx, "bob", "")
		require.NoError(t, err)
		f.client.followUp = func(domain.WebhookRequest) ([]byte, error) {
			return nil, errors.NewNetworkUnreachable("x", stderrors.New("refused"))
		}

		res, err := f.ws.FollowUp(ctx, "hmm")
		require.NoError(t, err)
		assert.True(t, res.Local)
		assert.Equal(t, "Interessante, Bob! Me conta mais sobre isso...", res.Message)
		assert.Equal(t, tipTransportErr, res.Tips)
	})

	t.Run("unrecognized reply", func(t *testing.T) {
		f := newFixture(t, "http://hook.local/analyze")
		f.configureExpert(t, "1", "Ana")
		_, err := f.ws.Analyze(ctx, "bob", "")
		require.NoError(t, err)
		f.client.followUp = func(domain.WebhookRequest) ([]byte, error) {
			return []byte(`{"ok":true}`), nil
		}
		f.ws.pick = func(int) int { return 2 }

		res, err := f.ws.FollowUp(ctx, "hmm")
		require.NoError(t, err)
		assert.True(t, res.Local)
		assert.Equal(t, "Faz sentido! Já tentou alguma abordagem diferente?", res.Message)
		assert.Equal(t, tipNoReply, res.Tips)

		_, thread, _ := f.ws.Current()
		assert.Len(t, thread, 2)
	})
}

func TestSaveSettings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")

	err := f.ws.SaveSettings(ctx, "ftp://nope")
	var vErr *errors.ValidationError
	require.True(t, stderrors.As(err, &vErr))

	require.NoError(t, f.ws.SaveSettings(ctx, " https://n8n.local/webhook/abc "))
	assert.Equal(t, "https://n8n.local/webhook/abc", f.ws.WebhookURL())
	stored, ok, err := f.kv.Get(ctx, "n8nWebhook")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://n8n.local/webhook/abc", stored)

	require.NoError(t, f.ws.SaveSettings(ctx, ""))
	assert.Empty(t, f.ws.WebhookURL())
}

func TestTestConnection(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	assert.True(t, stderrors.Is(f.ws.TestConnection(ctx, ""), errors.ErrWebhookNotConfigured))
	assert.NoError(t, f.ws.TestConnection(ctx, "http://hook.local/x"))

	f.client.probe = errors.NewAPIError("webhook error (500): boom", 500, nil)
	assert.Error(t, f.ws.TestConnection(ctx, "http://hook.local/x"))
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newFixture(t, "http://hook.local/analyze")
	src.configureExpert(t, "1", "Ana")
	src.configureExpert(t, "2", "Bia")
	require.NoError(t, src.registry.SetActive(ctx, "2"))
	_, err := src.ws.Analyze(ctx, "bob", "")
	require.NoError(t, err)

	data, err := json.Marshal(src.ws.Export())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"n8nWebhook":"http://hook.local/analyze"`)
	assert.Contains(t, string(data), `"trainingData":{`)

	var backup domain.Backup
	require.NoError(t, json.Unmarshal(data, &backup))

	dst := newFixture(t, "")
	require.NoError(t, dst.ws.Import(ctx, backup))

	assert.Equal(t, "http://hook.local/analyze", dst.ws.WebhookURL())
	assert.Equal(t, "2", dst.registry.Active().ID)
	assert.Equal(t, "Bia", dst.registry.Active().Data.UserName)
	require.Equal(t, 1, dst.ledger.Len())
	assert.Equal(t, src.ledger.List()[0].ID, dst.ledger.List()[0].ID)
}

func TestImportLegacyBackup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")

	raw := `{"trainingData":{"userName":"Caio","communicationTone":"formal"},"history":[],"settings":{"webhookUrl":"https://n8n.local/hook"}}`
	var backup domain.Backup
	require.NoError(t, json.Unmarshal([]byte(raw), &backup))
	require.NoError(t, f.ws.Import(ctx, backup))

	active := f.registry.Active()
	assert.Equal(t, "Caio", active.Name)
	assert.Equal(t, domain.ToneFormal, active.Data.CommunicationTone)
	assert.Equal(t, "https://n8n.local/hook", f.ws.WebhookURL())
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	require.NoError(t, f.ws.SaveSettings(ctx, "https://n8n.local/hook"))
	f.configureExpert(t, "1", "Ana")
	_, err := f.ws.Analyze(ctx, "bob", "")
	require.NoError(t, err)

	require.NoError(t, f.ws.ClearAll(ctx))

	assert.Zero(t, f.ledger.Len())
	assert.Empty(t, f.ws.WebhookURL())
	assert.False(t, f.registry.IsConfigured("1"))
	_, _, ok := f.ws.Current()
	assert.False(t, ok)
	_, ok, err = f.kv.Get(ctx, "n8nWebhook")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenRestoresSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "http://hook.local/analyze")
	f.configureExpert(t, "1", "Ana")
	first, err := f.ws.Analyze(ctx, "alice", "")
	require.NoError(t, err)
	_, err = f.ws.Analyze(ctx, "bob", "")
	require.NoError(t, err)

	_, err = f.ws.Open(first.ID)
	require.NoError(t, err)
	current, _, _ := f.ws.Current()
	assert.Equal(t, "alice", current.Profile.Username)

	_, err = f.ws.Open(12345)
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
}

func TestComposeAndSuggestions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "http://hook.local/analyze")
	f.configureExpert(t, "1", "Ana")

	assert.Equal(t, "Oi Nome, tudo bem?", f.ws.Compose(ComposeRequest{Greeting: "Oi {nome}, tudo bem?"}))

	f.client.analyze = func(domain.WebhookRequest) ([]byte, error) {
		return []byte(`{"profile":{"username":"bob","full_name":"Bob Silva","bio":"` + strings.Repeat("a", 60) + `","followers":"15.2K","category":"Fotografia"},
			"lead_interests":[{"category":"Hobby","detail":"Surf","conversation_starter":"Você surfa onde?"},{"category":"Viagem","detail":"Japão"}]}`), nil
	}
	_, err := f.ws.Analyze(ctx, "bob", "")
	require.NoError(t, err)

	s, err := f.ws.Suggestions()
	require.NoError(t, err)
	texts := make([]string, 0, len(s.Hooks))
	for _, h := range s.Hooks {
		texts = append(texts, h.Text)
	}
	assert.Equal(t, []string{
		"vi que " + strings.Repeat("a", 50) + "...",
		"vi que trabalha com fotografia,",
		"vi que tem uma boa audiência por aqui,",
		"vi que me seguiu, seja bem-vindo por aqui Bob!",
		"vi seu perfil por aqui,",
	}, texts)
	assert.Equal(t, []Chip{
		{Label: "Hobby: Surf", Text: "Você surfa onde?"},
		{Label: "Viagem: Japão", Text: "Japão"},
	}, s.Interests)

	msg := f.ws.Compose(ComposeRequest{
		Greeting: "Oi {nome}!",
		Hook:     "vi seu perfil por aqui,",
		Question: "Como você começou nisso?",
	})
	assert.Equal(t, "Oi Bob! vi seu perfil por aqui, Como você começou nisso?", msg)
}
