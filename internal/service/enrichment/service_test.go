package enrichment

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kapu/lead-analyzer-go/internal/domain"
	"github.com/kapu/lead-analyzer-go/internal/service/ai"
	"github.com/kapu/lead-analyzer-go/internal/service/normalizer"
	"github.com/kapu/lead-analyzer-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeScraper struct {
	profile *domain.ScrapedProfile
	err     error
}

func (f *fakeScraper) Scrape(context.Context, string) (*domain.ScrapedProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := *f.profile
	return &p, nil
}

type fakeGenerator struct {
	available bool
	photo     string
	photoErr  error
	json      string
	jsonErr   error

	mu         sync.Mutex
	textCalls  int
	images     []*ai.Image
	presets    []ai.ModelPreset
	lastPrompt string
}

func (f *fakeGenerator) Available() bool { return f.available }

func (f *fakeGenerator) GenerateText(_ context.Context, p string, preset ai.ModelPreset, opts *ai.GenerateOptions) (string, *ai.GenerateMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textCalls++
	f.presets = append(f.presets, preset)
	if opts != nil {
		f.images = append(f.images, opts.Image)
	}
	if f.photoErr != nil {
		return "", nil, f.photoErr
	}
	return f.photo, &ai.GenerateMetadata{Provider: "Gemini"}, nil
}

func (f *fakeGenerator) GenerateJSON(_ context.Context, p string, preset ai.ModelPreset, dest any, _ *ai.GenerateOptions) (*ai.GenerateMetadata, error) {
	f.mu.Lock()
	f.presets = append(f.presets, preset)
	f.lastPrompt = p
	f.mu.Unlock()
	if f.jsonErr != nil {
		return nil, f.jsonErr
	}
	if err := json.Unmarshal([]byte(f.json), dest); err != nil {
		return nil, err
	}
	return &ai.GenerateMetadata{Provider: "Gemini", Model: "gemini-test"}, nil
}

type recordingProgress struct {
	mu    sync.Mutex
	steps []domain.ProgressStep
}

func (p *recordingProgress) Publish(ev domain.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, ev.Step)
}

// 1x1 PNG
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
}

func photoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pic.png" {
			http.NotFound(w, r)
			return
		}
		w.Write(pngPixel)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func sampleProfile(pic string) *domain.ScrapedProfile {
	return &domain.ScrapedProfile{
		Username:   "bob",
		FullName:   "Bob Silva",
		Bio:        "Fotógrafo de casamentos em Floripa, apaixonado por luz natural",
		Followers:  "15.2K",
		Following:  "892",
		Posts:      "347",
		ProfilePic: pic,
		IsBusiness: true,
		Website:    "https://bob.photo",
		RecentPosts: []domain.ScrapedPost{
			{Caption: "Casamento na praia", Thumbnail: "https://cdn/1.jpg", Likes: 120},
			{Caption: "Bastidores", IsVideo: true},
		},
	}
}

const strategyJSON = `{
	"gender": "male",
	"bio_analysis": "Fotógrafo focado em casamentos",
	"connection_points": ["Luz natural", "Floripa"],
	"sales_opportunities": ["Agenda cheia na alta temporada"],
	"messages": [{"label": "Primeira", "text": "Oi Bob!"}],
	"lead_interests": [{"category": "Fotografia", "detail": "casamentos"}],
	"post_insights": [{"index": 1, "insight": "mostra bastidores", "theme": "processo"}, {"index": 9, "insight": "ignorado"}],
	"approach_script": "<h4>1</h4>",
	"conversation_guide": "<h4>Fase 1</h4>",
	"executive_summary": "<p>Bom lead</p>"
}`

func newService(scraper ProfileScraper, gen Generator, progress domain.ProgressReporter) *Service {
	return New(Deps{Scraper: scraper, Models: gen, Progress: progress, Logger: zap.NewNop()})
}

func TestAnalyzeWithModel(t *testing.T) {
	srv := photoServer(t)
	gen := &fakeGenerator{available: true, photo: " Sorriso aberto, fundo de praia. ", json: strategyJSON}
	progress := &recordingProgress{}
	svc := newService(&fakeScraper{profile: sampleProfile(srv.URL + "/pic.png")}, gen, progress)

	payload, err := svc.Analyze(context.Background(), "@bob", domain.TrainingProfile{UserName: "Ana"})
	require.NoError(t, err)

	assert.Equal(t, "ai", payload.Source)
	assert.Equal(t, "Gemini", payload.Provider)
	assert.Equal(t, "Sorriso aberto, fundo de praia.", payload.PhotoAnalysis)
	assert.Equal(t, []string{"Luz natural", "Floripa"}, payload.ConnectionPoints)

	require.Len(t, payload.RecentPosts, 2)
	assert.Equal(t, domain.PostTypeImage, payload.RecentPosts[0].Type)
	assert.Empty(t, payload.RecentPosts[0].Insight)
	assert.Equal(t, domain.PostTypeVideo, payload.RecentPosts[1].Type)
	assert.Equal(t, "mostra bastidores", payload.RecentPosts[1].Insight)

	require.Len(t, gen.images, 1)
	require.NotNil(t, gen.images[0])
	assert.Equal(t, "image/png", gen.images[0].MIMEType)
	assert.Equal(t, []ai.ModelPreset{ai.PresetPrecise, ai.PresetBalanced}, gen.presets)
	assert.Contains(t, gen.lastPrompt, "Foto de perfil: Sorriso aberto, fundo de praia.")

	assert.Equal(t, []domain.ProgressStep{domain.StepScrape, domain.StepPhoto, domain.StepAI}, progress.steps)
}

func TestAnalyzePayloadNormalizes(t *testing.T) {
	gen := &fakeGenerator{available: true, json: strategyJSON}
	svc := newService(&fakeScraper{profile: sampleProfile("")}, gen, nil)

	payload, err := svc.Analyze(context.Background(), "bob", domain.TrainingProfile{})
	require.NoError(t, err)

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	result, err := normalizer.Normalize(raw, "bob")
	require.NoError(t, err)
	assert.Equal(t, "Bob Silva", result.Profile.FullName)
	assert.Equal(t, "15.2K", result.Profile.Followers)
	assert.True(t, result.Profile.IsBusiness)
	assert.Equal(t, domain.GenderMale, result.Gender)
	assert.Equal(t, photoUnavailable, result.PhotoAnalysis)
	assert.Equal(t, "Fotógrafo focado em casamentos", result.BioAnalysis.Text)
	require.Len(t, result.PostsAnalyzed, 2)
	assert.Equal(t, "processo", result.PostsAnalyzed[1].Theme)
	assert.Equal(t, "casamentos", result.LeadInterests[0].Detail)
}

func TestAnalyzeFallsBackWhenModelFails(t *testing.T) {
	srv := photoServer(t)
	gen := &fakeGenerator{available: true, photoErr: stderrors.New("503"), jsonErr: stderrors.New("503")}
	svc := newService(&fakeScraper{profile: sampleProfile(srv.URL + "/pic.png")}, gen, nil)

	payload, err := svc.Analyze(context.Background(), "bob", domain.TrainingProfile{})
	require.NoError(t, err)

	assert.Equal(t, "fallback", payload.Source)
	assert.Equal(t, photoFailed, payload.PhotoAnalysis)
	assert.Equal(t, "Perfil @bob com 15.2K seguidores", payload.ConnectionPoints[0])
	assert.Equal(t, `Bio menciona: "Fotógrafo de casamentos em Floripa, apaixonado por..."`, payload.ConnectionPoints[1])
	assert.Equal(t, "Conta business - potencial profissional", payload.ConnectionPoints[3])
	assert.Equal(t, "Website disponível: https://bob.photo", payload.ConnectionPoints[4])
	assert.Len(t, payload.SalesOpportunities, 4)
	assert.Contains(t, payload.ApproachScript, "Oi Bob Silva!")
	assert.Contains(t, payload.ApproachScript, "Curti especialmente Fotógrafo de casamentos em Flo...")
	assert.Contains(t, payload.ExecutiveSummary, "@bob apresenta potencial")
	assert.Len(t, payload.RecentPosts, 2)
}

func TestAnalyzeWithoutProvider(t *testing.T) {
	gen := &fakeGenerator{available: false}
	svc := newService(&fakeScraper{profile: sampleProfile("https://cdn/pic.jpg")}, gen, nil)

	payload, err := svc.Analyze(context.Background(), "bob", domain.TrainingProfile{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", payload.Source)
	assert.Equal(t, photoFailed, payload.PhotoAnalysis)
	assert.Zero(t, gen.textCalls)
}

func TestAnalyzePhotoFetchFailure(t *testing.T) {
	srv := photoServer(t)
	gen := &fakeGenerator{available: true, photo: "nunca usado", json: strategyJSON}
	svc := newService(&fakeScraper{profile: sampleProfile(srv.URL + "/missing.png")}, gen, nil)

	payload, err := svc.Analyze(context.Background(), "bob", domain.TrainingProfile{})
	require.NoError(t, err)
	assert.Equal(t, photoFailed, payload.PhotoAnalysis)
	assert.Zero(t, gen.textCalls)
}

func TestAnalyzeScraperErrorPassesThrough(t *testing.T) {
	notFound := errors.NewAppError("profile not found or private", errors.CodeNotFound, 404, nil)
	svc := newService(&fakeScraper{err: notFound}, &fakeGenerator{available: true}, nil)

	_, err := svc.Analyze(context.Background(), "ghost", domain.TrainingProfile{})
	status, code := errors.StatusOf(err)
	assert.Equal(t, 404, status)
	assert.Equal(t, errors.CodeNotFound, code)
}

func TestAnalyzeRequiresUsername(t *testing.T) {
	svc := newService(&fakeScraper{}, nil, nil)
	_, err := svc.Analyze(context.Background(), " @ ", domain.TrainingProfile{})
	var vErr *errors.ValidationError
	assert.True(t, stderrors.As(err, &vErr))
}

func TestFallbackStrategyWithoutBio(t *testing.T) {
	s := FallbackStrategy(domain.ScrapedProfile{Username: "ana", Followers: "10", Posts: "2"}, photoUnavailable)

	assert.Equal(t, []string{
		"Perfil @ana com 10 seguidores",
		"Bio não disponível para análise",
		"Ativo no Instagram com 2 publicações",
		"Conta pessoal",
		"Sem website externo",
	}, s.ConnectionPoints)
	assert.Contains(t, s.ApproachScript, "Oi ana! Vi seu perfil e achei muito interessante seu trabalho. Gostei do seu conteúdo!")
	assert.Equal(t, 4, strings.Count(s.ConversationGuide, "<h4>"))
	assert.Equal(t, photoUnavailable, s.PhotoAnalysis)
}

func TestHandleDispatch(t *testing.T) {
	gen := &fakeGenerator{available: true, json: `{"follow_up_message": " Que legal! Me conta mais? ", "tips": "pergunte"}`}
	svc := newService(&fakeScraper{profile: sampleProfile("")}, gen, nil)
	ctx := context.Background()

	out, err := svc.Handle(ctx, domain.NewTestConnectionRequest())
	require.NoError(t, err)
	assert.Equal(t, TestConnection(), out)

	out, err = svc.Handle(ctx, domain.NewFollowUpRequest(domain.LeadProfile{Username: "bob"}, "Oi, tudo bem?", "You sent: \"Oi\"", domain.TrainingProfile{}))
	require.NoError(t, err)
	reply := out.(*FollowUpReply)
	assert.Equal(t, "Que legal! Me conta mais?", reply.Message)
	assert.Equal(t, "pergunte", reply.Tips)
	assert.Contains(t, gen.lastPrompt, `"Oi, tudo bem?"`)
	assert.Equal(t, ai.PresetCreative, gen.presets[len(gen.presets)-1])

	_, err = svc.Handle(ctx, domain.WebhookRequest{Action: "dance"})
	var vErr *errors.ValidationError
	assert.True(t, stderrors.As(err, &vErr))
}

func TestHandleAnalyzeTakesUsernameFromURL(t *testing.T) {
	svc := newService(&fakeScraper{profile: sampleProfile("")}, &fakeGenerator{available: true, json: strategyJSON}, nil)

	out, err := svc.Handle(context.Background(), domain.WebhookRequest{
		Action: domain.ActionAnalyzeProfile,
		URL:    "https://www.instagram.com/bob/",
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", out.(*Payload).Profile.Username)
}

func TestFollowUpErrors(t *testing.T) {
	ctx := context.Background()

	svc := newService(&fakeScraper{}, &fakeGenerator{available: true}, nil)
	_, err := svc.FollowUp(ctx, domain.WebhookRequest{Action: domain.ActionFollowUp, Username: "bob"})
	var vErr *errors.ValidationError
	assert.True(t, stderrors.As(err, &vErr))

	svc = newService(&fakeScraper{}, &fakeGenerator{available: true, jsonErr: stderrors.New("boom")}, nil)
	_, err = svc.FollowUp(ctx, domain.WebhookRequest{Action: domain.ActionFollowUp, Username: "bob", LeadResponse: "oi"})
	var sErr *errors.ServiceError
	require.True(t, stderrors.As(err, &sErr))
	assert.Equal(t, "follow_up", sErr.Operation)

	svc = newService(&fakeScraper{}, &fakeGenerator{available: true, json: `{"follow_up_message": "  "}`}, nil)
	_, err = svc.FollowUp(ctx, domain.WebhookRequest{Action: domain.ActionFollowUp, Username: "bob", LeadResponse: "oi"})
	assert.True(t, stderrors.As(err, &sErr))
}
