// Package enrichment is the scraping and AI collaborator: it scrapes a
// profile, asks the model for an outreach strategy and answers the webhook
// actions the workspace sends.
package enrichment

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/kapu/lead-analyzer-go/internal/constants"
	"github.com/kapu/lead-analyzer-go/internal/domain"
	"github.com/kapu/lead-analyzer-go/internal/prompt"
	"github.com/kapu/lead-analyzer-go/internal/service/ai"
	"github.com/kapu/lead-analyzer-go/internal/service/workspace"
	"github.com/kapu/lead-analyzer-go/internal/util"
	"github.com/kapu/lead-analyzer-go/pkg/errors"
	"go.uber.org/zap"
)

// ProfileScraper is implemented by *scraper.ScraperService.
type ProfileScraper interface {
	Scrape(ctx context.Context, username string) (*domain.ScrapedProfile, error)
}

// Generator is implemented by *ai.ModelManager.
type Generator interface {
	Available() bool
	GenerateText(ctx context.Context, prompt string, preset ai.ModelPreset, opts *ai.GenerateOptions) (string, *ai.GenerateMetadata, error)
	GenerateJSON(ctx context.Context, prompt string, preset ai.ModelPreset, dest any, opts *ai.GenerateOptions) (*ai.GenerateMetadata, error)
}

type Deps struct {
	Scraper  ProfileScraper
	Models   Generator
	Prompts  *prompt.PromptBuilder
	Progress domain.ProgressReporter
	Logger   *zap.Logger
}

type Service struct {
	scraper    ProfileScraper
	models     Generator
	prompts    *prompt.PromptBuilder
	progress   domain.ProgressReporter
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

func New(deps Deps) *Service {
	prompts := deps.Prompts
	if prompts == nil {
		prompts = prompt.DefaultPromptBuilder()
	}
	progress := deps.Progress
	if progress == nil {
		progress = domain.NopProgress{}
	}
	return &Service{
		scraper:  deps.Scraper,
		models:   deps.Models,
		prompts:  prompts,
		progress: progress,
		httpClient: &http.Client{
			Timeout: constants.Timeouts.PhotoFetch,
		},
		logger: util.OrNop(deps.Logger),
		now:    time.Now,
	}
}

// Handle answers one webhook action. The returned value is JSON encoded by the caller.
func (s *Service) Handle(ctx context.Context, req domain.WebhookRequest) (any, error) {
	switch req.Action {
	case domain.ActionAnalyzeProfile:
		username := strings.TrimPrefix(strings.TrimSpace(req.Username), "@")
		if username == "" {
			username, _ = workspace.ExtractUsername(req.URL)
		}
		var training domain.TrainingProfile
		if req.TrainingData != nil {
			training = *req.TrainingData
		}
		return s.Analyze(ctx, username, training)
	case domain.ActionFollowUp:
		return s.FollowUp(ctx, req)
	case domain.ActionTestConnection:
		return TestConnection(), nil
	default:
		return nil, errors.NewValidationError("unknown action", "action", string(req.Action))
	}
}

// TestConnection is the fixed answer to test_connection.
func TestConnection() ConnectionStatus {
	return ConnectionStatus{Status: "connected", Message: "Conexão estabelecida com sucesso!"}
}

// Analyze scrapes username and builds its strategy. Scraper errors are
// returned as is; model failures degrade to FallbackStrategy.
func (s *Service) Analyze(ctx context.Context, username string, training domain.TrainingProfile) (*Payload, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return nil, errors.NewValidationError("username is required", "username", username)
	}

	s.logger.Info("Starting enrichment", zap.String("username", username))

	s.publish(domain.StepScrape, username)
	profile, err := s.scraper.Scrape(ctx, username)
	if err != nil {
		return nil, err
	}

	s.publish(domain.StepPhoto, username)
	photo := s.analyzePhoto(ctx, profile)

	s.publish(domain.StepAI, username)
	payload := &Payload{Profile: *profile, Source: "ai"}

	strategy, meta, err := s.generateStrategy(ctx, profile, photo, training)
	switch {
	case err == nil:
		payload.Provider = meta.Provider
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		s.logger.Warn("Strategy generation failed, using fallback",
			zap.String("username", username),
			zap.Error(err),
		)
		strategy = FallbackStrategy(*profile, photo)
		payload.Source = "fallback"
	}

	if strategy.PhotoAnalysis == "" {
		strategy.PhotoAnalysis = photo
	}
	payload.Strategy = strategy
	payload.RecentPosts = mergePosts(profile.RecentPosts, strategy.PostInsights)

	s.logger.Info("Enrichment finished",
		zap.String("username", username),
		zap.String("source", payload.Source),
		zap.Int("posts", len(payload.RecentPosts)),
	)
	return payload, nil
}

func (s *Service) generateStrategy(ctx context.Context, profile *domain.ScrapedProfile, photo string, training domain.TrainingProfile) (Strategy, *ai.GenerateMetadata, error) {
	if s.models == nil || !s.models.Available() {
		return Strategy{}, nil, ai.ErrNoProvider
	}

	text, err := s.prompts.Render(prompt.TemplateProfileAnalysis, prompt.NewProfileAnalysisData(*profile, photo, training))
	if err != nil {
		return Strategy{}, nil, err
	}

	var strategy Strategy
	meta, err := s.models.GenerateJSON(ctx, text, s.preset(prompt.TemplateProfileAnalysis), &strategy, nil)
	if err != nil {
		return Strategy{}, nil, err
	}
	if !strategy.usable() {
		return Strategy{}, nil, fmt.Errorf("model returned an empty strategy")
	}
	return strategy, meta, nil
}

// analyzePhoto never fails; it returns one of the fixed notes instead.
func (s *Service) analyzePhoto(ctx context.Context, profile *domain.ScrapedProfile) string {
	if profile.ProfilePic == "" {
		return photoUnavailable
	}
	if s.models == nil || !s.models.Available() {
		return photoFailed
	}

	img, err := s.fetchPhoto(ctx, profile.ProfilePic)
	if err != nil {
		s.logger.Warn("Failed to fetch profile photo", zap.String("username", profile.Username), zap.Error(err))
		return photoFailed
	}

	text, err := s.prompts.Render(prompt.TemplatePhotoAnalysis, prompt.PhotoAnalysisData{
		Username: profile.Username,
		FullName: profile.FullName,
		Category: profile.Category,
	})
	if err != nil {
		s.logger.Error("Failed to render photo prompt", zap.Error(err))
		return photoFailed
	}

	out, _, err := s.models.GenerateText(ctx, text, s.preset(prompt.TemplatePhotoAnalysis), &ai.GenerateOptions{Image: img})
	if err != nil {
		s.logger.Warn("Photo analysis failed", zap.String("username", profile.Username), zap.Error(err))
		return photoFailed
	}
	if out = strings.TrimSpace(out); out == "" {
		return photoFailed
	}
	return out
}

func (s *Service) fetchPhoto(ctx context.Context, url string) (*ai.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.Timeouts.PhotoFetch)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", constants.InstagramConfig.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	limit := constants.InstagramConfig.MaxPhotoBytes
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("photo larger than %d bytes", limit)
	}

	mimeType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("not an image: %s", mimeType)
	}

	return &ai.Image{Data: data, MIMEType: mimeType}, nil
}

// FollowUp writes the next message of a running conversation.
func (s *Service) FollowUp(ctx context.Context, req domain.WebhookRequest) (*FollowUpReply, error) {
	if strings.TrimSpace(req.LeadResponse) == "" {
		return nil, errors.NewValidationError("lead response is required", "lead_response", req.LeadResponse)
	}

	profile := domain.LeadProfile{Username: req.Username}
	if req.LeadProfile != nil {
		profile = *req.LeadProfile
	}
	var training domain.TrainingProfile
	if req.TrainingData != nil {
		training = *req.TrainingData
	}

	if s.models == nil {
		return nil, errors.NewServiceError("failed to generate follow-up", "enrichment", "follow_up", ai.ErrNoProvider)
	}

	text, err := s.prompts.Render(prompt.TemplateFollowUp, prompt.NewFollowUpData(profile, req.LeadResponse, req.ConversationHistory, training))
	if err != nil {
		return nil, err
	}

	var reply FollowUpReply
	if _, err := s.models.GenerateJSON(ctx, text, s.preset(prompt.TemplateFollowUp), &reply, nil); err != nil {
		if stderrors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, errors.NewServiceError("failed to generate follow-up", "enrichment", "follow_up", err)
	}
	reply.Message = strings.TrimSpace(reply.Message)
	if reply.Message == "" {
		return nil, errors.NewServiceError("model returned an empty follow-up", "enrichment", "follow_up", nil)
	}
	return &reply, nil
}

func (s *Service) preset(name prompt.TemplateName) ai.ModelPreset {
	p, err := s.prompts.Preset(name)
	if err != nil || p == "" {
		return ai.PresetBalanced
	}
	return ai.ModelPreset(p)
}

func (s *Service) publish(step domain.ProgressStep, username string) {
	s.progress.Publish(domain.ProgressEvent{Step: step, Username: username, At: s.now()})
}
