// Package scraper fetches public Instagram profile data, first from the web
// profile JSON endpoint and then from a rendered profile page.
package scraper

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kapu/lead-analyzer-go/internal/constants"
	"github.com/kapu/lead-analyzer-go/internal/domain"
	"github.com/kapu/lead-analyzer-go/internal/util"
	"github.com/kapu/lead-analyzer-go/pkg/errors"
	"go.uber.org/zap"
)

// Cache stores scraped profiles for a while. *cache.CacheService implements it.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Renderer returns the HTML of a page after scripts ran.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

var errProfileMissing = stderrors.New("profile not present in response")

type ScraperService struct {
	httpClient     *http.Client
	renderer       Renderer
	cache          Cache
	logger         *zap.Logger
	profileInfoURL string
	baseURL        string
}

// NewScraperService builds the scraper. renderer and cache may be nil; without
// a renderer only the JSON endpoint is tried.
func NewScraperService(renderer Renderer, cache Cache, logger *zap.Logger) *ScraperService {
	return &ScraperService{
		httpClient: &http.Client{
			Timeout: constants.Timeouts.PublicAPI,
		},
		renderer:       renderer,
		cache:          cache,
		logger:         util.OrNop(logger),
		profileInfoURL: constants.InstagramConfig.ProfileInfoURL,
		baseURL:        constants.InstagramConfig.BaseURL,
	}
}

// Scrape returns the profile for username. A profile that neither tier can
// find fails with a 404 AppError.
func (s *ScraperService) Scrape(ctx context.Context, username string) (*domain.ScrapedProfile, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return nil, errors.NewValidationError("username is required", "username", username)
	}

	cacheKey := "scrape:" + strings.ToLower(username)
	if s.cache != nil {
		var cached domain.ScrapedProfile
		if ok, err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil && ok {
			s.logger.Debug("Scraper cache hit", zap.String("username", username))
			return &cached, nil
		}
	}

	profile, apiErr := s.fetchFromPublicAPI(ctx, username)
	if apiErr == nil {
		s.logger.Info("Profile fetched from public API", zap.String("username", username))
		s.store(ctx, cacheKey, profile)
		return profile, nil
	}
	s.logger.Info("Public API failed, trying browser",
		zap.String("username", username),
		zap.Error(apiErr),
	)

	if s.renderer == nil {
		return nil, notFoundOr(username, apiErr)
	}

	profile, err := s.scrapeWithBrowser(ctx, username)
	if err != nil {
		s.logger.Error("Browser scrape failed", zap.String("username", username), zap.Error(err))
		return nil, notFoundOr(username, err)
	}

	s.store(ctx, cacheKey, profile)
	return profile, nil
}

func (s *ScraperService) store(ctx context.Context, key string, profile *domain.ScrapedProfile) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, profile, constants.InstagramConfig.CacheTTL); err != nil {
		s.logger.Warn("Failed to cache scraped profile", zap.String("key", key), zap.Error(err))
	}
}

func (s *ScraperService) scrapeWithBrowser(ctx context.Context, username string) (*domain.ScrapedProfile, error) {
	url := fmt.Sprintf("%s/%s/", s.baseURL, username)

	html, err := s.renderer.Render(ctx, url)
	if err != nil {
		return nil, err
	}
	return ParseProfileHTML(html, username)
}

func notFoundOr(username string, err error) error {
	if stderrors.Is(err, errProfileMissing) {
		return errors.NewAppError("profile not found or private", errors.CodeNotFound, 404, map[string]any{
			"username": username,
		}).WithCause(err)
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.NewServiceError("failed to scrape profile", "scraper", "scrape", err)
}
