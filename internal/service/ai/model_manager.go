// Package ai runs prompts against Gemini with OpenAI as fallback, behind a
// circuit breaker.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/kapu/lead-analyzer-go/internal/constants"
	"github.com/kapu/lead-analyzer-go/internal/util"
	"github.com/kapu/lead-analyzer-go/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

var (
	statusRegex     = regexp.MustCompile(`\b(5\d{2})\b`)
	geminiCodeRegex = regexp.MustCompile(`"code":(\d{3})`)
	openaiCodeRegex = regexp.MustCompile(`^(\d{3})\s`)
)

type ModelManager struct {
	primary        Provider
	fallback       Provider
	logger         *zap.Logger
	circuitBreaker *util.CircuitBreaker
}

type ModelManagerConfig struct {
	GeminiAPIKey       string
	OpenAIAPIKey       string
	DefaultGeminiModel string
	DefaultOpenAIModel string
	EnableFallback     bool
}

// NewModelManager builds the providers whose keys are set. With no key at all
// the manager is still usable but every call fails with ErrNoProvider.
func NewModelManager(ctx context.Context, cfg ModelManagerConfig, logger *zap.Logger) (*ModelManager, error) {
	logger = util.OrNop(logger)

	defaultGemini := cfg.DefaultGeminiModel
	if defaultGemini == "" {
		defaultGemini = "gemini-2.5-flash"
	}

	defaultOpenAI := cfg.DefaultOpenAIModel
	if defaultOpenAI == "" {
		defaultOpenAI = "gpt-4o-mini"
	}

	var primary, fallback Provider
	if cfg.GeminiAPIKey != "" {
		geminiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		primary = NewGeminiProvider(geminiClient, defaultGemini, logger)
	}

	if openaiProvider := NewOpenAIProvider(cfg.OpenAIAPIKey, defaultOpenAI, logger); openaiProvider != nil {
		switch {
		case primary == nil:
			primary = openaiProvider
		case cfg.EnableFallback:
			fallback = openaiProvider
			logger.Info("OpenAI fallback enabled", zap.String("model", defaultOpenAI))
		}
	}

	if primary == nil {
		logger.Warn("No AI provider configured, analyses will use the local fallback")
	}

	return NewModelManagerWithProviders(primary, fallback, logger), nil
}

// NewModelManagerWithProviders wires explicit providers. fallback may be nil.
func NewModelManagerWithProviders(primary, fallback Provider, logger *zap.Logger) *ModelManager {
	logger = util.OrNop(logger)
	return &ModelManager{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		circuitBreaker: util.NewCircuitBreaker(
			"ai",
			constants.CircuitBreakerConfig.FailureThreshold,
			constants.CircuitBreakerConfig.ResetTimeout,
			logger,
		),
	}
}

// ErrNoProvider is returned when neither Gemini nor OpenAI is configured.
var ErrNoProvider = errors.NewServiceError("no AI provider configured", "ai", "generate", nil)

// Available reports whether any provider is configured.
func (mm *ModelManager) Available() bool {
	return mm.primary != nil
}

// GenerateJSON runs prompt in JSON mode and decodes the reply into dest.
func (mm *ModelManager) GenerateJSON(ctx context.Context, prompt string, preset ModelPreset, dest any, opts *GenerateOptions) (*GenerateMetadata, error) {
	var options GenerateOptions
	if opts != nil {
		options = *opts
	}
	options.JSONMode = true

	text, metadata, err := mm.generate(ctx, prompt, preset, &options)
	if err != nil {
		return nil, err
	}
	return mm.decodeJSON(text, metadata, dest)
}

// GenerateText runs prompt and returns the trimmed reply.
func (mm *ModelManager) GenerateText(ctx context.Context, prompt string, preset ModelPreset, opts *GenerateOptions) (string, *GenerateMetadata, error) {
	text, metadata, err := mm.generate(ctx, prompt, preset, opts)
	if err != nil {
		return "", nil, err
	}
	return strings.TrimSpace(text), metadata, nil
}

func (mm *ModelManager) generate(ctx context.Context, prompt string, preset ModelPreset, opts *GenerateOptions) (string, *GenerateMetadata, error) {
	if mm.primary == nil {
		return "", nil, ErrNoProvider
	}

	if !mm.circuitBreaker.CanExecute() {
		status := mm.circuitBreaker.Status()
		mm.logger.Error("AI service unavailable (Circuit OPEN)",
			zap.String("state", status.State.String()),
			zap.Int("failure_count", status.FailureCount),
		)
		return "", nil, errors.NewServiceError("AI service temporarily unavailable", "ai", "generate", nil)
	}

	primaryResult, primaryErr := mm.primary.Generate(ctx, prompt, preset, opts)
	if primaryErr == nil {
		mm.circuitBreaker.RecordSuccess()
		return primaryResult.Text, &GenerateMetadata{
			Provider: mm.primary.Name(),
			Model:    primaryResult.Model,
		}, nil
	}

	if mm.fallback != nil {
		fallbackResult, fallbackErr := mm.fallback.Generate(ctx, prompt, preset, opts)
		if fallbackErr == nil {
			mm.circuitBreaker.RecordSuccess()
			return fallbackResult.Text, &GenerateMetadata{
				Provider:     mm.fallback.Name(),
				Model:        fallbackResult.Model,
				UsedFallback: true,
			}, nil
		}

		mm.recordFailure(primaryErr)
		mm.recordFailure(fallbackErr)
		return "", nil, errors.NewServiceError("AI generation failed", "ai", "generate", fallbackErr)
	}

	mm.recordFailure(primaryErr)
	return "", nil, errors.NewServiceError("AI generation failed", "ai", "generate", primaryErr)
}

func (mm *ModelManager) decodeJSON(text string, metadata *GenerateMetadata, dest any) (*GenerateMetadata, error) {
	cleaned := stripCodeFence(text)
	if cleaned == "" {
		return nil, fmt.Errorf("%s API returned empty response", metadata.Provider)
	}

	if err := json.Unmarshal([]byte(cleaned), dest); err != nil {
		mm.logger.Error("Failed to unmarshal JSON response",
			zap.String("provider", metadata.Provider),
			zap.Error(err),
			zap.String("response_preview", util.TruncateString(cleaned, constants.StringLimits.LogPayload)),
		)
		return nil, fmt.Errorf("invalid JSON from %s: %w", metadata.Provider, err)
	}

	return metadata, nil
}

func stripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "```json"))
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "```"))
	}
	if strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, "```"))
	}
	return cleaned
}

func (mm *ModelManager) recordFailure(err error) {
	if !isServiceFailure(err) {
		return
	}

	timeout := constants.CircuitBreakerConfig.ResetTimeout
	if isRateLimitError(err) {
		timeout = constants.CircuitBreakerConfig.RateLimitTimeout
	}

	mm.circuitBreaker.RecordFailure(timeout)
}

// CheckHealth pings every configured provider concurrently and feeds the
// result to the circuit breaker. It reports whether any provider answered.
func (mm *ModelManager) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, constants.CircuitBreakerConfig.HealthCheckTimeout)
	defer cancel()

	var healthy atomic.Bool
	p := pool.New().WithMaxGoroutines(2)
	for _, provider := range []Provider{mm.primary, mm.fallback} {
		if provider == nil {
			continue
		}
		p.Go(func() {
			ok := provider.Ping(ctx)
			mm.logger.Debug("Health Check: provider", zap.String("provider", provider.Name()), zap.Bool("ok", ok))
			if ok {
				healthy.Store(true)
			}
		})
	}
	p.Wait()

	isHealthy := healthy.Load()
	mm.circuitBreaker.RecordProbe(isHealthy)
	mm.logger.Info("Health Check: Result", zap.Bool("healthy", isHealthy))
	return isHealthy
}

func isServiceFailure(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return true
	}

	if isRateLimitError(err) {
		return true
	}

	if statusRegex.MatchString(msg) {
		return true
	}

	if code, ok := providerCode(msg); ok {
		return code >= 500 && code < 600
	}

	return false
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	if strings.Contains(msg, "429") || strings.Contains(msg, "Rate limit") || strings.Contains(msg, "quota") {
		return true
	}

	code, ok := providerCode(msg)
	return ok && code == 429
}

func providerCode(msg string) (int, bool) {
	for _, re := range []*regexp.Regexp{geminiCodeRegex, openaiCodeRegex} {
		if matches := re.FindStringSubmatch(msg); len(matches) > 1 {
			if code, err := strconv.Atoi(matches[1]); err == nil {
				return code, true
			}
		}
	}
	return 0, false
}

func (mm *ModelManager) CircuitStatus() util.CircuitBreakerStatus {
	return mm.circuitBreaker.Status()
}

func (mm *ModelManager) ResetCircuit() {
	mm.circuitBreaker.Reset()
}
