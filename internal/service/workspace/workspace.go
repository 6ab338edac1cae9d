// Package workspace drives the analyze / follow-up workflow on top of the
// expert registry, the history ledger and the conversation session.
package workspace

import (
	"context"
	stderrors "errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kapu/lead-analyzer-go/internal/constants"
	"github.com/kapu/lead-analyzer-go/internal/domain"
	"github.com/kapu/lead-analyzer-go/internal/service/expert"
	"github.com/kapu/lead-analyzer-go/internal/service/history"
	"github.com/kapu/lead-analyzer-go/internal/service/normalizer"
	"github.com/kapu/lead-analyzer-go/internal/service/session"
	"github.com/kapu/lead-analyzer-go/internal/store"
	"github.com/kapu/lead-analyzer-go/internal/util"
	"github.com/kapu/lead-analyzer-go/pkg/errors"
	"go.uber.org/zap"
)

// Collaborator is the remote analysis service. *webhook.Client implements it.
type Collaborator interface {
	Analyze(ctx context.Context, url string, req domain.WebhookRequest) ([]byte, error)
	FollowUp(ctx context.Context, url string, req domain.WebhookRequest) ([]byte, error)
	TestConnection(ctx context.Context, url string) error
}

type Deps struct {
	Registry *expert.Registry
	Ledger   *history.Ledger
	Session  *session.Session
	Client   Collaborator
	KV       store.KV
	Progress domain.ProgressReporter
	Logger   *zap.Logger

	// DefaultWebhook is used until a webhook URL has been saved.
	DefaultWebhook string
}

type Workspace struct {
	registry *expert.Registry
	ledger   *history.Ledger
	session  *session.Session
	client   Collaborator
	kv       store.KV
	progress domain.ProgressReporter
	logger   *zap.Logger
	pick     func(n int) int
	now      func() time.Time

	mu       sync.Mutex
	webhook  string
	training domain.TrainingProfile
}

func New(ctx context.Context, deps Deps) (*Workspace, error) {
	w := &Workspace{
		registry: deps.Registry,
		ledger:   deps.Ledger,
		session:  deps.Session,
		client:   deps.Client,
		kv:       deps.KV,
		progress: deps.Progress,
		logger:   util.OrNop(deps.Logger),
		pick:     randomPick,
		now:      time.Now,
	}
	if w.progress == nil {
		w.progress = domain.NopProgress{}
	}

	stored, ok, err := w.kv.Get(ctx, constants.StoreKeys.Webhook)
	if err != nil {
		return nil, err
	}
	w.webhook = strings.TrimSpace(deps.DefaultWebhook)
	if ok && strings.TrimSpace(stored) != "" {
		w.webhook = strings.TrimSpace(stored)
	}
	return w, nil
}

// Analyze runs one analysis for input (profile URL or handle) with the given
// expert, or the active one when expertID is empty. The result is recorded in
// the history and becomes the current session.
func (w *Workspace) Analyze(ctx context.Context, input, expertID string) (domain.HistoryEntry, error) {
	username, ok := ExtractUsername(input)
	if !ok {
		return domain.HistoryEntry{}, errors.NewValidationError("invalid Instagram URL or username", "input", input)
	}

	exp, err := w.registry.Require(expertID)
	if err != nil {
		return domain.HistoryEntry{}, err
	}

	webhookURL := w.WebhookURL()
	if webhookURL == "" {
		return domain.HistoryEntry{}, errors.ErrWebhookNotConfigured
	}

	w.mu.Lock()
	tok := w.session.Reserve()
	w.mu.Unlock()

	w.publish(domain.StepConnect, username, "")
	w.logger.Info("Analyzing profile",
		zap.String("username", username),
		zap.String("expert_id", exp.ID),
	)

	req := domain.NewAnalyzeRequest(username, profileURL(input, username), exp.Data)
	raw, err := w.client.Analyze(ctx, webhookURL, req)

	var result domain.AnalysisResult
	switch {
	case err == nil:
		normalized, nerr := normalizer.Normalize(raw, username)
		if nerr != nil {
			w.publish(domain.StepFailed, username, nerr.Error())
			return domain.HistoryEntry{}, nerr
		}
		result = *normalized
	case stderrors.Is(err, errors.ErrNetworkUnreachable):
		w.logger.Warn("Webhook unreachable, showing demo analysis",
			zap.String("username", username),
			zap.Error(err),
		)
		result = MockResult(username)
	default:
		w.publish(domain.StepFailed, username, err.Error())
		return domain.HistoryEntry{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.session.IsCurrent(tok) {
		w.logger.Info("Discarding superseded analysis", zap.String("username", username))
		return domain.HistoryEntry{}, errors.ErrAnalysisSuperseded
	}

	entry, err := w.ledger.Append(ctx, result)
	if err != nil {
		w.publish(domain.StepFailed, username, err.Error())
		return domain.HistoryEntry{}, err
	}
	w.session.StartIfCurrent(tok, result)
	w.training = exp.Data

	w.publish(domain.StepFinish, username, "")
	return entry, nil
}

// FollowUp records the lead's reply and asks the collaborator for the next
// message. When no usable reply comes back a local template is used instead.
func (w *Workspace) FollowUp(ctx context.Context, leadResponse string) (FollowUpResult, error) {
	leadResponse = strings.TrimSpace(leadResponse)
	if leadResponse == "" {
		return FollowUpResult{}, errors.NewValidationError("lead response is required", "lead_response", leadResponse)
	}

	current, ok := w.session.Current()
	if !ok {
		return FollowUpResult{}, errors.ErrNoActiveSession
	}
	if _, err := w.session.AppendMessage(ctx, leadResponse, domain.MessageReceived); err != nil {
		return FollowUpResult{}, err
	}

	w.mu.Lock()
	training := w.training
	w.mu.Unlock()

	res, err := w.requestFollowUp(ctx, current.Profile, leadResponse, training)
	if err != nil {
		return FollowUpResult{}, err
	}

	if _, err := w.session.AppendMessage(ctx, res.Message, domain.MessageSent); err != nil {
		return FollowUpResult{}, err
	}
	return res, nil
}

func (w *Workspace) requestFollowUp(ctx context.Context, profile domain.LeadProfile, leadResponse string, training domain.TrainingProfile) (FollowUpResult, error) {
	webhookURL := w.WebhookURL()
	if webhookURL == "" {
		return w.local(profile, tipNoReply), nil
	}

	req := domain.NewFollowUpRequest(profile, leadResponse, w.session.BuildContext(), training)
	raw, err := w.client.FollowUp(ctx, webhookURL, req)
	if err != nil {
		if stderrors.Is(err, context.Canceled) {
			return FollowUpResult{}, err
		}
		w.logger.Warn("Follow-up failed, using local reply", zap.Error(err))
		return w.local(profile, tipTransportErr), nil
	}

	reply, ok := normalizer.ExtractFollowUp(raw)
	if !ok {
		w.logger.Debug("Follow-up response has no message",
			zap.String("body_preview", util.Preview(raw, constants.StringLimits.LogPayload)),
		)
		return w.local(profile, tipNoReply), nil
	}
	return FollowUpResult{Message: reply.Message, Tips: reply.Tips}, nil
}

func (w *Workspace) local(profile domain.LeadProfile, tips string) FollowUpResult {
	return FollowUpResult{Message: localReply(profile, w.pick), Tips: tips, Local: true}
}

// TestConnection probes target, or the saved webhook when target is empty.
func (w *Workspace) TestConnection(ctx context.Context, target string) error {
	target = strings.TrimSpace(target)
	if target == "" {
		target = w.WebhookURL()
	}
	if target == "" {
		return errors.ErrWebhookNotConfigured
	}
	if err := validateWebhookURL(target); err != nil {
		return err
	}
	return w.client.TestConnection(ctx, target)
}

func (w *Workspace) WebhookURL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.webhook
}

// SaveSettings stores the webhook URL. An empty URL removes it.
func (w *Workspace) SaveSettings(ctx context.Context, webhookURL string) error {
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL != "" {
		if err := validateWebhookURL(webhookURL); err != nil {
			return err
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	if webhookURL == "" {
		err = w.kv.Delete(ctx, constants.StoreKeys.Webhook)
	} else {
		err = w.kv.Set(ctx, constants.StoreKeys.Webhook, webhookURL)
	}
	if err != nil {
		return err
	}
	w.webhook = webhookURL
	return nil
}

func validateWebhookURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.NewValidationError("webhook URL must be an http(s) URL", "webhook", raw)
	}
	return nil
}

// Current returns the session's analysis and thread.
func (w *Workspace) Current() (domain.AnalysisResult, []domain.ThreadMessage, bool) {
	result, ok := w.session.Current()
	if !ok {
		return domain.AnalysisResult{}, nil, false
	}
	return result, w.session.Thread(), true
}

func (w *Workspace) History() []domain.HistoryEntry {
	return w.ledger.List()
}

func (w *Workspace) HistoryEntry(id int64) (domain.HistoryEntry, error) {
	e, ok := w.ledger.Get(id)
	if !ok {
		return domain.HistoryEntry{}, errors.NewAppError("history entry not found", errors.CodeNotFound, 404, map[string]any{
			"id": id,
		})
	}
	return e, nil
}

// Open makes a past analysis the current session again, with a fresh thread.
func (w *Workspace) Open(id int64) (domain.HistoryEntry, error) {
	e, err := w.HistoryEntry(id)
	if err != nil {
		return domain.HistoryEntry{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.session.Start(e.Data)
	w.training = w.registry.Active().Data
	return e, nil
}

// Suggestions returns composer options for the current session.
func (w *Workspace) Suggestions() (Suggestions, error) {
	result, ok := w.session.Current()
	if !ok {
		return Suggestions{}, errors.ErrNoActiveSession
	}
	return BuildSuggestions(result), nil
}

// Compose builds a message for the current lead. Without a session the name
// placeholder falls back to the default.
func (w *Workspace) Compose(req ComposeRequest) string {
	result, _ := w.session.Current()
	return Compose(req, result.Profile)
}

// Export snapshots the whole workspace.
func (w *Workspace) Export() domain.Backup {
	active := w.registry.Active()
	return domain.Backup{
		TrainingData:   active.Data,
		History:        w.ledger.List(),
		Settings:       domain.BackupSettings{Webhook: w.WebhookURL()},
		Experts:        w.registry.List(),
		ActiveExpertID: active.ID,
	}
}

// Import restores a backup. Backups without an experts list only carry the
// active expert's training data.
func (w *Workspace) Import(ctx context.Context, b domain.Backup) error {
	if len(b.Experts) > 0 {
		if err := w.registry.ReplaceAll(ctx, b.Experts, b.ActiveExpertID); err != nil {
			return err
		}
	} else if _, err := w.registry.Save(ctx, w.registry.Active().ID, b.TrainingData); err != nil {
		return err
	}

	if b.History != nil {
		if err := w.ledger.Replace(ctx, b.History); err != nil {
			return err
		}
	}

	if b.Settings.Webhook != "" {
		if err := w.SaveSettings(ctx, b.Settings.Webhook); err != nil {
			return err
		}
	}

	w.logger.Info("Backup imported",
		zap.Int("history", len(b.History)),
		zap.Int("experts", len(b.Experts)),
	)
	return nil
}

// ClearAll wipes history, experts and settings and ends the session.
func (w *Workspace) ClearAll(ctx context.Context) error {
	if err := w.ledger.Clear(ctx); err != nil {
		return err
	}
	if err := w.registry.Clear(ctx); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.kv.Delete(ctx, constants.StoreKeys.Webhook); err != nil {
		return err
	}
	w.webhook = ""
	w.training = domain.TrainingProfile{}
	w.session.Reset()

	w.logger.Info("Workspace cleared")
	return nil
}

func (w *Workspace) publish(step domain.ProgressStep, username, message string) {
	w.progress.Publish(domain.ProgressEvent{
		Step:     step,
		Username: username,
		Message:  message,
		At:       w.now(),
	})
}

func profileURL(input, username string) string {
	if strings.Contains(input, "instagram.com/") {
		return strings.TrimSpace(input)
	}
	return constants.InstagramConfig.BaseURL + "/" + username + "/"
}
