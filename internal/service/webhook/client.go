// Package webhook posts workspace requests to the analysis collaborator and
// maps transport failures onto the workspace error taxonomy.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kapu/lead-analyzer-go/internal/constants"
	"github.com/kapu/lead-analyzer-go/internal/domain"
	"github.com/kapu/lead-analyzer-go/internal/util"
	"github.com/kapu/lead-analyzer-go/pkg/errors"
	"go.uber.org/zap"
)

const maxResponseBytes = 8 << 20

type Client struct {
	httpClient      *http.Client
	analysisTimeout time.Duration
	followUpTimeout time.Duration
	probeTimeout    time.Duration
	logger          *zap.Logger
}

// NewClient builds a client whose analysis calls are bounded by analysisTimeout.
func NewClient(analysisTimeout time.Duration, logger *zap.Logger) *Client {
	if analysisTimeout <= 0 {
		analysisTimeout = constants.Timeouts.Analysis
	}
	return &Client{
		// deadlines come from the request context
		httpClient:      &http.Client{},
		analysisTimeout: analysisTimeout,
		followUpTimeout: constants.Timeouts.FollowUp,
		probeTimeout:    constants.Timeouts.TestConnection,
		logger:          util.OrNop(logger),
	}
}

// Analyze returns the raw JSON body of an analyze_profile call. Blank and
// non-JSON bodies are errors; shape checks are left to the normalizer.
func (c *Client) Analyze(ctx context.Context, url string, req domain.WebhookRequest) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.analysisTimeout)
	defer cancel()

	body, err := c.doRequest(ctx, url, req, c.analysisTimeout)
	if err != nil {
		c.logger.Error("Analysis request failed",
			zap.String("username", req.Username),
			zap.Error(err),
		)
		return nil, err
	}
	return body, nil
}

// FollowUp returns the raw JSON body of a follow_up call.
func (c *Client) FollowUp(ctx context.Context, url string, req domain.WebhookRequest) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.followUpTimeout)
	defer cancel()

	body, err := c.doRequest(ctx, url, req, c.followUpTimeout)
	if err != nil {
		c.logger.Warn("Follow-up request failed",
			zap.String("username", req.Username),
			zap.Error(err),
		)
		return nil, err
	}
	return body, nil
}

// TestConnection succeeds on any 2xx. The body is ignored.
func (c *Client) TestConnection(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	_, err := c.send(ctx, url, domain.NewTestConnectionRequest(), c.probeTimeout)
	return err
}

func (c *Client) doRequest(ctx context.Context, url string, reqBody domain.WebhookRequest, timeout time.Duration) ([]byte, error) {
	body, err := c.send(ctx, url, reqBody, timeout)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(body)) == "" {
		return nil, errors.NewEmptyResponse(url)
	}
	if !json.Valid(body) {
		c.logger.Warn("Webhook returned invalid JSON",
			zap.String("body_preview", util.Preview(body, constants.StringLimits.LogPayload)),
		)
		return nil, errors.NewMalformedJSON(body)
	}
	return body, nil
}

func (c *Client) send(ctx context.Context, url string, reqBody domain.WebhookRequest, timeout time.Duration) ([]byte, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.ErrWebhookNotConfigured
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.NewAPIError("failed to marshal request", 400, map[string]any{
			"url": url,
		}).WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, errors.NewValidationError("invalid webhook URL", "url", url)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	c.logger.Debug("Webhook request",
		zap.String("action", string(reqBody.Action)),
		zap.String("request_id", requestID),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, url, timeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError(ctx, url, timeout, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.NewAPIError(
			fmt.Sprintf("webhook error (%d): %s", resp.StatusCode, util.Preview(body, constants.StringLimits.BodyPreview)),
			resp.StatusCode,
			map[string]any{
				"url":        url,
				"request_id": requestID,
			},
		)
	}

	return body, nil
}

// classifyTransportError separates an expired deadline (the remote work may
// still be running) from an unreachable collaborator.
func classifyTransportError(ctx context.Context, url string, timeout time.Duration, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewAnalysisTimedOut(timeout.String(), err)
	}
	if stderrors.Is(err, context.Canceled) {
		return err
	}
	return errors.NewNetworkUnreachable(url, err)
}
