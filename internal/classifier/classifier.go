// Package classifier adapts a remote multimodal moderation service into an
// allow/deny verdict. Every failure of the remote call resolves to allow.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/patrickwarner/trustsafety/internal/observability"
	"go.uber.org/zap"
)

// Input is the content submitted for classification. Either field may be empty.
type Input struct {
	Text     string
	ImageURL string
}

// Empty reports whether there is nothing to classify.
func (in Input) Empty() bool {
	return strings.TrimSpace(in.Text) == "" && strings.TrimSpace(in.ImageURL) == ""
}

// Verdict is the adapter's decision. Reason names the deciding category and is
// meant for logs and metrics only.
type Verdict struct {
	Allowed bool
	Reason  string
}

// Classifier is implemented by anything that can judge content.
type Classifier interface {
	Classify(ctx context.Context, in Input) Verdict
}

// HardBlockCategories deny whenever the provider flags them.
var HardBlockCategories = []string{
	"hate",
	"hate/threatening",
	"harassment/threatening",
	"self-harm/intent",
	"self-harm/instructions",
	"sexual/minors",
	"illicit/violent",
}

// SoftBlockThresholds deny once the category score reaches the threshold.
var SoftBlockThresholds = map[string]float64{
	"harassment":       0.7,
	"sexual":           0.8,
	"violence":         0.8,
	"violence/graphic": 0.7,
	"illicit":          0.8,
}

// Outcome labels for classifier metrics.
const (
	OutcomeAllowed  = "allowed"
	OutcomeDenied   = "denied"
	OutcomeFailOpen = "fail_open"
)

const maxResponseBytes = 1 << 20

var errNotConfigured = errors.New("classifier not configured")

// Options configures the HTTP client.
type Options struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client talks to an OpenAI-compatible moderation endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
	metrics    observability.MetricsRegistry
	softOrder  []string
}

// ModerationRequest is the body posted to /v1/moderations.
type ModerationRequest struct {
	Model string      `json:"model,omitempty"`
	Input []InputPart `json:"input"`
}

// InputPart is one element of the multimodal input array.
type InputPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL wraps an image reference.
type ImageURL struct {
	URL string `json:"url"`
}

// ModerationResponse is the provider's reply.
type ModerationResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Results []ModerationResult `json:"results"`
}

// ModerationResult carries per-category flags and scores.
type ModerationResult struct {
	Flagged        bool               `json:"flagged"`
	Categories     map[string]bool    `json:"categories"`
	CategoryScores map[string]float64 `json:"category_scores"`
}

// NewClient creates a classifier client. A zero timeout falls back to five
// seconds so a call can never block indefinitely.
func NewClient(opts Options, logger *zap.Logger, metrics observability.MetricsRegistry) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	soft := make([]string, 0, len(SoftBlockThresholds))
	for c := range SoftBlockThresholds {
		soft = append(soft, c)
	}
	sort.Strings(soft)

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		model:   opts.Model,
		timeout: opts.Timeout,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		logger:    logger,
		metrics:   metrics,
		softOrder: soft,
	}
}

// Classify returns the verdict for in. It never fails: any problem reaching
// or understanding the provider yields an allow verdict.
func (c *Client) Classify(ctx context.Context, in Input) Verdict {
	if in.Empty() {
		return Verdict{Allowed: true}
	}

	start := time.Now()
	outcome := OutcomeAllowed
	defer func() {
		c.metrics.RecordClassifierLatency(time.Since(start))
		c.metrics.IncrementClassifierRequests(outcome)
	}()

	result, err := c.callModeration(ctx, in)
	if err != nil {
		outcome = OutcomeFailOpen
		c.logger.Warn("content classifier unavailable, allowing content", zap.Error(err))
		return Verdict{Allowed: true}
	}

	v := c.Evaluate(result)
	if !v.Allowed {
		outcome = OutcomeDenied
		c.logger.Info("content denied by classifier", zap.String("category", v.Reason))
	}
	return v
}

// Evaluate applies the hard and soft block rules to one provider result.
// Hard-block flags win over any soft score.
func (c *Client) Evaluate(r ModerationResult) Verdict {
	for _, cat := range HardBlockCategories {
		if r.Categories[cat] {
			return Verdict{Allowed: false, Reason: "hard:" + cat}
		}
	}
	for _, cat := range c.softOrder {
		if score, ok := r.CategoryScores[cat]; ok && score >= SoftBlockThresholds[cat] {
			return Verdict{Allowed: false, Reason: "soft:" + cat}
		}
	}
	return Verdict{Allowed: true}
}

// callModeration performs the HTTP round trip and returns the first result.
func (c *Client) callModeration(ctx context.Context, in Input) (ModerationResult, error) {
	if c.baseURL == "" || c.apiKey == "" {
		return ModerationResult{}, errNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqBody, err := json.Marshal(c.buildRequest(in))
	if err != nil {
		return ModerationResult{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/moderations", bytes.NewReader(reqBody))
	if err != nil {
		return ModerationResult{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ModerationResult{}, fmt.Errorf("http request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return ModerationResult{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ModerationResult{}, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed ModerationResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ModerationResult{}, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Results) == 0 {
		return ModerationResult{}, errors.New("response has no results")
	}
	return parsed.Results[0], nil
}

func (c *Client) buildRequest(in Input) ModerationRequest {
	req := ModerationRequest{Model: c.model}
	if strings.TrimSpace(in.Text) != "" {
		req.Input = append(req.Input, InputPart{Type: "text", Text: in.Text})
	}
	if strings.TrimSpace(in.ImageURL) != "" {
		req.Input = append(req.Input, InputPart{Type: "image_url", ImageURL: &ImageURL{URL: in.ImageURL}})
	}
	return req
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
