// Package content talks to the service that owns posts, comments, goals and
// user profiles. The safety core never reads or writes content bodies
// directly.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/trustsafety/internal/models"
)

// Remover deletes content. Removing content that no longer exists succeeds.
// For posts the owning service also reverses any goal progress the post
// contributed before it responds.
type Remover interface {
	Remove(ctx context.Context, ref models.ContentRef) error
}

// Preview is a short moderator-facing projection of a piece of content.
type Preview struct {
	OwnerID   string `json:"owner_id"`
	OwnerName string `json:"owner_name"`
	Text      string `json:"text"`
}

// Previewer fetches content previews for the moderation queue.
type Previewer interface {
	Preview(ctx context.Context, ref models.ContentRef) (Preview, error)
}

// Options configures the HTTP client.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// Client is an HTTP Remover and Previewer.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var (
	_ Remover   = (*Client)(nil)
	_ Previewer = (*Client)(nil)
)

// leveledZap adapts zap to retryablehttp's leveled logger.
type leveledZap struct {
	inner *zap.SugaredLogger
}

// re-writes HTTP client ERROR to WARN level (because of retries)
func (l leveledZap) Error(msg string, keysAndValues ...interface{}) {
	l.inner.Warnw(msg, keysAndValues...)
}

func (l leveledZap) Warn(msg string, keysAndValues ...interface{}) {
	l.inner.Warnw(msg, keysAndValues...)
}

func (l leveledZap) Info(msg string, keysAndValues ...interface{}) {
	l.inner.Infow(msg, keysAndValues...)
}

func (l leveledZap) Debug(msg string, keysAndValues ...interface{}) {
	l.inner.Debugw(msg, keysAndValues...)
}

// NewClient creates a client that retries connection errors, 5xx and 429
// responses.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = 200 * time.Millisecond
	}
	if opts.RetryWaitMax <= 0 {
		opts.RetryWaitMax = 2 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = opts.RetryWaitMin
	retryClient.RetryWaitMax = opts.RetryWaitMax
	retryClient.Logger = retryablehttp.LeveledLogger(leveledZap{logger.Sugar()})
	client := retryClient.StandardClient()
	client.Timeout = opts.Timeout

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: client,
		logger:     logger,
	}
}

func (c *Client) contentURL(ref models.ContentRef) string {
	return fmt.Sprintf("%s/internal/%ss/%s", c.baseURL, ref.Type, url.PathEscape(ref.ID))
}

// Remove issues DELETE for ref and waits for the owner to finish. A 404 means
// the content is already gone and counts as success.
func (c *Client) Remove(ctx context.Context, ref models.ContentRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.contentURL(ref), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	defer c.closeBody(resp)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.logger.Info("content already removed", zap.String("content", ref.String()))
		return nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("delete %s: http %d: %s", ref, resp.StatusCode, string(body))
	}
}

// Preview fetches the preview projection for ref.
func (c *Client) Preview(ctx context.Context, ref models.ContentRef) (Preview, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.contentURL(ref)+"/preview", nil)
	if err != nil {
		return Preview{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Preview{}, fmt.Errorf("preview %s: %w", ref, err)
	}
	defer c.closeBody(resp)

	if resp.StatusCode == http.StatusNotFound {
		return Preview{}, models.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return Preview{}, fmt.Errorf("preview %s: http %d", ref, resp.StatusCode)
	}
	var p Preview
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&p); err != nil {
		return Preview{}, fmt.Errorf("decode preview: %w", err)
	}
	return p, nil
}

func (c *Client) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.logger.Warn("failed to close response body", zap.Error(err))
	}
}

// ErrUnavailable is returned by Unavailable.
var ErrUnavailable = errors.New("content service not configured")

// Unavailable is used when no content service is configured. Removal fails
// so a moderator never believes content was deleted when it was not.
type Unavailable struct{}

func (Unavailable) Remove(context.Context, models.ContentRef) error {
	return ErrUnavailable
}

func (Unavailable) Preview(context.Context, models.ContentRef) (Preview, error) {
	return Preview{}, ErrUnavailable
}
