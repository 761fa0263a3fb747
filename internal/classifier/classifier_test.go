package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/patrickwarner/trustsafety/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, url string, timeout time.Duration) (*Client, *observability.MockMetricsRegistry) {
	t.Helper()
	metrics := observability.NewMockMetricsRegistry()
	c := NewClient(Options{BaseURL: url, APIKey: "test-key", Model: "omni-moderation-latest", Timeout: timeout}, zap.NewNop(), metrics)
	return c, metrics
}

func resultServer(t *testing.T, result ModerationResult) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/moderations", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ModerationResponse{ID: "modr-1", Results: []ModerationResult{result}})
	}))
}

func TestClassifyHardBlockOverridesLowScores(t *testing.T) {
	srv := resultServer(t, ModerationResult{
		Flagged:        true,
		Categories:     map[string]bool{"hate": true},
		CategoryScores: map[string]float64{"hate": 0.01, "harassment": 0.01, "sexual": 0.0},
	})
	defer srv.Close()

	c, metrics := newTestClient(t, srv.URL, time.Second)
	v := c.Classify(context.Background(), Input{Text: "some text"})
	assert.False(t, v.Allowed)
	assert.Equal(t, "hard:hate", v.Reason)
	assert.Equal(t, 1, metrics.Count("classifier", OutcomeDenied))
}

func TestClassifySoftThresholds(t *testing.T) {
	cases := []struct {
		name    string
		scores  map[string]float64
		allowed bool
		reason  string
	}{
		{name: "all below", scores: map[string]float64{"harassment": 0.69, "sexual": 0.79, "violence": 0.79, "violence/graphic": 0.69, "illicit": 0.79}, allowed: true},
		{name: "harassment at threshold", scores: map[string]float64{"harassment": 0.7}, reason: "soft:harassment"},
		{name: "graphic above", scores: map[string]float64{"violence/graphic": 0.95}, reason: "soft:violence/graphic"},
		{name: "ignored category", scores: map[string]float64{"self-harm": 0.99}, allowed: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := resultServer(t, ModerationResult{CategoryScores: tc.scores})
			defer srv.Close()

			c, _ := newTestClient(t, srv.URL, time.Second)
			v := c.Classify(context.Background(), Input{Text: "text"})
			assert.Equal(t, tc.allowed, v.Allowed)
			assert.Equal(t, tc.reason, v.Reason)
		})
	}
}

func TestClassifyFailsOpen(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "server error", handler: func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{name: "unauthorized", handler: func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad key", http.StatusUnauthorized)
		}},
		{name: "malformed json", handler: func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results": [`))
		}},
		{name: "empty results", handler: func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results": []}`))
		}},
		{name: "timeout", handler: func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(500 * time.Millisecond):
			case <-r.Context().Done():
			}
			_, _ = w.Write([]byte(`{"results":[{"categories":{"hate":true}}]}`))
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			c, metrics := newTestClient(t, srv.URL, 50*time.Millisecond)
			v := c.Classify(context.Background(), Input{Text: "text", ImageURL: "https://cdn.example/a.jpg"})
			assert.True(t, v.Allowed)
			assert.Equal(t, 1, metrics.Count("classifier", OutcomeFailOpen))
		})
	}
}

func TestClassifyFailsOpenWithoutCredentials(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	metrics := observability.NewMockMetricsRegistry()
	c := NewClient(Options{BaseURL: srv.URL}, zap.NewNop(), metrics)
	v := c.Classify(context.Background(), Input{Text: "text"})
	assert.True(t, v.Allowed)
	assert.False(t, called)
	assert.Equal(t, 1, metrics.Count("classifier", OutcomeFailOpen))
}

func TestClassifyUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, _ := newTestClient(t, url, time.Second)
	assert.True(t, c.Classify(context.Background(), Input{Text: "text"}).Allowed)
}

func TestClassifyEmptyInputSkipsCall(t *testing.T) {
	c, metrics := newTestClient(t, "http://127.0.0.1:1", time.Second)
	v := c.Classify(context.Background(), Input{Text: "   "})
	assert.True(t, v.Allowed)
	assert.Equal(t, 0, metrics.Count("classifier", OutcomeFailOpen))
}

func TestClassifySendsMultimodalInput(t *testing.T) {
	var got ModerationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"results":[{"flagged":false,"categories":{},"category_scores":{}}]}`))
	}))
	defer srv.Close()

	c, metrics := newTestClient(t, srv.URL, time.Second)
	v := c.Classify(context.Background(), Input{Text: "hello", ImageURL: "https://cdn.example/a.jpg"})
	assert.True(t, v.Allowed)
	assert.Equal(t, 1, metrics.Count("classifier", OutcomeAllowed))

	require.Len(t, got.Input, 2)
	assert.Equal(t, "omni-moderation-latest", got.Model)
	assert.Equal(t, "text", got.Input[0].Type)
	assert.Equal(t, "hello", got.Input[0].Text)
	assert.Equal(t, "image_url", got.Input[1].Type)
	assert.Equal(t, "https://cdn.example/a.jpg", got.Input[1].ImageURL.URL)
}
