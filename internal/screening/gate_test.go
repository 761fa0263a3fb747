package screening

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/trustsafety/internal/analytics"
	"github.com/patrickwarner/trustsafety/internal/classifier"
	"github.com/patrickwarner/trustsafety/internal/observability"
	"github.com/patrickwarner/trustsafety/internal/prefilter"
)

type stubClassifier struct {
	verdict classifier.Verdict
	calls   int
	last    classifier.Input
}

func (s *stubClassifier) Classify(ctx context.Context, in classifier.Input) classifier.Verdict {
	s.calls++
	s.last = in
	return s.verdict
}

func TestScreenDeniesWithFixedMessage(t *testing.T) {
	stub := &stubClassifier{verdict: classifier.Verdict{Allowed: false, Reason: "hard:hate"}}
	an := analytics.NewMockAnalytics()
	metrics := observability.NewMockMetricsRegistry()
	g := NewGate(stub, prefilter.New(nil), an, metrics, zap.NewNop())

	dec := g.Screen(context.Background(), "u1", "text", "")
	assert.False(t, dec.Allowed)
	assert.Equal(t, DeniedMessage, dec.Reason)
	assert.NotContains(t, dec.Reason, "hate")
	assert.Equal(t, 1, metrics.Count("screening", "denied"))

	evs := an.EventsOfType(analytics.EventScreening)
	require.Len(t, evs, 1)
	require.NotNil(t, evs[0].Reason)
	assert.Equal(t, "hard:hate", *evs[0].Reason)
}

func TestScreenAlwaysCallsClassifier(t *testing.T) {
	stub := &stubClassifier{verdict: classifier.Verdict{Allowed: true}}
	g := NewGate(stub, prefilter.New([]string{"darn"}), nil, nil, nil)

	// clean by the pre-filter, still sent to the classifier
	dec := g.Screen(context.Background(), "u1", "hello", "https://cdn.example/x.png")
	assert.True(t, dec.Allowed)
	assert.Empty(t, dec.Reason)
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, "https://cdn.example/x.png", stub.last.ImageURL)

	// flagged by the pre-filter, the classifier still decides
	dec = g.Screen(context.Background(), "u1", "darn", "")
	assert.True(t, dec.Allowed)
	assert.Equal(t, 2, stub.calls)
}

func TestScreenWithFailingClassifierAllows(t *testing.T) {
	// classifier configured without credentials fails open
	c := classifier.NewClient(classifier.Options{BaseURL: "http://127.0.0.1:1"}, zap.NewNop(), nil)
	an := analytics.NewMockAnalytics()
	an.Err = analytics.ErrUnavailable
	g := NewGate(c, prefilter.New(nil), an, nil, nil)

	dec := g.Screen(context.Background(), "u1", "anything", "")
	assert.True(t, dec.Allowed)
}

func TestPrecheck(t *testing.T) {
	metrics := observability.NewMockMetricsRegistry()
	g := NewGate(&stubClassifier{}, prefilter.New([]string{"darn"}), nil, metrics, nil)

	res := g.Precheck("oh d4rn")
	assert.False(t, res.Clean)
	assert.Equal(t, []string{"darn"}, res.FlaggedWords)
	assert.True(t, g.Precheck("fine").Clean)
	assert.Equal(t, 1, metrics.Count("prefilter", "flagged"))
	assert.Equal(t, 1, metrics.Count("prefilter", "clean"))
}
