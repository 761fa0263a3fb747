// Package screening decides whether a content create or update may proceed.
package screening

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/patrickwarner/trustsafety/internal/analytics"
	"github.com/patrickwarner/trustsafety/internal/classifier"
	"github.com/patrickwarner/trustsafety/internal/observability"
	"github.com/patrickwarner/trustsafety/internal/prefilter"
)

// DeniedMessage is shown to authors whose content is refused. It never names
// the category that triggered the denial.
const DeniedMessage = "This content doesn't meet our community guidelines."

// Decision is the gate's answer for one piece of content.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Gate runs every create/update through the remote classifier. The lexical
// pre-filter is exposed separately as a feedback aid and never replaces it.
type Gate struct {
	classifier classifier.Classifier
	prefilter  *prefilter.Filter
	analytics  analytics.AnalyticsService
	metrics    observability.MetricsRegistry
	logger     *zap.Logger
}

// NewGate wires a gate. analytics may be nil.
func NewGate(c classifier.Classifier, pf *prefilter.Filter, an analytics.AnalyticsService, metrics observability.MetricsRegistry, logger *zap.Logger) *Gate {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{classifier: c, prefilter: pf, analytics: an, metrics: metrics, logger: logger}
}

// Screen classifies text and imageURL on behalf of actorID.
func (g *Gate) Screen(ctx context.Context, actorID, text, imageURL string) Decision {
	ctx, span := observability.Tracer("screening").Start(ctx, "screening.Screen")
	defer span.End()

	v := g.classifier.Classify(ctx, classifier.Input{Text: text, ImageURL: imageURL})

	outcome := "allowed"
	dec := Decision{Allowed: true}
	if !v.Allowed {
		outcome = "denied"
		dec = Decision{Allowed: false, Reason: DeniedMessage}
	}
	span.SetAttributes(
		attribute.String("screening.outcome", outcome),
		attribute.Bool("screening.has_image", imageURL != ""),
	)
	g.metrics.IncrementScreeningDecision(outcome)

	if g.analytics != nil {
		if err := g.analytics.RecordScreening(ctx, actorID, outcome, v.Reason); err != nil && !errors.Is(err, analytics.ErrUnavailable) {
			g.logger.Warn("record screening event", zap.Error(err))
		}
	}
	return dec
}

// Precheck runs the local pre-filter. It is advisory only.
func (g *Gate) Precheck(text string) prefilter.Result {
	res := g.prefilter.Check(text)
	result := "clean"
	if !res.Clean {
		result = "flagged"
	}
	g.metrics.IncrementPrefilterChecks(result)
	return res
}
