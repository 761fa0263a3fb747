// Package escalation turns a user's violation history into a suggested
// disciplinary action. Suggestions are advisory; moderators may choose any
// action.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/patrickwarner/trustsafety/internal/models"
)

// ErrInvalidPolicy is returned for thresholds that would not escalate
// monotonically.
var ErrInvalidPolicy = errors.New("invalid escalation policy")

// Tier suggests a suspension of Days once a user has MinViolations.
type Tier struct {
	MinViolations int
	Days          int
}

// Suggestion is the advised action for a user.
type Suggestion struct {
	Action         models.ActionType `json:"action"`
	Days           int               `json:"days,omitempty"`
	ViolationCount int               `json:"violation_count"`
}

// Severity orders suggestions: warn < shorter suspension < longer suspension < ban.
func (s Suggestion) Severity() int {
	switch s.Action {
	case models.ActionBan:
		return 1 << 30
	case models.ActionSuspend:
		return 1 + s.Days
	default:
		return 0
	}
}

// Policy maps violation counts to suggestions.
type Policy struct {
	tiers        []Tier
	banThreshold int
}

// DefaultTiers mirror the 3, 7 and 30 day options offered to moderators.
var DefaultTiers = []Tier{
	{MinViolations: 1, Days: 3},
	{MinViolations: 2, Days: 7},
	{MinViolations: 3, Days: 30},
}

// DefaultBanThreshold is the violation count at which a ban is suggested.
const DefaultBanThreshold = 4

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() *Policy {
	p, _ := NewPolicy(DefaultTiers, DefaultBanThreshold)
	return p
}

// NewPolicy validates and builds a policy. Tier thresholds and durations must
// strictly increase and the ban threshold must exceed every tier.
func NewPolicy(tiers []Tier, banThreshold int) (*Policy, error) {
	sorted := append([]Tier(nil), tiers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinViolations < sorted[j].MinViolations })

	for i, t := range sorted {
		if t.MinViolations < 1 {
			return nil, fmt.Errorf("%w: tier threshold %d must be at least 1", ErrInvalidPolicy, t.MinViolations)
		}
		if t.Days < 1 {
			return nil, fmt.Errorf("%w: tier at %d violations needs a positive duration", ErrInvalidPolicy, t.MinViolations)
		}
		if i > 0 {
			prev := sorted[i-1]
			if t.MinViolations == prev.MinViolations {
				return nil, fmt.Errorf("%w: duplicate tier at %d violations", ErrInvalidPolicy, t.MinViolations)
			}
			if t.Days <= prev.Days {
				return nil, fmt.Errorf("%w: tier at %d violations must be longer than %d days", ErrInvalidPolicy, t.MinViolations, prev.Days)
			}
		}
	}
	if banThreshold < 1 {
		return nil, fmt.Errorf("%w: ban threshold must be at least 1", ErrInvalidPolicy)
	}
	if n := len(sorted); n > 0 && banThreshold <= sorted[n-1].MinViolations {
		return nil, fmt.Errorf("%w: ban threshold %d must exceed the last tier (%d)", ErrInvalidPolicy, banThreshold, sorted[n-1].MinViolations)
	}
	return &Policy{tiers: sorted, banThreshold: banThreshold}, nil
}

// ParseTiers reads "violations:days" pairs, e.g. "1:3,2:7,3:30".
func ParseTiers(s string) ([]Tier, error) {
	var tiers []Tier
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		countStr, daysStr, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("%w: tier %q should be violations:days", ErrInvalidPolicy, part)
		}
		count, err := strconv.Atoi(strings.TrimSpace(countStr))
		if err != nil {
			return nil, fmt.Errorf("%w: tier %q: %v", ErrInvalidPolicy, part, err)
		}
		days, err := strconv.Atoi(strings.TrimSpace(daysStr))
		if err != nil {
			return nil, fmt.Errorf("%w: tier %q: %v", ErrInvalidPolicy, part, err)
		}
		tiers = append(tiers, Tier{MinViolations: count, Days: days})
	}
	return tiers, nil
}

// Tiers returns a copy of the suspension tiers.
func (p *Policy) Tiers() []Tier {
	return append([]Tier(nil), p.tiers...)
}

// BanThreshold returns the violation count at which a ban is suggested.
func (p *Policy) BanThreshold() int {
	return p.banThreshold
}

// Suggest returns the advised action for a user with count prior violations.
// It picks the smallest tier the count has reached.
func (p *Policy) Suggest(count int) Suggestion {
	if count < 0 {
		count = 0
	}
	s := Suggestion{Action: models.ActionWarn, ViolationCount: count}
	if count >= p.banThreshold {
		s.Action = models.ActionBan
		return s
	}
	for i := len(p.tiers) - 1; i >= 0; i-- {
		if count >= p.tiers[i].MinViolations {
			s.Action = models.ActionSuspend
			s.Days = p.tiers[i].Days
			return s
		}
	}
	return s
}

// ViolationCounter counts a user's actions of the given types.
type ViolationCounter interface {
	CountActions(ctx context.Context, targetUserID string, types []models.ActionType) (int, error)
}

// Ledger reads violation history from the store and applies a policy.
type Ledger struct {
	store  ViolationCounter
	policy *Policy
}

// NewLedger creates a ledger. A nil policy uses DefaultPolicy.
func NewLedger(store ViolationCounter, policy *Policy) *Ledger {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Ledger{store: store, policy: policy}
}

// ViolationCount returns the number of warn, suspend and ban actions taken
// against userID.
func (l *Ledger) ViolationCount(ctx context.Context, userID string) (int, error) {
	n, err := l.store.CountActions(ctx, userID, models.ViolationActionTypes)
	if err != nil {
		return 0, fmt.Errorf("count violations: %w", err)
	}
	return n, nil
}

// Suggest returns the policy's suggestion for userID.
func (l *Ledger) Suggest(ctx context.Context, userID string) (Suggestion, error) {
	n, err := l.ViolationCount(ctx, userID)
	if err != nil {
		return Suggestion{}, err
	}
	return l.policy.Suggest(n), nil
}
