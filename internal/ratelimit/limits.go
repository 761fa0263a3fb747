// Package ratelimit bounds how often an actor may perform each kind of
// mutating action. Checks never fail: a broken backend lets the action
// through.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ActionKind names a rate-limited action.
type ActionKind string

const (
	KindKudos   ActionKind = "kudos"
	KindComment ActionKind = "comment"
	KindPost    ActionKind = "post"
	KindReport  ActionKind = "report"
)

// Limit allows Max actions per Window.
type Limit struct {
	Max    int64
	Window time.Duration
}

func (l Limit) String() string {
	return fmt.Sprintf("%d/%s", l.Max, l.Window)
}

// Limits maps action kinds to their independent limits.
type Limits map[ActionKind]Limit

// DefaultLimits returns the built-in limits.
func DefaultLimits() Limits {
	return Limits{
		KindKudos:   {Max: 30, Window: time.Minute},
		KindComment: {Max: 10, Window: time.Minute},
		KindPost:    {Max: 5, Window: 10 * time.Minute},
		KindReport:  {Max: 5, Window: time.Hour},
	}
}

// ParseLimits reads overrides of the form "report=5/1h,comment=10/1m" on top
// of base. Kinds not in the string keep their base limit.
func ParseLimits(s string, base Limits) (Limits, error) {
	out := make(Limits, len(base))
	for k, v := range base {
		out[k] = v
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kind, rule, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("rate limit %q: expected kind=max/window", part)
		}
		maxStr, winStr, ok := strings.Cut(rule, "/")
		if !ok {
			return nil, fmt.Errorf("rate limit %q: expected max/window", part)
		}
		max, err := strconv.ParseInt(strings.TrimSpace(maxStr), 10, 64)
		if err != nil || max <= 0 {
			return nil, fmt.Errorf("rate limit %q: invalid max", part)
		}
		win, err := time.ParseDuration(strings.TrimSpace(winStr))
		if err != nil || win <= 0 {
			return nil, fmt.Errorf("rate limit %q: invalid window", part)
		}
		out[ActionKind(strings.TrimSpace(kind))] = Limit{Max: max, Window: win}
	}
	return out, nil
}

// Kinds returns the configured kinds in a stable order.
func (l Limits) Kinds() []ActionKind {
	kinds := make([]ActionKind, 0, len(l))
	for k := range l {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// MaxWindow returns the longest configured window.
func (l Limits) MaxWindow() time.Duration {
	var max time.Duration
	for _, v := range l {
		if v.Window > max {
			max = v.Window
		}
	}
	return max
}

// Result is the outcome of a limit check.
type Result struct {
	Allowed    bool          `json:"allowed"`
	Message    string        `json:"message,omitempty"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Limiter is implemented by the memory and Redis backends.
type Limiter interface {
	Check(ctx context.Context, actorID string, kind ActionKind) Result
}

// Denied builds the result returned when a limit is exceeded.
func Denied(retryAfter time.Duration) Result {
	secs := int64(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return Result{
		Allowed:    false,
		Message:    fmt.Sprintf("You're doing that too often. Try again in %ds.", secs),
		RetryAfter: time.Duration(secs) * time.Second,
	}
}

var allowed = Result{Allowed: true}

// AllowAll is used when rate limiting is disabled.
type AllowAll struct{}

func (AllowAll) Check(context.Context, string, ActionKind) Result { return allowed }
