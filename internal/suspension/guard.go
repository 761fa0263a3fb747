// Package suspension enforces a user's discipline status on every
// content-mutating request. Reads are never restricted.
package suspension

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/trustsafety/internal/models"
	"github.com/patrickwarner/trustsafety/internal/observability"
)

// ErrUnavailable is returned when the status cannot be read. Mutations are
// refused in that case.
var ErrUnavailable = errors.New("suspension status unavailable")

// SuspendedError refuses a mutation by a suspended or banned user.
type SuspendedError struct {
	Status models.SuspensionStatus
}

func (e *SuspendedError) Error() string {
	return e.Status.Message()
}

// UserReader loads user records. db.Store implements it.
type UserReader interface {
	GetUser(ctx context.Context, id string) (models.User, error)
}

// Guard answers whether a user may mutate content.
type Guard struct {
	users   UserReader
	metrics observability.MetricsRegistry
	logger  *zap.Logger
	now     func() time.Time
}

// NewGuard creates a guard backed by users.
func NewGuard(users UserReader, metrics observability.MetricsRegistry, logger *zap.Logger) *Guard {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{users: users, metrics: metrics, logger: logger, now: time.Now}
}

// Status returns the user's effective status. Unknown users are active, and
// an elapsed suspension reads as active.
func (g *Guard) Status(ctx context.Context, userID string) (models.SuspensionStatus, error) {
	u, err := g.users.GetUser(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return models.Active(), nil
	}
	if err != nil {
		return models.SuspensionStatus{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return u.Suspension.Effective(g.now()), nil
}

// IsSuspended reports whether userID is currently suspended or banned.
func (g *Guard) IsSuspended(ctx context.Context, userID string) (bool, error) {
	st, err := g.Status(ctx, userID)
	if err != nil {
		return false, err
	}
	return st.IsSuspended(g.now()), nil
}

// Check returns nil if userID may perform a mutation of the given kind,
// a *SuspendedError if not, and an ErrUnavailable error when the status
// cannot be determined.
func (g *Guard) Check(ctx context.Context, userID, kind string) error {
	st, err := g.Status(ctx, userID)
	if err != nil {
		g.logger.Error("suspension lookup failed, refusing mutation",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("action_kind", kind))
		return err
	}
	if !st.IsSuspended(g.now()) {
		return nil
	}
	g.metrics.IncrementSuspensionBlocks(kind)
	return &SuspendedError{Status: st}
}
