package escalation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/trustsafety/internal/db"
	"github.com/patrickwarner/trustsafety/internal/models"
)

func TestSuggestDefaults(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		count  int
		action models.ActionType
		days   int
	}{
		{0, models.ActionWarn, 0},
		{-3, models.ActionWarn, 0},
		{1, models.ActionSuspend, 3},
		{2, models.ActionSuspend, 7},
		{3, models.ActionSuspend, 30},
		{4, models.ActionBan, 0},
		{40, models.ActionBan, 0},
	}
	for _, tc := range cases {
		s := p.Suggest(tc.count)
		assert.Equal(t, tc.action, s.Action, "count %d", tc.count)
		assert.Equal(t, tc.days, s.Days, "count %d", tc.count)
	}
}

func TestSuggestMonotonic(t *testing.T) {
	policies := []*Policy{DefaultPolicy()}
	custom, err := NewPolicy([]Tier{{MinViolations: 3, Days: 1}, {MinViolations: 5, Days: 14}}, 9)
	require.NoError(t, err)
	policies = append(policies, custom)

	for _, p := range policies {
		prev := p.Suggest(0)
		assert.Equal(t, models.ActionWarn, prev.Action)
		for n := 1; n <= 50; n++ {
			cur := p.Suggest(n)
			assert.GreaterOrEqual(t, cur.Severity(), prev.Severity(), "count %d", n)
			prev = cur
		}
	}
	// below the first custom tier still warns
	assert.Equal(t, models.ActionWarn, custom.Suggest(2).Action)
}

func TestNewPolicyRejectsNonMonotonic(t *testing.T) {
	bad := []struct {
		tiers []Tier
		ban   int
	}{
		{[]Tier{{1, 7}, {2, 3}}, 4},
		{[]Tier{{1, 3}, {1, 7}}, 4},
		{[]Tier{{0, 3}}, 4},
		{[]Tier{{1, 0}}, 4},
		{[]Tier{{1, 3}, {2, 7}}, 2},
		{nil, 0},
	}
	for _, b := range bad {
		_, err := NewPolicy(b.tiers, b.ban)
		assert.ErrorIs(t, err, ErrInvalidPolicy)
	}

	p, err := NewPolicy([]Tier{{2, 7}, {1, 3}}, 3)
	require.NoError(t, err)
	assert.Equal(t, []Tier{{1, 3}, {2, 7}}, p.Tiers())
}

func TestParseTiers(t *testing.T) {
	tiers, err := ParseTiers("1:3, 2:7,3:30")
	require.NoError(t, err)
	assert.Equal(t, DefaultTiers, tiers)

	for _, s := range []string{"1-3", "x:3", "1:y"} {
		_, err := ParseTiers(s)
		assert.ErrorIs(t, err, ErrInvalidPolicy, s)
	}
}

func TestLedgerCountsOnlyViolations(t *testing.T) {
	store := db.NewMemoryStore()
	ctx := context.Background()
	for i, typ := range []models.ActionType{models.ActionDismiss, models.ActionRemoveContent, models.ActionLiftSuspension} {
		require.NoError(t, store.CommitAction(ctx, db.ActionCommit{Action: models.ModerationAction{ID: string(rune('a' + i)), TargetUserID: "u", Type: typ}}))
	}
	l := NewLedger(store, nil)

	s, err := l.Suggest(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, models.ActionWarn, s.Action)
	assert.Equal(t, 0, s.ViolationCount)

	require.NoError(t, store.CommitAction(ctx, db.ActionCommit{Action: models.ModerationAction{ID: "w1", TargetUserID: "u", Type: models.ActionWarn}}))
	require.NoError(t, store.CommitAction(ctx, db.ActionCommit{Action: models.ModerationAction{ID: "s1", TargetUserID: "u", Type: models.ActionSuspend, Days: 3}}))

	s, err = l.Suggest(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, models.ActionSuspend, s.Action)
	assert.Equal(t, 7, s.Days)
	assert.Equal(t, 2, s.ViolationCount)
}
