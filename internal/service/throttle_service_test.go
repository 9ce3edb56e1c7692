package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DTADMI/velvet-galaxy-sub002/internal/ratelimit"
)

func newTestService(t *testing.T, store ratelimit.RecordStore, sweepInterval time.Duration) *ThrottleService {
	t.Helper()
	limiter := ratelimit.NewLimiter(store, zap.NewNop())
	svc := NewThrottleService(limiter, nil, sweepInterval, zap.NewNop())
	t.Cleanup(svc.Close)
	return svc
}

func TestCheckRateLimitValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, ratelimit.NewMemoryStore(), 0)

	for name, tc := range map[string]struct {
		userID  string
		action  string
		wantErr error
	}{
		"empty user":        {"", "like", ErrInvalidUserID},
		"whitespace user":   {"   ", "like", ErrInvalidUserID},
		"control chars":     {"u\x001", "like", ErrInvalidUserID},
		"oversized user":    {strings.Repeat("x", 200), "like", ErrInvalidUserID},
		"empty action":      {"u1", "", ErrInvalidAction},
		"whitespace action": {"u1", "  ", ErrInvalidAction},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CheckRateLimit(ctx, tc.userID, tc.action)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCheckRateLimitTrimsUserID(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, ratelimit.NewMemoryStore(), 0)

	rule := ratelimit.DefaultRules[ratelimit.ActionAuthSignup]
	for i := 0; i < rule.MaxRequests; i++ {
		res, err := svc.CheckRateLimit(ctx, "  u1  ", "auth_signup")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	// Same identity once trimmed, so the next check is over the limit.
	res, err := svc.CheckRateLimit(ctx, "u1", "auth_signup")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestCheckRateLimitTrimsAction(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, ratelimit.NewMemoryStore(), 0)

	rule := ratelimit.DefaultRules[ratelimit.ActionAuthSignup]
	for i := 0; i < rule.MaxRequests; i++ {
		res, err := svc.CheckRateLimit(ctx, "u1", "  auth_signup  ")
		require.NoError(t, err)
		require.True(t, res.Allowed)
		assert.NotEqual(t, ratelimit.UnlimitedRemaining, res.Remaining)
	}

	// Padded spelling hit the auth_signup rule, so the clean form is exhausted.
	res, err := svc.CheckRateLimit(ctx, "u1", "auth_signup")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestCheckRateLimitUnknownActionAllowed(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, ratelimit.NewMemoryStore(), 0)

	res, err := svc.CheckRateLimit(ctx, "u1", "listing_create")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, ratelimit.UnlimitedRemaining, res.Remaining)
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	store := ratelimit.NewMemoryStore()
	svc := newTestService(t, store, 0)

	require.NoError(t, store.Insert(ctx, "u1", ratelimit.ActionLike, time.Now().Add(-25*time.Hour)))
	require.NoError(t, store.Insert(ctx, "u1", ratelimit.ActionLike, time.Now()))

	removed, err := svc.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, 1, store.Len())
}

func TestSweeperRunsPeriodically(t *testing.T) {
	ctx := context.Background()
	store := ratelimit.NewMemoryStore()

	require.NoError(t, store.Insert(ctx, "u1", ratelimit.ActionLike, time.Now().Add(-25*time.Hour)))

	newTestService(t, store, 20*time.Millisecond)

	assert.Eventually(t, func() bool {
		return store.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestRulesExposesActionTable(t *testing.T) {
	svc := newTestService(t, ratelimit.NewMemoryStore(), 0)

	rules := svc.Rules()
	assert.Len(t, rules, len(ratelimit.DefaultRules))
	assert.Equal(t, 50, rules[ratelimit.ActionLike].MaxRequests)
	assert.Equal(t, time.Hour, rules[ratelimit.ActionAuthSignup].Window)
}
