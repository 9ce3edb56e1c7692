package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Result is the outcome of a single check. A denied check is a normal
// result, not an error; callers branch on Allowed and build their own
// user-facing throttling message from ResetAt.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Limiter decides, per user and action kind, whether an action may proceed
// under a fixed-window counting scheme, and records permitted actions for
// future counting. It holds no cross-call state; all state lives in the
// record store.
type Limiter struct {
	store  RecordStore
	rules  map[Action]Rule
	logger *zap.Logger

	now func() time.Time
}

// NewLimiter creates a limiter over the given store using DefaultRules.
func NewLimiter(store RecordStore, logger *zap.Logger) *Limiter {
	return NewLimiterWithRules(store, DefaultRules, logger)
}

// NewLimiterWithRules creates a limiter with a custom rule table.
func NewLimiterWithRules(store RecordStore, rules map[Action]Rule, logger *zap.Logger) *Limiter {
	return &Limiter{
		store:  store,
		rules:  rules,
		logger: logger,
		now:    time.Now,
	}
}

// Check counts records for (userID, action) within the trailing window and,
// when the count is under the limit, records the occurrence. The count and
// the insert are two independent store calls: concurrent checks for the same
// pair can both observe the pre-insert count and both be allowed. That
// overshoot is accepted; the limit is soft.
func (l *Limiter) Check(ctx context.Context, userID string, action Action) (Result, error) {
	now := l.now()

	rule, ok := l.rules[action]
	if !ok {
		// Unknown action kinds pass through unlimited.
		l.logger.Debug("no rule for action, allowing",
			zap.String("action", string(action)),
			zap.String("user_id", userID))
		return Result{Allowed: true, Remaining: UnlimitedRemaining, ResetAt: now}, nil
	}

	windowStart := now.Add(-rule.Window)
	count, err := l.store.CountSince(ctx, userID, action, windowStart)
	if err != nil {
		return Result{}, fmt.Errorf("count rate limit records: %w", err)
	}

	// ResetAt is always a full window out, not the expiry of the oldest
	// counted record.
	result := Result{
		Allowed: count < rule.MaxRequests,
		ResetAt: now.Add(rule.Window),
	}

	if !result.Allowed {
		result.Remaining = maxInt(0, rule.MaxRequests-count)
		l.logger.Debug("rate limit exceeded",
			zap.String("user_id", userID),
			zap.String("action", string(action)),
			zap.Int("count", count),
			zap.Int("max_requests", rule.MaxRequests))
		return result, nil
	}

	if err := l.store.Insert(ctx, userID, action, now); err != nil {
		return Result{}, fmt.Errorf("insert rate limit record: %w", err)
	}
	result.Remaining = maxInt(0, rule.MaxRequests-count-1)

	return result, nil
}

// CleanupOldRecords deletes records older than CleanupHorizon. Advisory
// storage hygiene only: every configured window is far shorter than the
// horizon, so no live count can be affected. Idempotent and safe to run
// concurrently with checks and with itself.
func (l *Limiter) CleanupOldRecords(ctx context.Context) (int64, error) {
	horizon := l.now().Add(-CleanupHorizon)
	removed, err := l.store.DeleteBefore(ctx, horizon)
	if err != nil {
		return 0, fmt.Errorf("delete old rate limit records: %w", err)
	}
	l.logger.Info("rate limit cleanup completed",
		zap.Int64("records_removed", removed),
		zap.Time("horizon", horizon))
	return removed, nil
}

// Rules returns the limiter's rule table.
func (l *Limiter) Rules() map[Action]Rule {
	out := make(map[Action]Rule, len(l.rules))
	for k, v := range l.rules {
		out[k] = v
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
