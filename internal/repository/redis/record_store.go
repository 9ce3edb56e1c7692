package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DTADMI/velvet-galaxy-sub002/internal/client"
	"github.com/DTADMI/velvet-galaxy-sub002/internal/ratelimit"
)

const eventKeyPrefix = "throttle:events:"

// RecordStore keeps permitted-action timestamps in one sorted set per
// (user, action), scored by unix nanos. The count and the insert are two
// independent round trips on purpose: an atomic Lua script would turn the
// soft limit into a hard one and change observable behavior.
type RecordStore struct {
	client *client.RedisClient
	logger *zap.Logger
}

var _ ratelimit.RecordStore = (*RecordStore)(nil)

func NewRecordStore(redisClient *client.RedisClient, logger *zap.Logger) *RecordStore {
	return &RecordStore{
		client: redisClient,
		logger: logger,
	}
}

func eventKey(userID string, action ratelimit.Action) string {
	return fmt.Sprintf("%s%s:%s", eventKeyPrefix, userID, action)
}

func (s *RecordStore) CountSince(ctx context.Context, userID string, action ratelimit.Action, since time.Time) (int, error) {
	min := strconv.FormatInt(since.UnixNano(), 10)

	count, err := s.client.ZCount(ctx, eventKey(userID, action), min, "+inf")
	if err != nil {
		return 0, fmt.Errorf("failed to count rate limit events: %w", err)
	}
	return int(count), nil
}

func (s *RecordStore) Insert(ctx context.Context, userID string, action ratelimit.Action, at time.Time) error {
	key := eventKey(userID, action)

	// Unique member per event so same-timestamp actions keep their own rows.
	member := uuid.NewString()
	if err := s.client.ZAdd(ctx, key, float64(at.UnixNano()), member); err != nil {
		return fmt.Errorf("failed to insert rate limit event: %w", err)
	}

	// Key expiry mirrors the cleanup horizon; hygiene only, the window
	// filter in CountSince is what decides.
	if err := s.client.Expire(ctx, key, ratelimit.CleanupHorizon+time.Hour); err != nil {
		s.logger.Warn("failed to set rate limit key expiry",
			zap.String("key", key),
			zap.Error(err))
	}
	return nil
}

func (s *RecordStore) DeleteBefore(ctx context.Context, horizon time.Time) (int64, error) {
	max := "(" + strconv.FormatInt(horizon.UnixNano(), 10)

	var (
		removed int64
		cursor  uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, eventKeyPrefix+"*", 100)
		if err != nil {
			return removed, fmt.Errorf("failed to scan rate limit keys: %w", err)
		}

		for _, key := range keys {
			n, err := s.client.ZRemRangeByScore(ctx, key, "-inf", max)
			if err != nil {
				s.logger.Warn("failed to purge rate limit key",
					zap.String("key", key),
					zap.Error(err))
				continue
			}
			removed += n
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return removed, nil
}

func (s *RecordStore) HealthCheck(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}
