package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"github.com/DTADMI/velvet-galaxy-sub002/internal/bucketing"
	"github.com/DTADMI/velvet-galaxy-sub002/internal/models"
	"github.com/DTADMI/velvet-galaxy-sub002/internal/ratelimit"
)

const (
	insertEventCQL = `
        INSERT INTO rate_limit_events (event_bucket, user_id, action, created_at, event_id)
        VALUES (?, ?, ?, ?, ?)`

	countEventsCQL = `
        SELECT COUNT(*) FROM rate_limit_events
        WHERE event_bucket = ? AND user_id = ? AND action = ? AND created_at >= ?`

	listPartitionsCQL = `
        SELECT DISTINCT event_bucket, user_id, action FROM rate_limit_events`

	purgePartitionCQL = `
        DELETE FROM rate_limit_events
        WHERE event_bucket = ? AND user_id = ? AND action = ? AND created_at < ?`
)

// RecordStore is the durable rate-limit record store on ScyllaDB. The count
// read and the insert are two separate queries with no LWT or batch linking
// them; concurrent checks may both count before either insert lands.
type RecordStore struct {
	client    *ScyllaClient
	bucketing *bucketing.Manager
	logger    *zap.Logger
}

var _ ratelimit.RecordStore = (*RecordStore)(nil)

func NewRecordStore(client *ScyllaClient, bucketingMgr *bucketing.Manager, logger *zap.Logger) *RecordStore {
	return &RecordStore{
		client:    client,
		bucketing: bucketingMgr,
		logger:    logger,
	}
}

func (s *RecordStore) CountSince(ctx context.Context, userID string, action ratelimit.Action, since time.Time) (int, error) {
	bucket := s.bucketing.EventBucket(userID)

	var count int
	err := s.client.Query(countEventsCQL, bucket, userID, string(action), since).
		WithContext(ctx).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rate limit events: %w", err)
	}
	return count, nil
}

func (s *RecordStore) Insert(ctx context.Context, userID string, action ratelimit.Action, at time.Time) error {
	record := models.RateLimitRecord{
		EventBucket: s.bucketing.EventBucket(userID),
		UserID:      userID,
		Action:      string(action),
		EventID:     gocql.UUIDFromTime(at).String(),
		CreatedAt:   at,
	}

	err := s.client.Query(insertEventCQL,
		record.EventBucket, record.UserID, record.Action, record.CreatedAt, record.EventID).
		WithContext(ctx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to insert rate limit event: %w", err)
	}
	return nil
}

// DeleteBefore walks the partition keys and issues a range delete per
// partition. Scylla deletes do not report row counts, so removal is
// reported as -1.
func (s *RecordStore) DeleteBefore(ctx context.Context, horizon time.Time) (int64, error) {
	iter := s.client.Query(listPartitionsCQL).WithContext(ctx).Iter()

	var (
		bucket int
		userID string
		action string
		purged int
	)
	for iter.Scan(&bucket, &userID, &action) {
		query := s.client.Query(purgePartitionCQL, bucket, userID, action, horizon).WithContext(ctx)
		if err := s.client.ExecuteWithRetry(query, 2); err != nil {
			s.logger.Warn("failed to purge rate limit partition",
				zap.Int("event_bucket", bucket),
				zap.String("user_id", userID),
				zap.String("action", action),
				zap.Error(err))
			continue
		}
		purged++
	}
	if err := iter.Close(); err != nil {
		return -1, fmt.Errorf("failed to list rate limit partitions: %w", err)
	}

	s.logger.Debug("purged rate limit partitions",
		zap.Int("partitions", purged),
		zap.Time("horizon", horizon))
	return -1, nil
}

func (s *RecordStore) HealthCheck(ctx context.Context) error {
	return s.client.HealthCheck()
}
