package ratelimit

import (
	"context"
	"time"
)

// RecordStore is the backing store for permitted-action records. The limiter
// issues the count read and the insert as two independent calls with no
// transaction spanning them; implementations must not add one, since the
// resulting soft-limit overshoot under concurrent checks is part of the
// contract.
type RecordStore interface {
	// CountSince returns how many records exist for (userID, action) with a
	// timestamp at or after since.
	CountSince(ctx context.Context, userID string, action Action, since time.Time) (int, error)

	// Insert durably records one permitted occurrence at the given time.
	Insert(ctx context.Context, userID string, action Action, at time.Time) error

	// DeleteBefore removes all records older than horizon and reports how
	// many were removed (best effort; -1 when the backend cannot count).
	DeleteBefore(ctx context.Context, horizon time.Time) (int64, error)
}
