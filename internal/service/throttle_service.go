package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DTADMI/velvet-galaxy-sub002/internal/audit"
	"github.com/DTADMI/velvet-galaxy-sub002/internal/models"
	"github.com/DTADMI/velvet-galaxy-sub002/internal/ratelimit"
	"github.com/DTADMI/velvet-galaxy-sub002/internal/util"
)

var (
	ErrInvalidUserID = errors.New("invalid user id")
	ErrInvalidAction = errors.New("invalid action")
)

// ThrottleService fronts the rate limiter for the platform's server actions:
// input validation, the limit decision, and the advisory audit emit. It also
// owns the periodic cleanup sweeper.
type ThrottleService struct {
	limiter  *ratelimit.Limiter
	recorder *audit.Recorder
	logger   *zap.Logger

	sweepInterval time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
	sweeperDone   chan struct{}
}

func NewThrottleService(limiter *ratelimit.Limiter, recorder *audit.Recorder, sweepInterval time.Duration, logger *zap.Logger) *ThrottleService {
	s := &ThrottleService{
		limiter:       limiter,
		recorder:      recorder,
		logger:        logger,
		sweepInterval: sweepInterval,
		stopChan:      make(chan struct{}),
		sweeperDone:   make(chan struct{}),
	}

	if sweepInterval > 0 {
		go s.runSweeper()
	} else {
		close(s.sweeperDone)
		logger.Info("cleanup sweeper disabled, cleanup runs only via admin endpoint")
	}

	return s
}

// CheckRateLimit decides whether the user may perform the action right now.
// A denied check is a normal result; only validation and store failures
// return an error. Unknown action kinds pass through allowed, so a newly
// shipped server action without a rule keeps working.
func (s *ThrottleService) CheckRateLimit(ctx context.Context, userID, action string) (ratelimit.Result, error) {
	userID = util.NormalizeIdentifier(userID)
	if !util.ValidIdentifier(userID) {
		return ratelimit.Result{}, ErrInvalidUserID
	}
	action = util.NormalizeIdentifier(action)
	if !util.ValidIdentifier(action) {
		return ratelimit.Result{}, ErrInvalidAction
	}

	result, err := s.limiter.Check(ctx, userID, ratelimit.Action(action))
	if err != nil {
		return ratelimit.Result{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	if s.recorder != nil {
		s.recorder.Record(models.ThrottleDecision{
			DecisionID: uuid.NewString(),
			UserID:     userID,
			Action:     action,
			Allowed:    result.Allowed,
			Remaining:  result.Remaining,
			ResetAt:    result.ResetAt,
			DecidedAt:  time.Now(),
		})
	}

	return result, nil
}

// Cleanup deletes records older than the retention horizon.
func (s *ThrottleService) Cleanup(ctx context.Context) (int64, error) {
	return s.limiter.CleanupOldRecords(ctx)
}

// Rules returns the configured action limits.
func (s *ThrottleService) Rules() map[ratelimit.Action]ratelimit.Rule {
	return s.limiter.Rules()
}

// Close stops the sweeper. The audit recorder is owned by the factory and
// closed there.
func (s *ThrottleService) Close() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	<-s.sweeperDone
}

func (s *ThrottleService) runSweeper() {
	defer close(s.sweeperDone)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	s.logger.Info("cleanup sweeper started",
		zap.Duration("interval", s.sweepInterval))

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			if _, err := s.Cleanup(ctx); err != nil {
				s.logger.Error("scheduled cleanup failed", zap.Error(err))
			}
			cancel()
		case <-s.stopChan:
			return
		}
	}
}
