package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/DTADMI/velvet-galaxy-sub002/internal/audit"
	"github.com/DTADMI/velvet-galaxy-sub002/internal/ratelimit"
)

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	limiter       *ratelimit.Limiter
	recorder      *audit.Recorder
	sweepInterval time.Duration
	logger        *zap.Logger

	throttleService *ThrottleService
}

// NewServiceFactory creates a new service factory
func NewServiceFactory(limiter *ratelimit.Limiter, recorder *audit.Recorder, sweepInterval time.Duration, logger *zap.Logger) *ServiceFactory {
	return &ServiceFactory{
		limiter:       limiter,
		recorder:      recorder,
		sweepInterval: sweepInterval,
		logger:        logger,
	}
}

// ThrottleService returns the throttle service instance (singleton)
func (f *ServiceFactory) ThrottleService() *ThrottleService {
	if f.throttleService == nil {
		f.throttleService = NewThrottleService(
			f.limiter,
			f.recorder,
			f.sweepInterval,
			f.logger,
		)
	}
	return f.throttleService
}

// Cleanup stops all services
func (f *ServiceFactory) Cleanup() {
	if f.throttleService != nil {
		f.throttleService.Close()
	}
}
