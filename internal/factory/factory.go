package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DTADMI/velvet-galaxy-sub002/internal/audit"
	"github.com/DTADMI/velvet-galaxy-sub002/internal/bucketing"
	"github.com/DTADMI/velvet-galaxy-sub002/internal/client"
	"github.com/DTADMI/velvet-galaxy-sub002/internal/config"
	"github.com/DTADMI/velvet-galaxy-sub002/internal/ratelimit"
	redisrepo "github.com/DTADMI/velvet-galaxy-sub002/internal/repository/redis"
	"github.com/DTADMI/velvet-galaxy-sub002/internal/repository/scylla"
	"github.com/DTADMI/velvet-galaxy-sub002/internal/service"
	"github.com/DTADMI/velvet-galaxy-sub002/internal/tls"
	"github.com/DTADMI/velvet-galaxy-sub002/internal/util"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	tlsManager *tls.TLSManager

	// Clients
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	clickhouseClient *client.ClickHouseClient

	// Domain pieces
	bucketingManager *bucketing.Manager
	recordStore      ratelimit.RecordStore
	limiter          *ratelimit.Limiter
	recorder         *audit.Recorder

	serviceFactory *service.ServiceFactory

	closeOnce sync.Once
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	factory := &Factory{
		config: cfg,
	}

	if cfg.Server.EnableTLS {
		factory.tlsManager = tls.NewTLSManager(&tls.TLSConfig{
			EnableTLS:   cfg.Server.EnableTLS,
			AutoCert:    cfg.Server.AutoCert,
			Domain:      cfg.Server.Domain,
			CertFile:    cfg.Server.CertFile,
			KeyFile:     cfg.Server.KeyFile,
			AutoCertDir: cfg.Server.AutoCertDir,
			Email:       cfg.Server.Email,
			Environment: cfg.Environment,
		})
	}

	if err := factory.initializeStore(); err != nil {
		factory.Close()
		return nil, fmt.Errorf("failed to initialize record store: %w", err)
	}

	factory.initializeAudit()

	factory.limiter = ratelimit.NewLimiter(factory.recordStore, util.Get())

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.String("record_store", cfg.Throttle.Store),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("audit_enabled", factory.recorder != nil),
	)

	return factory, nil
}

// initializeStore wires the record store backend selected by configuration.
func (f *Factory) initializeStore() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch f.config.Throttle.Store {
	case "scylla":
		scyllaClient, err := scylla.NewScyllaClient(f.config, util.Get())
		if err != nil {
			return fmt.Errorf("scylla: %w", err)
		}
		f.scyllaClient = scyllaClient
		if err := f.scyllaClient.HealthCheck(); err != nil {
			return fmt.Errorf("scylla health check: %w", err)
		}
		if err := f.scyllaClient.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("scylla schema: %w", err)
		}

		f.bucketingManager = bucketing.NewManager(f.config)
		f.recordStore = scylla.NewRecordStore(f.scyllaClient, f.bucketingManager, util.Get())
		util.Info("ScyllaDB record store initialized and healthy")

	case "redis":
		redisClient, err := client.NewRedisClient(f.config, util.Get())
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		f.redisClient = redisClient
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("redis health check: %w", err)
		}

		f.recordStore = redisrepo.NewRecordStore(f.redisClient, util.Get())
		util.Info("Redis record store initialized and healthy")

	case "memory":
		f.recordStore = ratelimit.NewMemoryStore()
		util.Warn("Using in-memory record store - counts are per-process only")

	default:
		return fmt.Errorf("unknown record store %q", f.config.Throttle.Store)
	}

	return nil
}

// initializeAudit wires the decision audit pipeline. Audit is advisory: any
// initialization failure degrades to running without it.
func (f *Factory) initializeAudit() {
	if !f.config.Throttle.AuditEnabled {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clickhouseClient, err := client.NewClickHouseClient(f.config, util.Get())
	if err != nil {
		util.Warn("ClickHouse initialization failed - proceeding without decision analytics", util.ErrorField(err))
	} else {
		f.clickhouseClient = clickhouseClient
	}

	kafkaProducer, err := client.NewKafkaProducer(f.config, util.Get())
	if err != nil {
		util.Warn("Kafka producer initialization failed - proceeding without denial events", util.ErrorField(err))
	} else {
		f.kafkaProducer = kafkaProducer
	}

	if f.clickhouseClient == nil && f.kafkaProducer == nil {
		return
	}

	var sink audit.AnalyticsSink
	if f.clickhouseClient != nil {
		sink = f.clickhouseClient
	}
	var producer audit.EventProducer
	if f.kafkaProducer != nil {
		producer = f.kafkaProducer
	}

	f.recorder = audit.NewRecorder(sink, producer,
		f.config.Kafka.DeniedTopic,
		f.config.Throttle.AuditBuffer,
		util.Get())

	if err := f.recorder.EnsureSchema(ctx); err != nil {
		util.Warn("failed to ensure decision table", util.ErrorField(err))
	}
}

// ==============================
// Service Factory
// ==============================
func (f *Factory) ServiceFactory() *service.ServiceFactory {
	if f.serviceFactory == nil {
		f.serviceFactory = service.NewServiceFactory(
			f.limiter,
			f.recorder,
			f.config.Throttle.SweepInterval,
			util.Get(),
		)
	}
	return f.serviceFactory
}

// ==============================
// Health Checks
// ==============================

// HealthCheck runs every initialized dependency's check in parallel and
// returns one entry per dependency; a nil value means the check passed.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	var mu sync.Mutex
	results := make(map[string]error)
	record := func(name string, err error) {
		mu.Lock()
		results[name] = err
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)

	if f.scyllaClient != nil {
		g.Go(func() error {
			record("scylla", f.scyllaClient.HealthCheck())
			return nil
		})
	}
	if f.redisClient != nil {
		g.Go(func() error {
			record("redis", f.redisClient.HealthCheck(ctx))
			return nil
		})
	}
	if f.clickhouseClient != nil {
		g.Go(func() error {
			record("clickhouse", f.clickhouseClient.HealthCheck(ctx))
			return nil
		})
	}
	if f.kafkaProducer != nil {
		g.Go(func() error {
			record("kafka", f.kafkaProducer.HealthCheck(ctx))
			return nil
		})
	}

	_ = g.Wait()

	if f.recordStore == nil {
		results["record_store"] = fmt.Errorf("record store not initialized")
	} else {
		results["record_store"] = nil
	}
	if f.limiter == nil {
		results["limiter"] = fmt.Errorf("limiter not initialized")
	} else {
		results["limiter"] = nil
	}

	return results
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		util.Info("Shutting down factory...")

		if f.serviceFactory != nil {
			f.serviceFactory.Cleanup()
			util.Info("Service factory cleaned up")
		}

		if f.recorder != nil {
			f.recorder.Close()
			util.Info("Audit recorder drained and closed")
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			}
		}

		if f.scyllaClient != nil {
			f.scyllaClient.Close()
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})

	return nil
}

// ==============================
// Getters
// ==============================

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}

func (f *Factory) Limiter() *ratelimit.Limiter {
	return f.limiter
}

func (f *Factory) RecordStore() ratelimit.RecordStore {
	return f.recordStore
}
