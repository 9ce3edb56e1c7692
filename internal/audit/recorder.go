package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DTADMI/velvet-galaxy-sub002/internal/models"
)

// AnalyticsSink receives batched decision rows. Satisfied by
// client.ClickHouseClient.
type AnalyticsSink interface {
	BatchInsert(ctx context.Context, query string, data [][]interface{}) error
	Exec(ctx context.Context, query string, args ...interface{}) error
}

// EventProducer publishes denial events. Satisfied by client.KafkaProducer.
type EventProducer interface {
	ProduceMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

const (
	insertDecisionsSQL = `INSERT INTO throttle_decisions (decision_id, user_id, action, allowed, remaining, reset_at, decided_at)`

	decisionsDDL = `
        CREATE TABLE IF NOT EXISTS throttle_decisions (
            decision_id String,
            user_id     String,
            action      String,
            allowed     UInt8,
            remaining   Int32,
            reset_at    DateTime64(3),
            decided_at  DateTime64(3)
        ) ENGINE = MergeTree()
        ORDER BY (action, decided_at)
        TTL toDateTime(decided_at) + INTERVAL 90 DAY`

	flushInterval = 5 * time.Second
	maxBatchSize  = 500
)

// Recorder is the fire-and-forget decision audit pipeline: decisions are
// queued on a buffered channel, batched into ClickHouse on a flush loop, and
// denials additionally go to Kafka. A full queue drops the decision with a
// warn; audit never blocks or fails a check.
type Recorder struct {
	sink        AnalyticsSink
	producer    EventProducer
	deniedTopic string
	logger      *zap.Logger

	queue    chan models.ThrottleDecision
	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}
}

func NewRecorder(sink AnalyticsSink, producer EventProducer, deniedTopic string, bufferSize int, logger *zap.Logger) *Recorder {
	r := &Recorder{
		sink:        sink,
		producer:    producer,
		deniedTopic: deniedTopic,
		logger:      logger,
		queue:       make(chan models.ThrottleDecision, bufferSize),
		stopped:     make(chan struct{}),
		done:        make(chan struct{}),
	}

	go r.run()
	return r
}

// EnsureSchema creates the decision table when it does not exist.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	if r.sink == nil {
		return nil
	}
	return r.sink.Exec(ctx, decisionsDDL)
}

// Record enqueues a decision without blocking. Drops on a full buffer.
func (r *Recorder) Record(decision models.ThrottleDecision) {
	select {
	case <-r.stopped:
		return
	default:
	}

	select {
	case r.queue <- decision:
	default:
		r.logger.Warn("audit queue full, dropping decision",
			zap.String("user_id", decision.UserID),
			zap.String("action", decision.Action))
	}
}

// Close stops the flush loop after draining queued decisions.
func (r *Recorder) Close() {
	r.stopOnce.Do(func() {
		close(r.stopped)
	})
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]models.ThrottleDecision, 0, maxBatchSize)

	for {
		select {
		case decision := <-r.queue:
			batch = r.consume(batch, decision)
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-r.stopped:
			// Drain whatever is already queued, then final flush.
			for {
				select {
				case decision := <-r.queue:
					batch = r.consume(batch, decision)
				default:
					r.flush(batch)
					return
				}
			}
		}
	}
}

func (r *Recorder) consume(batch []models.ThrottleDecision, decision models.ThrottleDecision) []models.ThrottleDecision {
	if !decision.Allowed {
		r.publishDenied(decision)
	}
	batch = append(batch, decision)
	if len(batch) >= maxBatchSize {
		r.flush(batch)
		batch = batch[:0]
	}
	return batch
}

func (r *Recorder) flush(batch []models.ThrottleDecision) {
	if len(batch) == 0 || r.sink == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows := make([][]interface{}, 0, len(batch))
	for _, d := range batch {
		allowed := uint8(0)
		if d.Allowed {
			allowed = 1
		}
		rows = append(rows, []interface{}{
			d.DecisionID, d.UserID, d.Action, allowed,
			int32(d.Remaining), d.ResetAt, d.DecidedAt,
		})
	}

	if err := r.sink.BatchInsert(ctx, insertDecisionsSQL, rows); err != nil {
		r.logger.Error("failed to flush decision batch",
			zap.Int("batch_size", len(batch)),
			zap.Error(err))
		return
	}

	r.logger.Debug("flushed decision batch", zap.Int("batch_size", len(batch)))
}

func (r *Recorder) publishDenied(decision models.ThrottleDecision) {
	if r.producer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload, err := json.Marshal(decision)
	if err != nil {
		r.logger.Error("failed to marshal denied decision", zap.Error(err))
		return
	}

	err = r.producer.ProduceMessage(ctx, r.deniedTopic, []byte(decision.UserID), payload, map[string]string{
		"action": decision.Action,
	})
	if err != nil {
		r.logger.Warn("failed to publish denied decision",
			zap.String("user_id", decision.UserID),
			zap.String("action", decision.Action),
			zap.Error(err))
	}
}
