package audit

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DTADMI/velvet-galaxy-sub002/internal/models"
)

type fakeSink struct {
	mu   sync.Mutex
	rows [][]interface{}
	ddl  int
}

func (f *fakeSink) BatchInsert(_ context.Context, _ string, data [][]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, data...)
	return nil
}

func (f *fakeSink) Exec(_ context.Context, _ string, _ ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ddl++
	return nil
}

type fakeProducer struct {
	mu       sync.Mutex
	messages []fakeMessage
}

type fakeMessage struct {
	topic string
	key   string
	value []byte
}

func (f *fakeProducer) ProduceMessage(_ context.Context, topic string, key, value []byte, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, fakeMessage{topic: topic, key: string(key), value: value})
	return nil
}

func decision(userID string, allowed bool) models.ThrottleDecision {
	return models.ThrottleDecision{
		DecisionID: "d-" + userID,
		UserID:     userID,
		Action:     "like",
		Allowed:    allowed,
		Remaining:  5,
		ResetAt:    time.Now().Add(time.Minute),
		DecidedAt:  time.Now(),
	}
}

func TestRecorderFlushesOnClose(t *testing.T) {
	sink := &fakeSink{}
	recorder := NewRecorder(sink, nil, "throttle.denied", 16, zap.NewNop())

	recorder.Record(decision("u1", true))
	recorder.Record(decision("u2", true))
	recorder.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Len(t, sink.rows, 2)
}

func TestRecorderPublishesDenials(t *testing.T) {
	sink := &fakeSink{}
	producer := &fakeProducer{}
	recorder := NewRecorder(sink, producer, "throttle.denied", 16, zap.NewNop())

	recorder.Record(decision("u1", true))
	recorder.Record(decision("u2", false))
	recorder.Close()

	producer.mu.Lock()
	defer producer.mu.Unlock()
	require.Len(t, producer.messages, 1)
	assert.Equal(t, "throttle.denied", producer.messages[0].topic)
	assert.Equal(t, "u2", producer.messages[0].key)

	var got models.ThrottleDecision
	require.NoError(t, json.Unmarshal(producer.messages[0].value, &got))
	assert.False(t, got.Allowed)
	assert.Equal(t, "like", got.Action)
}

func TestRecorderDropsWhenQueueFull(t *testing.T) {
	// No consumer progress is guaranteed before the drop path triggers with
	// a single-slot queue filled synchronously.
	recorder := &Recorder{
		logger:  zap.NewNop(),
		queue:   make(chan models.ThrottleDecision, 1),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}

	recorder.Record(decision("u1", true))
	recorder.Record(decision("u2", true)) // dropped, must not block

	assert.Len(t, recorder.queue, 1)
	close(recorder.done)
}

func TestRecorderRecordAfterCloseIsNoop(t *testing.T) {
	recorder := NewRecorder(&fakeSink{}, nil, "throttle.denied", 16, zap.NewNop())
	recorder.Close()

	// Must neither panic on the closed channel nor block.
	recorder.Record(decision("u1", true))
}

func TestRecorderEnsureSchema(t *testing.T) {
	sink := &fakeSink{}
	recorder := NewRecorder(sink, nil, "throttle.denied", 16, zap.NewNop())
	defer recorder.Close()

	require.NoError(t, recorder.EnsureSchema(context.Background()))
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 1, sink.ddl)
}
