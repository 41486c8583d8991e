package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"slotbook/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
	drained   chan struct{}
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{pending: msgs, drained: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	if len(r.pending) == 0 {
		select {
		case <-r.drained:
		default:
			close(r.drained)
		}
	}
	return nil
}

func (r *fakeReader) Close() error {
	return nil
}

func buildMessage(t *testing.T, key string, value any) Message {
	t.Helper()
	msg, err := NewMessage().
		WithKey(key).
		WithValue(value).
		WithEventType("reservation.created").
		WithSource("instance-a").
		Build()
	require.NoError(t, err)
	return msg
}

func TestMessageBuilder(t *testing.T) {
	msg := buildMessage(t, "slot-1", map[string]string{"slot_id": "slot-1"})

	assert.Equal(t, "slot-1", msg.Key)
	assert.JSONEq(t, `{"slot_id":"slot-1"}`, string(msg.Value))
	assert.NotEmpty(t, msg.GetEventID())
	assert.Equal(t, "reservation.created", msg.GetEventType())
	assert.Equal(t, "instance-a", msg.GetSource())
	assert.NotEmpty(t, msg.Headers[HeaderTimestamp])

	_, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	assert.Error(t, err)
}

func TestMessage_RetryCount(t *testing.T) {
	msg := buildMessage(t, "k", "v")
	assert.Equal(t, 0, msg.GetRetryCount())

	for range 12 {
		msg.IncrementRetryCount()
	}
	assert.Equal(t, 12, msg.GetRetryCount())
}

func TestMessage_RoundTripThroughWireType(t *testing.T) {
	msg := buildMessage(t, "slot-9", "payload")
	back := fromKafkaMessage(toKafkaMessage(msg))

	assert.Equal(t, msg.Key, back.Key)
	assert.Equal(t, msg.Value, back.Value)
	assert.Equal(t, msg.Headers, back.Headers)
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, nil, "reservations", logger.Discard())

	var seenTopic string
	p.Use(func(ctx context.Context, msg Message, next func(ctx context.Context, msg Message) error) error {
		seenTopic = msg.Topic
		return next(ctx, msg)
	})

	require.NoError(t, p.Publish(context.Background(), buildMessage(t, "slot-1", "v")))
	require.Len(t, w.messages, 1)
	assert.Equal(t, "slot-1", string(w.messages[0].Key))
	assert.Equal(t, "reservations", seenTopic)
}

func TestProducer_RejectsInvalid(t *testing.T) {
	p := newProducer(&fakeWriter{}, nil, "reservations", logger.Discard())

	assert.ErrorIs(t, p.Publish(context.Background(), Message{Value: []byte("x")}), ErrEmptyKey)
	assert.ErrorIs(t, p.Publish(context.Background(), Message{Key: "k"}), ErrEmptyValue)

	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Publish(context.Background(), buildMessage(t, "k", "v")), ErrProducerClosed)
}

func TestProducer_FailedWriteGoesToDLQ(t *testing.T) {
	boom := errors.New("connection refused")
	w := &fakeWriter{err: boom}
	dlq := &fakeWriter{}
	p := newProducer(w, dlq, "reservations", logger.Discard())

	msg := buildMessage(t, "slot-1", "v")
	err := p.Publish(context.Background(), msg)
	assert.ErrorIs(t, err, boom)

	require.Len(t, dlq.messages, 1)
	assert.Equal(t, "reservations", header(dlq.messages[0], HeaderOriginalTopic))
	assert.Equal(t, boom.Error(), header(dlq.messages[0], HeaderDLQError))
	assert.Empty(t, msg.Headers[HeaderDLQError], "caller's headers are untouched")
}

func TestConsumer_HandlesAndCommits(t *testing.T) {
	reader := newFakeReader(
		toKafkaMessage(buildMessage(t, "a", "1")),
		toKafkaMessage(buildMessage(t, "b", "2")),
	)
	reader.pending[0].Offset = 10
	reader.pending[1].Offset = 11

	var mu sync.Mutex
	var keys []string
	c := newConsumer(reader, nil, "reservations", "group", func(ctx context.Context, msg Message) error {
		mu.Lock()
		defer mu.Unlock()
		keys = append(keys, msg.Key)
		return nil
	}, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	select {
	case <-reader.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not drain messages")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	require.NoError(t, c.Close())

	assert.Equal(t, []string{"a", "b"}, keys)
	assert.Equal(t, []int64{10, 11}, reader.committed)
}

func TestConsumer_RetriesTransientThenDeadLetters(t *testing.T) {
	reader := newFakeReader(toKafkaMessage(buildMessage(t, "a", "1")))
	dlq := &fakeWriter{}

	calls := 0
	c := newConsumer(reader, dlq, "reservations", "group", func(ctx context.Context, msg Message) error {
		calls++
		return NewTransientError("cache unreachable", errors.New("i/o timeout"))
	}, logger.Discard())
	c.maxRetries = 2

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	select {
	case <-reader.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not drain messages")
	}
	cancel()
	<-done

	assert.Equal(t, 3, calls)
	require.Len(t, dlq.messages, 1)
	assert.Equal(t, "group", header(dlq.messages[0], HeaderDLQConsumerGrp))
	assert.Equal(t, "2", header(dlq.messages[0], HeaderRetryCount))
}

func TestConsumer_PermanentErrorNotRetried(t *testing.T) {
	reader := newFakeReader(toKafkaMessage(buildMessage(t, "a", "1")))

	calls := 0
	c := newConsumer(reader, nil, "reservations", "group", func(ctx context.Context, msg Message) error {
		calls++
		return NewPermanentError("bad payload", nil)
	}, logger.Discard())
	c.maxRetries = 5

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()
	<-reader.drained
	cancel()
	<-done

	assert.Equal(t, 1, calls)
	assert.Equal(t, []int64{0}, reader.committed)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"typed transient", NewTransientError("x", nil), ErrorTypeTransient},
		{"typed permanent", NewPermanentError("x", nil), ErrorTypePermanent},
		{"deadline", context.DeadlineExceeded, ErrorTypeTransient},
		{"network text", errors.New("dial tcp: Connection Refused"), ErrorTypeTransient},
		{"unknown", errors.New("something odd"), ErrorTypePermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}

	assert.False(t, ShouldRetry(NewTransientError("x", nil), 3, 3))
	assert.True(t, ShouldRetry(NewTransientError("x", nil), 2, 3))
}
