package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

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

func buildMessage(t *testing.T) Message {
	t.Helper()
	msg, err := NewMessage().
		WithKey("space-1").
		WithValue(map[string]string{"booking_id": "b-1"}).
		WithEventType("booking.confirmed").
		WithEventID("").
		Build()
	require.NoError(t, err)
	return msg
}

func TestProducer_PublishRunsMiddlewareInOrder(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, nil, "notifications", "")

	var order []string
	p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
		order = append(order, "outer")
		return next(ctx, msg)
	})
	p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
		order = append(order, "inner")
		return next(ctx, msg)
	})

	require.NoError(t, p.Publish(context.Background(), buildMessage(t)))

	assert.Equal(t, []string{"outer", "inner"}, order)
	require.Len(t, w.messages, 1)
	assert.Equal(t, "space-1", string(w.messages[0].Key))
}

func TestProducer_RejectsInvalidMessages(t *testing.T) {
	p := newProducer(&fakeWriter{}, nil, "notifications", "")

	assert.ErrorIs(t, p.Publish(context.Background(), Message{Value: []byte("x")}), ErrEmptyKey)
	assert.ErrorIs(t, p.Publish(context.Background(), Message{Key: "k"}), ErrEmptyValue)
}

func TestProducer_ClosedProducer(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, nil, "notifications", "")
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	assert.True(t, w.closed)
	assert.ErrorIs(t, p.Publish(context.Background(), buildMessage(t)), ErrProducerClosed)
}

func TestProducer_PermanentFailureGoesToDLQ(t *testing.T) {
	w := &fakeWriter{err: errors.New("[3] Unknown Topic Or Partition")}
	dlq := &fakeWriter{}
	p := newProducer(w, dlq, "notifications", "notifications-dlq")

	err := p.Publish(context.Background(), buildMessage(t))

	var kErr *KafkaError
	require.ErrorAs(t, err, &kErr)
	assert.True(t, kErr.IsPermanent())
	require.Len(t, dlq.messages, 1)
}

func TestProducer_TransientFailureSkipsDLQ(t *testing.T) {
	w := &fakeWriter{err: errors.New("dial tcp: connection refused")}
	dlq := &fakeWriter{}
	p := newProducer(w, dlq, "notifications", "notifications-dlq")

	err := p.Publish(context.Background(), buildMessage(t))

	var kErr *KafkaError
	require.ErrorAs(t, err, &kErr)
	assert.True(t, kErr.IsTransient())
	assert.Empty(t, dlq.messages)
}

func TestMessageBuilder_EncodingError(t *testing.T) {
	_, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	assert.Equal(t, ErrorTypePermanent, ClassifyError(err))
}

func TestMessageBuilder_SetsDefaults(t *testing.T) {
	msg := buildMessage(t)
	assert.NotEmpty(t, msg.GetEventID())
	assert.NotEmpty(t, msg.Headers[HeaderTimestamp])
	assert.Equal(t, "booking.confirmed", msg.GetEventType())

	var payload map[string]string
	require.NoError(t, msg.DecodeValue(&payload))
	assert.Equal(t, "b-1", payload["booking_id"])
}
