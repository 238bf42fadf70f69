package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	calls    int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestPublishWritesKeyedEnvelope(t *testing.T) {
	writer := &fakeWriter{}
	pub := NewKafkaPublisher(writer, KafkaConfig{Topic: "bookhaven.events"}, nil, nil)

	evt := New(TypeOrderStatusChanged, "order-42", map[string]string{"to": "paid"})
	require.NoError(t, pub.Publish(context.Background(), evt))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	require.Equal(t, "order-42", string(msg.Key))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	require.Equal(t, evt.ID, decoded.ID)
	require.Equal(t, TypeOrderStatusChanged, decoded.Type)
	require.Equal(t, "event-type", msg.Headers[0].Key)
	require.Equal(t, TypeOrderStatusChanged, string(msg.Headers[0].Value))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker unreachable")}
	pub := NewKafkaPublisher(writer, KafkaConfig{Topic: "t", FailureThreshold: 3, OpenTimeout: time.Minute}, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.Error(t, pub.Publish(ctx, New(TypeOrderCreated, "order-1", nil)))
	}
	require.Equal(t, gobreaker.StateOpen, pub.State())

	err := pub.Publish(ctx, New(TypeOrderCreated, "order-1", nil))
	require.ErrorIs(t, err, ErrCircuitOpen)
	require.Equal(t, 3, writer.calls)
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) Publish(context.Context, Event) error {
	p.calls++
	return errors.New("down")
}

func (p *failingPublisher) Close() error { return nil }

func TestEmitSwallowsFailures(t *testing.T) {
	pub := &failingPublisher{}
	Emit(context.Background(), pub, nil, New(TypeUserRegistered, "user-1", nil))
	Emit(context.Background(), nil, nil, New(TypeUserRegistered, "user-1", nil))
	require.Equal(t, 1, pub.calls)
}
