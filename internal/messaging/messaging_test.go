package messaging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	queue     []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(_ context.Context) (kafka.Message, error) {
	if len(r.queue) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func withTracing(t *testing.T) {
	t.Helper()
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(sdktrace.NewTracerProvider())
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
}

func TestHeaderCarrier(t *testing.T) {
	msg := &kafka.Message{Headers: []kafka.Header{{Key: "a", Value: []byte("1")}}}
	c := NewHeaderCarrier(msg)

	c.Set("a", "2")
	c.Set("b", "3")

	assert.Equal(t, "2", c.Get("a"))
	assert.Equal(t, "3", c.Get("b"))
	assert.Empty(t, c.Get("missing"))
	assert.Equal(t, []string{"a", "b"}, c.Keys())
	assert.Len(t, msg.Headers, 2)
}

func TestProducer_PublishCarriesTypeAndTrace(t *testing.T) {
	withTracing(t)

	w := &fakeWriter{}
	p := &Producer{writer: w, topic: TopicOrderSettled, eventType: "order.settled.v1"}

	ctx, span := otel.Tracer("test").Start(context.Background(), "checkout")
	defer span.End()

	require.NoError(t, p.Publish(ctx, "order-1", map[string]string{"order_id": "order-1"}))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "order-1", string(msg.Key))
	assert.JSONEq(t, `{"order_id":"order-1"}`, string(msg.Value))

	carrier := NewHeaderCarrier(&msg)
	assert.Equal(t, "order.settled.v1", carrier.Get(EventTypeHeader))
	assert.Contains(t, carrier.Get("traceparent"), span.SpanContext().TraceID().String())
}

func TestProducer_PublishError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("broker down")}, topic: TopicOrderSettled}

	err := p.Publish(context.Background(), "k", struct{}{})
	assert.ErrorContains(t, err, "broker down")
}

func TestConsumer_Consume(t *testing.T) {
	withTracing(t)

	var traceparent string
	{
		ctx, span := otel.Tracer("test").Start(context.Background(), "producer")
		msg := kafka.Message{}
		otel.GetTextMapPropagator().Inject(ctx, NewHeaderCarrier(&msg))
		traceparent = NewHeaderCarrier(&msg).Get("traceparent")
		span.End()
	}

	reader := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Value: []byte("ok"), Headers: []kafka.Header{{Key: "traceparent", Value: []byte(traceparent)}}},
		{Offset: 2, Value: []byte("other"), Headers: []kafka.Header{{Key: EventTypeHeader, Value: []byte("something.else")}}},
		{Offset: 3, Value: []byte("poison")},
		{Offset: 4, Value: []byte("transient")},
	}}
	c := &Consumer{reader: reader, topic: TopicOrderSettled, groupID: "g", eventType: "order.settled.v1",
		logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	var handled []string
	var parentTraceIDs []trace.TraceID
	transient := errors.New("email service unavailable")

	err := c.Consume(context.Background(), func(ctx context.Context, payload []byte) error {
		handled = append(handled, string(payload))
		parentTraceIDs = append(parentTraceIDs, trace.SpanContextFromContext(ctx).TraceID())
		switch string(payload) {
		case "poison":
			return Permanent(errors.New("bad json"))
		case "transient":
			return transient
		}
		return nil
	})

	require.ErrorIs(t, err, transient)
	assert.Equal(t, []string{"ok", "poison", "transient"}, handled)
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
	assert.Contains(t, traceparent, parentTraceIDs[0].String())
}

func TestPermanent(t *testing.T) {
	assert.NoError(t, Permanent(nil))

	base := errors.New("decode")
	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
}
