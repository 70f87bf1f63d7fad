package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/lumastudio/dataplane/v1/observability"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed int
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed++
	return nil
}

type recordingObserver struct {
	ops []observability.OperationContext
}

func (r *recordingObserver) ObserveOperation(ctx observability.OperationContext) {
	r.ops = append(r.ops, ctx)
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestPublishWritesEnvelope(t *testing.T) {
	w := &fakeWriter{}
	obs := &recordingObserver{}
	p := newPublisherWithWriter(Config{}, w).WithObserver(obs)

	err := p.Publish(context.Background(), "booking.created", map[string]any{"user_id": "u1"})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "booking.created", string(msg.Key))
	assert.Equal(t, "booking.created", headerValue(msg, HeaderEvent))

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, "booking.created", env.Event)
	assert.Equal(t, map[string]any{"user_id": "u1"}, env.Payload)
	assert.False(t, env.OccurredAt.IsZero())

	require.Len(t, obs.ops, 1)
	assert.Equal(t, "kafka", obs.ops[0].Component)
	assert.Equal(t, DefaultTopic, obs.ops[0].Resource)
	assert.Equal(t, "booking.created", obs.ops[0].SubResource)
	assert.NoError(t, obs.ops[0].Error)
}

func TestPublishCarriesTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "run_maintenance")
	defer span.End()

	w := &fakeWriter{}
	require.NoError(t, newPublisherWithWriter(Config{}, w).Publish(ctx, "maintenance.completed", nil))

	assert.Contains(t, headerValue(w.msgs[0], "traceparent"), span.SpanContext().TraceID().String())
}

func TestPublishReportsWriteFailure(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	obs := &recordingObserver{}
	p := newPublisherWithWriter(Config{Topic: "events"}, w).WithObserver(obs)

	err := p.Publish(context.Background(), "booking.created", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
	require.Len(t, obs.ops, 1)
	assert.Error(t, obs.ops[0].Error)
	assert.Equal(t, "events", obs.ops[0].Resource)
}

func TestPublishRejectsUnencodablePayload(t *testing.T) {
	w := &fakeWriter{}
	err := newPublisherWithWriter(Config{}, w).Publish(context.Background(), "x", make(chan int))
	require.Error(t, err)
	assert.Empty(t, w.msgs)
}

func TestCloseIsIdempotent(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisherWithWriter(Config{}, w)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)
}

func TestNewPublisherConfig(t *testing.T) {
	_, err := NewPublisher(Config{})
	assert.ErrorIs(t, err, ErrNoBrokers)

	_, err = NewPublisher(Config{Brokers: []string{"localhost:9092"}, RequiredAcks: "some"})
	assert.Error(t, err)

	_, err = NewPublisher(Config{Brokers: []string{"localhost:9092"}, SASL: SASLConfig{Enabled: true, Mechanism: "GSSAPI"}})
	assert.Error(t, err)

	p, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}, CompressionCodec: "zstd"})
	require.NoError(t, err)
	w := p.writer.(*kafka.Writer)
	assert.Equal(t, DefaultTopic, w.Topic)
	assert.Equal(t, kafka.RequireOne, w.RequiredAcks)
	assert.Equal(t, kafka.Zstd, w.Compression)
	require.NoError(t, p.Close())
}

func TestTransportOptions(t *testing.T) {
	_, err := newTransport(Config{TLS: TLSConfig{Enabled: true, CACertPath: filepath.Join(t.TempDir(), "missing.pem")}})
	assert.Error(t, err)

	tr, err := newTransport(Config{ClientID: "dataplane", SASL: SASLConfig{Enabled: true, Mechanism: "SCRAM-SHA-512", Username: "u", Password: "p"}})
	require.NoError(t, err)
	assert.Equal(t, "dataplane", tr.ClientID)
	assert.Nil(t, tr.TLS)
	require.NotNil(t, tr.SASL)
	assert.Equal(t, "SCRAM-SHA-512", tr.SASL.Name())
}
