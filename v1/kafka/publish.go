package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// HeaderEvent carries the event name on every message.
const HeaderEvent = "event"

// Envelope is the JSON value of every published message.
type Envelope struct {
	ID         string    `json:"id"`
	Event      string    `json:"event"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// Publish writes one event. The message key is the event name so that
// events of one kind stay ordered on one partition; the current trace
// context travels in the headers.
func (p *Publisher) Publish(ctx context.Context, event string, payload any) error {
	start := time.Now()

	value, err := json.Marshal(Envelope{
		ID:         uuid.NewString(),
		Event:      event,
		OccurredAt: start.UTC(),
		Payload:    payload,
	})
	if err != nil {
		err = fmt.Errorf("kafka: encode %s: %w", event, err)
		p.observe(event, start, err, 0)
		return err
	}

	msg := kafka.Message{
		Key:     []byte(event),
		Value:   value,
		Headers: headers(ctx, event),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		err = fmt.Errorf("kafka: publish %s: %w", event, err)
		p.observe(event, start, err, int64(len(value)))
		if p.logger != nil {
			p.logger.Warn("Failed to publish event", err, map[string]interface{}{
				"event": event,
				"topic": p.cfg.Topic,
			})
		}
		return err
	}

	p.observe(event, start, nil, int64(len(value)))
	return nil
}

func headers(ctx context.Context, event string) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	out := make([]kafka.Header, 0, len(carrier)+1)
	out = append(out, kafka.Header{Key: HeaderEvent, Value: []byte(event)})
	for _, k := range carrier.Keys() {
		out = append(out, kafka.Header{Key: k, Value: []byte(carrier.Get(k))})
	}
	return out
}
