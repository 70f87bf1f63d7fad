package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/lumastudio/dataplane/v1/observability"
)

// ErrNoBrokers is returned by NewPublisher when no broker is configured.
var ErrNoBrokers = errors.New("kafka: no brokers configured")

// Logger is the logging contract of the publisher.
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes domain events to a single topic.
type Publisher struct {
	cfg      Config
	writer   messageWriter
	observer observability.Observer
	logger   Logger

	closeOnce sync.Once
	closeErr  error
}

// NewPublisher builds a synchronous writer for cfg.Topic.
func NewPublisher(cfg Config) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, ErrNoBrokers
	}
	cfg = cfg.withDefaults()

	transport, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}
	acks, ok := ackLevels[cfg.RequiredAcks]
	if !ok {
		return nil, fmt.Errorf("kafka: unsupported required_acks %q", cfg.RequiredAcks)
	}

	p := &Publisher{cfg: cfg}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: acks,
		Compression:  codecs[cfg.CompressionCodec],
		ErrorLogger:  kafka.LoggerFunc(p.logDriverError),
		Transport:    transport,
	}
	return p, nil
}

func newPublisherWithWriter(cfg Config, w messageWriter) *Publisher {
	return &Publisher{cfg: cfg.withDefaults(), writer: w}
}

// WithObserver reports every publish to observer.
func (p *Publisher) WithObserver(observer observability.Observer) *Publisher {
	p.observer = observer
	return p
}

// WithLogger sets the logger for publish and driver errors.
func (p *Publisher) WithLogger(logger Logger) *Publisher {
	p.logger = logger
	return p
}

// Close flushes and closes the writer. Later calls return the first result.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.writer.Close()
	})
	return p.closeErr
}

func (p *Publisher) logDriverError(msg string, args ...interface{}) {
	if p.logger == nil {
		return
	}
	p.logger.Error("Kafka internal error", nil, map[string]interface{}{
		"error": fmt.Sprintf(msg, args...),
	})
}
