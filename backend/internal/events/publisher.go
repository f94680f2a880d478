// Package events publishes execution events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// ExecutionEvent is published once per finished execution.
type ExecutionEvent struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"` // "code" or "command"
	ExitCode   int       `json:"exitCode"`
	DurationMs int64     `json:"durationMs"`
	TimedOut   bool      `json:"timedOut,omitempty"`
	Truncated  bool      `json:"truncated,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether enough is configured to talk to Kafka.
func (c *Config) Enabled() bool {
	return c != nil && len(c.Brokers) > 0 && c.Topic != ""
}

// messageWriter is the subset of *kafka.Writer used by Publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes execution events. A disabled publisher only logs.
type Publisher struct {
	writer messageWriter
	topic  string
	// OnPublish, when set, is called after every publish attempt.
	OnPublish func(err error)
}

// New creates a publisher. It is disabled (log-only) when cfg is nil or has
// no brokers or topic.
func New(cfg *Config) *Publisher {
	if !cfg.Enabled() {
		slog.Info("kafka disabled, execution events are only logged")
		return &Publisher{}
	}
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}
	slog.Info("kafka publisher initialized", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return &Publisher{writer: w, topic: cfg.Topic}
}

// Enabled reports whether events reach Kafka.
func (p *Publisher) Enabled() bool {
	return p.writer != nil
}

// Publish writes ev keyed by its ID. Errors are logged and returned; callers
// treat them as non-fatal.
func (p *Publisher) Publish(ctx context.Context, ev *ExecutionEvent) error {
	err := p.publish(ctx, ev)
	if p.OnPublish != nil {
		p.OnPublish(err)
	}
	return err
}

func (p *Publisher) publish(ctx context.Context, ev *ExecutionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	slog.Debug("publishing execution event", "topic", p.topic, "id", ev.ID, "payload", string(payload))
	if p.writer == nil {
		return nil
	}
	msg := kafka.Message{
		Key:   []byte(ev.ID),
		Value: payload,
		Time:  ev.StartedAt,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(ev.Kind)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("failed to write execution event", "topic", p.topic, "id", ev.ID, "err", err)
		return err
	}
	return nil
}

// Close flushes and closes the Kafka writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
