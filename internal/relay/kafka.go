// Package relay mirrors the event stream to a Kafka topic for external
// consumers. The relay is a bus tap: best-effort, never in the publish path's
// error flow.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ninjaos/autopilot/internal/bus"
	"github.com/ninjaos/autopilot/internal/config"
)

const writeTimeout = 5 * time.Second

// KafkaRelay writes every published event as one JSON message keyed by event
// type.
type KafkaRelay struct {
	writer *kafka.Writer
}

// NewKafkaRelay returns nil when the relay is disabled or unconfigured;
// callers treat a nil relay as a no-op.
func NewKafkaRelay(cfg config.RelayConfig) *KafkaRelay {
	brokers := strings.TrimSpace(cfg.Brokers)
	if !cfg.Enabled || brokers == "" {
		return nil
	}
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		topic = "autopilot.events"
	}
	return &KafkaRelay{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(brokers, ",")...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
	}
}

// Attach registers the relay as a bus tap.
func (r *KafkaRelay) Attach(b *bus.EventBus) {
	if r == nil {
		return
	}
	b.Tap(r.relay)
	slog.Info("Kafka relay attached", "topic", r.writer.Topic)
}

func (r *KafkaRelay) relay(evt *bus.Event) {
	body, err := json.Marshal(evt)
	if err != nil {
		slog.Warn("Relay marshal failed", "event", evt.ID, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.Type),
		Value: body,
		Time:  evt.CreatedAt,
	}); err != nil {
		slog.Warn("Relay write failed", "event", evt.ID, "error", err)
	}
}

// Close flushes and closes the writer.
func (r *KafkaRelay) Close() error {
	if r == nil {
		return nil
	}
	return r.writer.Close()
}
