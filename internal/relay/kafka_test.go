package relay

import (
	"path/filepath"
	"testing"

	"github.com/ninjaos/autopilot/internal/bus"
	"github.com/ninjaos/autopilot/internal/config"
	"github.com/ninjaos/autopilot/internal/store"
)

func TestRelayDisabledWithoutBrokers(t *testing.T) {
	if r := NewKafkaRelay(config.RelayConfig{Enabled: true}); r != nil {
		t.Fatal("expected nil relay without brokers")
	}
	if r := NewKafkaRelay(config.RelayConfig{Brokers: "localhost:9092"}); r != nil {
		t.Fatal("expected nil relay when disabled")
	}
	r := NewKafkaRelay(config.RelayConfig{Enabled: true, Brokers: "localhost:9092"})
	if r == nil {
		t.Fatal("expected relay when enabled with brokers")
	}
	if r.writer.Topic != "autopilot.events" {
		t.Fatalf("default topic = %s", r.writer.Topic)
	}
	_ = r.Close()
}

func TestNilRelayAttachIsNoop(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	var r *KafkaRelay
	r.Attach(bus.New(st))
	if err := r.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}
