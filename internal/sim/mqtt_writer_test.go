package sim

import (
	"encoding/json"
	"testing"
	"time"

	"vanet-sim/internal/telemetry"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type fakePublisher struct {
	topics   []string
	payloads [][]byte
	closed   bool
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload.([]byte))
	return doneToken{}
}

func (f *fakePublisher) Disconnect(uint) { f.closed = true }

func TestMQTTWriterTopics(t *testing.T) {
	fp := &fakePublisher{}
	w := &MQTTWriter{client: fp, topic: "vanet"}
	if err := w.WriteMetrics(telemetry.MetricsRow{Strategy: "hybrid", PacketsSent: 3}); err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
	if err := w.WriteState(telemetry.SimulationStateRow{To: "paused"}); err != nil {
		t.Fatalf("WriteState: %v", err)
	}
	if len(fp.topics) != 2 || fp.topics[0] != "vanet/metrics/hybrid" || fp.topics[1] != "vanet/state" {
		t.Fatalf("unexpected topics: %v", fp.topics)
	}
	var row telemetry.MetricsRow
	if err := json.Unmarshal(fp.payloads[0], &row); err != nil || row.PacketsSent != 3 {
		t.Fatalf("bad payload %s: %v", fp.payloads[0], err)
	}
	w.Close()
	if !fp.closed {
		t.Fatalf("expected disconnect")
	}
}
