package sim

import (
	"encoding/json"
	"fmt"
	"time"

	"vanet-sim/internal/telemetry"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const mqttTimeout = 5 * time.Second

type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTWriter publishes metrics rows as JSON to <topic>/metrics/<strategy>
// and state rows to <topic>/state.
type MQTTWriter struct {
	client mqttPublisher
	topic  string
}

// NewMQTTWriter connects to broker (e.g. tcp://localhost:1883).
func NewMQTTWriter(broker, clientID, topic string) (*MQTTWriter, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(mqttTimeout).
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(mqttTimeout) {
		return nil, fmt.Errorf("mqtt connect %s: timeout", broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}
	return &MQTTWriter{client: client, topic: topic}, nil
}

func (w *MQTTWriter) publish(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tok := w.client.Publish(topic, 0, false, data)
	if !tok.WaitTimeout(mqttTimeout) {
		return fmt.Errorf("mqtt publish %s: timeout", topic)
	}
	return tok.Error()
}

// WriteMetrics publishes a metrics row.
func (w *MQTTWriter) WriteMetrics(row telemetry.MetricsRow) error {
	return w.publish(w.topic+"/metrics/"+row.Strategy, row)
}

// WriteState publishes a state transition.
func (w *MQTTWriter) WriteState(row telemetry.SimulationStateRow) error {
	return w.publish(w.topic+"/state", row)
}

// Close disconnects from the broker.
func (w *MQTTWriter) Close() error {
	w.client.Disconnect(250)
	return nil
}
