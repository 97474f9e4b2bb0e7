// Package telemetry publishes supervisor status and trial events to an
// MQTT broker so lab recording equipment can timestamp robot state against
// participant-facing sensors.
package telemetry

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/walklab/go-quadwalk/internal/log"
	"github.com/walklab/go-quadwalk/pkg/motion"
)

const (
	// TopicStatus carries periodic Status snapshots.
	TopicStatus = "quadwalk/status"
	// TopicEvents carries supervisor transition events.
	TopicEvents = "quadwalk/events"

	disconnectQuiesceMs = 250
)

// Publisher is a thin MQTT publishing client for the status and event
// streams. Publishes are QoS 0: telemetry is a live feed, not a record of
// truth; the study CSV is.
type Publisher struct {
	client mqtt.Client
}

// NewPublisher connects to the broker. The broker URL uses paho notation,
// e.g. "tcp://localhost:1883".
func NewPublisher(broker, clientID string) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}

	log.Info("telemetry connected", "broker", broker, "client_id", clientID)
	return &Publisher{client: client}, nil
}

// PublishStatus sends one status snapshot, retained so late subscribers
// see the latest state immediately.
func (p *Publisher) PublishStatus(status motion.Status) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	if token := p.client.Publish(TopicStatus, 0, true, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish status: %w", token.Error())
	}
	return nil
}

// PublishEvent sends one transition event, unretained.
func (p *Publisher) PublishEvent(ev motion.Event) error {
	payload, err := json.Marshal(struct {
		Type string `json:"type"`
		motion.Event
	}{Type: ev.Type.String(), Event: ev})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if token := p.client.Publish(TopicEvents, 0, false, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish event: %w", token.Error())
	}
	return nil
}

// Close flushes in-flight messages and disconnects.
func (p *Publisher) Close() {
	p.client.Disconnect(disconnectQuiesceMs)
}
