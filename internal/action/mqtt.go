package action

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/bosun-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/bosun-core/internal/rules"
)

// Publisher is the part of the MQTT client the sink needs.
type Publisher interface {
	PublishDefault(topic string, payload []byte) error
}

// MQTTSink publishes each action as JSON on
// bosun/core/action/<type>[/<target>].
type MQTTSink struct {
	client Publisher
	now    func() time.Time
}

// NewMQTTSink creates an MQTTSink.
func NewMQTTSink(client Publisher) *MQTTSink {
	return &MQTTSink{client: client, now: time.Now}
}

type mqttAction struct {
	Rule      string         `json:"rule"`
	Type      string         `json:"type"`
	Target    string         `json:"target,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// Dispatch implements Sink.
func (s *MQTTSink) Dispatch(_ context.Context, a rules.Action) error {
	if a.Type == "" {
		return ErrInvalidAction
	}
	payload, err := json.Marshal(mqttAction{
		Rule:      a.Rule,
		Type:      a.Type,
		Target:    a.Target,
		Payload:   a.Payload,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshalling action: %w", err)
	}
	topic := mqtt.Topics{}.CoreAction(a.Type, a.Target)
	if err := s.client.PublishDefault(topic, payload); err != nil {
		return fmt.Errorf("%w: mqtt %s: %w", ErrDispatchFailed, topic, err)
	}
	return nil
}
