package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/lowaak/smart-trainer/live-session/internal/live"
	"github.com/lowaak/smart-trainer/live-session/internal/session"
)

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client
	prefix string
}

// NewRealPublisher creates a publisher connected to the given broker.
func NewRealPublisher(broker, prefix, clientID string) (*RealPublisher, error) {
	if prefix == "" {
		prefix = DefaultTopic
	}
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &RealPublisher{
		client: client,
		prefix: prefix,
	}, nil
}

// PublishLive sends a live snapshot at QoS 0.
func (p *RealPublisher) PublishLive(snapshot live.Snapshot) error {
	payload, err := FormatLivePayload(snapshot)
	if err != nil {
		return fmt.Errorf("format live payload: %w", err)
	}
	return p.publish(TopicLive, 0, false, payload)
}

// PublishState sends session progress at QoS 0, retained.
func (p *RealPublisher) PublishState(state session.State) error {
	payload, err := FormatStatePayload(state)
	if err != nil {
		return fmt.Errorf("format state payload: %w", err)
	}
	return p.publish(TopicState, 0, true, payload)
}

// PublishCompleted sends a finished session at QoS 1.
func (p *RealPublisher) PublishCompleted(completed session.Completed) error {
	payload, err := FormatCompletedPayload(completed)
	if err != nil {
		return fmt.Errorf("format completed payload: %w", err)
	}
	return p.publish(TopicCompleted, 1, false, payload)
}

func (p *RealPublisher) publish(sub string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(p.prefix+"/"+sub, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s timeout", sub)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", sub, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
