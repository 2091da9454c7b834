package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/uwb-tracker/internal/config"
)

// Publisher sends JSON messages to the broker.
type Publisher struct {
	client  paho.Client
	qos     byte
	timeout time.Duration
}

// Dial connects a publisher. A nil factory uses paho.NewClient.
func Dial(settings config.MQTT, timeout time.Duration, factory ClientFactory) (*Publisher, error) {
	if factory == nil {
		factory = paho.NewClient
	}

	client := factory(clientOptions(settings, "pub"))

	if err := await(client.Connect(), timeout); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", settings.Broker, err)
	}

	return &Publisher{client: client, qos: settings.QoS, timeout: timeout}, nil
}

// PublishJSON encodes v and publishes it on topic.
func (p *Publisher) PublishJSON(ctx context.Context, topic string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	if err = await(p.client.Publish(topic, p.qos, false, body), p.timeout); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(disconnectQuiesce)
}
