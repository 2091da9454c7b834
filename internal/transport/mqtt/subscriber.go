package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/uwb-tracker/internal/config"
	"github.com/oshokin/uwb-tracker/internal/engine"
	"github.com/oshokin/uwb-tracker/internal/logger"
)

// disconnectQuiesce is how long paho may spend finishing work on disconnect, in ms.
const disconnectQuiesce = 250

// Sink receives inbound messages.
type Sink interface {
	Accept(ctx context.Context, msg engine.Message) error
}

// Subscriber feeds broker messages into a Sink.
type Subscriber struct {
	settings  config.MQTT
	timeout   time.Duration
	sink      Sink
	newClient ClientFactory
}

// NewSubscriber creates a subscriber. A nil factory uses paho.NewClient.
func NewSubscriber(settings config.MQTT, timeout time.Duration, sink Sink, factory ClientFactory) *Subscriber {
	if factory == nil {
		factory = paho.NewClient
	}

	return &Subscriber{
		settings:  settings,
		timeout:   timeout,
		sink:      sink,
		newClient: factory,
	}
}

// Run connects, subscribes on every (re)connect and blocks until ctx is canceled.
func (s *Subscriber) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "mqtt")

	opts := clientOptions(s.settings, "sub").
		SetOnConnectHandler(func(c paho.Client) {
			token := c.Subscribe(s.settings.Topic, s.settings.QoS, s.handler(ctx))
			if err := await(token, s.timeout); err != nil {
				logger.ErrorKV(ctx, "Subscribe failed", "topic", s.settings.Topic, "error", err)
				return
			}

			logger.InfoKV(ctx, "Subscribed", "broker", s.settings.Broker, "topic", s.settings.Topic)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.WarnKV(ctx, "Connection lost", "error", err)
		})

	client := s.newClient(opts)

	// With connect retry the token completes only once connected, retries
	// continue in the background after a timeout.
	err := await(client.Connect(), s.timeout)

	switch {
	case errors.Is(err, errTokenTimeout):
		logger.WarnKV(ctx, "Broker not reachable yet, retrying", "broker", s.settings.Broker)
	case err != nil:
		return fmt.Errorf("connect to %s: %w", s.settings.Broker, err)
	}

	<-ctx.Done()

	client.Disconnect(disconnectQuiesce)
	logger.Info(ctx, "Disconnected")

	return nil
}

// handler forwards messages to the sink. It blocks while the sink is full.
func (s *Subscriber) handler(ctx context.Context) paho.MessageHandler {
	return func(_ paho.Client, m paho.Message) {
		payload := make([]byte, len(m.Payload()))
		copy(payload, m.Payload())

		msg := engine.Message{
			Topic:      m.Topic(),
			Payload:    payload,
			ReceivedAt: time.Now(),
		}

		if err := s.sink.Accept(ctx, msg); err != nil && ctx.Err() == nil {
			logger.WarnKV(ctx, "Message not accepted", "topic", msg.Topic, "error", err)
		}
	}
}
