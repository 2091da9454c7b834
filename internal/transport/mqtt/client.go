package mqtt

import (
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/oshokin/uwb-tracker/internal/config"
)

// ClientFactory builds a paho client. Tests replace it with a fake.
type ClientFactory func(opts *paho.ClientOptions) paho.Client

var errTokenTimeout = errors.New("mqtt operation timed out")

// clientOptions translates settings into paho options with a unique client id.
func clientOptions(settings config.MQTT, suffix string) *paho.ClientOptions {
	opts := paho.NewClientOptions().
		AddBroker(settings.Broker).
		SetClientID(fmt.Sprintf("%s-%s-%s", settings.ClientID, suffix, uuid.NewString()[:8])).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetCleanSession(true)

	if settings.Username != "" {
		opts.SetUsername(settings.Username)
		opts.SetPassword(settings.Password)
	}

	return opts
}

// await waits for token within timeout and returns its error.
func await(token paho.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return errTokenTimeout
	}

	return token.Error()
}
