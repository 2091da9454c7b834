package tracker

import (
	"errors"
	"fmt"
	"net"
)

// ErrNoListenAddress indicates missing listen configuration.
var ErrNoListenAddress = errors.New("no listen address configured")

// resolveListenAddress returns override when set, otherwise the port of
// configAddr bound on all interfaces (e.g. "tracker.local:50051" -> ":50051").
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoListenAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid address format %q: %w", configAddr, err)
	}

	return ":" + port, nil
}
