package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	domain "github.com/oshokin/uwb-tracker/internal/domain/tracking"
)

// Message is a raw inbound transport message.
type Message struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// ErrMalformed wraps every payload decoding or validation failure.
var ErrMalformed = errors.New("malformed observation")

//nolint:gochecknoglobals // validator caches struct metadata and is safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// flexString accepts both JSON strings and numbers, anchors flashed with
// numeric ids publish them unquoted.
type flexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*f = flexString(strings.TrimSpace(s))

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}

	*f = flexString(n.String())

	return nil
}

// wireObservation is the JSON document published by anchors.
// fullName and empId are carried but the roster is authoritative.
type wireObservation struct {
	TagID     *int            `json:"tagId"     validate:"required"`
	AnchorID  flexString      `json:"anchorId"  validate:"required"`
	Distance  *float64        `json:"distance"  validate:"required,gte=0"`
	Gas       float64         `json:"gas"`
	Timestamp json.RawMessage `json:"timestamp"`
	FullName  string          `json:"fullName"`
	EmpID     string          `json:"empId"`
}

// IsStatusTopic reports whether topic carries anchor status text rather than
// observations, e.g. "uwb/anchor/A1/status".
func IsStatusTopic(topic string) bool {
	return strings.HasSuffix(topic, "/status")
}

// ParseObservation decodes and validates a message payload. Timestamps that
// are missing or numeric (device uptime) are replaced by msg.ReceivedAt.
func ParseObservation(msg Message) (domain.Observation, error) {
	var wire wireObservation

	if err := json.Unmarshal(msg.Payload, &wire); err != nil {
		return domain.Observation{}, fmt.Errorf("%w: decode: %w", ErrMalformed, err)
	}

	if err := validate.Struct(&wire); err != nil {
		return domain.Observation{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	ts, err := parseTimestamp(wire.Timestamp, msg.ReceivedAt)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("%w: timestamp: %w", ErrMalformed, err)
	}

	return domain.Observation{
		TagID:     *wire.TagID,
		AnchorID:  string(wire.AnchorID),
		Distance:  *wire.Distance,
		Hazard:    wire.Gas,
		Timestamp: ts,
	}, nil
}

// parseTimestamp accepts RFC 3339 strings and falls back to receivedAt for
// empty, null or numeric values.
func parseTimestamp(raw json.RawMessage, receivedAt time.Time) (time.Time, error) {
	raw = bytes.TrimSpace(raw)

	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")):
		return receivedAt, nil
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}

		if s == "" {
			return receivedAt, nil
		}

		return time.Parse(time.RFC3339Nano, s)
	default:
		if _, err := strconv.ParseFloat(string(raw), 64); err != nil {
			return time.Time{}, fmt.Errorf("unsupported value %s", raw)
		}

		return receivedAt, nil
	}
}
