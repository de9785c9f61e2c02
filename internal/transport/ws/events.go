package ws

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Event types - Client → Server
const (
	EventTypePing = "ping"
)

// Event types - Server → Client
const (
	EventTypePong  = "pong"
	EventTypeError = "error"
)

// Event is the envelope for every frame in both directions. Channel is the
// user channel the event was routed to.
type Event struct {
	Type      string          `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent creates an Event with a marshalled payload.
func NewEvent(eventType, channel string, payload any) (*Event, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "marshal %s payload", eventType)
		}
		raw = data
	}
	return &Event{
		Type:      eventType,
		Channel:   channel,
		Payload:   raw,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// Encode renders a ready-to-write frame. Relays forward these bytes untouched.
func Encode(eventType, channel string, payload any) ([]byte, error) {
	evt, err := NewEvent(eventType, channel, payload)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, errors.Wrap(err, "marshal event")
	}
	return data, nil
}
