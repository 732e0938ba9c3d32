package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type discriminates the payload carried by an Envelope.
type Type string

const (
	TypeDraftStatus Type = "DRAFT_STATUS"
	TypePickMade    Type = "PICK_MADE"
	TypeTimerUpdate Type = "TIMER_UPDATE"
	TypeUserJoined  Type = "USER_JOINED"
	TypeUserLeft    Type = "USER_LEFT"
	TypeChatMessage Type = "CHAT_MESSAGE"
	TypePing        Type = "PING"
	TypePong        Type = "PONG"

	TypeJoin            Type = "JOIN"
	TypeMakePick        Type = "MAKE_PICK"
	TypeToggleTimer     Type = "TOGGLE_TIMER"
	TypeCommandAck      Type = "COMMAND_ACK"
	TypeCommandRejected Type = "COMMAND_REJECTED"
)

// ReasonCode explains why a command was rejected.
type ReasonCode string

const (
	ReasonNotYourTurn    ReasonCode = "NOT_YOUR_TURN"
	ReasonAlreadyPicked  ReasonCode = "ALREADY_PICKED"
	ReasonDraftNotActive ReasonCode = "DRAFT_NOT_ACTIVE"
	ReasonPaused         ReasonCode = "PAUSED"
	ReasonInvalidCommand ReasonCode = "INVALID_COMMAND"
	ReasonUnknownRoom    ReasonCode = "UNKNOWN_ROOM"
	ReasonRateLimited    ReasonCode = "RATE_LIMITED"
	ReasonUnavailable    ReasonCode = "UNAVAILABLE"
)

var ErrMissingType = errors.New("envelope has no type")

// Envelope is the single message shape exchanged between clients and the coordinator.
type Envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an envelope of type t. A nil payload produces no data.
func NewEnvelope(t Type, payload interface{}) (Envelope, error) {
	env := Envelope{Type: t}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	env.Data = data
	return env, nil
}

// MustEnvelope is NewEnvelope for payloads that are known to marshal.
func MustEnvelope(t Type, payload interface{}) Envelope {
	env, err := NewEnvelope(t, payload)
	if err != nil {
		panic(err)
	}
	return env
}

// Encode marshals a typed payload straight to wire bytes.
func Encode(t Type, payload interface{}) ([]byte, error) {
	env, err := NewEnvelope(t, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Decode parses wire bytes into an envelope.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, ErrMissingType
	}
	return env, nil
}

// DecodeData unmarshals the envelope payload into v.
func (e Envelope) DecodeData(v interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s envelope has no data", e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", e.Type, err)
	}
	return nil
}
