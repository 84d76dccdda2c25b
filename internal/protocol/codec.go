// internal/protocol/codec.go
//
// JSON wire encoding. Each frame is an envelope with a type discriminator
// and a kind-specific payload:
//
//	{"type":"feedback","data":{"code":"1243","bulls":2,"cows":2}}
//
// Kinds without fields omit "data".

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownKind is returned by Decode for a well-formed envelope whose type
// this version does not know. Receivers ignore such frames.
var ErrUnknownKind = errors.New("unknown message kind")

// Envelope is the outer frame of every message.
type Envelope struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type gameStartPayload struct {
	TurnDuration int `json:"turn_duration"`
}

type codePayload struct {
	Code string `json:"code"`
}

type feedbackPayload struct {
	Code  string `json:"code"`
	Bulls int    `json:"bulls"`
	Cows  int    `json:"cows"`
}

// Encode serializes m into a single frame.
func Encode(m Message) ([]byte, error) {
	var payload any
	switch m.Kind {
	case KindGameStart:
		payload = gameStartPayload{TurnDuration: m.TurnDuration}
	case KindGuess, KindWin:
		payload = codePayload{Code: m.Code}
	case KindFeedback:
		payload = feedbackPayload{Code: m.Code, Bulls: m.Bulls, Cows: m.Cows}
	case KindSecretCommitted, KindTurnSkipped, KindRematchRequested, KindRematchAccepted:
	default:
		return nil, fmt.Errorf("encode %q: %w", m.Kind, ErrUnknownKind)
	}

	env := Envelope{Type: m.Kind}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", m.Kind, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Decode parses one frame. For an unknown type it returns a Message with
// only Kind set and an error wrapping ErrUnknownKind.
func Decode(b []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Message{}, fmt.Errorf("decode envelope: %w", err)
	}
	m := Message{Kind: env.Type}

	switch env.Type {
	case KindGameStart:
		var p gameStartPayload
		if err := unmarshalData(env, &p); err != nil {
			return m, err
		}
		m.TurnDuration = p.TurnDuration

	case KindGuess, KindWin:
		var p codePayload
		if err := unmarshalData(env, &p); err != nil {
			return m, err
		}
		m.Code = p.Code

	case KindFeedback:
		var p feedbackPayload
		if err := unmarshalData(env, &p); err != nil {
			return m, err
		}
		m.Code, m.Bulls, m.Cows = p.Code, p.Bulls, p.Cows

	case KindSecretCommitted, KindTurnSkipped, KindRematchRequested, KindRematchAccepted:

	default:
		return m, fmt.Errorf("decode %q: %w", env.Type, ErrUnknownKind)
	}
	return m, nil
}

func unmarshalData(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("decode %s: missing data: %w", env.Type, ErrInvalidMessage)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return nil
}
