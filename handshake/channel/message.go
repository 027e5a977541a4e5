// Package channel carries the one-shot outcome of an OAuth popup back to the
// context that opened it.
//
// Only two payloads exist on the channel, Complete and Failure. Everything
// else that shows up on the same transport is rejected by Decode, so callers
// never have to guess at the shape of what they received.
package channel

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	TypeComplete = "oauth-complete"
	TypeError    = "oauth-error"
)

var (
	ErrForeignOrigin = errors.New("message origin does not match application origin")
	ErrUnknownType   = errors.New("unknown message type")
	ErrMalformed     = errors.New("malformed message")
)

// Message is either Complete or Failure.
type Message interface {
	Type() string
	ProviderName() string
	isMessage()
}

type Complete struct {
	Provider string
}

func (Complete) Type() string           { return TypeComplete }
func (m Complete) ProviderName() string { return m.Provider }
func (Complete) isMessage()             {}

type Failure struct {
	Provider string
	Error    string
}

func (Failure) Type() string           { return TypeError }
func (m Failure) ProviderName() string { return m.Provider }
func (Failure) isMessage()             {}

// Envelope is a message as it travels between contexts. Origin is stamped by
// the sender.
type Envelope struct {
	Origin string `json:"origin"`
	Data   []byte `json:"data"`
}

type wireMessage struct {
	Type     string `json:"type"`
	Provider string `json:"provider,omitempty"`
	Success  *bool  `json:"success,omitempty"`
	Error    string `json:"error,omitempty"`
}

func Encode(m Message) ([]byte, error) {
	switch m := m.(type) {
	case Complete:
		if m.Provider == "" {
			return nil, fmt.Errorf("%w: complete message without provider", ErrMalformed)
		}
		ok := true
		return json.Marshal(wireMessage{Type: TypeComplete, Provider: m.Provider, Success: &ok})
	case Failure:
		if m.Error == "" {
			return nil, fmt.Errorf("%w: error message without error", ErrMalformed)
		}
		return json.Marshal(wireMessage{Type: TypeError, Provider: m.Provider, Error: m.Error})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, m)
	}
}

// Decode validates env against the application's own origin and parses its
// payload into one of the two known messages.
func Decode(env Envelope, origin string) (Message, error) {
	if origin == "" || env.Origin != origin {
		return nil, fmt.Errorf("%w: %q", ErrForeignOrigin, env.Origin)
	}

	var w wireMessage
	if err := json.Unmarshal(env.Data, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	switch w.Type {
	case TypeComplete:
		if w.Success == nil || !*w.Success || w.Provider == "" {
			return nil, fmt.Errorf("%w: %s", ErrMalformed, w.Type)
		}
		return Complete{Provider: w.Provider}, nil
	case TypeError:
		if w.Error == "" {
			return nil, fmt.Errorf("%w: %s", ErrMalformed, w.Type)
		}
		return Failure{Provider: w.Provider, Error: w.Error}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, w.Type)
	}
}
