// Package state encodes the OAuth `state` parameter as base64url JSON so the
// callback can tell which provider redirected back and whether it is running
// in a popup.
package state

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"strings"
)

const nonceSize = 16

type State struct {
	Provider string `json:"provider,omitempty"`
	Nonce    string `json:"nonce,omitempty"`
	Popup    bool   `json:"popup,omitempty"`
}

func New(provider string, popup bool) (State, error) {
	nonce, err := NewNonce()
	if err != nil {
		return State{}, err
	}
	return State{Provider: provider, Nonce: nonce, Popup: popup}, nil
}

func NewNonce() (string, error) {
	b := make([]byte, nonceSize)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s State) Encode() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode parses raw leniently. Anything that is not base64 JSON yields false.
func Decode(raw string) (State, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return State{}, false
	}

	var data []byte
	var err error
	for _, enc := range []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	} {
		if data, err = enc.DecodeString(raw); err == nil {
			break
		}
	}
	if err != nil {
		return State{}, false
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, false
	}
	return s, true
}
