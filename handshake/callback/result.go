package callback

import (
	"errors"

	"github.com/Yulian302/lfusys-services-handshake/handshake/channel"
)

type Kind string

const (
	KindSuccess         Kind = "success"
	KindProviderError   Kind = "provider-error"
	KindMissingCode     Kind = "missing-code"
	KindExchangeFailure Kind = "exchange-failure"
)

// ErrDuplicateCode marks an exchange of an authorization code that had
// already been redeemed.
var ErrDuplicateCode = errors.New("duplicate_code")

const (
	DuplicateCodeMessage      = "This sign-in link was already used. Please start the sign-in again."
	MissingCodeMessage        = "no authorization code was returned"
	UnresolvedProviderMessage = "unable to determine provider"
	InvalidStateMessage       = "invalid state"
	EmptySessionMessage       = "no session was returned"
	SessionMessage            = "could not save your session"
)

// Session is what the code exchange hands over to the session store.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Result is the single outcome produced by one Receiver.
type Result struct {
	Kind     Kind
	Provider string
	Detail   string

	// Session is set on success only and never leaves the popup context.
	Session *Session
}

func (r Result) OK() bool {
	return r.Kind == KindSuccess
}

// Message converts r into its channel form.
func (r Result) Message() channel.Message {
	if r.OK() {
		return channel.Complete{Provider: r.Provider}
	}
	detail := r.Detail
	if detail == "" {
		detail = string(r.Kind)
	}
	return channel.Failure{Provider: r.Provider, Error: detail}
}
