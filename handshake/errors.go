package handshake

import (
	"errors"
	"fmt"
)

// ErrInFlight is returned when Start is called while another handshake holds
// the coordinator. Nothing was done.
var ErrInFlight = errors.New("oauth handshake already in progress")

type Code string

const (
	CodeAcquisition  Code = "acquisition-failed"
	CodePopupBlocked Code = "popup-blocked"
	CodeProvider     Code = "provider-error"
	CodeTimeout      Code = "timeout"
	CodeRefresh      Code = "refresh-failed"
	CodeChannel      Code = "channel-unavailable"
	CodeCancelled    Code = "cancelled"
)

const (
	PopupBlockedMessage = "Popup was blocked. Please allow popups for this site and try again."
	TimeoutMessage      = "Authentication timed out. Please try again."
)

// Error is the terminal failure of one handshake. Message is what the user
// was shown.
type Error struct {
	Code     Code
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("oauth %s: %s: %s", e.Provider, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// detailer is implemented by collaborator errors that carry a message meant
// for the user.
type detailer interface {
	Detail() string
}

func acquisitionMessage(provider string, err error) string {
	msg := fmt.Sprintf("failed to connect to %s", provider)
	var d detailer
	if errors.As(err, &d) && d.Detail() != "" {
		msg += ": " + d.Detail()
	}
	return msg
}
