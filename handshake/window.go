package handshake

import (
	"context"
	"errors"
)

const (
	PopupWidth  = 600
	PopupHeight = 700
)

// ErrPopupBlocked is returned by an Opener that was refused a new context.
var ErrPopupBlocked = errors.New("popup blocked")

// Window is an opened browsing context. Close is best-effort.
type Window interface {
	Name() string
	Close() error
}

// Opener creates browsing contexts. Opening under a name that is already in
// use replaces that context instead of creating another one.
type Opener interface {
	Open(ctx context.Context, url, name string, geometry Geometry) (Window, error)
}

type Rect struct {
	Left, Top, Width, Height int
}

type Geometry struct {
	Left, Top, Width, Height int
}

// Centered places a width x height window in the middle of screen.
func Centered(screen Rect, width, height int) Geometry {
	return Geometry{
		Left:   screen.Left + (screen.Width-width)/2,
		Top:    screen.Top + (screen.Height-height)/2,
		Width:  width,
		Height: height,
	}
}

func WindowName(provider string) string {
	return "oauth-" + provider
}

// UI is the blocking "connecting" affordance and the user-visible
// notification surface. It only observes the handshake.
type UI interface {
	ShowConnecting(provider string)
	HideConnecting()
	NotifyError(provider, message string)
}

// Authorization is one issued login attempt: where to send the popup and the
// key its outcome will be posted under.
type Authorization struct {
	URL string
	Key string
}

type AuthURLIssuer interface {
	Authorize(ctx context.Context, provider string) (Authorization, error)
}

type SessionRefresher interface {
	Refresh(ctx context.Context) error
}

type Router interface {
	Navigate(route string)
}
