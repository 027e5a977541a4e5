// Package handshake drives a popup OAuth login from the context that opens
// the popup: it acquires the provider URL, opens the popup, waits for the
// popup's outcome message or a timeout, and refreshes the session on success.
package handshake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Yulian302/lfusys-services-handshake/handshake/channel"
	"github.com/Yulian302/lfusys-services-handshake/handshake/guard"
	"github.com/benbjohnson/clock"
)

const (
	DefaultTimeout         = 5 * time.Minute
	DefaultNavigationDelay = 300 * time.Millisecond
	DefaultLandingRoute    = "/dashboard"
)

var (
	errTimedOut      = errors.New("no outcome before deadline")
	errChannelClosed = errors.New("message channel closed")
)

type Initiator struct {
	origin    string
	issuer    AuthURLIssuer
	opener    Opener
	bus       channel.Subscriber
	refresher SessionRefresher
	router    Router
	ui        UI

	guard    *guard.Coordinator
	clock    clock.Clock
	timeout  time.Duration
	navDelay time.Duration
	landing  string
	screen   Rect
	logger   *slog.Logger
}

type Option func(*Initiator)

func WithCoordinator(c *guard.Coordinator) Option {
	return func(i *Initiator) { i.guard = c }
}

func WithClock(c clock.Clock) Option {
	return func(i *Initiator) { i.clock = c }
}

func WithTimeout(d time.Duration) Option {
	return func(i *Initiator) { i.timeout = d }
}

func WithNavigationDelay(d time.Duration) Option {
	return func(i *Initiator) { i.navDelay = d }
}

func WithLandingRoute(route string) Option {
	return func(i *Initiator) { i.landing = route }
}

func WithScreen(r Rect) Option {
	return func(i *Initiator) { i.screen = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(i *Initiator) { i.logger = l }
}

// NewInitiator builds an initiator that accepts outcome messages only from
// origin. Without WithCoordinator it serializes against the process-wide
// coordinator.
func NewInitiator(
	origin string,
	issuer AuthURLIssuer,
	opener Opener,
	bus channel.Subscriber,
	refresher SessionRefresher,
	router Router,
	ui UI,
	opts ...Option,
) *Initiator {
	i := &Initiator{
		origin:    origin,
		issuer:    issuer,
		opener:    opener,
		bus:       bus,
		refresher: refresher,
		router:    router,
		ui:        ui,

		guard:    guard.Default(),
		clock:    clock.New(),
		timeout:  DefaultTimeout,
		navDelay: DefaultNavigationDelay,
		landing:  DefaultLandingRoute,
		screen:   Rect{Width: 1920, Height: 1080},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Start runs one handshake for provider and blocks until it succeeds or
// fails. It returns ErrInFlight, without side effects, while another
// handshake is running, and *Error on failure.
func (i *Initiator) Start(ctx context.Context, provider string) error {
	s, ok := i.guard.Begin(provider)
	if !ok {
		i.logger.Info("oauth handshake already in flight", slog.String("provider", provider))
		return ErrInFlight
	}

	a := &attempt{
		Initiator: i,
		session:   s,
		provider:  provider,
		log:       i.logger.With(slog.String("provider", provider)),
	}
	defer a.finish()

	i.ui.ShowConnecting(provider)

	authz, err := i.issuer.Authorize(ctx, provider)
	if err != nil {
		return a.fail(CodeAcquisition, acquisitionMessage(provider, err), err)
	}

	// the listener must exist before the popup can possibly answer, and it
	// only hears the popup opened for this attempt
	sub, err := i.bus.Subscribe(ctx, authz.Key)
	if err != nil {
		return a.fail(CodeChannel, fmt.Sprintf("failed to connect to %s", provider), err)
	}
	a.sub = sub

	win, err := i.opener.Open(ctx, authz.URL, WindowName(provider), Centered(i.screen, PopupWidth, PopupHeight))
	if err == nil && win == nil {
		err = ErrPopupBlocked
	}
	if err != nil {
		return a.fail(CodePopupBlocked, PopupBlockedMessage, err)
	}
	i.guard.TrackPopup(s, win)

	timer := i.clock.Timer(i.timeout)
	i.guard.TrackTimeout(s, timer.Stop)
	i.guard.Transition(s, guard.StatusAwaitingCallback)
	a.log.Debug("awaiting oauth callback", slog.String("window", win.Name()))

	for {
		select {
		case <-ctx.Done():
			return a.fail(CodeCancelled, "Authentication was cancelled.", ctx.Err())

		case <-timer.C:
			// the popup may still be working, so it is only forgotten
			i.guard.ForgetPopup(s)
			return a.fail(CodeTimeout, TimeoutMessage, errTimedOut)

		case env, ok := <-sub.Messages():
			if !ok {
				return a.fail(CodeChannel, fmt.Sprintf("lost connection while signing in with %s", provider), errChannelClosed)
			}

			msg, err := channel.Decode(env, i.origin)
			if err != nil {
				a.log.Debug("ignoring channel message", slog.Any("err", err))
				continue
			}
			if p := msg.ProviderName(); p != "" && p != provider {
				a.log.Debug("ignoring message for another provider", slog.String("message_provider", p))
				continue
			}

			switch m := msg.(type) {
			case channel.Complete:
				return a.succeed(ctx)
			case channel.Failure:
				return a.fail(CodeProvider, m.Error, nil)
			}
		}
	}
}

// attempt holds the per-call state of Start.
type attempt struct {
	*Initiator
	session  *guard.Session
	provider string
	sub      channel.Subscription
	log      *slog.Logger
	hideOnce sync.Once
}

func (a *attempt) hide() {
	a.hideOnce.Do(a.ui.HideConnecting)
}

func (a *attempt) succeed(ctx context.Context) error {
	a.guard.CancelTimeout(a.session)
	a.hide()
	a.guard.Transition(a.session, guard.StatusProcessing)

	if err := a.refresher.Refresh(ctx); err != nil {
		return a.fail(CodeRefresh, "Signed in, but your account could not be loaded. Please try again.", err)
	}

	a.guard.Transition(a.session, guard.StatusSucceeded)
	a.log.Info("oauth handshake succeeded")

	landing := a.landing
	a.clock.AfterFunc(a.navDelay, func() {
		a.router.Navigate(landing)
	})
	return nil
}

func (a *attempt) fail(code Code, message string, cause error) error {
	a.guard.CancelTimeout(a.session)
	a.hide()
	a.guard.Transition(a.session, guard.StatusFailed)
	a.ui.NotifyError(a.provider, message)

	a.log.Warn("oauth handshake failed",
		slog.String("code", string(code)),
		slog.String("message", message),
		slog.Any("err", cause),
	)

	return &Error{
		Code:     code,
		Provider: a.provider,
		Message:  message,
		Err:      cause,
	}
}

func (a *attempt) finish() {
	if a.sub != nil {
		if err := a.sub.Close(); err != nil {
			a.log.Debug("closing channel subscription", slog.Any("err", err))
		}
	}
	a.hide()
	a.guard.End(a.session)
}
