// Package callback runs inside the popup once the identity provider has
// redirected back to the application. It classifies the redirect, exchanges
// the authorization code and reports exactly one Result to the opener.
package callback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/Yulian302/lfusys-services-handshake/auth/state"
	"github.com/Yulian302/lfusys-services-handshake/handshake/channel"
)

const (
	DefaultSuccessCloseDelay = 500 * time.Millisecond
	DefaultErrorCloseDelay   = 3 * time.Second
)

type Exchanger interface {
	Exchange(ctx context.Context, provider, code string) (*Session, error)
}

// StateVerifier checks a decoded state, e.g. that its nonce was issued here
// and not consumed yet.
type StateVerifier interface {
	Verify(ctx context.Context, st state.State) error
}

type StateVerifierFunc func(ctx context.Context, st state.State) error

func (f StateVerifierFunc) Verify(ctx context.Context, st state.State) error {
	return f(ctx, st)
}

// LocalCompletion finishes the flow in the current context when there is no
// opener to notify.
type LocalCompletion interface {
	Complete(ctx context.Context, res Result)
}

type Closer interface {
	CloseAfter(d time.Duration)
}

// SessionSink stores the session of a successful exchange in the current
// context. Nothing is reported until Establish has returned.
type SessionSink interface {
	Establish(ctx context.Context, s *Session) error
}

// Env describes the context the receiver runs in. Opener is nil when the
// callback URL was navigated to directly.
type Env struct {
	Query   url.Values
	Opener  channel.Poster
	Local   LocalCompletion
	Window  Closer
	Session SessionSink
}

type detailer interface {
	Detail() string
}

type Receiver struct {
	exchanger Exchanger
	verifier  StateVerifier
	providers map[string]struct{}
	fallback  string

	successDelay time.Duration
	errorDelay   time.Duration
	logger       *slog.Logger

	once sync.Once
}

type Option func(*Receiver)

// WithProviders restricts the providers the receiver will accept.
func WithProviders(names ...string) Option {
	return func(r *Receiver) {
		r.providers = make(map[string]struct{}, len(names))
		for _, n := range names {
			r.providers[n] = struct{}{}
		}
	}
}

// WithFallbackProvider names the provider assumed when neither the query nor
// the state identifies one.
func WithFallbackProvider(name string) Option {
	return func(r *Receiver) { r.fallback = name }
}

func WithStateVerifier(v StateVerifier) Option {
	return func(r *Receiver) { r.verifier = v }
}

func WithCloseDelays(success, failure time.Duration) Option {
	return func(r *Receiver) {
		r.successDelay = success
		r.errorDelay = failure
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Receiver) { r.logger = l }
}

// NewReceiver returns a receiver for one popup lifetime.
func NewReceiver(exchanger Exchanger, opts ...Option) *Receiver {
	r := &Receiver{
		exchanger:    exchanger,
		successDelay: DefaultSuccessCloseDelay,
		errorDelay:   DefaultErrorCloseDelay,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Detect reports whether q looks like a redirect back from an identity
// provider.
func Detect(q url.Values) bool {
	return q.Has("code") || q.Has("error")
}

// Run processes the redirect in env and reports its outcome. It returns false
// when the query carries no OAuth parameters or when the receiver already ran.
func (r *Receiver) Run(ctx context.Context, env Env) (Result, bool) {
	if !Detect(env.Query) {
		return Result{}, false
	}

	var (
		res   Result
		fired bool
	)
	r.once.Do(func() {
		fired = true
		res = r.process(ctx, env.Query)
		res = r.establish(ctx, env, res)
		r.report(ctx, env, res)
	})
	return res, fired
}

func (r *Receiver) process(ctx context.Context, q url.Values) Result {
	st, _ := state.Decode(q.Get("state"))
	provider, resolved := r.resolveProvider(q, st)

	if q.Has("error") {
		detail := q.Get("error_description")
		if detail == "" {
			detail = q.Get("error")
		}
		if detail == "" {
			detail = "authentication failed"
		}
		return Result{Kind: KindProviderError, Provider: provider, Detail: detail}
	}

	code := q.Get("code")
	if code == "" {
		return Result{Kind: KindMissingCode, Provider: provider, Detail: MissingCodeMessage}
	}

	if !resolved {
		return Result{Kind: KindProviderError, Detail: UnresolvedProviderMessage}
	}

	if r.verifier != nil {
		if err := r.verifier.Verify(ctx, st); err != nil {
			r.logger.Warn("oauth state rejected", slog.String("provider", provider), slog.Any("err", err))
			return Result{Kind: KindProviderError, Provider: provider, Detail: InvalidStateMessage}
		}
	}

	sess, err := r.exchanger.Exchange(ctx, provider, code)
	if err != nil {
		r.logger.Warn("oauth code exchange failed", slog.String("provider", provider), slog.Any("err", err))
		return Result{Kind: KindExchangeFailure, Provider: provider, Detail: exchangeDetail(provider, err)}
	}
	if sess == nil || sess.AccessToken == "" {
		return Result{Kind: KindExchangeFailure, Provider: provider, Detail: EmptySessionMessage}
	}

	return Result{Kind: KindSuccess, Provider: provider, Session: sess}
}

// resolveProvider looks at the explicit query parameter, then the state, then
// the configured fallback.
func (r *Receiver) resolveProvider(q url.Values, st state.State) (string, bool) {
	if p := q.Get("provider"); r.supported(p) {
		return p, true
	}
	if r.supported(st.Provider) {
		return st.Provider, true
	}
	if r.fallback != "" {
		r.logger.Warn("oauth callback provider unknown, using fallback", slog.String("fallback", r.fallback))
		return r.fallback, true
	}
	return "", false
}

func (r *Receiver) supported(p string) bool {
	if p == "" {
		return false
	}
	if r.providers == nil {
		return true
	}
	_, ok := r.providers[p]
	return ok
}

func exchangeDetail(provider string, err error) string {
	if errors.Is(err, ErrDuplicateCode) {
		return DuplicateCodeMessage
	}
	var d detailer
	if errors.As(err, &d) && d.Detail() != "" {
		return d.Detail()
	}
	return fmt.Sprintf("failed to sign in with %s", provider)
}

func (r *Receiver) establish(ctx context.Context, env Env, res Result) Result {
	if !res.OK() || env.Session == nil {
		return res
	}
	if err := env.Session.Establish(ctx, res.Session); err != nil {
		r.logger.Error("storing oauth session", slog.String("provider", res.Provider), slog.Any("err", err))
		return Result{Kind: KindExchangeFailure, Provider: res.Provider, Detail: SessionMessage}
	}
	return res
}

func (r *Receiver) report(ctx context.Context, env Env, res Result) {
	log := r.logger.With(slog.String("provider", res.Provider), slog.String("kind", string(res.Kind)))

	if env.Opener == nil {
		log.Info("oauth callback without opener, completing locally")
		if env.Local != nil {
			env.Local.Complete(ctx, res)
		}
		return
	}

	if err := env.Opener.Post(ctx, res.Message()); err != nil {
		// the opener may be gone; closing the popup is all that is left
		log.Warn("posting oauth result to opener", slog.Any("err", err))
	}

	if env.Window != nil {
		delay := r.errorDelay
		if res.OK() {
			delay = r.successDelay
		}
		env.Window.CloseAfter(delay)
	}
}
