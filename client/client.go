// Package client talks to the gateway from the host context. One Client
// plays the issuer, exchanger and refresher roles of a handshake and keeps
// the session cookies the popup receives in a shared jar.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Yulian302/lfusys-services-handshake/auth"
	"github.com/Yulian302/lfusys-services-handshake/auth/handlers"
	"github.com/Yulian302/lfusys-services-handshake/auth/types"
	"github.com/Yulian302/lfusys-services-handshake/handshake"
	"github.com/Yulian302/lfusys-services-handshake/handshake/callback"
	"github.com/Yulian302/lfusys-services-handshake/handshake/channel"
)

const DefaultTimeout = 10 * time.Second

type Config struct {
	// BaseURL is the gateway root, e.g. https://app.example.com.
	BaseURL string
	// Origin is the origin outcome messages must carry. Defaults to BaseURL.
	Origin  string
	Timeout time.Duration
	// Jar holds the session. A fresh in-memory jar is used when nil.
	Jar       http.CookieJar
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Error is a failed gateway call. Message is the gateway's user-facing
// error text, when it sent one.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error  { return e.Err }
func (e *Error) Detail() string { return e.Message }

type Client struct {
	base    string
	origin  string
	jar     http.CookieJar
	http    *auth.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *slog.Logger

	mu   sync.Mutex
	user *types.User
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}

	jar := cfg.Jar
	if jar == nil {
		var err error
		if jar, err = cookiejar.New(nil); err != nil {
			return nil, err
		}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origin := cfg.Origin
	if origin == "" {
		origin = base
	}

	opts := []auth.ClientOption{auth.WithJar(jar)}
	if cfg.Transport != nil {
		opts = append(opts, auth.WithTransport(cfg.Transport))
	}

	return &Client{
		base:    base,
		origin:  origin,
		jar:     jar,
		http:    auth.NewClient(timeout, opts...),
		breaker: newBreaker(base, logger),
		logger:  logger,
	}, nil
}

func newBreaker(base string, logger *slog.Logger) *gobreaker.CircuitBreaker[struct{}] {
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name: "gateway:" + base,

		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},

		// only transport failures and 5xx say the gateway is unhealthy
		IsSuccessful: func(err error) bool {
			var se *auth.StatusError
			if errors.As(err, &se) {
				return se.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
}

// Jar returns the cookie jar shared with popup contexts.
func (c *Client) Jar() http.CookieJar {
	return c.jar
}

// HTTPClient returns an http.Client that shares this client's session, for
// loading pages in a popup context.
func (c *Client) HTTPClient() *http.Client {
	return c.http.HTTP()
}

func (c *Client) call(op string, fn func() error) error {
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if err == nil {
		return nil
	}

	e := &Error{Op: op, Err: err}
	var se *auth.StatusError
	if errors.As(err, &se) {
		e.StatusCode = se.StatusCode
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(se.Body, &body) == nil {
			e.Message = body.Error
		}
	}
	return e
}

// Authorize asks the gateway for a popup authorization URL and the key the
// popup's outcome will be published under.
func (c *Client) Authorize(ctx context.Context, provider string) (handshake.Authorization, error) {
	var resp handlers.AuthURLResponse
	endpoint := c.base + "/auth/oauth/" + url.PathEscape(provider) + "/url?popup=1"

	err := c.call("authorize", func() error {
		return c.http.GetJSON(ctx, endpoint, &resp)
	})
	if err != nil {
		return handshake.Authorization{}, err
	}
	if resp.URL == "" || resp.Nonce == "" {
		return handshake.Authorization{}, &Error{Op: "authorize", Err: errors.New("incomplete authorization")}
	}
	return handshake.Authorization{URL: resp.URL, Key: resp.Nonce}, nil
}

// Exchange redeems an authorization code through the gateway. A code that
// was already redeemed yields callback.ErrDuplicateCode.
func (c *Client) Exchange(ctx context.Context, provider, code string) (*callback.Session, error) {
	var pair types.TokenPair
	req := handlers.ExchangeRequest{Provider: provider, Code: code}

	err := c.call("exchange", func() error {
		return c.http.PostJSON(ctx, c.base+"/auth/oauth/exchange", req, &pair)
	})
	if err != nil {
		var e *Error
		if errors.As(err, &e) && e.StatusCode == http.StatusConflict {
			return nil, fmt.Errorf("%w: %w", callback.ErrDuplicateCode, err)
		}
		return nil, err
	}
	return &callback.Session{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Refresh re-reads the signed-in user with the session the popup left in the
// jar. The user is then available from User.
func (c *Client) Refresh(ctx context.Context) error {
	_, err := c.Me(ctx)
	return err
}

// Rotate trades the refresh cookie for a new token pair.
func (c *Client) Rotate(ctx context.Context) error {
	return c.call("rotate", func() error {
		return c.http.PostJSON(ctx, c.base+"/auth/refresh", nil, nil)
	})
}

func (c *Client) Me(ctx context.Context) (*types.User, error) {
	var user types.User
	err := c.call("me", func() error {
		return c.http.GetJSON(ctx, c.base+"/auth/me", &user)
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.user = &user
	c.mu.Unlock()
	return &user, nil
}

// User is the user loaded by the last successful Me or Refresh.
func (c *Client) User() *types.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

func (c *Client) Logout(ctx context.Context) error {
	return c.call("logout", func() error {
		return c.http.PostJSON(ctx, c.base+"/auth/logout", nil, nil)
	})
}

// NewInitiator wires a handshake initiator whose issuer and refresher are
// this client.
func (c *Client) NewInitiator(
	bus channel.Subscriber,
	opener handshake.Opener,
	router handshake.Router,
	ui handshake.UI,
	opts ...handshake.Option,
) *handshake.Initiator {
	opts = append([]handshake.Option{handshake.WithLogger(c.logger)}, opts...)
	return handshake.NewInitiator(c.origin, c, opener, bus, c, router, ui, opts...)
}
