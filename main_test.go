package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yulian302/lfusys-services-handshake/auth/handlers"
	"github.com/Yulian302/lfusys-services-handshake/auth/state"
	"github.com/Yulian302/lfusys-services-handshake/config"
	"github.com/Yulian302/lfusys-services-handshake/test"
)

func newTestApp(t *testing.T) (*App, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.Config{
		Env:         "DEV",
		ServiceName: "handshake-test",
		AppOrigin:   "http://app.local",
		FrontendURL: "http://app.local/dashboard",
		LoginURL:    "http://app.local/login",
		JWTConfig: config.JWTConfig{
			SecretKey:        "access",
			RefreshSecretKey: "refresh",
			AccessTTL:        15 * time.Minute,
			RefreshTTL:       time.Hour,
		},
		CorsConfig:      config.CorsConfig{Origins: "http://app.local"},
		RateLimitConfig: config.RateLimitConfig{Limit: 3, Window: time.Minute},
		OAuthConfig: config.OAuthConfig{
			RedirectURI: "http://app.local/auth/oauth/callback",
			StateTTL:    10 * time.Minute,
			CodeTTL:     10 * time.Minute,
			Google:      config.ProviderConfig{ClientID: "client", ClientSecret: "secret"},
		},
	}

	app := &App{
		Redis:  rdb,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: cfg,
	}
	app.Services = BuildServices(app)
	return app, mr
}

func TestPingRoute(t *testing.T) {
	app, _ := newTestApp(t)
	r := BuildRouter(app)

	w := test.PerformRequest(r, t, http.MethodGet, "/test", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestHealthRoutes(t *testing.T) {
	app, mr := newTestApp(t)
	r := BuildRouter(app)

	w := test.PerformRequest(r, t, http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = test.PerformRequest(r, t, http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "StateStore[redis]")

	mr.SetError("ERR redis unavailable")
	w = test.PerformRequest(r, t, http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAuthURLRoute(t *testing.T) {
	app, mr := newTestApp(t)
	r := BuildRouter(app)

	w := test.PerformRequest(r, t, http.MethodGet, "/auth/oauth/google/url?popup=1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := test.DecodeJSON[handlers.AuthURLResponse](t, w)
	u, err := url.Parse(resp.URL)
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "http://app.local/auth/oauth/callback", u.Query().Get("redirect_uri"))

	st, ok := state.Decode(u.Query().Get("state"))
	require.True(t, ok)
	assert.True(t, st.Popup)
	assert.Equal(t, st.Nonce, resp.Nonce)
	assert.True(t, mr.Exists("oauth:state:"+st.Nonce))

	w = test.PerformRequest(r, t, http.MethodGet, "/auth/oauth/github/url", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimit(t *testing.T) {
	app, _ := newTestApp(t)
	r := BuildRouter(app)

	for range 3 {
		w := test.PerformRequest(r, t, http.MethodGet, "/test", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := test.PerformRequest(r, t, http.MethodGet, "/test", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}
