package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yulian302/lfusys-services-handshake/apperror"
	"github.com/Yulian302/lfusys-services-handshake/auth/oauth"
	"github.com/Yulian302/lfusys-services-handshake/auth/state"
	"github.com/Yulian302/lfusys-services-handshake/auth/types"
	"github.com/Yulian302/lfusys-services-handshake/config"
	"github.com/Yulian302/lfusys-services-handshake/services/caching"
	"github.com/Yulian302/lfusys-services-handshake/store"
)

type fixture struct {
	svc        *AuthServiceImpl
	users      *store.MemoryUserStore
	redis      *miniredis.Miniredis
	tokenCalls atomic.Int32
	failToken  atomic.Bool
	verified   atomic.Bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{users: store.NewMemoryUserStore()}
	f.verified.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if f.failToken.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"server_error"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"idp-token","token_type":"bearer"}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub":            "g-1",
			"email":          "jane@example.com",
			"email_verified": f.verified.Load(),
			"name":           "Jane",
		})
	})
	idp := httptest.NewServer(mux)
	t.Cleanup(idp.Close)

	f.redis = miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: f.redis.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	google := oauth.NewGoogleProvider("http://app.local/auth/oauth/callback", config.ProviderConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		AuthURL:      idp.URL + "/authorize",
		TokenURL:     idp.URL + "/token",
		UserInfoURL:  idp.URL + "/userinfo",
	})

	f.svc = NewAuthServiceImpl(
		f.users,
		store.NewRedisStateStore(rdb, 10*time.Minute, 10*time.Minute),
		caching.NewRedisCachingService(rdb, "cache:"),
		oauth.NewRegistry(google),
		config.JWTConfig{SecretKey: "access", RefreshSecretKey: "refresh"},
	)
	return f
}

func TestAuthURL_IssuesState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.AuthURL(ctx, "google", true)
	require.NoError(t, err)

	u, err := url.Parse(req.URL)
	require.NoError(t, err)
	st, ok := state.Decode(u.Query().Get("state"))
	require.True(t, ok)
	assert.Equal(t, "google", st.Provider)
	assert.Equal(t, st.Nonce, req.Nonce)
	assert.True(t, st.Popup)
	assert.True(t, f.redis.Exists(store.StatePrefix+st.Nonce))

	require.NoError(t, f.svc.VerifyState(ctx, st))
	assert.ErrorIs(t, f.svc.VerifyState(ctx, st), apperror.ErrInvalidState)
}

func TestAuthURL_UnknownProvider(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AuthURL(context.Background(), "myspace", false)
	assert.ErrorIs(t, err, apperror.ErrUnknownProvider)
}

func TestVerifyState_ProviderMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.AuthURL(ctx, "google", false)
	require.NoError(t, err)
	u, _ := url.Parse(req.URL)
	st, _ := state.Decode(u.Query().Get("state"))

	st.Provider = "github"
	assert.ErrorIs(t, f.svc.VerifyState(ctx, st), apperror.ErrInvalidState)
}

func TestExchangeCode_RegistersThenLogsIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.ExchangeCode(ctx, "google", "code-1")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "jane@example.com", resp.User.Email)
	assert.Equal(t, "google", resp.User.Provider)

	again, err := f.svc.ExchangeCode(ctx, "google", "code-2")
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, again.User.ID)

	claims, err := f.svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", claims.Subject)
	assert.Equal(t, types.AccessTokenType, claims.Type)
	assert.Equal(t, types.Issuer, claims.Issuer)
}

func TestExchangeCode_DuplicateCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ExchangeCode(ctx, "google", "code-1")
	require.NoError(t, err)

	_, err = f.svc.ExchangeCode(ctx, "google", "code-1")
	assert.ErrorIs(t, err, apperror.ErrDuplicateCode)
	assert.Equal(t, int32(1), f.tokenCalls.Load())
}

func TestExchangeCode_UnverifiedEmail(t *testing.T) {
	f := newFixture(t)
	f.verified.Store(false)

	_, err := f.svc.ExchangeCode(context.Background(), "google", "code-1")
	assert.ErrorIs(t, err, apperror.ErrEmailUnverified)

	_, err = f.users.GetByEmail(context.Background(), "jane@example.com")
	assert.ErrorIs(t, err, apperror.ErrUserNotFound)
}

func TestExchangeCode_BreakerOpensAfterFailures(t *testing.T) {
	f := newFixture(t)
	f.failToken.Store(true)
	ctx := context.Background()

	for i := range 5 {
		_, err := f.svc.ExchangeCode(ctx, "google", "code-"+string(rune('a'+i)))
		require.ErrorIs(t, err, apperror.ErrProviderExchange)
	}
	calls := f.tokenCalls.Load()

	_, err := f.svc.ExchangeCode(ctx, "google", "code-z")
	require.ErrorIs(t, err, apperror.ErrProviderExchange)
	assert.Equal(t, calls, f.tokenCalls.Load(), "open breaker must not reach the provider")
}

func TestGetCurrentUser_Caches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.ExchangeCode(ctx, "google", "code-1")
	require.NoError(t, err)

	user, err := f.svc.GetCurrentUser(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)
	assert.True(t, f.redis.Exists("cache:user:jane@example.com"))

	_, err = f.svc.GetCurrentUser(ctx, resp.RefreshToken)
	assert.ErrorIs(t, err, apperror.ErrInvalidToken)
}

func TestRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.ExchangeCode(ctx, "google", "code-1")
	require.NoError(t, err)

	pair, err := f.svc.RefreshToken(ctx, resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, resp.AccessToken, pair.AccessToken)

	_, err = f.svc.RefreshToken(ctx, resp.AccessToken)
	assert.ErrorIs(t, err, apperror.ErrInvalidToken)
}
