package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yulian302/lfusys-services-handshake/handshake"
	"github.com/Yulian302/lfusys-services-handshake/handshake/callback"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestNew_OriginDefaultsToBase(t *testing.T) {
	c, err := New(Config{BaseURL: "http://app.local/"})
	require.NoError(t, err)
	assert.Equal(t, "http://app.local", c.origin)
	assert.NotNil(t, c.Jar())
}

func TestAuthorize(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/oauth/google/url", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("popup"))
		writeJSON(w, http.StatusOK, map[string]string{"url": "https://idp.example/authorize?x=1", "nonce": "n-1"})
	})

	a, err := c.Authorize(context.Background(), "google")
	require.NoError(t, err)
	assert.Equal(t, handshake.Authorization{URL: "https://idp.example/authorize?x=1", Key: "n-1"}, a)
}

func TestAuthorize_ErrorCarriesDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": `unknown provider "myspace"`})
	})

	_, err := c.Authorize(context.Background(), "myspace")
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, http.StatusNotFound, e.StatusCode)
	assert.Equal(t, `unknown provider "myspace"`, e.Detail())
}

func TestAuthorize_Incomplete(t *testing.T) {
	for name, body := range map[string]map[string]string{
		"no url":   {"nonce": "n-1"},
		"no nonce": {"url": "https://idp.example/authorize"},
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, body)
			})

			_, err := c.Authorize(context.Background(), "google")
			assert.Error(t, err)
		})
	}
}

func TestExchange(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Provider, Code string }
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Code == "used" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "duplicate_code"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "at", "refresh_token": "rt"})
	})
	ctx := context.Background()

	s, err := c.Exchange(ctx, "github", "fresh")
	require.NoError(t, err)
	assert.Equal(t, &callback.Session{AccessToken: "at", RefreshToken: "rt"}, s)

	_, err = c.Exchange(ctx, "github", "used")
	assert.ErrorIs(t, err, callback.ErrDuplicateCode)
}

func TestRefresh_LoadsUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/auth/me", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]string{"email": "jane@example.com", "name": "Jane"})
	})

	assert.Nil(t, c.User())
	require.NoError(t, c.Refresh(context.Background()))
	require.NotNil(t, c.User())
	assert.Equal(t, "jane@example.com", c.User().Email)
}

func TestRefresh_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/me", r.URL.Path)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	})

	err := c.Refresh(context.Background())
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, http.StatusUnauthorized, e.StatusCode)
	assert.Nil(t, c.User())
}

func TestRotate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/refresh", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "at", "refresh_token": "rt"})
	})

	assert.NoError(t, c.Rotate(context.Background()))
}

func TestBreaker_IgnoresClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	})

	for range 8 {
		_ = c.Refresh(context.Background())
	}
	assert.Equal(t, int32(8), calls.Load())
	assert.Equal(t, gobreaker.StateClosed, c.breaker.State())
}

func TestBreaker_OpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream"})
	})

	for range 5 {
		_ = c.Refresh(context.Background())
	}
	err := c.Refresh(context.Background())
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(5), calls.Load())
}
