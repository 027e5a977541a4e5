package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetJSONWithToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"name":"octocat"}`))
	}))
	defer srv.Close()

	var out struct {
		Name string `json:"name"`
	}
	c := NewClient(time.Second)
	require.NoError(t, c.GetJSONWithToken(context.Background(), srv.URL, "tok", &out))
	assert.Equal(t, "octocat", out.Name)
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"duplicate_code"}`))
	}))
	defer srv.Close()

	err := NewClient(time.Second).PostJSON(context.Background(), srv.URL, map[string]string{"code": "c"}, nil)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusConflict, se.StatusCode)
	assert.JSONEq(t, `{"error":"duplicate_code"}`, string(se.Body))
}

func TestClient_KeepsCookiesWithJar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/set" {
			http.SetCookie(w, &http.Cookie{Name: "jwt", Value: "abc", Path: "/"})
			return
		}
		c, err := r.Cookie("jwt")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"value":"` + c.Value + `"}`))
	}))
	defer srv.Close()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	c := NewClient(time.Second, WithJar(jar))

	require.NoError(t, c.PostJSON(context.Background(), srv.URL+"/set", nil, nil))

	var out struct {
		Value string `json:"value"`
	}
	require.NoError(t, c.GetJSON(context.Background(), srv.URL+"/get", &out))
	assert.Equal(t, "abc", out.Value)
}
