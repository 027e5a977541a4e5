// Package test holds helpers shared by the HTTP tests.
package test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// PerformRequest serves one request against r. Headers use the
// "Name: value" form.
func PerformRequest(
	r http.Handler,
	t *testing.T,
	method, path string,
	body io.Reader,
	headers []string,
	cookies ...*http.Cookie,
) *httptest.ResponseRecorder {
	t.Helper()

	req, err := http.NewRequest(method, path, body)
	require.NoError(t, err)

	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		require.True(t, ok, "malformed header %q", h)
		req.Header.Set(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// Cookie returns the named cookie set by w, or nil.
func Cookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func DecodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
