package state

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	s, err := New("github", true)
	require.NoError(t, err)
	assert.NotEmpty(t, s.Nonce)

	raw, err := s.Encode()
	require.NoError(t, err)

	got, ok := Decode(raw)
	require.True(t, ok)
	assert.Equal(t, s, got)
}

func TestDecode_AcceptsPaddedAndStdEncodings(t *testing.T) {
	payload := []byte(`{"provider":"google"}`)

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding} {
		got, ok := Decode(enc.EncodeToString(payload))
		require.True(t, ok)
		assert.Equal(t, "google", got.Provider)
	}
}

func TestDecode_ToleratesGarbage(t *testing.T) {
	for _, raw := range []string{
		"",
		"   ",
		"not base64 at all!",
		base64.RawURLEncoding.EncodeToString([]byte("plain text")),
		base64.RawURLEncoding.EncodeToString([]byte(`["google"]`)),
	} {
		_, ok := Decode(raw)
		assert.False(t, ok, raw)
	}
}

func TestNewNonce_Unique(t *testing.T) {
	a, err := NewNonce()
	require.NoError(t, err)
	b, err := NewNonce()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
