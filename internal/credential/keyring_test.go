package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(env map[string]string) *Store {
	s := NewStore(keyring.NewArrayKeyring(nil))
	s.getenv = func(k string) string { return env[k] }
	return s
}

func TestTokenRoundTrip(t *testing.T) {
	s := newTestStore(nil)

	_, err := s.Token("coordinator")
	assert.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, s.SetToken("coordinator", "tok-c"))
	require.NoError(t, s.SetToken("admin", "tok-a"))

	token, err := s.Token("coordinator")
	require.NoError(t, err)
	assert.Equal(t, "tok-c", token)

	require.NoError(t, s.DeleteToken("coordinator"))
	require.NoError(t, s.DeleteToken("coordinator"), "deleting a missing token is not an error")

	_, err = s.Token("coordinator")
	assert.ErrorIs(t, err, ErrNoToken)

	token, err = s.Token("admin")
	require.NoError(t, err)
	assert.Equal(t, "tok-a", token)
}

func TestTokenEnvOverride(t *testing.T) {
	s := newTestStore(map[string]string{TokenEnvVar: "from-env"})
	require.NoError(t, s.SetToken("admin", "stored"))

	token, err := s.Token("admin")
	require.NoError(t, err)
	assert.Equal(t, "from-env", token)
}

func TestTokenKey(t *testing.T) {
	assert.Equal(t, "api-token-admin", TokenKey("admin"))
}
