package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mysterymsg/internal/models"
)

func TestAccessToken_RoundTrip(t *testing.T) {
	user := models.User{ID: 42, Username: "alice"}

	token, err := NewAccessToken(user, "secret", time.Minute)
	require.NoError(t, err)

	uid, err := ParseAccessToken(token, "secret")
	require.NoError(t, err)
	require.Equal(t, int64(42), uid)
}

func TestAccessToken_WrongSecret(t *testing.T) {
	token, err := NewAccessToken(models.User{ID: 1}, "secret", time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken(token, "other-secret")
	require.Error(t, err)
}

func TestAccessToken_Expired(t *testing.T) {
	token, err := NewAccessToken(models.User{ID: 1}, "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken(token, "secret")
	require.Error(t, err)
}

func TestNewRefreshToken_Unique(t *testing.T) {
	a, err := NewRefreshToken()
	require.NoError(t, err)
	b, err := NewRefreshToken()
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.Len(t, a, 64)
}

func TestHashToken_Deterministic(t *testing.T) {
	require.Equal(t, HashToken("tok"), HashToken("tok"))
	require.NotEqual(t, HashToken("tok"), HashToken("tok2"))
}
