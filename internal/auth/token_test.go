package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func TestParseUserID_RoundTrip(t *testing.T) {
	id := uuid.New()
	tok, err := Sign(id, secret, time.Minute)
	require.NoError(t, err)

	got, err := ParseUserID(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestParseUserID_Rejects(t *testing.T) {
	valid, err := Sign(uuid.New(), secret, time.Minute)
	require.NoError(t, err)
	expired, err := Sign(uuid.New(), secret, -time.Minute)
	require.NoError(t, err)
	notUUID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "bob"}).SignedString([]byte(secret))
	require.NoError(t, err)
	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: uuid.NewString()}).SignedString([]byte(secret))
	require.NoError(t, err)

	cases := map[string]struct {
		token  string
		secret string
	}{
		"empty":        {"", secret},
		"garbage":      {"not-a-token", secret},
		"wrong secret": {valid, "other"},
		"expired":      {expired, secret},
		"bad subject":  {notUUID, secret},
		"wrong alg":    {wrongAlg, secret},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseUserID(tc.token, tc.secret)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
