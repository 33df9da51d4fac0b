package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	v := NewVerifier("secret", "microcommerce")

	token, err := v.Issue(User{Username: "alice", Email: "alice@example.com"}, time.Hour)
	require.NoError(t, err)

	u, err := v.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, User{Username: "alice", Email: "alice@example.com"}, u)
}

func TestParse_Rejects(t *testing.T) {
	v := NewVerifier("secret", "microcommerce")

	expired, err := v.Issue(User{Username: "alice"}, -time.Minute)
	require.NoError(t, err)

	otherKey, err := NewVerifier("other", "microcommerce").Issue(User{Username: "alice"}, time.Hour)
	require.NoError(t, err)

	otherIssuer, err := NewVerifier("secret", "someone-else").Issue(User{Username: "alice"}, time.Hour)
	require.NoError(t, err)

	noUser, err := v.Issue(User{}, time.Hour)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		Username:         "alice",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "microcommerce"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"wrong key":    otherKey,
		"wrong issuer": otherIssuer,
		"no username":  noUser,
		"wrong alg":    hs512,
		"garbage":      "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Parse(token)
			require.Error(t, err)
		})
	}
}

func TestUserContext(t *testing.T) {
	_, ok := UserFrom(context.Background())
	assert.False(t, ok)

	ctx := WithUser(context.Background(), User{Username: "bob"})
	u, ok := UserFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "bob", u.Username)
}
