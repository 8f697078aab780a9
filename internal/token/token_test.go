package token

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
}

var alice = Identity{ID: "u-1", Email: "alice@example.com", Username: "alice", Role: "user"}

func TestIssueAndVerify(t *testing.T) {
	s := newTestService()

	pair, err := s.Issue(alice)
	require.NoError(t, err)
	require.NotEmpty(t, pair.SessionID)

	ac, err := s.Verify(pair.AccessToken, Access)
	require.NoError(t, err)
	assert.Equal(t, "u-1", ac.ID)
	assert.Equal(t, "alice@example.com", ac.Email)
	assert.Equal(t, "alice", ac.Username)
	assert.Equal(t, "user", ac.Role)
	assert.True(t, ac.ExpiresAt.After(time.Now()))

	rc, err := s.Verify(pair.RefreshToken, Refresh)
	require.NoError(t, err)
	assert.Equal(t, "u-1", rc.ID)
	assert.Equal(t, pair.SessionID, rc.SessionID)
	assert.Empty(t, rc.Email)
}

func TestAccessPayloadExpiryInFuture(t *testing.T) {
	pair, err := newTestService().Issue(alice)
	require.NoError(t, err)

	parts := strings.Split(pair.AccessToken, ".")
	require.Len(t, parts, 3)
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "u-1", payload["id"])
	assert.Greater(t, payload["exp"].(float64), float64(time.Now().Unix()))
}

func TestVerifyRejectsWrongKind(t *testing.T) {
	s := newTestService()
	pair, err := s.Issue(alice)
	require.NoError(t, err)

	_, err = s.Verify(pair.AccessToken, Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = s.Verify(pair.RefreshToken, Access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	s := newTestService()
	s.now = func() time.Time { return time.Now().Add(-time.Hour) }
	pair, err := s.Issue(alice)
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.Verify(pair.AccessToken, Access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// refresh token issued an hour ago is still inside its 24h window
	_, err = s.Verify(pair.RefreshToken, Refresh)
	assert.NoError(t, err)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	pair, err := NewService("other", "other", time.Minute, time.Minute).Issue(alice)
	require.NoError(t, err)

	_, err = newTestService().Verify(pair.AccessToken, Access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		ID:   "u-1",
		Type: Access,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestService().Verify(s, Access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssueOpensNewSessionEachTime(t *testing.T) {
	s := newTestService()
	a, err := s.Issue(alice)
	require.NoError(t, err)
	b, err := s.Issue(alice)
	require.NoError(t, err)
	assert.NotEqual(t, a.SessionID, b.SessionID)
	assert.NotEqual(t, a.RefreshToken, b.RefreshToken)
}
