package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind distinguishes access from refresh tokens.
type Kind string

const (
	Access  Kind = "access"
	Refresh Kind = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is the subject a token pair is issued for.
type Identity struct {
	ID       string
	Email    string
	Username string
	Role     string
}

// Claims is the payload of both token kinds. Refresh tokens leave Email and
// Username empty and carry a session id instead.
type Claims struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	Username  string `json:"username,omitempty"`
	Role      string `json:"role"`
	SessionID string `json:"sid,omitempty"`
	Type      Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// Pair is the result of Issue.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	SessionID    string `json:"-"`
}

// Service signs and verifies HS256 tokens.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// RefreshTTL is how long a refresh token (and its session) lives.
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

// Issue signs a new access/refresh pair. Every call opens a fresh session id.
func (s *Service) Issue(id Identity) (*Pair, error) {
	now := s.now()
	sid := uuid.NewString()

	access, err := s.sign(s.accessSecret, Claims{
		ID:       id.ID,
		Email:    id.Email,
		Username: id.Username,
		Role:     id.Role,
		Type:     Access,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.sign(s.refreshSecret, Claims{
		ID:        id.ID,
		Role:      id.Role,
		SessionID: sid,
		Type:      Refresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			ID:        sid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &Pair{AccessToken: access, RefreshToken: refresh, SessionID: sid}, nil
}

// Verify parses tokenString as the given kind. Any failure, including an
// expired token or a token of the other kind, yields ErrInvalidToken.
func (s *Service) Verify(tokenString string, kind Kind) (*Claims, error) {
	secret := s.accessSecret
	if kind == Refresh {
		secret = s.refreshSecret
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid || claims.Type != kind || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) sign(secret []byte, c Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}
