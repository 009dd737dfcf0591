package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Actor is the authenticated player behind a request
type Actor struct {
	PlayerID string
	Admin    bool
}

// ActorClaims is the bearer token payload; sub carries the player id
type ActorClaims struct {
	Admin bool `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// ActorAuthenticator validates HS256 bearer tokens issued by the auth service
type ActorAuthenticator struct {
	secret []byte
}

func NewActorAuthenticator(secret []byte) *ActorAuthenticator {
	return &ActorAuthenticator{secret: secret}
}

// Authenticate resolves the actor from an Authorization header value
func (a *ActorAuthenticator) Authenticate(authHeader string) (*Actor, error) {
	token := ExtractBearerToken(authHeader)
	if token == "" {
		return nil, huma.Error401Unauthorized("Authentication required")
	}

	actor, err := a.ValidateToken(token)
	if err != nil {
		return nil, huma.Error401Unauthorized("Invalid authentication token", err)
	}
	return actor, nil
}

// RequireAdmin authenticates and additionally requires the admin claim
func (a *ActorAuthenticator) RequireAdmin(authHeader string) (*Actor, error) {
	actor, err := a.Authenticate(authHeader)
	if err != nil {
		return nil, err
	}
	if !actor.Admin {
		return nil, huma.Error403Forbidden("Administrator access required")
	}
	return actor, nil
}

// ValidateToken parses and verifies a raw JWT
func (a *ActorAuthenticator) ValidateToken(tokenString string) (*Actor, error) {
	claims := &ActorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid JWT token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	return &Actor{PlayerID: claims.Subject, Admin: claims.Admin}, nil
}

// IssueToken signs a token for playerID; used by tooling and tests
func (a *ActorAuthenticator) IssueToken(playerID string, admin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ActorClaims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ExtractBearerToken returns the token part of "Bearer <token>"
func ExtractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) > len(prefix) && strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return strings.TrimSpace(authHeader[len(prefix):])
	}
	return ""
}
