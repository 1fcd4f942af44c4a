package backend

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// RoleSource resolves the acting user's roles. Controllers resolve it once
// per view; it is a slow cacheable read, never polled.
type RoleSource interface {
	Roles(ctx context.Context) ([]string, error)
}

// StaticRoles serves a fixed role set; used in tests and local setups.
type StaticRoles []string

func (r StaticRoles) Roles(context.Context) ([]string, error) {
	return append([]string(nil), r...), nil
}

// TokenRoles reads the "roles" claim out of the bearer token. The claims
// are read without signature verification: the backend is the enforcing
// side, this side only decides which buttons to offer.
type TokenRoles struct {
	token string
}

func NewTokenRoles(token string) *TokenRoles {
	return &TokenRoles{token: token}
}

func (t *TokenRoles) Roles(context.Context) ([]string, error) {
	if t.token == "" {
		return nil, nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(t.token, claims); err != nil {
		return nil, err
	}
	raw, ok := claims["roles"].([]any)
	if !ok {
		return nil, nil
	}
	roles := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			roles = append(roles, s)
		}
	}
	return roles, nil
}
