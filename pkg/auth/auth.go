// Package auth is a thin stand-in for the external identity provider.
// Token issuance and credential storage live outside this system; the
// service only needs to turn a bearer token into an owner id.
package auth

import (
	"context"
	"errors"

	"github.com/pharmvec/pharmvec/internal/types"
)

var ErrInvalidToken = errors.New("invalid token")

// Static resolves tokens from a fixed registry, typically loaded from
// configuration.
type Static struct {
	tokens map[string]string
}

var _ types.Authenticator = (*Static)(nil)

func NewStatic(tokens map[string]string) *Static {
	owned := make(map[string]string, len(tokens))
	for token, owner := range tokens {
		owned[token] = owner
	}

	return &Static{tokens: owned}
}

func (s *Static) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	owner, ok := s.tokens[token]
	if !ok {
		return "", ErrInvalidToken
	}

	return owner, nil
}
