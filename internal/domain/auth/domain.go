package auth

import (
	"context"
	"errors"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is an authenticated operator as reported by the identity provider.
type Identity struct {
	Login string
	Orgs  []string
}

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// Gate decides whether an authenticated operator may use the admin surface.
type Gate interface {
	Allow(ctx context.Context, id *Identity) bool
}
