package access

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	config "github.com/NordCoder/Heartbeat/internal/config/api-gateway"
	"github.com/NordCoder/Heartbeat/internal/domain/auth"
)

var _ auth.Authenticator = (*StaticTokens)(nil)

// StaticTokens authenticates bearer tokens against bcrypt hashes from
// configuration. Every hash is compared so lookup time does not depend on
// which entry matched.
type StaticTokens struct {
	entries []config.Token
}

func NewStaticTokens(tokens []config.Token) *StaticTokens {
	return &StaticTokens{entries: append([]config.Token(nil), tokens...)}
}

func (s *StaticTokens) Authenticate(_ context.Context, token string) (*auth.Identity, error) {
	if token == "" {
		return nil, auth.ErrUnauthenticated
	}
	var found *config.Token
	for i := range s.entries {
		if bcrypt.CompareHashAndPassword([]byte(s.entries[i].Hash), []byte(token)) == nil && found == nil {
			found = &s.entries[i]
		}
	}
	if found == nil {
		return nil, auth.ErrUnauthenticated
	}
	return &auth.Identity{Login: found.Login, Orgs: append([]string(nil), found.Orgs...)}, nil
}

// HashToken produces the value stored in access.tokens[].hash.
func HashToken(token string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
