package access

import (
	"context"
	"net/http"
	"strings"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"

	"github.com/NordCoder/Heartbeat/internal/domain/auth"
	"github.com/NordCoder/Heartbeat/internal/obs"
)

type ctxKey int

const identityKey ctxKey = 1

func IdentityFromCtx(ctx context.Context) (*auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*auth.Identity)
	return id, ok
}

type Guard struct {
	Authn auth.Authenticator
	Gate  auth.Gate
	Log   *zap.Logger
}

// Require wraps an admin route: 401 without a valid bearer token, 403 when
// the gate refuses the operator.
func (g *Guard) Require(next runtime.HandlerFunc) runtime.HandlerFunc {
	base := g.Log
	if base == nil {
		base = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		ctx := r.Context()
		log := obs.WithTrace(ctx, base)

		id, err := g.Authn.Authenticate(ctx, bearer(r))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="heartbeat"`)
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		if !g.Gate.Allow(ctx, id) {
			log.Info("operator refused", zap.String("login", id.Login), zap.String("path", r.URL.Path))
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next(w, r.WithContext(context.WithValue(ctx, identityKey, id)), params)
	}
}

func bearer(r *http.Request) string {
	v := r.Header.Get("Authorization")
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}
