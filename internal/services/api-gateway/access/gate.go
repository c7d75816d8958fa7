package access

import (
	"context"

	"github.com/NordCoder/Heartbeat/internal/domain/auth"
)

var _ auth.Gate = OrgGate{}

// OrgGate admits operators belonging to Org. An empty Org admits everyone
// who authenticated.
type OrgGate struct {
	Org string
}

func (g OrgGate) Allow(_ context.Context, id *auth.Identity) bool {
	if id == nil {
		return false
	}
	if g.Org == "" {
		return true
	}
	for _, o := range id.Orgs {
		if o == g.Org {
			return true
		}
	}
	return false
}
