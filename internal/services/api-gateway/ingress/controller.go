package ingress

import (
	"net/http"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"

	"github.com/NordCoder/Heartbeat/internal/services/api-gateway/rest"
)

type pingResponse struct {
	Name         string `json:"name"`
	LastSignalAt string `json:"last_signal_at"`
	DueAt        string `json:"due_at"`
}

type Controller struct {
	UC  *Usecase
	Log *zap.Logger
}

// Register mounts /ping/{name} for GET, POST and HEAD so cron one-liners
// can use whatever their HTTP client does by default.
func (c *Controller) Register(mux *runtime.ServeMux) error {
	for _, m := range []string{http.MethodGet, http.MethodPost, http.MethodHead} {
		if err := mux.HandlePath(m, "/ping/{name}", c.ping); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) ping(w http.ResponseWriter, r *http.Request, params map[string]string) {
	sig, err := c.UC.RecordSignal(r.Context(), params["name"])
	if err != nil {
		rest.WriteError(w, c.Log, err)
		return
	}
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	rest.WriteJSON(w, http.StatusOK, pingResponse{
		Name:         sig.Name,
		LastSignalAt: sig.LastSignalAt.UTC().Format(time.RFC3339),
		DueAt:        sig.DueAt.UTC().Format(time.RFC3339),
	})
}
