package check

import (
	"net/http"
	"strconv"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"

	"github.com/NordCoder/Heartbeat/internal/domain/check"
	"github.com/NordCoder/Heartbeat/internal/domain/notification"
	"github.com/NordCoder/Heartbeat/internal/obs"
	"github.com/NordCoder/Heartbeat/internal/services/api-gateway/rest"
)

type View struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	Tags           []string    `json:"tags"`
	Active         bool        `json:"active"`
	Frequency      check.Unit  `json:"frequency"`
	FrequencyValue int         `json:"frequency_value"`
	LastSignalAt   *time.Time  `json:"last_signal_at"`
	Failed         bool        `json:"failed"`
	State          check.State `json:"state"`
	DueAt          time.Time   `json:"due_at"`
	PingURL        string      `json:"ping_url"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

type Controller struct {
	UC      *Usecase
	Clock   notification.Clock
	BaseURL string
	Log     *zap.Logger
}

func (s *Controller) toView(c *check.Check, now time.Time) View {
	tags := []string(c.Tags)
	if tags == nil {
		tags = []string{}
	}
	return View{
		ID:             c.ID,
		Name:           c.Name,
		Description:    c.Description,
		Tags:           tags,
		Active:         c.Active,
		Frequency:      c.Frequency,
		FrequencyValue: c.FrequencyValue,
		LastSignalAt:   c.LastSignalAt,
		Failed:         c.Failed,
		State:          c.State(now),
		DueAt:          c.DueAt(now).UTC(),
		PingURL:        s.BaseURL + "/ping/" + c.Name,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

// Register mounts the check admin routes; guard wraps each of them.
func (s *Controller) Register(mux *runtime.ServeMux, guard runtime.Middleware) error {
	routes := []struct {
		method, path string
		h            runtime.HandlerFunc
	}{
		{http.MethodPost, "/api/v1/checks", s.create},
		{http.MethodGet, "/api/v1/checks", s.list},
		{http.MethodGet, "/api/v1/checks/{id}", s.get},
		{http.MethodPatch, "/api/v1/checks/{id}", s.update},
		{http.MethodDelete, "/api/v1/checks/{id}", s.delete},
		{http.MethodDelete, "/api/v1/checks/{id}/failure", s.clearFailure},
		{http.MethodGet, "/api/v1/checks/{id}/notifications", s.notifications},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.path, guard(rt.h)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Controller) create(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var in CreateInput
	if err := rest.DecodeJSON(r, &in); err != nil {
		rest.WriteError(w, s.Log, err)
		return
	}
	obs.WithTrace(r.Context(), s.Log).Info("CreateCheck request", zap.String("name", in.Name), zap.String("frequency", in.Frequency))

	c, err := s.UC.Create(r.Context(), in)
	if err != nil {
		rest.WriteError(w, s.Log, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, s.toView(c, s.Clock.Now()))
}

func (s *Controller) list(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	list, err := s.UC.List(r.Context())
	if err != nil {
		rest.WriteError(w, s.Log, err)
		return
	}
	now := s.Clock.Now()
	out := make([]View, 0, len(list))
	for _, c := range list {
		out = append(out, s.toView(c, now))
	}
	rest.WriteJSON(w, http.StatusOK, map[string]any{"checks": out})
}

func (s *Controller) get(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := rest.PathID(params, "id")
	if err != nil {
		rest.WriteError(w, s.Log, err)
		return
	}
	c, err := s.UC.Get(r.Context(), id)
	if err != nil {
		rest.WriteError(w, s.Log, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, s.toView(c, s.Clock.Now()))
}

func (s *Controller) update(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := rest.PathID(params, "id")
	if err != nil {
		rest.WriteError(w, s.Log, err)
		return
	}
	var in UpdateInput
	if err := rest.DecodeJSON(r, &in); err != nil {
		rest.WriteError(w, s.Log, err)
		return
	}
	obs.WithTrace(r.Context(), s.Log).Info("UpdateCheck request", zap.Int64("id", id))

	c, err := s.UC.Update(r.Context(), id, in)
	if err != nil {
		rest.WriteError(w, s.Log, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, s.toView(c, s.Clock.Now()))
}

func (s *Controller) delete(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := rest.PathID(params, "id")
	if err != nil {
		rest.WriteError(w, s.Log, err)
		return
	}
	obs.WithTrace(r.Context(), s.Log).Info("DeleteCheck request", zap.Int64("id", id))

	if err := s.UC.Delete(r.Context(), id); err != nil {
		rest.WriteError(w, s.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Controller) clearFailure(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := rest.PathID(params, "id")
	if err != nil {
		rest.WriteError(w, s.Log, err)
		return
	}
	c, err := s.UC.ClearFailure(r.Context(), id)
	if err != nil {
		rest.WriteError(w, s.Log, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, s.toView(c, s.Clock.Now()))
}

func (s *Controller) notifications(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := rest.PathID(params, "id")
	if err != nil {
		rest.WriteError(w, s.Log, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.UC.Notifications(r.Context(), id, limit)
	if err != nil {
		rest.WriteError(w, s.Log, err)
		return
	}
	if list == nil {
		list = []*notification.Notification{}
	}
	rest.WriteJSON(w, http.StatusOK, map[string]any{"notifications": list})
}
