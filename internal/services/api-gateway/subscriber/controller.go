package subscriber

import (
	"net/http"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"

	"github.com/NordCoder/Heartbeat/internal/domain/subscriber"
	"github.com/NordCoder/Heartbeat/internal/services/api-gateway/rest"
)

type View struct {
	ID        int64              `json:"id"`
	Name      string             `json:"name"`
	Channel   subscriber.Channel `json:"channel"`
	Address   string             `json:"address"`
	Signed    bool               `json:"signed"`
	TagFilter []string           `json:"tag_filter"`
	Active    bool               `json:"active"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func toView(s *subscriber.Subscriber) View {
	tags := []string(s.TagFilter)
	if tags == nil {
		tags = []string{}
	}
	return View{
		ID:        s.ID,
		Name:      s.Name,
		Channel:   s.Channel,
		Address:   s.Address,
		Signed:    s.Secret != "",
		TagFilter: tags,
		Active:    s.Active,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

type activeInput struct {
	Active *bool `json:"active"`
}

type Controller struct {
	UC  *Usecase
	Log *zap.Logger
}

func (c *Controller) Register(mux *runtime.ServeMux, guard runtime.Middleware) error {
	routes := []struct {
		method, path string
		h            runtime.HandlerFunc
	}{
		{http.MethodPost, "/api/v1/subscribers", c.create},
		{http.MethodGet, "/api/v1/subscribers", c.list},
		{http.MethodGet, "/api/v1/subscribers/{id}", c.get},
		{http.MethodPatch, "/api/v1/subscribers/{id}", c.setActive},
		{http.MethodDelete, "/api/v1/subscribers/{id}", c.delete},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.path, guard(rt.h)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) create(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var in CreateInput
	if err := rest.DecodeJSON(r, &in); err != nil {
		rest.WriteError(w, c.Log, err)
		return
	}
	s, err := c.UC.Create(r.Context(), in)
	if err != nil {
		rest.WriteError(w, c.Log, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, toView(s))
}

func (c *Controller) list(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	list, err := c.UC.List(r.Context())
	if err != nil {
		rest.WriteError(w, c.Log, err)
		return
	}
	out := make([]View, 0, len(list))
	for _, s := range list {
		out = append(out, toView(s))
	}
	rest.WriteJSON(w, http.StatusOK, map[string]any{"subscribers": out})
}

func (c *Controller) get(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := rest.PathID(params, "id")
	if err != nil {
		rest.WriteError(w, c.Log, err)
		return
	}
	s, err := c.UC.Get(r.Context(), id)
	if err != nil {
		rest.WriteError(w, c.Log, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toView(s))
}

func (c *Controller) setActive(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := rest.PathID(params, "id")
	if err != nil {
		rest.WriteError(w, c.Log, err)
		return
	}
	var in activeInput
	if err := rest.DecodeJSON(r, &in); err != nil {
		rest.WriteError(w, c.Log, err)
		return
	}
	if in.Active == nil {
		rest.WriteError(w, c.Log, rest.ErrBadRequest)
		return
	}
	s, err := c.UC.SetActive(r.Context(), id, *in.Active)
	if err != nil {
		rest.WriteError(w, c.Log, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toView(s))
}

func (c *Controller) delete(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := rest.PathID(params, "id")
	if err != nil {
		rest.WriteError(w, c.Log, err)
		return
	}
	if err := c.UC.Delete(r.Context(), id); err != nil {
		rest.WriteError(w, c.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
