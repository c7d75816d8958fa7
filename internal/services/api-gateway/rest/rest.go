// Package rest holds the JSON plumbing shared by the api-gateway handlers.
package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/NordCoder/Heartbeat/internal/domain/check"
	pg "github.com/NordCoder/Heartbeat/internal/repository/postgres"
)

const maxBody = 64 << 10

var ErrBadRequest = errors.New("bad request")

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// StatusOf maps domain and repository errors to HTTP status codes.
func StatusOf(err error) int {
	var ve *check.ValidationError
	switch {
	case errors.As(err, &ve), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, pg.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pg.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err with the status StatusOf picks. Internal errors are
// logged and hidden from the client.
func WriteError(w http.ResponseWriter, log *zap.Logger, err error) {
	code := StatusOf(err)
	body := errorBody{Error: err.Error()}
	var ve *check.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	if code == http.StatusInternalServerError {
		if log != nil {
			log.Error("request failed", zap.Error(err))
		}
		body = errorBody{Error: "internal error"}
	}
	WriteJSON(w, code, body)
}

func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

func PathID(params map[string]string, name string) (int64, error) {
	id, err := strconv.ParseInt(params[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ErrBadRequest, name)
	}
	return id, nil
}
