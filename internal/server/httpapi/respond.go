package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ateliertech/portal/internal/common"
	"github.com/ateliertech/portal/internal/server/services"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Errors  []any  `json:"errors,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeErrorStatus(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: msg})
}

// writeError maps the service error taxonomy onto HTTP statuses. Internal
// details never reach the client; typed errors carry their own payloads
// (field problems, gate reasons, policy checks).
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	var submission *services.InvalidSubmissionError
	if errors.As(err, &submission) {
		w.WriteHeader(http.StatusBadRequest)
		errs := make([]any, 0, len(submission.Problems))
		for _, p := range submission.Problems {
			errs = append(errs, p)
		}
		_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: "validation failed", Errors: errs})
		return
	}

	var weak *services.WeakPasswordError
	if errors.As(err, &weak) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: "password does not meet the policy", Errors: []any{weak.Checks}})
		return
	}

	var gate *services.GateError
	if errors.As(err, &gate) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: "login refused", Reason: gate.Reason})
		return
	}

	var status int
	var msg string
	switch {
	case errors.Is(err, common.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrConflict):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, common.ErrTokenExpired):
		status, msg = http.StatusBadRequest, "token expired"
	case errors.Is(err, common.ErrInvalidToken):
		status, msg = http.StatusBadRequest, "invalid token"
	case errors.Is(err, common.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, "invalid credentials"
	default:
		status, msg = http.StatusInternalServerError, "internal error"
	}

	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: msg})
}

func decodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
