package utilities

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-events-go/pkg/apperror"
)

const maxBodyBytes = 1 << 20

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to its HTTP status. Store faults are logged at warn
// level and their cause is never written to the client.
func WriteError(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	status := apperror.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Warnw("request failed", "err", err)
	} else {
		logger.Debugw("request rejected", "status", status, "err", err)
	}
	WriteJSON(w, status, ErrorBody{Error: apperror.PublicMessage(err), Fields: apperror.FieldsOf(err)})
}

// DecodeJSON reads a JSON body into v. Malformed or oversized bodies become
// validation errors.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.Validation("decode", "request body is required", nil)
		}
		return apperror.Validation("decode", "invalid payload", nil)
	}
	return nil
}
