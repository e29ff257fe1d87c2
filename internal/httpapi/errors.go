// Package httpapi wires the ingestion, query, and analytics services onto
// net/http.ServeMux handlers.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/marcus-qen/agentobservatory/internal/apierr"
)

// errorBody is the standard error envelope: {"detail": "..."}.
type errorBody struct {
	Detail string `json:"detail"`
}

// writeError translates an apierr.Error (or any other error) into an HTTP
// status and the standard JSON error body.
func writeError(w http.ResponseWriter, err error) {
	status, message := classify(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Detail: message})
}

func classify(err error) (int, string) {
	apiErr, ok := apierr.As(err)
	if !ok {
		return http.StatusInternalServerError, "internal error"
	}

	switch apiErr.Kind {
	case apierr.KindValidation:
		return http.StatusBadRequest, apiErr.Error()
	case apierr.KindNotFound:
		return http.StatusNotFound, apiErr.Error()
	case apierr.KindConflict:
		return http.StatusConflict, apiErr.Error()
	case apierr.KindInsufficientData:
		return http.StatusUnprocessableEntity, apiErr.Error()
	case apierr.KindTimeout:
		return http.StatusGatewayTimeout, apiErr.Error()
	case apierr.KindUnavailable:
		return http.StatusServiceUnavailable, apiErr.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes r's body into v, rejecting unknown fields so a typo in
// a client payload surfaces as a validation error instead of silently
// dropping the field.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apierr.Validation("body", "malformed request body: "+err.Error())
	}
	return nil
}
