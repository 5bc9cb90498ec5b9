// Package httputil centralizes JSON response writing and domain error
// translation so handlers stay thin.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "rentgate/pkg/domain-errors"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a coded domain error to an HTTP status and JSON body.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	msg := err.Error()
	var de *dErrors.Error
	if errors.As(err, &de) {
		msg = de.Message
	}
	WriteJSON(w, statusFor(code), errorBody{Code: string(code), Message: msg})
}

// Decode parses the request body into T, writing a validation error response
// on failure. The bool result reports whether decoding succeeded.
func Decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return req, false
	}
	return req, true
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeReplay, dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeExpired, dErrors.CodeTooEarly:
		return http.StatusUnprocessableEntity
	case dErrors.CodeVerificationFailed, dErrors.CodeIneligible:
		return http.StatusUnprocessableEntity
	case dErrors.CodeReentrancy:
		return http.StatusConflict
	case dErrors.CodeTransferFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
