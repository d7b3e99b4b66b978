// Package httputil carries the shared response helpers used by every HTTP
// handler.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	domainerrors "lendgate/pkg/domain-errors"
)

type errorResponse struct {
	Error            string                    `json:"error"`
	ErrorDescription string                    `json:"error_description,omitempty"`
	Fields           []domainerrors.FieldError `json:"fields,omitempty"`
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error onto the wire envelope. Validation errors
// include the full field list so a client can fix everything in one pass.
// Internal and storage failures never leak their description.
func WriteError(w http.ResponseWriter, err error) {
	if ve, ok := domainerrors.AsValidation(err); ok {
		WriteJSON(w, http.StatusBadRequest, errorResponse{
			Error:            string(domainerrors.CodeValidationFailed),
			ErrorDescription: "validation failed",
			Fields:           ve.Fields,
		})
		return
	}

	code := domainerrors.CodeOf(err)
	resp := errorResponse{Error: string(code)}
	switch code {
	case domainerrors.CodeInternal, domainerrors.CodeStorage:
		// description withheld
	default:
		var de *domainerrors.Error
		if errors.As(err, &de) {
			resp.ErrorDescription = de.Message
		}
	}
	WriteJSON(w, domainerrors.ToHTTPStatus(code), resp)
}
