package server

import (
	"encoding/json"
	"net/http"

	"github.com/teranos/promptc/errors"
	"github.com/teranos/promptc/prompt"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}
	return nil
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	_ = writeJSON(w, status, ErrorResponse{Error: message})
}

// writeErr reports err with the status statusFor picks. Parse errors carry a diagnostic.
func writeErr(w http.ResponseWriter, err error) {
	_ = writeJSON(w, statusFor(err), errorResponse(err))
}

func errorResponse(err error) ErrorResponse {
	resp := ErrorResponse{Error: err.Error()}
	if pe, ok := prompt.AsParseError(err); ok {
		d := pe.Diagnostic()
		resp.Diagnostic = &d
	}
	return resp
}

// readJSON decodes a JSON request body. Unknown fields are rejected.
func readJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return errors.Wrapf(ErrPromptTooLarge, "request body exceeds %d bytes", maxBytes.Limit)
		}
		return errors.WrapInvalidRequest(err, "decode request body")
	}
	return nil
}

// requireMethod checks if the request method matches the expected method
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}
