package handlers

import (
	"encoding/json"
	"net/http"
)

// errorBody is the uniform error envelope every handler writes: a stable
// machine-readable code plus a human message. Raw upstream errors never
// reach the client; they are logged server-side only.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorResponse writes the JSON error envelope and returns any encoding
// error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(errorBody{Error: errorCode, Message: message})
}

// WriteJSON writes data as a JSON response with the given status. A 200
// stays implicit so the encoder's first write sets it.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}
