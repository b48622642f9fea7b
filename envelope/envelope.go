// Package envelope defines the JSON response convention shared by every API
// route: {success: true, data} on success and {success: false, error} on
// failure.
package envelope

import (
	"encoding/json"
	"net/http"
)

const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeServer       = "SERVER_ERROR"
)

type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

type Error struct {
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

// Dataer exposes the payload an endpoint response contributes to the data
// field of the envelope.
type Dataer interface {
	Data() interface{}
}

// StatusCoder overrides the 200 default on successful responses.
type StatusCoder interface {
	StatusCode() int
}

func Write(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return json.NewEncoder(w).Encode(Response{Success: true, Data: raw})
}

func WriteError(w http.ResponseWriter, status int, e Error) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(Response{Success: false, Error: &e})
}
