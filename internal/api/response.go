package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// Envelope is the uniform response shape. Success carries Data; errors carry
// Code, Message and optionally Details. Every response gets a correlation ID
// for log matching.
type Envelope struct {
	Result        string      `json:"result"`
	Data          interface{} `json:"data,omitempty"`
	Code          string      `json:"code,omitempty"`
	Message       string      `json:"message,omitempty"`
	Details       interface{} `json:"details,omitempty"`
	CorrelationID string      `json:"correlationId"`
}

func writeJSON(w http.ResponseWriter, status int, env Envelope) {
	env.CorrelationID = uuid.NewString()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, Envelope{Result: "SUCCESS", Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	writeJSON(w, status, Envelope{Result: "ERROR", Code: code, Message: message, Details: details})
}
