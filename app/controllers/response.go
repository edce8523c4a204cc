package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/hlog"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Message is the envelope of every non-list response.
type Message struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("encode response")
	}
}

func successMessage(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, r, code, Message{Status: statusSuccess, Message: msg})
}

func errorMessage(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, r, code, Message{Status: statusError, Message: msg})
}

// NotFound answers requests that match no route.
func NotFound(w http.ResponseWriter, r *http.Request) {
	errorMessage(w, r, http.StatusNotFound, "Route not found")
}

// MethodNotAllowed answers requests whose path matches but method does not.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	errorMessage(w, r, http.StatusMethodNotAllowed, "Method not allowed")
}
