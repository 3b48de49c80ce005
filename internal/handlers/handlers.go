package handlers

import (
	"encoding/json"
	"net/http"

	"finassist/internal/logger"
	"finassist/internal/middleware"
	"finassist/internal/services"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorBody{Error: code, Message: message})
}

// respondServiceError maps a service error onto a status code. Internal
// errors are logged and never echoed to the client.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	typed, ok := services.AsError(err)
	if !ok {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("request failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	status := http.StatusInternalServerError
	switch typed.Kind {
	case services.KindValidation:
		status = http.StatusUnprocessableEntity
	case services.KindConflict:
		status = http.StatusConflict
	case services.KindNotFound:
		status = http.StatusNotFound
	}
	respondError(w, status, typed.Code, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return false
	}
	return true
}

// actor returns the authenticated user as the audit actor.
func actor(r *http.Request) *string {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		return nil
	}
	return &userID
}

func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "")
	}
	return userID, ok
}
