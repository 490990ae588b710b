package handlers

import (
	"encoding/json"
	"net/http"

	"indicator-project/tracking-service/logging"
	"indicator-project/tracking-service/models"
)

// principalFrom builds the caller identity from gateway-set headers. The
// gateway has already authenticated the user; the core only consumes the
// resulting identity.
func principalFrom(r *http.Request) (models.Principal, error) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		return models.Principal{}, models.Forbiddenf("missing user identity")
	}
	role := models.Role(r.Header.Get("Role"))
	if role == "" {
		role = models.RoleUser
	}
	return models.Principal{
		ID:           userID,
		Role:         role,
		Position:     r.Header.Get("Position"),
		DepartmentID: r.Header.Get("Department"),
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy to transport status codes.
// Anything without a kind is an infrastructure failure and stays opaque.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := err.Error()

	switch models.KindOf(err) {
	case models.KindNotFound:
		status = http.StatusNotFound
	case models.KindInvalidInput:
		status = http.StatusBadRequest
	case models.KindInvalidState:
		status = http.StatusConflict
	case models.KindForbidden:
		status = http.StatusForbidden
	case models.KindConflict:
		status = http.StatusConflict
	default:
		logging.Logger.Errorf("Event ID: INTERNAL_ERROR, Description: %v", err)
		message = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": message})
}
