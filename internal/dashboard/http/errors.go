package http

import (
	"net/http"

	"github.com/parlourtech/whopdash/pkg/httpx"
)

// ErrorResponse is the JSON error body every dashboard endpoint uses.
type ErrorResponse struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	httpx.WriteJSON(w, status, ErrorResponse{
		Code:        code,
		Description: description,
	})
}

func writeLoginRequired(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "login_required",
		"no valid session; restart the dashboard to sign in again")
}
