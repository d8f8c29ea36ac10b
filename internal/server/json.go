package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/NunoTek/QR-Hunt-sub000/internal/qrhunt"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeScanError maps the domain's typed rejections to HTTP statuses.
// Anything unmapped is a storage failure and stays a 500.
func writeScanError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, qrhunt.ErrNodeNotFound):
		writeError(w, http.StatusNotFound, "node not found")
	case errors.Is(err, qrhunt.ErrNodeNotActivated):
		writeError(w, http.StatusConflict, "node is not activated")
	case errors.Is(err, qrhunt.ErrOutOfSequence):
		writeError(w, http.StatusConflict, "scan out of sequence")
	case errors.Is(err, qrhunt.ErrGameNotActive):
		writeError(w, http.StatusConflict, "game is not active")
	case errors.Is(err, qrhunt.ErrTeamFinished):
		writeError(w, http.StatusConflict, "team has already finished")
	case errors.Is(err, qrhunt.ErrPasswordRequired):
		writeError(w, http.StatusUnprocessableEntity, "password required")
	case errors.Is(err, qrhunt.ErrPasswordIncorrect):
		writeError(w, http.StatusUnprocessableEntity, "password incorrect")
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
