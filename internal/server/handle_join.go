package server

import (
	"errors"
	"net/http"
	"strings"
)

type JoinRequest struct {
	Code string `json:"code"`
}

type JoinResponse struct {
	Token    string `json:"token"`
	TeamID   string `json:"teamId"`
	TeamName string `json:"teamName"`
	GameSlug string `json:"gameSlug"`
}

func handleJoin(store Store, proc *ScanProcessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JoinRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.Code = strings.TrimSpace(req.Code)
		if req.Code == "" {
			writeError(w, http.StatusBadRequest, "code is required")
			return
		}

		team, err := store.TeamLookup(r.Context(), req.Code)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "team not found or game not active")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		token, err := store.JoinTeam(r.Context(), team.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		// Teams in random or collect-all games get their first clue drawn
		// here so the first progress read has one.
		if err := proc.EnsureOffer(r.Context(), team.ID); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, JoinResponse{
			Token:    token,
			TeamID:   team.ID,
			TeamName: team.Name,
			GameSlug: team.GameSlug,
		})
	}
}
