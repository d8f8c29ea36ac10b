package server

import (
	"errors"
	"net/http"
)

type ShuffleResponse struct {
	NextClue *ClueInfo `json:"nextClue"`
}

func handleShuffle(store Store, proc *ScanProcessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := teamFromRequest(r, store)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		clue, err := proc.Shuffle(r.Context(), sess.TeamID)
		if errors.Is(err, errShuffleMode) {
			writeError(w, http.StatusConflict, "shuffle only available in random mode")
			return
		}
		if err != nil {
			writeScanError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, ShuffleResponse{NextClue: clue})
	}
}
