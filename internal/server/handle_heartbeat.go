package server

import "net/http"

func handleHeartbeat(store Store, presence *Presence) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := teamFromRequest(r, store)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		if err := presence.Heartbeat(r.Context(), sess.GameID, sess.TeamID); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
