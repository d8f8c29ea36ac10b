package server

import (
	"net/http"
	"strings"
	"time"
)

type ChatRequest struct {
	Message string `json:"message"`
}

// handleChat fans a team message out to everyone watching the game. Chat
// is not persisted; it rides the same broadcaster as progress events.
func handleChat(store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := teamFromRequest(r, store)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		var req ChatRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Message = strings.TrimSpace(req.Message)
		if req.Message == "" {
			writeError(w, http.StatusBadRequest, "message is required")
			return
		}

		team, err := store.Team(r.Context(), sess.TeamID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		broker.Publish(sess.GameID, Event{Type: EventChatMessage, GameID: sess.GameID, Payload: ChatEvent{
			TeamID:   team.ID,
			TeamName: team.Name,
			Message:  req.Message,
			SentAt:   time.Now().UTC().Format(time.RFC3339Nano),
		}})

		w.WriteHeader(http.StatusNoContent)
	}
}
