package server

import (
	"errors"
	"net/http"
	"strings"
)

var errNoSession = errors.New("no valid session")

// teamFromRequest resolves the Bearer token minted at join time.
func teamFromRequest(r *http.Request, store Store) (teamSession, error) {
	auth := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found || token == "" {
		return teamSession{}, errNoSession
	}
	return store.TeamFromToken(r.Context(), token)
}
