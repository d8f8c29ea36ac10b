package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/NunoTek/QR-Hunt-sub000/internal/qrhunt"
)

type StandingItem struct {
	Rank       int     `json:"rank"`
	TeamID     string  `json:"teamId"`
	TeamName   string  `json:"teamName"`
	Points     int     `json:"points"`
	NodesFound int     `json:"nodesFound"`
	HintsUsed  int     `json:"hintsUsed"`
	FinishedAt *string `json:"finishedAt"`
	Winner     bool    `json:"winner"`
}

type StandingsResponse struct {
	GameID      string         `json:"gameId"`
	Slug        string         `json:"slug"`
	RankingMode string         `json:"rankingMode"`
	Standings   []StandingItem `json:"standings"`
}

func handleStandings(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		game, err := store.GameBySlug(r.Context(), slug)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		teams, err := store.TeamsByGame(r.Context(), game.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		standings := qrhunt.Standings(game.RankingMode, teams)

		resp := StandingsResponse{
			GameID:      game.ID,
			Slug:        game.Slug,
			RankingMode: string(game.RankingMode),
			Standings:   make([]StandingItem, 0, len(standings)),
		}
		for _, s := range standings {
			item := StandingItem{
				Rank:       s.Rank,
				TeamID:     s.TeamID,
				TeamName:   s.TeamName,
				Points:     s.Points,
				NodesFound: s.NodesFound,
				HintsUsed:  s.HintsUsed,
				Winner:     s.Winner,
			}
			if s.FinishedAt != nil {
				ts := s.FinishedAt.UTC().Format(time.RFC3339Nano)
				item.FinishedAt = &ts
			}
			resp.Standings = append(resp.Standings, item)
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
