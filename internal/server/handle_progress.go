package server

import (
	"net/http"
	"time"

	"github.com/NunoTek/QR-Hunt-sub000/internal/qrhunt"
)

type GameInfo struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Mode        string `json:"mode"`
	RankingMode string `json:"rankingMode"`
	TotalNodes  int    `json:"totalNodes"`
}

type TeamInfo struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	TotalPoints int     `json:"totalPoints"`
	Finished    bool    `json:"finished"`
	FinishedAt  *string `json:"finishedAt"`
	Winner      bool    `json:"winner"`
}

type VisitedNode struct {
	NodeID string `json:"nodeId"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

type HintInfo struct {
	NodeID         string `json:"nodeId"`
	Hint           string `json:"hint"`
	PointsDeducted int    `json:"pointsDeducted"`
}

// ProgressResponse is the authoritative team state clients re-fetch after
// any stream break.
type ProgressResponse struct {
	Game        GameInfo      `json:"game"`
	Team        TeamInfo      `json:"team"`
	Visited     []VisitedNode `json:"visited"`
	Hints       []HintInfo    `json:"hints"`
	CurrentClue *ClueInfo     `json:"currentClue"`
	Exhausted   bool          `json:"exhausted"`
}

func handleProgress(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := teamFromRequest(r, store)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		team, err := store.Team(r.Context(), sess.TeamID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		game, err := store.Game(r.Context(), team.GameID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		graph, err := store.Graph(r.Context(), team.GameID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		resp := ProgressResponse{
			Game: GameInfo{
				Slug:        game.Slug,
				Name:        game.Name,
				Status:      string(game.Status),
				Mode:        string(game.Mode),
				RankingMode: string(game.RankingMode),
				TotalNodes:  len(graph.Nodes()),
			},
			Team: TeamInfo{
				ID:          team.ID,
				Name:        team.Name,
				TotalPoints: team.TotalPoints,
				Finished:    team.FinishedAt != nil,
				Winner:      team.Winner,
			},
			Visited: []VisitedNode{},
			Hints:   []HintInfo{},
		}
		if team.FinishedAt != nil {
			s := team.FinishedAt.UTC().Format(time.RFC3339Nano)
			resp.Team.FinishedAt = &s
		}

		for _, id := range team.Visited {
			n, ok := graph.NodeByID(id)
			if !ok {
				continue
			}
			resp.Visited = append(resp.Visited, VisitedNode{NodeID: n.ID, Name: n.Name, Points: n.Points})
		}
		for nodeID, deducted := range team.HintsUsed {
			h := HintInfo{NodeID: nodeID, PointsDeducted: deducted}
			if n, ok := graph.NodeByID(nodeID); ok {
				h.Hint = n.Hint
			}
			resp.Hints = append(resp.Hints, h)
		}

		if team.FinishedAt == nil && game.Status == qrhunt.StatusActive {
			if next, ok := currentClue(game.Mode, graph, team); ok {
				resp.CurrentClue = clueOf(next)
			} else {
				resp.Exhausted = true
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
