package server

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/NunoTek/QR-Hunt-sub000/internal/qrhunt"
)

type AdminNodeRequest struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Clue     string `json:"clue"`
	Hint     string `json:"hint"`
	Password string `json:"password"`
	Points   int    `json:"points"`
	IsStart  bool   `json:"isStart"`
	IsEnd    bool   `json:"isEnd"`
}

type AdminEdgeRequest struct {
	FromKey string `json:"fromKey"`
	ToKey   string `json:"toKey"`
}

type AdminTeamRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type AdminGameRequest struct {
	Slug        string             `json:"slug"`
	Name        string             `json:"name"`
	Mode        string             `json:"mode"`
	RankingMode string             `json:"rankingMode"`
	HintCost    float64            `json:"hintCost"`
	Nodes       []AdminNodeRequest `json:"nodes"`
	Edges       []AdminEdgeRequest `json:"edges"`
	Teams       []AdminTeamRequest `json:"teams"`
}

type AdminGameSummary struct {
	ID        string `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Mode      string `json:"mode"`
	TeamCount int    `json:"teamCount"`
	CreatedAt string `json:"createdAt"`
}

type AdminNodeItem struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Clue        string `json:"clue"`
	Hint        string `json:"hint"`
	HasPassword bool   `json:"hasPassword"`
	Points      int    `json:"points"`
	IsStart     bool   `json:"isStart"`
	IsEnd       bool   `json:"isEnd"`
	Activated   bool   `json:"activated"`
}

type AdminTeamItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	TotalPoints int    `json:"totalPoints"`
	Finished    bool   `json:"finished"`
	Winner      bool   `json:"winner"`
}

type AdminGameDetail struct {
	ID          string          `json:"id"`
	Slug        string          `json:"slug"`
	Name        string          `json:"name"`
	Status      string          `json:"status"`
	Mode        string          `json:"mode"`
	RankingMode string          `json:"rankingMode"`
	HintCost    float64         `json:"hintCost"`
	Nodes       []AdminNodeItem `json:"nodes"`
	Teams       []AdminTeamItem `json:"teams"`
	CreatedAt   string          `json:"createdAt"`
}

type AdminStatusRequest struct {
	Status string `json:"status"`
}

type AdminActivatedRequest struct {
	Activated bool `json:"activated"`
}

func validModes(mode, ranking string) bool {
	switch qrhunt.GameMode(mode) {
	case qrhunt.ModeLinear, qrhunt.ModeRandom, qrhunt.ModeCollectAll:
	default:
		return false
	}
	switch qrhunt.RankingMode(ranking) {
	case qrhunt.RankPoints, qrhunt.RankNodes, qrhunt.RankTime:
	default:
		return false
	}
	return true
}

func handleAdminListGames(db *sql.DB, store *SQLiteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := adminFromRequest(r, db); err != nil {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		games, err := store.ListGames(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, games)
	}
}

func handleAdminCreateGame(db *sql.DB, store *SQLiteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := adminFromRequest(r, db); err != nil {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		var req AdminGameRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.Slug = strings.TrimSpace(req.Slug)
		req.Name = strings.TrimSpace(req.Name)
		if req.Slug == "" || req.Name == "" {
			writeError(w, http.StatusBadRequest, "slug and name are required")
			return
		}
		if !validModes(req.Mode, req.RankingMode) {
			writeError(w, http.StatusBadRequest, "invalid mode or rankingMode")
			return
		}
		if req.HintCost < 0 || req.HintCost > 1 {
			writeError(w, http.StatusBadRequest, "hintCost must be between 0 and 1")
			return
		}
		if len(req.Nodes) == 0 {
			writeError(w, http.StatusBadRequest, "at least one node is required")
			return
		}
		hasStart := false
		for _, n := range req.Nodes {
			if strings.TrimSpace(n.Key) == "" {
				writeError(w, http.StatusBadRequest, "every node needs a key")
				return
			}
			if n.IsStart {
				hasStart = true
			}
		}
		if !hasStart {
			writeError(w, http.StatusBadRequest, "at least one start node is required")
			return
		}
		for _, t := range req.Teams {
			if strings.TrimSpace(t.Code) == "" {
				writeError(w, http.StatusBadRequest, "every team needs a code")
				return
			}
		}

		detail, err := store.CreateGame(r.Context(), req)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusCreated, detail)
	}
}

func handleAdminGetGame(db *sql.DB, store *SQLiteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := adminFromRequest(r, db); err != nil {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		detail, err := store.GetGameDetail(r.Context(), chi.URLParam(r, "gameID"))
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

func handleAdminSetGameStatus(db *sql.DB, store *SQLiteStore, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := adminFromRequest(r, db); err != nil {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		var req AdminStatusRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		status := qrhunt.GameStatus(req.Status)
		switch status {
		case qrhunt.StatusDraft, qrhunt.StatusActive, qrhunt.StatusCompleted:
		default:
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}

		gameID := chi.URLParam(r, "gameID")
		if err := store.SetGameStatus(r.Context(), gameID, status); err != nil {
			if errors.Is(err, ErrNotFound) {
				writeError(w, http.StatusNotFound, "game not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		// A reset or freeze invalidates whatever clients have cached.
		broker.Publish(gameID, Event{Type: EventStandingsChanged, GameID: gameID})

		w.WriteHeader(http.StatusNoContent)
	}
}

func handleAdminSetNodeActivated(db *sql.DB, store *SQLiteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := adminFromRequest(r, db); err != nil {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		var req AdminActivatedRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		err := store.SetNodeActivated(r.Context(), chi.URLParam(r, "nodeID"), req.Activated)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "node not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
