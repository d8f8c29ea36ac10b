package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/NunoTek/QR-Hunt-sub000/internal/qrhunt"
)

func (s *SQLiteStore) ListGames(ctx context.Context) ([]AdminGameSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.slug, g.name, g.status, g.mode,
			(SELECT COUNT(*) FROM teams t WHERE t.game_id = g.id),
			g.created_at
		FROM games g
		ORDER BY g.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	games := []AdminGameSummary{}
	for rows.Next() {
		var g AdminGameSummary
		if err := rows.Scan(&g.ID, &g.Slug, &g.Name, &g.Status, &g.Mode, &g.TeamCount, &g.CreatedAt); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// CreateGame inserts a game with its nodes, edges, and teams in one
// transaction. Edges reference nodes by key and are resolved here.
func (s *SQLiteStore) CreateGame(ctx context.Context, req AdminGameRequest) (AdminGameDetail, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return AdminGameDetail{}, err
	}
	defer tx.Rollback()

	gameID := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO games (id, slug, name, status, mode, ranking_mode, hint_cost)
		VALUES (?, ?, ?, 'draft', ?, ?, ?)
	`, gameID, req.Slug, req.Name, req.Mode, req.RankingMode, req.HintCost); err != nil {
		return AdminGameDetail{}, fmt.Errorf("inserting game: %w", err)
	}

	nodeIDByKey := make(map[string]string, len(req.Nodes))
	for _, n := range req.Nodes {
		id := uuid.NewString()
		nodeIDByKey[n.Key] = id
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO nodes (id, game_id, key, name, clue, hint, password, points, is_start, is_end, activated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		`, id, gameID, n.Key, n.Name, n.Clue, n.Hint, n.Password, n.Points, n.IsStart, n.IsEnd); err != nil {
			return AdminGameDetail{}, fmt.Errorf("inserting node %q: %w", n.Key, err)
		}
	}

	for _, e := range req.Edges {
		from, ok := nodeIDByKey[e.FromKey]
		if !ok {
			return AdminGameDetail{}, fmt.Errorf("edge references unknown node key %q", e.FromKey)
		}
		to, ok := nodeIDByKey[e.ToKey]
		if !ok {
			return AdminGameDetail{}, fmt.Errorf("edge references unknown node key %q", e.ToKey)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO edges (game_id, from_node_id, to_node_id) VALUES (?, ?, ?)
		`, gameID, from, to); err != nil {
			return AdminGameDetail{}, fmt.Errorf("inserting edge %s->%s: %w", e.FromKey, e.ToKey, err)
		}
	}

	for _, t := range req.Teams {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO teams (id, game_id, name, code) VALUES (?, ?, ?, ?)
		`, uuid.NewString(), gameID, t.Name, t.Code); err != nil {
			return AdminGameDetail{}, fmt.Errorf("inserting team %q: %w", t.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return AdminGameDetail{}, err
	}
	return s.GetGameDetail(ctx, gameID)
}

func (s *SQLiteStore) GetGameDetail(ctx context.Context, gameID string) (AdminGameDetail, error) {
	var d AdminGameDetail
	err := s.db.QueryRowContext(ctx, `
		SELECT id, slug, name, status, mode, ranking_mode, hint_cost, created_at
		FROM games WHERE id = ?
	`, gameID).Scan(&d.ID, &d.Slug, &d.Name, &d.Status, &d.Mode, &d.RankingMode, &d.HintCost, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}

	nrows, err := s.db.QueryContext(ctx, `
		SELECT id, key, name, clue, hint, password != '', points, is_start, is_end, activated
		FROM nodes WHERE game_id = ? ORDER BY id
	`, gameID)
	if err != nil {
		return d, err
	}
	defer nrows.Close()

	d.Nodes = []AdminNodeItem{}
	for nrows.Next() {
		var n AdminNodeItem
		if err := nrows.Scan(&n.ID, &n.Key, &n.Name, &n.Clue, &n.Hint, &n.HasPassword,
			&n.Points, &n.IsStart, &n.IsEnd, &n.Activated); err != nil {
			return d, err
		}
		d.Nodes = append(d.Nodes, n)
	}
	if err := nrows.Err(); err != nil {
		return d, err
	}

	trows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.code, t.total_points, t.finished_at IS NOT NULL,
			t.id = COALESCE(g.winner_team_id, '')
		FROM teams t
		JOIN games g ON g.id = t.game_id
		WHERE t.game_id = ? ORDER BY t.created_at
	`, gameID)
	if err != nil {
		return d, err
	}
	defer trows.Close()

	d.Teams = []AdminTeamItem{}
	for trows.Next() {
		var t AdminTeamItem
		if err := trows.Scan(&t.ID, &t.Name, &t.Code, &t.TotalPoints, &t.Finished, &t.Winner); err != nil {
			return d, err
		}
		d.Teams = append(d.Teams, t)
	}
	return d, trows.Err()
}

// SetGameStatus applies an organizer status transition. Moving a game back
// to draft is the reset: it purges every team's progress. Moving to
// completed freezes state; the scan processor rejects writes from then on.
func (s *SQLiteStore) SetGameStatus(ctx context.Context, gameID string, status qrhunt.GameStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE games SET status = ? WHERE id = ?`, string(status), gameID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if status == qrhunt.StatusDraft {
		purges := []string{
			`DELETE FROM visits WHERE game_id = ?`,
			`DELETE FROM scan_events WHERE team_id IN (SELECT id FROM teams WHERE game_id = ?)`,
			`DELETE FROM hints WHERE team_id IN (SELECT id FROM teams WHERE game_id = ?)`,
			`UPDATE teams SET total_points = 0, offered_node_id = NULL, finished_at = NULL WHERE game_id = ?`,
			`UPDATE games SET winner_team_id = NULL WHERE id = ?`,
		}
		for _, q := range purges {
			if _, err := tx.ExecContext(ctx, q, gameID); err != nil {
				return fmt.Errorf("purging game state: %w", err)
			}
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) SetNodeActivated(ctx context.Context, nodeID string, activated bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE nodes SET activated = ? WHERE id = ?`, activated, nodeID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
