package server

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/NunoTek/QR-Hunt-sub000/internal/qrhunt"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx, so the loaders below
// serve the read handlers and the scan transaction from the same queries.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) TeamFromToken(ctx context.Context, token string) (teamSession, error) {
	var sess teamSession
	err := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.game_id
		FROM team_sessions s
		JOIN teams t ON t.id = s.team_id
		WHERE s.id = ?
	`, token).Scan(&sess.TeamID, &sess.GameID)
	if errors.Is(err, sql.ErrNoRows) {
		return sess, errNoSession
	}
	return sess, err
}

func (s *SQLiteStore) TeamLookup(ctx context.Context, code string) (TeamLookupResponse, error) {
	var resp TeamLookupResponse
	err := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.name, g.name, g.slug
		FROM teams t
		JOIN games g ON g.id = t.game_id
		WHERE t.code = ? AND g.status = 'active'
	`, code).Scan(&resp.ID, &resp.Name, &resp.GameName, &resp.GameSlug)
	if errors.Is(err, sql.ErrNoRows) {
		return resp, ErrNotFound
	}
	return resp, err
}

func (s *SQLiteStore) JoinTeam(ctx context.Context, teamID string) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO team_sessions (team_id)
		VALUES (?)
		RETURNING id
	`, teamID).Scan(&token)
	return token, err
}

func (s *SQLiteStore) Game(ctx context.Context, gameID string) (qrhunt.Game, error) {
	return loadGame(ctx, s.db, `WHERE id = ?`, gameID)
}

func (s *SQLiteStore) GameBySlug(ctx context.Context, slug string) (qrhunt.Game, error) {
	return loadGame(ctx, s.db, `WHERE slug = ?`, slug)
}

func (s *SQLiteStore) Graph(ctx context.Context, gameID string) (*qrhunt.Graph, error) {
	return loadGraph(ctx, s.db, gameID)
}

func (s *SQLiteStore) Team(ctx context.Context, teamID string) (qrhunt.Team, error) {
	return loadTeam(ctx, s.db, teamID)
}

func (s *SQLiteStore) TeamsByGame(ctx context.Context, gameID string) ([]qrhunt.Team, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM teams WHERE game_id = ? ORDER BY id
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	teams := make([]qrhunt.Team, 0, len(ids))
	for _, id := range ids {
		t, err := loadTeam(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, nil
}

func loadGame(ctx context.Context, q querier, where string, arg any) (qrhunt.Game, error) {
	var g qrhunt.Game
	var winner sql.NullString
	var createdAt string
	err := q.QueryRowContext(ctx, `
		SELECT id, slug, name, status, mode, ranking_mode, hint_cost, winner_team_id, created_at
		FROM games `+where, arg).Scan(
		&g.ID, &g.Slug, &g.Name, (*string)(&g.Status), (*string)(&g.Mode),
		(*string)(&g.RankingMode), &g.HintCost, &winner, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return g, ErrNotFound
	}
	if err != nil {
		return g, err
	}
	g.WinnerTeamID = winner.String
	if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
		g.CreatedAt = t
	}
	return g, nil
}

func loadGraph(ctx context.Context, q querier, gameID string) (*qrhunt.Graph, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, game_id, key, name, clue, hint, password, points, is_start, is_end, activated
		FROM nodes WHERE game_id = ?
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []qrhunt.Node
	for rows.Next() {
		var n qrhunt.Node
		if err := rows.Scan(&n.ID, &n.GameID, &n.Key, &n.Name, &n.Clue, &n.Hint,
			&n.Password, &n.Points, &n.IsStart, &n.IsEnd, &n.Activated); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	erows, err := q.QueryContext(ctx, `
		SELECT game_id, from_node_id, to_node_id FROM edges WHERE game_id = ?
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer erows.Close()

	var edges []qrhunt.Edge
	for erows.Next() {
		var e qrhunt.Edge
		if err := erows.Scan(&e.GameID, &e.FromNodeID, &e.ToNodeID); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	if err := erows.Err(); err != nil {
		return nil, err
	}

	return qrhunt.NewGraph(nodes, edges), nil
}

func loadTeam(ctx context.Context, q querier, teamID string) (qrhunt.Team, error) {
	var t qrhunt.Team
	var offered, finished sql.NullString
	var winner bool
	err := q.QueryRowContext(ctx, `
		SELECT t.id, t.game_id, t.name, t.code, t.total_points, t.offered_node_id,
			t.finished_at, t.id = COALESCE(g.winner_team_id, '')
		FROM teams t
		JOIN games g ON g.id = t.game_id
		WHERE t.id = ?
	`, teamID).Scan(&t.ID, &t.GameID, &t.Name, &t.Code, &t.TotalPoints,
		&offered, &finished, &winner)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.OfferedNodeID = offered.String
	t.Winner = winner
	if finished.Valid {
		if ts, perr := time.Parse(time.RFC3339Nano, finished.String); perr == nil {
			t.FinishedAt = &ts
		}
	}

	t.Visited, err = loadVisits(ctx, q, teamID)
	if err != nil {
		return t, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT node_id, points_deducted FROM hints WHERE team_id = ?
	`, teamID)
	if err != nil {
		return t, err
	}
	defer rows.Close()

	t.HintsUsed = make(map[string]int)
	for rows.Next() {
		var nodeID string
		var deducted int
		if err := rows.Scan(&nodeID, &deducted); err != nil {
			return t, err
		}
		t.HintsUsed[nodeID] = deducted
	}
	return t, rows.Err()
}

func loadVisits(ctx context.Context, q querier, teamID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT node_id FROM visits WHERE team_id = ? ORDER BY position
	`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visited []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		visited = append(visited, id)
	}
	return visited, rows.Err()
}
