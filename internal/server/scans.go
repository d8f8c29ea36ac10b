package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NunoTek/QR-Hunt-sub000/internal/qrhunt"
)

var errShuffleMode = errors.New("shuffle only available in random mode")

// ClueInfo is the clue offered to a team as its next target.
type ClueInfo struct {
	NodeID string `json:"nodeId"`
	Name   string `json:"name"`
	Clue   string `json:"clue"`
	Points int    `json:"points"`
}

// ScanResult is the outcome of applying a scan. A Duplicate result carries
// the originally recorded award, never a second one.
type ScanResult struct {
	Duplicate     bool      `json:"duplicate"`
	NodeID        string    `json:"nodeId"`
	NodeName      string    `json:"nodeName"`
	PointsAwarded int       `json:"pointsAwarded"`
	TotalPoints   int       `json:"totalPoints"`
	NodesFound    int       `json:"nodesFound"`
	Finished      bool      `json:"finished"`
	Winner        bool      `json:"winner"`
	NextClue      *ClueInfo `json:"nextClue"`
	Exhausted     bool      `json:"exhausted"`
}

// HintResult is the outcome of a hint request. Repeated requests for the
// same node return the text again without a second deduction.
type HintResult struct {
	NodeID         string `json:"nodeId"`
	Hint           string `json:"hint"`
	PointsDeducted int    `json:"pointsDeducted"`
	AlreadyUsed    bool   `json:"alreadyUsed"`
	TotalPoints    int    `json:"totalPoints"`
}

// ScanProcessor applies scans, hints, and shuffles against team state.
// Every mutation runs in a single SQLite transaction, serialized per team
// by a keyed mutex; the UNIQUE(team_id, client_scan_id) constraint is the
// storage-level second line of defense against duplicate awards. Events
// are published only after the transaction commits.
type ScanProcessor struct {
	db     *sql.DB
	broker *Broker

	locks sync.Map // team ID -> *sync.Mutex

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewScanProcessor(db *sql.DB, broker *Broker) *ScanProcessor {
	return &ScanProcessor{
		db:     db,
		broker: broker,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *ScanProcessor) lockTeam(teamID string) func() {
	mu, _ := p.locks.LoadOrStore(teamID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

func (p *ScanProcessor) drawNext(mode qrhunt.GameMode, graph *qrhunt.Graph, visited []string, exclude string) (qrhunt.Node, bool) {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return qrhunt.NextClue(mode, graph, visited, exclude, p.rng)
}

// Apply validates and applies one scan for a team. Typed rejections come
// back as qrhunt sentinel errors; only storage failures are internal.
func (p *ScanProcessor) Apply(ctx context.Context, teamID, nodeKey, clientScanID, password string) (ScanResult, error) {
	unlock := p.lockTeam(teamID)
	defer unlock()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return ScanResult{}, fmt.Errorf("beginning scan tx: %w", err)
	}
	defer tx.Rollback()

	team, err := loadTeam(ctx, tx, teamID)
	if err != nil {
		return ScanResult{}, err
	}
	game, err := loadGame(ctx, tx, `WHERE id = ?`, team.GameID)
	if err != nil {
		return ScanResult{}, err
	}
	graph, err := loadGraph(ctx, tx, team.GameID)
	if err != nil {
		return ScanResult{}, err
	}

	node, ok := graph.NodeByKey(nodeKey)
	if !ok {
		return ScanResult{}, qrhunt.ErrNodeNotFound
	}
	if !node.Activated {
		return ScanResult{}, qrhunt.ErrNodeNotActivated
	}

	// Idempotency: a replayed clientScanId returns the recorded result and
	// mutates nothing. Checked before the status gates so retries stay safe
	// after the game completes.
	if res, found, err := p.priorResult(ctx, tx, game, graph, team, clientScanID); err != nil {
		return ScanResult{}, err
	} else if found {
		return res, nil
	}

	if game.Status != qrhunt.StatusActive {
		return ScanResult{}, qrhunt.ErrGameNotActive
	}
	if team.FinishedAt != nil {
		return ScanResult{}, qrhunt.ErrTeamFinished
	}

	if !qrhunt.Admissible(game.Mode, graph, team.Visited, node.ID) {
		return ScanResult{}, qrhunt.ErrOutOfSequence
	}

	if node.Password != "" {
		if password == "" {
			return ScanResult{}, qrhunt.ErrPasswordRequired
		}
		if password != node.Password {
			return ScanResult{}, qrhunt.ErrPasswordIncorrect
		}
	}

	// Apply: visit, points, audit record.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO visits (team_id, node_id, game_id, position)
		VALUES (?, ?, ?, ?)
	`, team.ID, node.ID, game.ID, len(team.Visited)+1); err != nil {
		return ScanResult{}, fmt.Errorf("recording visit: %w", err)
	}

	totalPoints := team.TotalPoints + node.Points
	finished := qrhunt.CompletesGame(game.Mode, graph, team.Visited, node)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO scan_events (id, team_id, node_id, client_scan_id, points_awarded, finished)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), team.ID, node.ID, clientScanID, node.Points, finished); err != nil {
		return ScanResult{}, fmt.Errorf("recording scan event: %w", err)
	}

	visited := append(team.Visited, node.ID)

	res := ScanResult{
		NodeID:        node.ID,
		NodeName:      node.Name,
		PointsAwarded: node.Points,
		TotalPoints:   totalPoints,
		NodesFound:    len(visited),
		Finished:      finished,
	}

	var offered string
	if finished {
		if _, err := tx.ExecContext(ctx, `
			UPDATE teams SET total_points = ?, offered_node_id = NULL,
				finished_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
			WHERE id = ?
		`, totalPoints, team.ID); err != nil {
			return ScanResult{}, fmt.Errorf("finishing team: %w", err)
		}

		// Winner compare-and-set: the conditional write succeeds for exactly
		// one team per game, no matter how many finish concurrently.
		won, err := tx.ExecContext(ctx, `
			UPDATE games SET winner_team_id = ? WHERE id = ? AND winner_team_id IS NULL
		`, team.ID, game.ID)
		if err != nil {
			return ScanResult{}, fmt.Errorf("claiming win: %w", err)
		}
		if n, _ := won.RowsAffected(); n == 1 {
			res.Winner = true
		}
	} else {
		next, nextOK := p.drawNext(game.Mode, graph, visited, "")
		if nextOK {
			res.NextClue = clueOf(next)
			if game.Mode != qrhunt.ModeLinear {
				offered = next.ID
			}
		} else {
			res.Exhausted = true
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE teams SET total_points = ?, offered_node_id = NULLIF(?, '')
			WHERE id = ?
		`, totalPoints, offered, team.ID); err != nil {
			return ScanResult{}, fmt.Errorf("updating team: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ScanResult{}, fmt.Errorf("committing scan: %w", err)
	}

	// Publish after commit, never inside the transaction.
	p.broker.Publish(game.ID, Event{Type: EventProgressChanged, GameID: game.ID, Payload: ProgressEvent{
		TeamID:     team.ID,
		TeamName:   team.Name,
		NodeID:     node.ID,
		Points:     totalPoints,
		NodesFound: len(visited),
		Finished:   finished,
	}})
	p.broker.Publish(game.ID, Event{Type: EventStandingsChanged, GameID: game.ID})
	if finished {
		p.broker.Publish(game.ID, Event{Type: EventTeamFinished, GameID: game.ID, Payload: FinishedEvent{
			TeamID:   team.ID,
			TeamName: team.Name,
			Winner:   res.Winner,
		}})
	}

	return res, nil
}

// priorResult rebuilds the response of an already-recorded scan event.
func (p *ScanProcessor) priorResult(ctx context.Context, tx *sql.Tx, game qrhunt.Game, graph *qrhunt.Graph, team qrhunt.Team, clientScanID string) (ScanResult, bool, error) {
	var nodeID string
	var points int
	var finished bool
	err := tx.QueryRowContext(ctx, `
		SELECT node_id, points_awarded, finished
		FROM scan_events
		WHERE team_id = ? AND client_scan_id = ?
	`, team.ID, clientScanID).Scan(&nodeID, &points, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return ScanResult{}, false, nil
	}
	if err != nil {
		return ScanResult{}, false, err
	}

	res := ScanResult{
		Duplicate:     true,
		NodeID:        nodeID,
		PointsAwarded: points,
		TotalPoints:   team.TotalPoints,
		NodesFound:    len(team.Visited),
		Finished:      finished,
		Winner:        finished && team.Winner,
	}
	if n, ok := graph.NodeByID(nodeID); ok {
		res.NodeName = n.Name
	}
	if !finished {
		if next, ok := currentClue(game.Mode, graph, team); ok {
			res.NextClue = clueOf(next)
		} else {
			res.Exhausted = true
		}
	}
	return res, true, nil
}

// Hint reveals a node's hint text, deducting ceil(points * hintCost) from
// the team exactly once per node.
func (p *ScanProcessor) Hint(ctx context.Context, teamID, nodeID string) (HintResult, error) {
	unlock := p.lockTeam(teamID)
	defer unlock()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return HintResult{}, fmt.Errorf("beginning hint tx: %w", err)
	}
	defer tx.Rollback()

	team, err := loadTeam(ctx, tx, teamID)
	if err != nil {
		return HintResult{}, err
	}
	game, err := loadGame(ctx, tx, `WHERE id = ?`, team.GameID)
	if err != nil {
		return HintResult{}, err
	}
	graph, err := loadGraph(ctx, tx, team.GameID)
	if err != nil {
		return HintResult{}, err
	}

	node, ok := graph.NodeByID(nodeID)
	if !ok {
		return HintResult{}, qrhunt.ErrNodeNotFound
	}

	if deducted, used := team.HintsUsed[node.ID]; used {
		return HintResult{
			NodeID:         node.ID,
			Hint:           node.Hint,
			PointsDeducted: deducted,
			AlreadyUsed:    true,
			TotalPoints:    team.TotalPoints,
		}, nil
	}

	if game.Status != qrhunt.StatusActive {
		return HintResult{}, qrhunt.ErrGameNotActive
	}
	if team.FinishedAt != nil {
		return HintResult{}, qrhunt.ErrTeamFinished
	}
	// Hints apply to the node the team is stuck on: anything currently scannable.
	if !qrhunt.Admissible(game.Mode, graph, team.Visited, node.ID) {
		return HintResult{}, qrhunt.ErrOutOfSequence
	}

	deduct := int(math.Ceil(float64(node.Points) * game.HintCost))
	totalPoints := team.TotalPoints - deduct

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO hints (team_id, node_id, points_deducted) VALUES (?, ?, ?)
	`, team.ID, node.ID, deduct); err != nil {
		return HintResult{}, fmt.Errorf("recording hint: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE teams SET total_points = ? WHERE id = ?
	`, totalPoints, team.ID); err != nil {
		return HintResult{}, fmt.Errorf("deducting hint cost: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return HintResult{}, fmt.Errorf("committing hint: %w", err)
	}

	p.broker.Publish(game.ID, Event{Type: EventProgressChanged, GameID: game.ID, Payload: ProgressEvent{
		TeamID:     team.ID,
		TeamName:   team.Name,
		Points:     totalPoints,
		NodesFound: len(team.Visited),
	}})
	p.broker.Publish(game.ID, Event{Type: EventStandingsChanged, GameID: game.ID})

	return HintResult{
		NodeID:         node.ID,
		Hint:           node.Hint,
		PointsDeducted: deduct,
		TotalPoints:    totalPoints,
	}, nil
}

// Shuffle re-draws the offered clue in random mode, excluding the current
// offer so the same clue is never dealt twice in a row.
func (p *ScanProcessor) Shuffle(ctx context.Context, teamID string) (*ClueInfo, error) {
	unlock := p.lockTeam(teamID)
	defer unlock()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning shuffle tx: %w", err)
	}
	defer tx.Rollback()

	team, err := loadTeam(ctx, tx, teamID)
	if err != nil {
		return nil, err
	}
	game, err := loadGame(ctx, tx, `WHERE id = ?`, team.GameID)
	if err != nil {
		return nil, err
	}
	if game.Mode != qrhunt.ModeRandom {
		return nil, errShuffleMode
	}
	if game.Status != qrhunt.StatusActive {
		return nil, qrhunt.ErrGameNotActive
	}
	if team.FinishedAt != nil {
		return nil, qrhunt.ErrTeamFinished
	}

	graph, err := loadGraph(ctx, tx, team.GameID)
	if err != nil {
		return nil, err
	}

	next, ok := p.drawNext(game.Mode, graph, team.Visited, team.OfferedNodeID)
	if !ok {
		return nil, qrhunt.ErrOutOfSequence
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE teams SET offered_node_id = ? WHERE id = ?
	`, next.ID, team.ID); err != nil {
		return nil, fmt.Errorf("storing shuffled offer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing shuffle: %w", err)
	}

	return clueOf(next), nil
}

// EnsureOffer draws and persists an initial clue offer for teams in random
// and collect-all games, so the first progress read has one. No-op when an
// offer already stands or the mode is linear.
func (p *ScanProcessor) EnsureOffer(ctx context.Context, teamID string) error {
	unlock := p.lockTeam(teamID)
	defer unlock()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning offer tx: %w", err)
	}
	defer tx.Rollback()

	team, err := loadTeam(ctx, tx, teamID)
	if err != nil {
		return err
	}
	game, err := loadGame(ctx, tx, `WHERE id = ?`, team.GameID)
	if err != nil {
		return err
	}
	if game.Mode == qrhunt.ModeLinear || team.FinishedAt != nil {
		return nil
	}
	graph, err := loadGraph(ctx, tx, team.GameID)
	if err != nil {
		return err
	}
	for _, n := range qrhunt.CandidateSet(game.Mode, graph, team.Visited) {
		if n.ID == team.OfferedNodeID {
			return nil
		}
	}

	next, ok := p.drawNext(game.Mode, graph, team.Visited, "")
	if !ok {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE teams SET offered_node_id = ? WHERE id = ?
	`, next.ID, team.ID); err != nil {
		return fmt.Errorf("storing offer: %w", err)
	}
	return tx.Commit()
}

// currentClue resolves a team's standing offer without drawing a new one:
// the persisted offer if still valid, the deterministic successor in linear
// mode, else the lowest-ID candidate.
func currentClue(mode qrhunt.GameMode, graph *qrhunt.Graph, team qrhunt.Team) (qrhunt.Node, bool) {
	cands := qrhunt.CandidateSet(mode, graph, team.Visited)
	if len(cands) == 0 {
		return qrhunt.Node{}, false
	}
	if mode != qrhunt.ModeLinear && team.OfferedNodeID != "" {
		for _, n := range cands {
			if n.ID == team.OfferedNodeID {
				return n, true
			}
		}
	}
	return cands[0], true
}

func clueOf(n qrhunt.Node) *ClueInfo {
	return &ClueInfo{NodeID: n.ID, Name: n.Name, Clue: n.Clue, Points: n.Points}
}
