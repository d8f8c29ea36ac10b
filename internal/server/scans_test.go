package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/NunoTek/QR-Hunt-sub000/internal/database"
	"github.com/NunoTek/QR-Hunt-sub000/internal/migrations"
	"github.com/NunoTek/QR-Hunt-sub000/internal/qrhunt"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// A single connection keeps every caller on the same in-memory database.
	db.SetMaxOpenConns(1)

	if err := migrations.Run(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func defaultGameRequest(mode qrhunt.GameMode, teams ...AdminTeamRequest) AdminGameRequest {
	if len(teams) == 0 {
		teams = []AdminTeamRequest{
			{Name: "Foxes", Code: "foxes-1"},
			{Name: "Owls", Code: "owls-1"},
		}
	}
	return AdminGameRequest{
		Slug:        "test-hunt",
		Name:        "Test Hunt",
		Mode:        string(mode),
		RankingMode: string(qrhunt.RankPoints),
		HintCost:    0.5,
		Nodes: []AdminNodeRequest{
			{Key: "QR-A", Name: "Alpha", Clue: "First clue", Hint: "Hint A", Points: 100, IsStart: true},
			{Key: "QR-B", Name: "Bravo", Clue: "Second clue", Hint: "Hint B", Points: 100},
			{Key: "QR-C", Name: "Charlie", Clue: "Last clue", Hint: "Hint C", Points: 100, IsEnd: true},
		},
		Edges: []AdminEdgeRequest{
			{FromKey: "QR-A", ToKey: "QR-B"},
			{FromKey: "QR-B", ToKey: "QR-C"},
		},
		Teams: teams,
	}
}

// createGame creates and activates a game, returning its detail.
func createGame(t *testing.T, store *SQLiteStore, req AdminGameRequest) AdminGameDetail {
	t.Helper()
	ctx := context.Background()

	detail, err := store.CreateGame(ctx, req)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	if err := store.SetGameStatus(ctx, detail.ID, qrhunt.StatusActive); err != nil {
		t.Fatalf("activate game: %v", err)
	}
	detail.Status = string(qrhunt.StatusActive)
	return detail
}

func teamID(t *testing.T, detail AdminGameDetail, name string) string {
	t.Helper()
	for _, team := range detail.Teams {
		if team.Name == name {
			return team.ID
		}
	}
	t.Fatalf("team %q not in game", name)
	return ""
}

func setupGame(t *testing.T, mode qrhunt.GameMode) (*SQLiteStore, *ScanProcessor, AdminGameDetail) {
	t.Helper()
	db := setupDB(t)
	store := NewSQLiteStore(db)
	proc := NewScanProcessor(db, NewBroker())
	detail := createGame(t, store, defaultGameRequest(mode))
	return store, proc, detail
}

func TestApplyScanLinearFlow(t *testing.T) {
	_, proc, detail := setupGame(t, qrhunt.ModeLinear)
	ctx := context.Background()
	foxes := teamID(t, detail, "Foxes")

	res, err := proc.Apply(ctx, foxes, "QR-A", "scan-1", "")
	if err != nil {
		t.Fatalf("scan A: %v", err)
	}
	if res.PointsAwarded != 100 || res.TotalPoints != 100 {
		t.Errorf("expected 100 points, got awarded=%d total=%d", res.PointsAwarded, res.TotalPoints)
	}
	if res.NextClue == nil || res.NextClue.Name != "Bravo" {
		t.Fatalf("expected Bravo as next clue, got %+v", res.NextClue)
	}

	if _, err := proc.Apply(ctx, foxes, "QR-B", "scan-2", ""); err != nil {
		t.Fatalf("scan B: %v", err)
	}

	res, err = proc.Apply(ctx, foxes, "QR-C", "scan-3", "")
	if err != nil {
		t.Fatalf("scan C: %v", err)
	}
	if !res.Finished || !res.Winner {
		t.Errorf("expected finished winner, got finished=%v winner=%v", res.Finished, res.Winner)
	}
	if res.TotalPoints != 300 {
		t.Errorf("expected 300 total points, got %d", res.TotalPoints)
	}
}

func TestApplyScanIdempotent(t *testing.T) {
	store, proc, detail := setupGame(t, qrhunt.ModeLinear)
	ctx := context.Background()
	foxes := teamID(t, detail, "Foxes")

	first, err := proc.Apply(ctx, foxes, "QR-A", "scan-1", "")
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}

	second, err := proc.Apply(ctx, foxes, "QR-A", "scan-1", "")
	if err != nil {
		t.Fatalf("replayed scan: %v", err)
	}
	if !second.Duplicate {
		t.Error("expected duplicate result on replay")
	}
	if second.PointsAwarded != first.PointsAwarded {
		t.Errorf("replay changed award: %d vs %d", second.PointsAwarded, first.PointsAwarded)
	}
	if second.TotalPoints != first.TotalPoints {
		t.Errorf("replay changed total: %d vs %d", second.TotalPoints, first.TotalPoints)
	}

	team, err := store.Team(ctx, foxes)
	if err != nil {
		t.Fatalf("load team: %v", err)
	}
	if team.TotalPoints != 100 {
		t.Errorf("expected single award of 100, got %d", team.TotalPoints)
	}
	if len(team.Visited) != 1 {
		t.Errorf("expected one visit, got %d", len(team.Visited))
	}
}

func TestApplyScanOutOfSequence(t *testing.T) {
	store, proc, detail := setupGame(t, qrhunt.ModeLinear)
	ctx := context.Background()
	foxes := teamID(t, detail, "Foxes")

	if _, err := proc.Apply(ctx, foxes, "QR-A", "scan-1", ""); err != nil {
		t.Fatalf("scan A: %v", err)
	}

	_, err := proc.Apply(ctx, foxes, "QR-C", "scan-2", "")
	if !errors.Is(err, qrhunt.ErrOutOfSequence) {
		t.Fatalf("expected ErrOutOfSequence, got %v", err)
	}

	// Rejection must leave no state change.
	team, err := store.Team(ctx, foxes)
	if err != nil {
		t.Fatalf("load team: %v", err)
	}
	if len(team.Visited) != 1 || team.TotalPoints != 100 {
		t.Errorf("rejected scan mutated state: visits=%d points=%d", len(team.Visited), team.TotalPoints)
	}
}

func TestApplyScanUnknownAndInactiveNode(t *testing.T) {
	store, proc, detail := setupGame(t, qrhunt.ModeRandom)
	ctx := context.Background()
	foxes := teamID(t, detail, "Foxes")

	if _, err := proc.Apply(ctx, foxes, "QR-NOPE", "scan-1", ""); !errors.Is(err, qrhunt.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}

	var nodeID string
	for _, n := range detail.Nodes {
		if n.Key == "QR-A" {
			nodeID = n.ID
		}
	}
	if err := store.SetNodeActivated(ctx, nodeID, false); err != nil {
		t.Fatalf("deactivate node: %v", err)
	}
	if _, err := proc.Apply(ctx, foxes, "QR-A", "scan-2", ""); !errors.Is(err, qrhunt.ErrNodeNotActivated) {
		t.Fatalf("expected ErrNodeNotActivated, got %v", err)
	}
}

func TestApplyScanRandomEndsEarly(t *testing.T) {
	// In random mode an end-node scan finishes the hunt even with nodes
	// left unvisited.
	_, proc, detail := setupGame(t, qrhunt.ModeRandom)
	ctx := context.Background()
	foxes := teamID(t, detail, "Foxes")
	owls := teamID(t, detail, "Owls")

	if _, err := proc.Apply(ctx, foxes, "QR-A", "f-1", ""); err != nil {
		t.Fatalf("scan A: %v", err)
	}
	res, err := proc.Apply(ctx, foxes, "QR-C", "f-2", "")
	if err != nil {
		t.Fatalf("scan C: %v", err)
	}
	if !res.Finished || !res.Winner || res.TotalPoints != 200 {
		t.Fatalf("expected winning finish at 200 points, got %+v", res)
	}

	// The second team finishes without the win.
	if _, err := proc.Apply(ctx, owls, "QR-A", "o-1", ""); err != nil {
		t.Fatalf("owls scan A: %v", err)
	}
	res, err = proc.Apply(ctx, owls, "QR-C", "o-2", "")
	if err != nil {
		t.Fatalf("owls scan C: %v", err)
	}
	if !res.Finished || res.Winner {
		t.Errorf("expected non-winning finish, got finished=%v winner=%v", res.Finished, res.Winner)
	}
}

func TestApplyScanCollectAllRequiresCoverage(t *testing.T) {
	_, proc, detail := setupGame(t, qrhunt.ModeCollectAll)
	ctx := context.Background()
	foxes := teamID(t, detail, "Foxes")

	if _, err := proc.Apply(ctx, foxes, "QR-A", "scan-1", ""); err != nil {
		t.Fatalf("scan A: %v", err)
	}
	if _, err := proc.Apply(ctx, foxes, "QR-C", "scan-2", ""); !errors.Is(err, qrhunt.ErrOutOfSequence) {
		t.Fatalf("expected end node rejected before coverage, got %v", err)
	}
	if _, err := proc.Apply(ctx, foxes, "QR-B", "scan-3", ""); err != nil {
		t.Fatalf("scan B: %v", err)
	}
	res, err := proc.Apply(ctx, foxes, "QR-C", "scan-4", "")
	if err != nil {
		t.Fatalf("scan C after coverage: %v", err)
	}
	if !res.Finished {
		t.Error("expected finish once all non-end nodes were visited")
	}
}

func TestExactlyOneWinner(t *testing.T) {
	db := setupDB(t)
	store := NewSQLiteStore(db)
	proc := NewScanProcessor(db, NewBroker())

	req := defaultGameRequest(qrhunt.ModeRandom,
		AdminTeamRequest{Name: "T1", Code: "t1"},
		AdminTeamRequest{Name: "T2", Code: "t2"},
		AdminTeamRequest{Name: "T3", Code: "t3"},
		AdminTeamRequest{Name: "T4", Code: "t4"},
	)
	detail := createGame(t, store, req)
	ctx := context.Background()

	for _, team := range detail.Teams {
		if _, err := proc.Apply(ctx, team.ID, "QR-A", team.ID+"-start", ""); err != nil {
			t.Fatalf("start scan for %s: %v", team.Name, err)
		}
	}

	// All four teams race to the finish concurrently.
	var wg sync.WaitGroup
	results := make([]ScanResult, len(detail.Teams))
	for i, team := range detail.Teams {
		wg.Add(1)
		go func(i int, teamID string) {
			defer wg.Done()
			res, err := proc.Apply(ctx, teamID, "QR-C", teamID+"-finish", "")
			if err != nil {
				t.Errorf("finish scan: %v", err)
				return
			}
			results[i] = res
		}(i, team.ID)
	}
	wg.Wait()

	winners := 0
	for _, res := range results {
		if !res.Finished {
			t.Error("every team should have finished")
		}
		if res.Winner {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestHintIdempotent(t *testing.T) {
	store, proc, detail := setupGame(t, qrhunt.ModeLinear)
	ctx := context.Background()
	foxes := teamID(t, detail, "Foxes")

	if _, err := proc.Apply(ctx, foxes, "QR-A", "scan-1", ""); err != nil {
		t.Fatalf("scan A: %v", err)
	}

	var bravoID string
	for _, n := range detail.Nodes {
		if n.Key == "QR-B" {
			bravoID = n.ID
		}
	}

	first, err := proc.Hint(ctx, foxes, bravoID)
	if err != nil {
		t.Fatalf("first hint: %v", err)
	}
	if first.Hint != "Hint B" {
		t.Errorf("expected hint text, got %q", first.Hint)
	}
	if first.PointsDeducted != 50 {
		t.Errorf("expected ceil(100*0.5)=50 deducted, got %d", first.PointsDeducted)
	}
	if first.TotalPoints != 50 {
		t.Errorf("expected 50 points after deduction, got %d", first.TotalPoints)
	}

	second, err := proc.Hint(ctx, foxes, bravoID)
	if err != nil {
		t.Fatalf("second hint: %v", err)
	}
	if !second.AlreadyUsed {
		t.Error("expected AlreadyUsed on repeat request")
	}
	if second.TotalPoints != 50 {
		t.Errorf("repeat hint deducted again: %d", second.TotalPoints)
	}

	team, err := store.Team(ctx, foxes)
	if err != nil {
		t.Fatalf("load team: %v", err)
	}
	if len(team.HintsUsed) != 1 {
		t.Errorf("expected one recorded hint, got %d", len(team.HintsUsed))
	}
	if team.TotalPoints != 50 {
		t.Errorf("expected 50 points, got %d", team.TotalPoints)
	}
}

func TestHintRejectedForNonCandidate(t *testing.T) {
	_, proc, detail := setupGame(t, qrhunt.ModeLinear)
	ctx := context.Background()
	foxes := teamID(t, detail, "Foxes")

	var charlieID string
	for _, n := range detail.Nodes {
		if n.Key == "QR-C" {
			charlieID = n.ID
		}
	}

	// Fresh team in linear mode: only the start node is a candidate.
	if _, err := proc.Hint(ctx, foxes, charlieID); !errors.Is(err, qrhunt.ErrOutOfSequence) {
		t.Fatalf("expected ErrOutOfSequence, got %v", err)
	}
}

func TestScanRejectedWhenGameNotActive(t *testing.T) {
	store, proc, detail := setupGame(t, qrhunt.ModeLinear)
	ctx := context.Background()
	foxes := teamID(t, detail, "Foxes")

	if err := store.SetGameStatus(ctx, detail.ID, qrhunt.StatusCompleted); err != nil {
		t.Fatalf("complete game: %v", err)
	}
	if _, err := proc.Apply(ctx, foxes, "QR-A", "scan-1", ""); !errors.Is(err, qrhunt.ErrGameNotActive) {
		t.Fatalf("expected ErrGameNotActive, got %v", err)
	}
}

func TestDuplicateScanSurvivesCompletion(t *testing.T) {
	store, proc, detail := setupGame(t, qrhunt.ModeLinear)
	ctx := context.Background()
	foxes := teamID(t, detail, "Foxes")

	first, err := proc.Apply(ctx, foxes, "QR-A", "scan-1", "")
	if err != nil {
		t.Fatalf("scan A: %v", err)
	}
	if err := store.SetGameStatus(ctx, detail.ID, qrhunt.StatusCompleted); err != nil {
		t.Fatalf("complete game: %v", err)
	}

	// The recorded result still comes back after the game is frozen.
	replay, err := proc.Apply(ctx, foxes, "QR-A", "scan-1", "")
	if err != nil {
		t.Fatalf("replay after completion: %v", err)
	}
	if !replay.Duplicate || replay.PointsAwarded != first.PointsAwarded {
		t.Errorf("expected original result on replay, got %+v", replay)
	}
}

func TestScanPassword(t *testing.T) {
	db := setupDB(t)
	store := NewSQLiteStore(db)
	proc := NewScanProcessor(db, NewBroker())

	req := defaultGameRequest(qrhunt.ModeLinear)
	req.Nodes[1].Password = "sesame"
	detail := createGame(t, store, req)
	ctx := context.Background()
	foxes := teamID(t, detail, "Foxes")

	if _, err := proc.Apply(ctx, foxes, "QR-A", "scan-1", ""); err != nil {
		t.Fatalf("scan A: %v", err)
	}

	if _, err := proc.Apply(ctx, foxes, "QR-B", "scan-2", ""); !errors.Is(err, qrhunt.ErrPasswordRequired) {
		t.Fatalf("expected ErrPasswordRequired, got %v", err)
	}
	if _, err := proc.Apply(ctx, foxes, "QR-B", "scan-2", "open"); !errors.Is(err, qrhunt.ErrPasswordIncorrect) {
		t.Fatalf("expected ErrPasswordIncorrect, got %v", err)
	}
	if _, err := proc.Apply(ctx, foxes, "QR-B", "scan-2", "sesame"); err != nil {
		t.Fatalf("expected success with password, got %v", err)
	}
}

func TestShuffle(t *testing.T) {
	store, proc, detail := setupGame(t, qrhunt.ModeRandom)
	ctx := context.Background()
	foxes := teamID(t, detail, "Foxes")

	if err := proc.EnsureOffer(ctx, foxes); err != nil {
		t.Fatalf("ensure offer: %v", err)
	}
	team, err := store.Team(ctx, foxes)
	if err != nil {
		t.Fatalf("load team: %v", err)
	}
	offered := team.OfferedNodeID
	if offered == "" {
		t.Fatal("expected an initial offer")
	}

	// With three candidates the re-draw must land elsewhere.
	clue, err := proc.Shuffle(ctx, foxes)
	if err != nil {
		t.Fatalf("shuffle: %v", err)
	}
	if clue.NodeID == offered {
		t.Error("shuffle re-offered the same clue")
	}
}

func TestShuffleLinearRejected(t *testing.T) {
	_, proc, detail := setupGame(t, qrhunt.ModeLinear)
	ctx := context.Background()

	if _, err := proc.Shuffle(ctx, teamID(t, detail, "Foxes")); !errors.Is(err, errShuffleMode) {
		t.Fatalf("expected errShuffleMode, got %v", err)
	}
}

func TestScanPublishesEventsAfterCommit(t *testing.T) {
	db := setupDB(t)
	store := NewSQLiteStore(db)
	broker := NewBroker()
	proc := NewScanProcessor(db, broker)
	detail := createGame(t, store, defaultGameRequest(qrhunt.ModeRandom))
	ctx := context.Background()
	foxes := teamID(t, detail, "Foxes")

	ch := broker.Subscribe(detail.ID)
	defer broker.Unsubscribe(detail.ID, ch)

	if _, err := proc.Apply(ctx, foxes, "QR-A", "scan-1", ""); err != nil {
		t.Fatalf("scan A: %v", err)
	}

	types := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case data := <-ch:
			var ev Event
			if err := json.Unmarshal(data, &ev); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			types[ev.Type] = true
		default:
			t.Fatal("expected buffered events after scan")
		}
	}
	if !types[EventProgressChanged] || !types[EventStandingsChanged] {
		t.Errorf("expected progress and standings events, got %v", types)
	}
}
