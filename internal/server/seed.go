package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/NunoTek/QR-Hunt-sub000/internal/qrhunt"
)

// SeedAdmin creates the organizer account if no admins exist yet.
func SeedAdmin(ctx context.Context, db *sql.DB, email, password string) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing admin password: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO admins (id, email, password_hash) VALUES (?, ?, ?)
	`, uuid.NewString(), email, string(hash))
	return err
}

// SeedDemo creates a demo hunt with two teams if no games exist.
// Idempotent: does nothing otherwise.
func SeedDemo(ctx context.Context, logger *slog.Logger, store *SQLiteStore) error {
	games, err := store.ListGames(ctx)
	if err != nil {
		return err
	}
	if len(games) > 0 {
		return nil
	}

	detail, err := store.CreateGame(ctx, AdminGameRequest{
		Slug:        "demo-hunt",
		Name:        "Old Town Demo Hunt",
		Mode:        string(qrhunt.ModeRandom),
		RankingMode: string(qrhunt.RankPoints),
		HintCost:    0.5,
		Nodes: []AdminNodeRequest{
			{Key: "QR-FOUNTAIN", Name: "Market Fountain", Clue: "Where the water dances on the hour.", Hint: "Look at the square's center.", Points: 100, IsStart: true},
			{Key: "QR-CLOCKTOWER", Name: "Clock Tower", Clue: "Count the bells above the old gate.", Hint: "The tallest thing in sight.", Points: 100},
			{Key: "QR-HARBOR", Name: "Harbor Steps", Clue: "Where the ships come home.", Hint: "Follow the gulls downhill.", Points: 100, IsEnd: true},
		},
		Edges: []AdminEdgeRequest{
			{FromKey: "QR-FOUNTAIN", ToKey: "QR-CLOCKTOWER"},
			{FromKey: "QR-CLOCKTOWER", ToKey: "QR-HARBOR"},
		},
		Teams: []AdminTeamRequest{
			{Name: "Foxes", Code: "foxes-2025"},
			{Name: "Owls", Code: "owls-2025"},
		},
	})
	if err != nil {
		return err
	}
	if err := store.SetGameStatus(ctx, detail.ID, qrhunt.StatusActive); err != nil {
		return err
	}

	logger.Info("demo hunt seeded", "slug", "demo-hunt")
	return nil
}
