package server

import (
	"context"
	"errors"

	"github.com/NunoTek/QR-Hunt-sub000/internal/qrhunt"
)

var ErrNotFound = errors.New("not found")

// teamSession is the resolved identity behind a player bearer token.
type teamSession struct {
	TeamID string
	GameID string
}

// Store is the read path consumed by the player handlers. All mutation of
// team progress goes through the ScanProcessor instead.
type Store interface {
	TeamFromToken(ctx context.Context, token string) (teamSession, error)
	TeamLookup(ctx context.Context, code string) (TeamLookupResponse, error)
	JoinTeam(ctx context.Context, teamID string) (token string, err error)

	Game(ctx context.Context, gameID string) (qrhunt.Game, error)
	GameBySlug(ctx context.Context, slug string) (qrhunt.Game, error)
	Graph(ctx context.Context, gameID string) (*qrhunt.Graph, error)
	Team(ctx context.Context, teamID string) (qrhunt.Team, error)
	TeamsByGame(ctx context.Context, gameID string) ([]qrhunt.Team, error)
}
