package server

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix = "presence:"

	// A team is connected while its latest heartbeat is younger than this.
	presenceTimeout = 15 * time.Second

	presenceSweepInterval = 5 * time.Second
)

// Presence tracks per-team heartbeats in Redis and emits presence-changed
// events on connect/disconnect transitions — once per crossing, not once
// per missed heartbeat. The sweep never touches game progress.
type Presence struct {
	rdb    *redis.Client
	broker *Broker
	logger *slog.Logger

	mu        sync.Mutex
	connected map[string]map[string]bool // game ID -> team ID -> last known state

	now func() time.Time
}

func NewPresence(rdb *redis.Client, broker *Broker, logger *slog.Logger) *Presence {
	return &Presence{
		rdb:       rdb,
		broker:    broker,
		logger:    logger,
		connected: make(map[string]map[string]bool),
		now:       time.Now,
	}
}

// Heartbeat records a team's heartbeat and emits an online transition if
// the team was previously considered disconnected.
func (p *Presence) Heartbeat(ctx context.Context, gameID, teamID string) error {
	ms := p.now().UnixMilli()
	if err := p.rdb.HSet(ctx, presenceKeyPrefix+gameID, teamID, ms).Err(); err != nil {
		return fmt.Errorf("recording heartbeat: %w", err)
	}
	p.transition(gameID, teamID, true)
	return nil
}

// Connected returns the current per-team connection state for a game.
func (p *Presence) Connected(ctx context.Context, gameID string) (map[string]bool, error) {
	beats, err := p.rdb.HGetAll(ctx, presenceKeyPrefix+gameID).Result()
	if err != nil {
		return nil, fmt.Errorf("reading heartbeats: %w", err)
	}
	cutoff := p.now().Add(-presenceTimeout).UnixMilli()
	state := make(map[string]bool, len(beats))
	for teamID, raw := range beats {
		ms, err := strconv.ParseInt(raw, 10, 64)
		state[teamID] = err == nil && ms >= cutoff
	}
	return state, nil
}

// Run sweeps heartbeat state until ctx is cancelled, emitting offline
// transitions for teams whose heartbeats have gone stale.
func (p *Presence) Run(ctx context.Context) error {
	ticker := time.NewTicker(presenceSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *Presence) sweep(ctx context.Context) {
	p.mu.Lock()
	games := make([]string, 0, len(p.connected))
	for gameID := range p.connected {
		games = append(games, gameID)
	}
	p.mu.Unlock()

	for _, gameID := range games {
		state, err := p.Connected(ctx, gameID)
		if err != nil {
			p.logger.Error("presence sweep failed", "game_id", gameID, "error", err)
			continue
		}
		for teamID, online := range state {
			p.transition(gameID, teamID, online)
		}
	}
}

// transition updates the last known state and publishes an event only when
// the state actually flips.
func (p *Presence) transition(gameID, teamID string, online bool) {
	p.mu.Lock()
	teams := p.connected[gameID]
	if teams == nil {
		teams = make(map[string]bool)
		p.connected[gameID] = teams
	}
	prev, known := teams[teamID]
	teams[teamID] = online
	p.mu.Unlock()

	if known && prev == online {
		return
	}
	if !known && !online {
		return
	}
	p.broker.Publish(gameID, Event{Type: EventPresenceChanged, GameID: gameID, Payload: PresenceEvent{
		TeamID:    teamID,
		Connected: online,
	}})
}
