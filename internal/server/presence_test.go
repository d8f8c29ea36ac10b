package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type presenceSuite struct {
	suite.Suite

	mr       *miniredis.Miniredis
	rdb      *redis.Client
	broker   *Broker
	presence *Presence

	clock time.Time
}

func TestPresenceSuite(t *testing.T) {
	suite.Run(t, new(presenceSuite))
}

func (s *presenceSuite) SetupTest() {
	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr

	s.rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s.broker = NewBroker()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.presence = NewPresence(s.rdb, s.broker, logger)

	s.clock = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	s.presence.now = func() time.Time { return s.clock }
}

func (s *presenceSuite) TearDownTest() {
	s.rdb.Close()
	s.mr.Close()
}

func (s *presenceSuite) drain(ch chan []byte) []Event {
	var events []Event
	for {
		select {
		case data := <-ch:
			var ev Event
			s.Require().NoError(json.Unmarshal(data, &ev))
			events = append(events, ev)
		default:
			return events
		}
	}
}

func (s *presenceSuite) TestHeartbeatMarksConnected() {
	ctx := context.Background()

	s.Require().NoError(s.presence.Heartbeat(ctx, "game-1", "team-1"))

	state, err := s.presence.Connected(ctx, "game-1")
	s.Require().NoError(err)
	s.True(state["team-1"])
}

func (s *presenceSuite) TestHeartbeatExpires() {
	ctx := context.Background()

	s.Require().NoError(s.presence.Heartbeat(ctx, "game-1", "team-1"))

	s.clock = s.clock.Add(presenceTimeout + time.Second)

	state, err := s.presence.Connected(ctx, "game-1")
	s.Require().NoError(err)
	s.False(state["team-1"])
}

func (s *presenceSuite) TestTransitionsPublishedOncePerFlip() {
	ctx := context.Background()
	ch := s.broker.Subscribe("game-1")
	defer s.broker.Unsubscribe("game-1", ch)

	// First heartbeat: one online event.
	s.Require().NoError(s.presence.Heartbeat(ctx, "game-1", "team-1"))
	events := s.drain(ch)
	s.Require().Len(events, 1)
	s.Equal(EventPresenceChanged, events[0].Type)

	// Repeated heartbeats while online publish nothing.
	s.clock = s.clock.Add(time.Second)
	s.Require().NoError(s.presence.Heartbeat(ctx, "game-1", "team-1"))
	s.Empty(s.drain(ch))

	// Stale heartbeat: the sweep flips the team offline exactly once.
	s.clock = s.clock.Add(presenceTimeout + time.Second)
	s.presence.sweep(ctx)
	events = s.drain(ch)
	s.Require().Len(events, 1)

	s.presence.sweep(ctx)
	s.Empty(s.drain(ch), "repeat sweeps must not republish the offline event")

	// The team comes back.
	s.clock = s.clock.Add(time.Second)
	s.Require().NoError(s.presence.Heartbeat(ctx, "game-1", "team-1"))
	events = s.drain(ch)
	s.Require().Len(events, 1)
}

func (s *presenceSuite) TestSweepKeepsGamesSeparate() {
	ctx := context.Background()
	ch1 := s.broker.Subscribe("game-1")
	defer s.broker.Unsubscribe("game-1", ch1)
	ch2 := s.broker.Subscribe("game-2")
	defer s.broker.Unsubscribe("game-2", ch2)

	s.Require().NoError(s.presence.Heartbeat(ctx, "game-1", "team-1"))
	s.Require().NoError(s.presence.Heartbeat(ctx, "game-2", "team-2"))
	s.drain(ch1)
	s.drain(ch2)

	// Only team-1 goes stale.
	s.clock = s.clock.Add(presenceTimeout + time.Second)
	s.Require().NoError(s.presence.Heartbeat(ctx, "game-2", "team-2"))
	s.presence.sweep(ctx)

	events := s.drain(ch1)
	s.Require().Len(events, 1)

	for _, ev := range s.drain(ch2) {
		var payload PresenceEvent
		raw, err := json.Marshal(ev.Payload)
		s.Require().NoError(err)
		s.Require().NoError(json.Unmarshal(raw, &payload))
		s.True(payload.Connected, "team-2 must not be flipped offline")
	}
}
