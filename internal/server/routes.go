package server

import (
	"database/sql"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, db *sql.DB, rdb *redis.Client,
	store *SQLiteStore, proc *ScanProcessor, broker *Broker, presence *Presence) {

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("QR-Hunt API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(logger, db, rdb))

	// Player routes — bearer tokens minted at join.
	r.Route("/api", func(r chi.Router) {
		r.Get("/teams/{code}", handleTeamLookup(store))
		r.Post("/join", handleJoin(store, proc))
		r.Get("/games/{slug}/standings", handleStandings(store))

		r.Route("/game", func(r chi.Router) {
			r.Post("/scan", handleScan(store, proc))
			r.Post("/hint", handleHint(store, proc))
			r.Post("/shuffle", handleShuffle(store, proc))
			r.Post("/sync", handleSync(store, proc))
			r.Get("/progress", handleProgress(store))
			r.Post("/chat", handleChat(store, broker))
			r.Post("/heartbeat", handleHeartbeat(store, presence))
			r.Get("/events", handleEvents(store, broker))
			r.Get("/ws", handleWS(logger, store, broker))
		})
	})

	// Organizer routes — cookie sessions.
	r.Post("/api/admin/login", handleAdminLogin(db))
	r.Post("/api/admin/logout", handleAdminLogout(db))
	r.Get("/api/admin/me", handleAdminMe(db))
	r.Get("/api/admin/games", handleAdminListGames(db, store))
	r.Post("/api/admin/games", handleAdminCreateGame(db, store))
	r.Get("/api/admin/games/{gameID}", handleAdminGetGame(db, store))
	r.Put("/api/admin/games/{gameID}/status", handleAdminSetGameStatus(db, store, broker))
	r.Put("/api/admin/nodes/{nodeID}/activated", handleAdminSetNodeActivated(db, store))
}
