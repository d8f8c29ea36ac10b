package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "QR-Hunt API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the QR-Hunt scavenger hunt engine.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /api/teams/{code}
	getTeam, _ := r.NewOperationContext(http.MethodGet, "/api/teams/{code}")
	getTeam.SetSummary("Look up team")
	getTeam.SetDescription("Look up a team by its code before joining.")
	getTeam.AddRespStructure(TeamLookupResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getTeam.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getTeam)

	// POST /api/join
	postJoin, _ := r.NewOperationContext(http.MethodPost, "/api/join")
	postJoin.SetSummary("Join a team")
	postJoin.SetDescription("Join a team using its code. Returns a session token.")
	postJoin.AddReqStructure(JoinRequest{})
	postJoin.AddRespStructure(JoinResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postJoin)

	// POST /api/game/scan
	postScan, _ := r.NewOperationContext(http.MethodPost, "/api/game/scan")
	postScan.SetSummary("Apply a scan")
	postScan.SetDescription("Validate and apply a checkpoint scan. Requires Bearer token. Retries with the same clientScanId return the original result.")
	postScan.AddReqStructure(ScanRequest{})
	postScan.AddRespStructure(ScanResult{}, openapi.WithHTTPStatus(http.StatusOK))
	postScan.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postScan.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postScan.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnprocessableEntity))
	postScan.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postScan)

	// POST /api/game/hint
	postHint, _ := r.NewOperationContext(http.MethodPost, "/api/game/hint")
	postHint.SetSummary("Request a hint")
	postHint.SetDescription("Reveal a node's hint, deducting points once per node. Requires Bearer token.")
	postHint.AddReqStructure(HintRequest{})
	postHint.AddRespStructure(HintResult{}, openapi.WithHTTPStatus(http.StatusOK))
	postHint.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postHint.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postHint)

	// POST /api/game/shuffle
	postShuffle, _ := r.NewOperationContext(http.MethodPost, "/api/game/shuffle")
	postShuffle.SetSummary("Shuffle the offered clue")
	postShuffle.SetDescription("Random mode only: re-draw the next clue, never re-offering the current one. Requires Bearer token.")
	postShuffle.AddRespStructure(ShuffleResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postShuffle.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postShuffle)

	// POST /api/game/sync
	postSync, _ := r.NewOperationContext(http.MethodPost, "/api/game/sync")
	postSync.SetSummary("Replay offline scans")
	postSync.SetDescription("Replay scans buffered while offline, in attemptedAt order. Requires Bearer token.")
	postSync.AddReqStructure(SyncRequest{})
	postSync.AddRespStructure(SyncResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postSync.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postSync)

	// GET /api/game/progress
	getProgress, _ := r.NewOperationContext(http.MethodGet, "/api/game/progress")
	getProgress.SetSummary("Get team progress")
	getProgress.SetDescription("Authoritative team state; clients fetch it after any stream break. Requires Bearer token.")
	getProgress.AddRespStructure(ProgressResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getProgress.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getProgress)

	// GET /api/games/{slug}/standings
	getStandings, _ := r.NewOperationContext(http.MethodGet, "/api/games/{slug}/standings")
	getStandings.SetSummary("Get standings")
	getStandings.SetDescription("Derived ranking for a game under its configured ranking mode.")
	getStandings.AddRespStructure(StandingsResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getStandings.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getStandings)

	// POST /api/game/chat
	postChat, _ := r.NewOperationContext(http.MethodPost, "/api/game/chat")
	postChat.SetSummary("Send a chat message")
	postChat.SetDescription("Fan a message out to the game's subscribers. Not persisted. Requires Bearer token.")
	postChat.AddReqStructure(ChatRequest{})
	postChat.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	_ = r.AddOperation(postChat)

	// POST /api/game/heartbeat
	postHeartbeat, _ := r.NewOperationContext(http.MethodPost, "/api/game/heartbeat")
	postHeartbeat.SetSummary("Heartbeat")
	postHeartbeat.SetDescription("Marks the team as connected for presence tracking. Requires Bearer token.")
	postHeartbeat.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	_ = r.AddOperation(postHeartbeat)

	// GET /api/game/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/game/events")
	getEvents.SetSummary("Event stream (SSE)")
	getEvents.SetDescription("Server-sent events for the team's game. Missed events are not replayed; resynchronize via progress and standings.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK), openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /api/game/ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/api/game/ws")
	getWS.SetSummary("Event stream (WebSocket)")
	getWS.SetDescription("WebSocket transport for the same event stream.")
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols), openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWS)

	// POST /api/admin/login
	postLogin, _ := r.NewOperationContext(http.MethodPost, "/api/admin/login")
	postLogin.SetSummary("Organizer login")
	postLogin.AddReqStructure(AdminLoginRequest{})
	postLogin.AddRespStructure(AdminMeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postLogin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postLogin)

	// POST /api/admin/games
	postGame, _ := r.NewOperationContext(http.MethodPost, "/api/admin/games")
	postGame.SetSummary("Create a game")
	postGame.SetDescription("Create a game with its nodes, edges, and teams.")
	postGame.AddReqStructure(AdminGameRequest{})
	postGame.AddRespStructure(AdminGameDetail{}, openapi.WithHTTPStatus(http.StatusCreated))
	postGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postGame)

	// PUT /api/admin/games/{gameID}/status
	putStatus, _ := r.NewOperationContext(http.MethodPut, "/api/admin/games/{gameID}/status")
	putStatus.SetSummary("Set game status")
	putStatus.SetDescription("draft resets all team progress; completed freezes it.")
	putStatus.AddReqStructure(AdminStatusRequest{})
	putStatus.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	_ = r.AddOperation(putStatus)

	// PUT /api/admin/nodes/{nodeID}/activated
	putActivated, _ := r.NewOperationContext(http.MethodPut, "/api/admin/nodes/{nodeID}/activated")
	putActivated.SetSummary("Toggle node activation")
	putActivated.SetDescription("Deactivated nodes are excluded from candidate sets and cannot be scanned.")
	putActivated.AddReqStructure(AdminActivatedRequest{})
	putActivated.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	_ = r.AddOperation(putActivated)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(spec)
	}
}
