package server

import (
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

// handleWS is the WebSocket counterpart of the SSE stream: same broker,
// same JSON events, same resynchronize-on-reconnect contract.
func handleWS(logger *slog.Logger, store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			writeError(w, http.StatusUnauthorized, "token query parameter required")
			return
		}

		sess, err := store.TeamFromToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session token")
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ch := broker.Subscribe(sess.GameID)
		defer broker.Unsubscribe(sess.GameID, ch)

		ctx := r.Context()
		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case data := <-ch:
				if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
					logger.Debug("websocket write failed", "error", err)
					return
				}
			case <-ping.C:
				if err := conn.Ping(ctx); err != nil {
					logger.Debug("websocket ping failed", "error", err)
					return
				}
			}
		}
	}
}
