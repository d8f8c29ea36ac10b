package server

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/NunoTek/QR-Hunt-sub000/internal/qrhunt"
)

// BufferedScan is one entry of a client's offline scan buffer.
type BufferedScan struct {
	NodeKey      string    `json:"nodeKey"`
	ClientScanID string    `json:"clientScanId"`
	AttemptedAt  time.Time `json:"attemptedAt"`
}

type SyncRequest struct {
	Scans []BufferedScan `json:"scans"`
}

// SyncOutcome reports how one buffered scan replayed: applied, duplicate,
// rejected (with the rejection reason), or skipped (linear mode, after the
// first out-of-sequence rejection).
type SyncOutcome struct {
	ClientScanID string      `json:"clientScanId"`
	Status       string      `json:"status"`
	Error        string      `json:"error,omitempty"`
	Result       *ScanResult `json:"result,omitempty"`
}

type SyncResponse struct {
	Outcomes    []SyncOutcome `json:"outcomes"`
	TotalPoints int           `json:"totalPoints"`
}

// handleSync replays a client's offline scan buffer through the scan
// processor in attemptedAt order. Idempotency makes re-submission after a
// flaky reconnect a safe no-op. In linear mode the chain stops at the first
// out-of-sequence rejection because each scan depends on its predecessor;
// in random and collect-all modes every entry is independent and all are
// attempted.
func handleSync(store Store, proc *ScanProcessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := teamFromRequest(r, store)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		var req SyncRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.Scans) == 0 {
			writeError(w, http.StatusBadRequest, "scans are required")
			return
		}
		for _, s := range req.Scans {
			if strings.TrimSpace(s.NodeKey) == "" || strings.TrimSpace(s.ClientScanID) == "" {
				writeError(w, http.StatusBadRequest, "every scan needs nodeKey and clientScanId")
				return
			}
		}

		game, err := store.Game(r.Context(), sess.GameID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		scans := make([]BufferedScan, len(req.Scans))
		copy(scans, req.Scans)
		sort.SliceStable(scans, func(i, j int) bool {
			return scans[i].AttemptedAt.Before(scans[j].AttemptedAt)
		})

		resp := SyncResponse{Outcomes: make([]SyncOutcome, 0, len(scans))}
		stopped := false
		for _, s := range scans {
			if stopped {
				resp.Outcomes = append(resp.Outcomes, SyncOutcome{
					ClientScanID: s.ClientScanID,
					Status:       "skipped",
				})
				continue
			}

			res, err := proc.Apply(r.Context(), sess.TeamID, s.NodeKey, s.ClientScanID, "")
			switch {
			case err == nil && res.Duplicate:
				resp.TotalPoints = res.TotalPoints
				resp.Outcomes = append(resp.Outcomes, SyncOutcome{
					ClientScanID: s.ClientScanID,
					Status:       "duplicate",
					Result:       &res,
				})
			case err == nil:
				resp.TotalPoints = res.TotalPoints
				resp.Outcomes = append(resp.Outcomes, SyncOutcome{
					ClientScanID: s.ClientScanID,
					Status:       "applied",
					Result:       &res,
				})
			default:
				resp.Outcomes = append(resp.Outcomes, SyncOutcome{
					ClientScanID: s.ClientScanID,
					Status:       "rejected",
					Error:        err.Error(),
				})
				if game.Mode == qrhunt.ModeLinear && errors.Is(err, qrhunt.ErrOutOfSequence) {
					stopped = true
				}
			}
		}

		if resp.TotalPoints == 0 {
			if team, err := store.Team(r.Context(), sess.TeamID); err == nil {
				resp.TotalPoints = team.TotalPoints
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
