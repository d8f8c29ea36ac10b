package server

import (
	"net/http"
	"strings"
)

type HintRequest struct {
	NodeID string `json:"nodeId"`
}

func handleHint(store Store, proc *ScanProcessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := teamFromRequest(r, store)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		var req HintRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.NodeID = strings.TrimSpace(req.NodeID)
		if req.NodeID == "" {
			writeError(w, http.StatusBadRequest, "nodeId is required")
			return
		}

		res, err := proc.Hint(r.Context(), sess.TeamID, req.NodeID)
		if err != nil {
			writeScanError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}
