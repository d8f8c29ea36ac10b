package server

import (
	"net/http"
	"strings"
)

type ScanRequest struct {
	NodeKey      string `json:"nodeKey"`
	ClientScanID string `json:"clientScanId"`
	Password     string `json:"password,omitempty"`
}

func handleScan(store Store, proc *ScanProcessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := teamFromRequest(r, store)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		var req ScanRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.NodeKey = strings.TrimSpace(req.NodeKey)
		req.ClientScanID = strings.TrimSpace(req.ClientScanID)
		if req.NodeKey == "" || req.ClientScanID == "" {
			writeError(w, http.StatusBadRequest, "nodeKey and clientScanId are required")
			return
		}

		res, err := proc.Apply(r.Context(), sess.TeamID, req.NodeKey, req.ClientScanID, req.Password)
		if err != nil {
			writeScanError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}
