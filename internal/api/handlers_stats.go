package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.pipeline.Stats().Snapshot()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"engine":         s.cfg.Engine,
		"staging_medium": s.stager.Medium(),
		"staged_live":    s.stager.Live(),
		"succeeded":      snap.Succeeded,
		"failed":         snap.Failed,
		"latency":        snap.Latency,
	})
}
