package rest

import (
	"net/http"

	"github.com/syntrixbase/userindex/internal/puller"
)

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.capture != nil {
		live := h.capture.Mode() == puller.LiveSyncEnabled
		resp.LiveSync = &live
	}
	if h.syncer != nil {
		running := h.syncer.Running()
		resp.BulkSyncRunning = &running
	}
	writeJSON(w, http.StatusOK, resp)
}
