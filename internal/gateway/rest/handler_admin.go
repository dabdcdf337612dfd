package rest

import (
	"errors"
	"net/http"

	"github.com/syntrixbase/userindex/pkg/model"
)

func (h *Handler) handleIndexSync(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "Bulk sync is not configured")
		return
	}

	report, err := h.syncer.Run(r.Context())
	switch {
	case errors.Is(err, model.ErrSyncInProgress):
		writeError(w, http.StatusConflict, ErrCodeConflict, "Bulk sync already in progress")
	case model.IsCanceled(err):
		w.WriteHeader(StatusClientClosedRequest)
	case err != nil:
		h.logger.Error("On-demand bulk sync failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, SyncResponse{Report: report, Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, SyncResponse{Success: true, Report: report})
	}
}

func (h *Handler) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	var resp IndexStatusResponse
	if h.capture != nil {
		resp.Capture = &CaptureView{
			Mode:  h.capture.Mode().String(),
			State: h.capture.State().String(),
		}
	}
	if h.syncer != nil {
		resp.BulkSync.Running = h.syncer.Running()
		if last, ok := h.syncer.LastReport(); ok {
			resp.BulkSync.Last = &last
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
