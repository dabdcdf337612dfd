package rest

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
)

func (h *Handler) handleFile(w http.ResponseWriter, r *http.Request) {
	if h.files == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "File not found")
		return
	}

	key := r.PathValue("key")
	if err := h.files.Verify(r.URL.Query().Get("token"), key); err != nil {
		h.logger.Debug("Rejected file link", "key", key, "error", err)
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "Invalid or expired link")
		return
	}

	// Rooting the key before cleaning keeps it inside filesDir.
	name := filepath.Join(h.filesDir, filepath.FromSlash(path.Clean("/"+key)))
	info, err := os.Stat(name)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "File not found")
		return
	}
	http.ServeFile(w, r, name)
}
