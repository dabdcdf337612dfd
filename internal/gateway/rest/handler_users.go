package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/syntrixbase/userindex/internal/query"
	"github.com/syntrixbase/userindex/internal/users"
	"github.com/syntrixbase/userindex/pkg/model"
)

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	req := h.decodeQuery(r)
	req.Query = ""
	h.runQuery(w, r, req)
}

func (h *Handler) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	h.runQuery(w, r, h.decodeQuery(r))
}

// decodeQuery never fails: a malformed page or limit decodes as zero and
// is clamped by the engine.
func (h *Handler) decodeQuery(r *http.Request) query.Request {
	var req query.Request
	if err := queryDecoder.Decode(&req, r.URL.Query()); err != nil {
		h.logger.Debug("Ignoring malformed query parameters", "error", err)
	}
	return req
}

func (h *Handler) runQuery(w http.ResponseWriter, r *http.Request, req query.Request) {
	page, err := h.engine.Search(r.Context(), req)
	if err != nil {
		h.writeInternalError(w, err, "Failed to query users")
		return
	}
	writeJSON(w, http.StatusOK, UserListResponse{Success: true, Users: page.Users, Total: page.Total})
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in users.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body")
		return
	}

	res, err := h.users.Create(r.Context(), in)
	if err != nil {
		var verr *users.ValidationError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: ErrCodeValidationFailed, Error: verr.Fields})
		case errors.Is(err, model.ErrExists):
			writeJSON(w, http.StatusConflict, ErrorResponse{
				Code:  ErrCodeConflict,
				Error: map[string]string{"email": "User already exists."},
			})
		default:
			h.writeInternalError(w, err, "Failed to create user")
		}
		return
	}

	resp := CreateUserResponse{Success: true, User: toView(res.User)}
	status := http.StatusCreated
	if res.Restored {
		status = http.StatusOK
		resp.Message = "User restored and updated."
	}
	writeJSON(w, status, resp)
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "User id is required")
		return
	}

	if err := h.users.SoftDelete(r.Context(), id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "User not found")
			return
		}
		h.writeInternalError(w, err, "Failed to delete user")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func toView(u *model.User) UserView {
	return UserView{
		ID:        u.ID,
		FullName:  u.FullName,
		Email:     u.Email,
		Pic:       u.Pic,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: u.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
