package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/userindex/internal/enrich"
	"github.com/syntrixbase/userindex/internal/indexer"
	"github.com/syntrixbase/userindex/internal/puller"
	"github.com/syntrixbase/userindex/internal/query"
	"github.com/syntrixbase/userindex/internal/users"
	"github.com/syntrixbase/userindex/pkg/model"
)

func createTestServer(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func serve(t *testing.T, mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestNewHandler_NilEngine(t *testing.T) {
	assert.Panics(t, func() { NewHandler(nil, nil, nil) })
}

func TestHandleHealth(t *testing.T) {
	t.Run("without index admin", func(t *testing.T) {
		mux := createTestServer(NewHandler(new(MockQueryService), nil, nil))

		rr := serve(t, mux, "GET", "/health", "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	})

	t.Run("degraded capture still healthy", func(t *testing.T) {
		capture := staticCapture{mode: puller.LiveSyncUnsupported, state: puller.StateDegraded}
		syncer := new(MockSyncer)
		syncer.On("Running").Return(true)

		h := NewHandler(new(MockQueryService), nil, nil)
		h.SetIndexAdmin(syncer, capture)
		rr := serve(t, createTestServer(h), "GET", "/health", "")

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"ok","liveSync":false,"bulkSyncRunning":true}`, rr.Body.String())
	})
}

func TestHandleSearchUsers(t *testing.T) {
	pic := "https://cdn/ana.png"
	page := &model.UserPage{
		Users: []model.UserEntry{{ID: "1", Name: "Ana", Email: "ana@x.io", SignedPicURL: &pic, Score: 170}},
		Total: 1,
	}

	tests := []struct {
		name   string
		target string
		want   query.Request
	}{
		{"search", "/api/v1/users/search?query=ana&page=2&limit=5", query.Request{Query: "ana", Page: 2, Limit: 5}},
		{"defaults", "/api/v1/users/search", query.Request{}},
		{"malformed numbers", "/api/v1/users/search?query=ana&page=abc&limit=x", query.Request{Query: "ana"}},
		{"browse ignores query", "/api/v1/users?query=ana&page=3", query.Request{Page: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := new(MockQueryService)
			engine.On("Search", mock.Anything, tt.want).Return(page, nil).Once()
			mux := createTestServer(NewHandler(engine, nil, nil))

			rr := serve(t, mux, "GET", tt.target, "")
			require.Equal(t, http.StatusOK, rr.Code)

			body := decode(t, rr)
			assert.Equal(t, true, body["success"])
			assert.Equal(t, float64(1), body["total"])
			list := body["users"].([]interface{})
			require.Len(t, list, 1)
			entry := list[0].(map[string]interface{})
			assert.Equal(t, "Ana", entry["name"])
			assert.Equal(t, pic, entry["signedPicUrl"])
			engine.AssertExpectations(t)
		})
	}
}

func TestHandleSearchUsers_EmptyPageKeepsArray(t *testing.T) {
	engine := new(MockQueryService)
	engine.On("Search", mock.Anything, mock.Anything).Return(model.EmptyPage(), nil)
	mux := createTestServer(NewHandler(engine, nil, nil))

	rr := serve(t, mux, "GET", "/api/v1/users/search?query=zzz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"users":[],"total":0}`, rr.Body.String())
}

func TestHandleSearchUsers_Canceled(t *testing.T) {
	engine := new(MockQueryService)
	engine.On("Search", mock.Anything, mock.Anything).Return(nil, model.ErrCanceled)
	mux := createTestServer(NewHandler(engine, nil, nil))

	rr := serve(t, mux, "GET", "/api/v1/users/search?query=ana", "")
	assert.Equal(t, StatusClientClosedRequest, rr.Code)
}

func TestHandleSearchUsers_InternalError(t *testing.T) {
	engine := new(MockQueryService)
	engine.On("Search", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))
	mux := createTestServer(NewHandler(engine, nil, nil))

	rr := serve(t, mux, "GET", "/api/v1/users", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, ErrCodeInternalError, decode(t, rr)["code"])
}

func TestHandleCreateUser(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	user := &model.User{ID: "u1", FullName: "Ana", Email: "ana@x.io", Password: "hash", Pic: "avatars/ana.png", CreatedAt: now, UpdatedAt: now}
	body := `{"fullName":"Ana","email":"ana@x.io","password":"Secr3t!pw","confirmPassword":"Secr3t!pw","pic":"avatars/ana.png"}`
	in := users.CreateInput{FullName: "Ana", Email: "ana@x.io", Password: "Secr3t!pw", ConfirmPassword: "Secr3t!pw", Pic: "avatars/ana.png"}

	tests := []struct {
		name     string
		result   *users.CreateResult
		err      error
		wantCode int
		check    func(t *testing.T, body map[string]interface{})
	}{
		{
			name:     "created",
			result:   &users.CreateResult{User: user},
			wantCode: http.StatusCreated,
			check: func(t *testing.T, body map[string]interface{}) {
				u := body["user"].(map[string]interface{})
				assert.Equal(t, "u1", u["id"])
				assert.NotContains(t, u, "password")
				assert.NotContains(t, body, "message")
			},
		},
		{
			name:     "restored",
			result:   &users.CreateResult{User: user, Restored: true},
			wantCode: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "User restored and updated.", body["message"])
			},
		},
		{
			name:     "validation",
			err:      &users.ValidationError{Fields: map[string]string{"email": "Email must contain @."}},
			wantCode: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, false, body["success"])
				assert.Equal(t, ErrCodeValidationFailed, body["code"])
				assert.Equal(t, map[string]interface{}{"email": "Email must contain @."}, body["error"])
			},
		},
		{
			name:     "exists",
			err:      model.ErrExists,
			wantCode: http.StatusConflict,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, map[string]interface{}{"email": "User already exists."}, body["error"])
			},
		},
		{
			name:     "store failure",
			err:      errors.New("mongo down"),
			wantCode: http.StatusInternalServerError,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "Failed to create user", body["error"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockUserService)
			svc.On("Create", mock.Anything, in).Return(tt.result, tt.err).Once()
			mux := createTestServer(NewHandler(new(MockQueryService), svc, nil))

			rr := serve(t, mux, "POST", "/api/v1/users", body)
			require.Equal(t, tt.wantCode, rr.Code)
			tt.check(t, decode(t, rr))
			svc.AssertExpectations(t)
		})
	}
}

func TestHandleCreateUser_BadBody(t *testing.T) {
	svc := new(MockUserService)
	mux := createTestServer(NewHandler(new(MockQueryService), svc, nil))

	rr := serve(t, mux, "POST", "/api/v1/users", "{not json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestHandleCreateUser_NoWritePath(t *testing.T) {
	mux := createTestServer(NewHandler(new(MockQueryService), nil, nil))

	rr := serve(t, mux, "POST", "/api/v1/users", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandleDeleteUser(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"deleted", nil, http.StatusOK},
		{"missing", model.ErrNotFound, http.StatusNotFound},
		{"failure", errors.New("boom"), http.StatusInternalServerError},
		{"canceled", context.Canceled, StatusClientClosedRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockUserService)
			svc.On("SoftDelete", mock.Anything, "u1").Return(tt.err).Once()
			mux := createTestServer(NewHandler(new(MockQueryService), svc, nil))

			rr := serve(t, mux, "DELETE", "/api/v1/users/u1", "")
			assert.Equal(t, tt.wantCode, rr.Code)
			if tt.err == nil {
				assert.JSONEq(t, `{"success":true}`, rr.Body.String())
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestHandleIndexSync(t *testing.T) {
	report := indexer.Report{ID: "r1", Scanned: 4, Indexed: 3, Failed: 1}

	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"ok", nil, http.StatusOK},
		{"in progress", model.ErrSyncInProgress, http.StatusConflict},
		{"scan failure", errors.New("scan primary store: boom"), http.StatusInternalServerError},
		{"canceled", model.ErrCanceled, StatusClientClosedRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer := new(MockSyncer)
			syncer.On("Run", mock.Anything).Return(report, tt.err).Once()
			h := NewHandler(new(MockQueryService), nil, nil)
			h.SetIndexAdmin(syncer, nil)
			mux := createTestServer(h)

			rr := serve(t, mux, "POST", "/admin/v1/index/sync", "")
			assert.Equal(t, tt.wantCode, rr.Code)
			if tt.err == nil {
				var resp SyncResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.True(t, resp.Success)
				assert.Equal(t, "r1", resp.Report.ID)
				assert.Equal(t, int64(1), resp.Report.Failed)
			}
		})
	}
}

func TestHandleIndexSync_NotConfigured(t *testing.T) {
	mux := createTestServer(NewHandler(new(MockQueryService), nil, nil))

	rr := serve(t, mux, "POST", "/admin/v1/index/sync", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandleIndexStatus(t *testing.T) {
	syncer := new(MockSyncer)
	syncer.On("Running").Return(false)
	syncer.On("LastReport").Return(indexer.Report{ID: "r9", Indexed: 10}, true)

	h := NewHandler(new(MockQueryService), nil, nil)
	h.SetIndexAdmin(syncer, staticCapture{mode: puller.LiveSyncUnsupported, state: puller.StateDegraded})
	mux := createTestServer(h)

	rr := serve(t, mux, "GET", "/admin/v1/index/status", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp IndexStatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Capture)
	assert.Equal(t, "unsupported", resp.Capture.Mode)
	assert.Equal(t, "degraded", resp.Capture.State)
	assert.False(t, resp.BulkSync.Running)
	require.NotNil(t, resp.BulkSync.Last)
	assert.Equal(t, "r9", resp.BulkSync.Last.ID)
}

func TestHandleIndexStatus_NoRunYet(t *testing.T) {
	syncer := new(MockSyncer)
	syncer.On("Running").Return(true)
	syncer.On("LastReport").Return(indexer.Report{}, false)

	h := NewHandler(new(MockQueryService), nil, nil)
	h.SetIndexAdmin(syncer, nil)
	mux := createTestServer(h)

	rr := serve(t, mux, "GET", "/admin/v1/index/status", "")
	assert.JSONEq(t, `{"capture":null,"bulkSync":{"running":true,"last":null}}`, rr.Body.String())
}

func TestHandleFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "avatars"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "avatars", "ana.png"), []byte("png-bytes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "avatars", "ana lopez#1.png"), []byte("spaced"), 0o644))

	signer := enrich.NewTokenSigner("secret", "http://localhost:8080", time.Minute)
	link, err := signer.Sign(context.Background(), "avatars/ana.png")
	require.NoError(t, err)
	target := strings.TrimPrefix(link, "http://localhost:8080")

	h := NewHandler(new(MockQueryService), nil, nil)
	h.SetFileServer(signer, dir)
	mux := createTestServer(h)

	t.Run("valid link", func(t *testing.T) {
		rr := serve(t, mux, "GET", target, "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "png-bytes", rr.Body.String())
	})

	t.Run("escaped key", func(t *testing.T) {
		spaced, err := signer.Sign(context.Background(), "avatars/ana lopez#1.png")
		require.NoError(t, err)
		rr := serve(t, mux, "GET", strings.TrimPrefix(spaced, "http://localhost:8080"), "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "spaced", rr.Body.String())
	})

	t.Run("missing token", func(t *testing.T) {
		rr := serve(t, mux, "GET", "/files/avatars/ana.png", "")
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("token for another key", func(t *testing.T) {
		other, err := signer.Sign(context.Background(), "avatars/bob.png")
		require.NoError(t, err)
		token := other[strings.Index(other, "?"):]
		rr := serve(t, mux, "GET", "/files/avatars/ana.png"+token, "")
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		gone, err := signer.Sign(context.Background(), "avatars/gone.png")
		require.NoError(t, err)
		rr := serve(t, mux, "GET", strings.TrimPrefix(gone, "http://localhost:8080"), "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestHandleFile_Disabled(t *testing.T) {
	mux := createTestServer(NewHandler(new(MockQueryService), nil, nil))

	rr := serve(t, mux, "GET", "/files/avatars/ana.png?token=x", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleCreateUser_BodyTooLarge(t *testing.T) {
	svc := new(MockUserService)
	h := NewHandler(new(MockQueryService), svc, nil)
	h.SetLimits(0, 16)
	mux := createTestServer(h)

	rr := serve(t, mux, "POST", "/api/v1/users", `{"fullName":"`+strings.Repeat("a", 64)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSetLimits_KeepsDefaultsForZero(t *testing.T) {
	h := NewHandler(new(MockQueryService), nil, nil)
	h.SetLimits(0, 0)
	assert.Equal(t, DefaultRequestTimeout, h.requestTimeout)
	assert.Equal(t, int64(DefaultMaxBodySize), h.maxBody)

	h.SetLimits(time.Second, 10)
	assert.Equal(t, time.Second, h.requestTimeout)
	assert.Equal(t, int64(10), h.maxBody)
}
