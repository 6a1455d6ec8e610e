package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgjwt "github.com/weiawesome/wes-io-live/pkg/jwt"
	"github.com/weiawesome/wes-io-live/pkg/middleware"
	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

type stubSearch struct {
	got *domain.SearchRequest
	err error
}

func (s *stubSearch) Search(_ context.Context, req *domain.SearchRequest) (*domain.SearchResponse, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &domain.SearchResponse{
		Query:      req.Query,
		Type:       req.Scope,
		SortBy:     req.SortBy,
		DateRange:  req.DateRange,
		Results:    domain.Results{Items: domain.UserItems([]domain.UserSummary{{ID: "u1", Name: "Gopher"}})},
		Pagination: domain.NewPagination(req.Limit, req.Offset, 1),
	}, nil
}

type stubHistory struct {
	deletedAll string
	query      domain.HistoryQuery
}

func (s *stubHistory) List(_ context.Context, q domain.HistoryQuery) (*domain.HistoryPage, error) {
	s.query = q
	return &domain.HistoryPage{Items: []domain.HistoryEntry{}, Pagination: domain.NewPagination(q.Limit, q.Offset, 0)}, nil
}

func (s *stubHistory) Update(_ context.Context, _ string, req domain.UpdateHistoryRequest) (*domain.HistoryEntry, error) {
	return &domain.HistoryEntry{ID: req.ID, Favorite: true}, nil
}

func (s *stubHistory) Delete(_ context.Context, _, id string) error {
	if id != "h1" {
		return domain.ErrNotFound
	}
	return nil
}

func (s *stubHistory) DeleteAll(_ context.Context, ownerID string) (int64, error) {
	s.deletedAll = ownerID
	return 7, nil
}

type stubSaved struct {
	createErr error
}

func (s *stubSaved) List(_ context.Context, q domain.SavedSearchQuery) (*domain.SavedSearchPage, error) {
	return &domain.SavedSearchPage{Items: []domain.SavedSearch{}, Pagination: domain.NewPagination(q.Limit, q.Offset, 0)}, nil
}

func (s *stubSaved) Create(_ context.Context, ownerID string, req domain.CreateSavedSearchRequest) (*domain.SavedSearch, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &domain.SavedSearch{ID: "s1", OwnerID: ownerID, Name: req.Name, Query: req.Query, Active: true}, nil
}

func (s *stubSaved) Update(_ context.Context, _ string, req domain.UpdateSavedSearchRequest) (*domain.SavedSearch, error) {
	return &domain.SavedSearch{ID: req.ID}, nil
}

func (s *stubSaved) Delete(context.Context, string, string) error { return nil }

func (s *stubSaved) Use(_ context.Context, _, id string) (*domain.SavedSearch, error) {
	return &domain.SavedSearch{ID: id, UseCount: 1}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code   string `json:"code"`
		Fields []struct {
			Field string `json:"field"`
		} `json:"fields"`
	} `json:"error"`
}

type testServer struct {
	router  *gin.Engine
	token   string
	search  *stubSearch
	history *stubHistory
	saved   *stubSaved
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager, err := pkgjwt.NewManager("test-secret", "test", time.Minute)
	require.NoError(t, err)
	token, _, err := manager.GenerateAccessToken("actor-1", "gopher")
	require.NoError(t, err)

	ts := &testServer{
		router:  gin.New(),
		token:   token,
		search:  &stubSearch{},
		history: &stubHistory{},
		saved:   &stubSaved{},
	}
	h := NewHandler(ts.search, ts.history, ts.saved, middleware.NewAuthMiddleware(manager))
	h.RegisterRoutes(ts.router)
	return ts
}

func (ts *testServer) do(t *testing.T, method, target, body string, auth bool) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env
}

func fieldNames(env envelope) []string {
	var out []string
	if env.Error == nil {
		return out
	}
	for _, f := range env.Error.Fields {
		out = append(out, f.Field)
	}
	return out
}

func TestSearch_Success(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodGet, "/api/v1/search?q=go&type=USERS&limit=100&verified=true", "", true)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	require.NotNil(t, ts.search.got)
	assert.Equal(t, "actor-1", ts.search.got.ActorID)
	assert.Equal(t, domain.ScopeUsers, ts.search.got.Scope)
	assert.Equal(t, domain.MaxLimit, ts.search.got.Limit)
	assert.True(t, ts.search.got.Verified)

	var resp struct {
		Type    string            `json:"type"`
		Results []json.RawMessage `json:"results"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "users", resp.Type)
	assert.Len(t, resp.Results, 1)
}

func TestSearch_ValidationListsEveryField(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodGet, "/api/v1/search?type=boards&limit=0&sortBy=newest", "", true)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.ElementsMatch(t, []string{"q", "type", "limit", "sortBy"}, fieldNames(env))
	assert.Nil(t, ts.search.got)
}

func TestSearch_RequiresToken(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodGet, "/api/v1/search?q=go", "", false)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)
	assert.Nil(t, ts.search.got)
}

func TestSearch_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodPost, "/api/v1/search", "", true)
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "METHOD_NOT_ALLOWED", env.Error.Code)
}

func TestSearch_ProviderFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.search.err = &domain.AggregateProviderError{Provider: domain.EntityPost, Err: errors.New("timeout")}

	code, env := ts.do(t, http.MethodGet, "/api/v1/search?q=go", "", true)
	assert.Equal(t, http.StatusInternalServerError, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeAggregateProvider, env.Error.Code)
}

func TestHistory_ListParsesScope(t *testing.T) {
	ts := newTestServer(t)

	code, _ := ts.do(t, http.MethodGet, "/api/v1/search/history?type=posts&limit=5", "", true)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, ts.history.query.Scope)
	assert.Equal(t, domain.ScopePosts, *ts.history.query.Scope)
	assert.Equal(t, 5, ts.history.query.Limit)
	assert.Equal(t, "actor-1", ts.history.query.OwnerID)
}

func TestHistory_DeleteAll(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodDelete, "/api/v1/search/history?all=true", "", true)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"deleted_count":7}`, string(env.Data))
	assert.Equal(t, "actor-1", ts.history.deletedAll)
}

func TestHistory_DeleteRequiresIDOrAll(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodDelete, "/api/v1/search/history", "", true)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []string{"id"}, fieldNames(env))

	code, _ = ts.do(t, http.MethodDelete, "/api/v1/search/history?id=nope", "", true)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHistory_UpdateRequiresID(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodPut, "/api/v1/search/history", `{"favorite":true}`, true)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []string{"id"}, fieldNames(env))
}

func TestSaved_CreateAndErrors(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodPost, "/api/v1/search/saved", `{"name":"Gophers","query":"go"}`, true)
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, env.Success)

	ts.saved.createErr = domain.ErrConflict
	code, env = ts.do(t, http.MethodPost, "/api/v1/search/saved", `{"name":"Gophers","query":"go"}`, true)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	ts.saved.createErr = domain.ErrQuotaExceeded
	code, env = ts.do(t, http.MethodPost, "/api/v1/search/saved", `{"name":"More","query":"go"}`, true)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "QUOTA_EXCEEDED", env.Error.Code)

	code, env = ts.do(t, http.MethodPost, "/api/v1/search/saved", `{"query":"go"}`, true)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []string{"name"}, fieldNames(env))
}

func TestSaved_ListRejectsBadActive(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodGet, "/api/v1/search/saved?active=maybe", "", true)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []string{"active"}, fieldNames(env))
}

func TestSaved_Use(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(t, http.MethodPost, "/api/v1/search/saved/s1/use", "", true)
	require.Equal(t, http.StatusOK, code)

	var saved domain.SavedSearch
	require.NoError(t, json.Unmarshal(env.Data, &saved))
	assert.Equal(t, "s1", saved.ID)
}
