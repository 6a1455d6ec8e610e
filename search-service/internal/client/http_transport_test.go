package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

func TestHTTPTransport_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/search", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "maria", q.Get("q"))
		assert.Equal(t, "users", q.Get("type"))
		assert.Equal(t, "true", q.Get("verified"))
		assert.Equal(t, "5", q.Get("offset"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"query":"maria","type":"users",` +
			`"results":[{"type":"user","user":{"id":"u1","name":"Maria"}}],` +
			`"pagination":{"limit":5,"offset":5,"total":11,"has_more":true}}}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL+"/", "tok")
	resp, err := tr.Search(context.Background(), Params{
		Query:    "maria",
		Scope:    domain.ScopeUsers,
		Verified: true,
		Limit:    5,
		Offset:   5,
	})
	require.NoError(t, err)
	assert.Equal(t, "maria", resp.Query)
	require.Len(t, resp.Results.Items, 1)
	assert.Equal(t, "u1", resp.Results.Items[0].ID())
	assert.True(t, resp.Pagination.HasMore)
}

func TestHTTPTransport_ValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"VALIDATION_ERROR","message":"invalid request",` +
			`"fields":[{"field":"q","message":"is required"}]}}`))
	}))
	defer srv.Close()

	_, err := NewHTTPTransport(srv.URL, "").Search(context.Background(), Params{})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.Equal(t, []domain.FieldError{{Field: "q", Message: "is required"}}, apiErr.Fields)
}
