package repository

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// fakeES answers every search with body and captures the request payload.
func fakeES(t *testing.T, body string, captured *map[string]interface{}) *elasticsearch.Client {
	t.Helper()
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://es.test:9200"},
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.Body != nil && captured != nil {
				data, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(data, captured)
			}
			h := http.Header{}
			h.Set("X-Elastic-Product", "Elasticsearch")
			h.Set("Content-Type", "application/json")
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     h,
				Body:       io.NopCloser(strings.NewReader(body)),
			}, nil
		}),
	})
	require.NoError(t, err)
	return client
}

type stubFollows struct {
	following []string
}

func (s stubFollows) BatchIsFollowing(_ context.Context, _ string, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		for _, f := range s.following {
			if f == id {
				out[id] = true
			}
		}
	}
	return out, nil
}

func (s stubFollows) FollowingIDs(context.Context, string) ([]string, error) {
	return s.following, nil
}

func TestESUserProvider_Search(t *testing.T) {
	var sent map[string]interface{}
	client := fakeES(t, `{"hits":{"total":{"value":12},"hits":[
		{"_source":{"id":"u-1","name":"Ann","username":"ann","verified":true,"follower_count":3,"created_at":"2026-01-01T00:00:00Z"}},
		{"_source":{"id":"u-2","name":"Annie","username":"annie","created_at":"2026-01-02T00:00:00Z"}}
	]}}`, &sent)
	p := NewESUserProvider(client, "users", stubFollows{following: []string{"u-2"}})

	users, total, err := p.Search(context.Background(), NewUserCriteria("An*", "actor").Verified(true).Page(2, 4))
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, users, 2)
	assert.False(t, users[0].IsFollowing)
	assert.True(t, users[1].IsFollowing)
	assert.Equal(t, int64(3), users[0].FollowerCount)

	assert.EqualValues(t, 4, sent["from"])
	assert.EqualValues(t, 2, sent["size"])
	raw, _ := json.Marshal(sent["query"])
	assert.Contains(t, string(raw), `"value":"*An\\*"`)
	assert.Contains(t, string(raw), `"must_not":[{"term":{"id":"actor"}}]`)
	assert.Contains(t, string(raw), `{"term":{"verified":true}}`)

	sortRaw, _ := json.Marshal(sent["sort"])
	assert.JSONEq(t, `[{"verified":"desc"},{"follower_count":"desc"},{"created_at":"desc"},{"id":"asc"}]`, string(sortRaw))
}

func TestESPostProvider_VisibilityUsesFollowing(t *testing.T) {
	var sent map[string]interface{}
	long := strings.Repeat("a", 300)
	client := fakeES(t, `{"hits":{"total":{"value":1},"hits":[
		{"_source":{"id":"p-1","author_id":"u-9","content":"`+long+`","visibility":"followers","author":{"name":"Nine","username":"nine"}}}
	]}}`, &sent)
	p := NewESPostProvider(client, "posts", stubFollows{following: []string{"u-9"}})

	posts, total, err := p.Search(context.Background(), NewPostCriteria("aaa", "actor").Page(10, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, posts, 1)
	assert.Equal(t, "Nine", posts[0].Author.Name)
	assert.Equal(t, "u-9", posts[0].Author.ID)
	assert.True(t, strings.HasSuffix(posts[0].Content, "..."))

	raw, _ := json.Marshal(sent["query"])
	assert.Contains(t, string(raw), `{"terms":{"author_id":["u-9"]}}`)
	assert.Contains(t, string(raw), `{"term":{"author_id":"actor"}}`)
}

func TestESUserProvider_ErrorResponse(t *testing.T) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://es.test:9200"},
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			h := http.Header{}
			h.Set("X-Elastic-Product", "Elasticsearch")
			return &http.Response{
				StatusCode: http.StatusInternalServerError,
				Header:     h,
				Body:       io.NopCloser(strings.NewReader(`{"error":"boom"}`)),
			}, nil
		}),
	})
	require.NoError(t, err)

	_, _, err = NewESUserProvider(client, "users", stubFollows{}).Search(context.Background(), NewUserCriteria("x", "actor"))
	assert.Error(t, err)
}

// indexES answers index HEAD and PUT requests with the given statuses and
// records the methods and PUT body it saw.
func indexES(t *testing.T, headStatus, putStatus int, putBody string, seen *[]string, mapping *string) *elasticsearch.Client {
	t.Helper()
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://es.test:9200"},
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			*seen = append(*seen, r.Method+" "+r.URL.Path)
			status, body := headStatus, ""
			if r.Method == http.MethodPut {
				data, _ := io.ReadAll(r.Body)
				*mapping = string(data)
				status, body = putStatus, putBody
			}
			h := http.Header{}
			h.Set("X-Elastic-Product", "Elasticsearch")
			h.Set("Content-Type", "application/json")
			return &http.Response{
				StatusCode: status,
				Status:     http.StatusText(status),
				Header:     h,
				Body:       io.NopCloser(strings.NewReader(body)),
			}, nil
		}),
	})
	require.NoError(t, err)
	return client
}

func TestEnsureIndex_CreatesMissingIndex(t *testing.T) {
	var seen []string
	var sent string
	client := indexES(t, http.StatusNotFound, http.StatusOK, `{"acknowledged":true}`, &seen, &sent)

	created, err := EnsureIndex(context.Background(), client, "users", UserIndexMapping)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, []string{"HEAD /users", "PUT /users"}, seen)
	assert.JSONEq(t, UserIndexMapping, sent)
}

func TestEnsureIndex_ExistingIndexUntouched(t *testing.T) {
	var seen []string
	var sent string
	client := indexES(t, http.StatusOK, http.StatusOK, "", &seen, &sent)

	created, err := EnsureIndex(context.Background(), client, "posts", PostIndexMapping)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, []string{"HEAD /posts"}, seen)
}

func TestEnsureIndex_LostCreateRace(t *testing.T) {
	var seen []string
	var sent string
	client := indexES(t, http.StatusNotFound, http.StatusBadRequest,
		`{"error":{"type":"resource_already_exists_exception"},"status":400}`, &seen, &sent)

	created, err := EnsureIndex(context.Background(), client, "users", UserIndexMapping)
	require.NoError(t, err)
	assert.False(t, created)

	seen = nil
	client = indexES(t, http.StatusNotFound, http.StatusBadRequest, `{"error":{"type":"mapper_parsing_exception"}}`, &seen, &sent)
	_, err = EnsureIndex(context.Background(), client, "users", UserIndexMapping)
	assert.Error(t, err)
}

func TestIndexMappings_MatchedFieldsAreWildcard(t *testing.T) {
	type field struct {
		Type string `json:"type"`
	}
	var users, posts struct {
		Mappings struct {
			Properties map[string]field `json:"properties"`
		} `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal([]byte(UserIndexMapping), &users))
	require.NoError(t, json.Unmarshal([]byte(PostIndexMapping), &posts))

	for _, f := range []string{"name", "username", "bio"} {
		assert.Equal(t, "wildcard", users.Mappings.Properties[f].Type, f)
	}
	for _, f := range []string{"title", "content"} {
		assert.Equal(t, "wildcard", posts.Mappings.Properties[f].Type, f)
	}
	assert.Equal(t, "keyword", posts.Mappings.Properties["author_id"].Type)
}
