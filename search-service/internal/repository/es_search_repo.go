package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`)

func wildcard(field, term string) map[string]interface{} {
	return map[string]interface{}{
		"wildcard": map[string]interface{}{
			field: map[string]interface{}{
				"value":            "*" + wildcardEscaper.Replace(term) + "*",
				"case_insensitive": true,
			},
		},
	}
}

func term(field string, value interface{}) map[string]interface{} {
	return map[string]interface{}{"term": map[string]interface{}{field: value}}
}

func createdSince(t *time.Time) map[string]interface{} {
	return map[string]interface{}{
		"range": map[string]interface{}{
			"created_at": map[string]interface{}{"gte": t.UTC().Format(time.RFC3339Nano)},
		},
	}
}

// esSort translates "table.column DIR" order columns to an ES sort list.
func esSort(cols []string) []map[string]string {
	out := make([]map[string]string, 0, len(cols))
	for _, col := range cols {
		parts := strings.Fields(col)
		field := parts[0]
		if i := strings.LastIndex(field, "."); i >= 0 {
			field = field[i+1:]
		}
		dir := "asc"
		if len(parts) > 1 {
			dir = strings.ToLower(parts[1])
		}
		out = append(out, map[string]string{field: dir})
	}
	return out
}

// ESQuery compiles the criteria into an Elasticsearch search body.
func (c *UserCriteria) ESQuery() map[string]interface{} {
	boolQuery := map[string]interface{}{
		"should": []interface{}{
			wildcard("name", c.Term),
			wildcard("username", c.Term),
			wildcard("bio", c.Term),
		},
		"minimum_should_match": 1,
	}
	if c.ActorID != "" {
		boolQuery["must_not"] = []interface{}{term("id", c.ActorID)}
	}
	var filters []interface{}
	if c.VerifiedOnly {
		filters = append(filters, term("verified", true))
	}
	if c.Since != nil {
		filters = append(filters, createdSince(c.Since))
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}
	return searchBody(boolQuery, c.OrderColumns(), c.page)
}

// ESQuery compiles the criteria into an Elasticsearch search body.
// followingIDs are the authors the actor follows.
func (c *PostCriteria) ESQuery(followingIDs []string) map[string]interface{} {
	visibility := []interface{}{
		term("visibility", domain.VisibilityPublic),
		term("author_id", c.ActorID),
	}
	if len(followingIDs) > 0 {
		visibility = append(visibility, map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					term("visibility", domain.VisibilityFollowers),
					map[string]interface{}{"terms": map[string]interface{}{"author_id": followingIDs}},
				},
			},
		})
	}

	filters := []interface{}{
		map[string]interface{}{
			"bool": map[string]interface{}{
				"should":               visibility,
				"minimum_should_match": 1,
			},
		},
	}
	if c.Since != nil {
		filters = append(filters, createdSince(c.Since))
	}

	boolQuery := map[string]interface{}{
		"should": []interface{}{
			wildcard("content", c.Term),
			wildcard("title", c.Term),
		},
		"minimum_should_match": 1,
		"filter":               filters,
	}
	return searchBody(boolQuery, c.OrderColumns(), c.page)
}

func searchBody(boolQuery map[string]interface{}, order []string, p page) map[string]interface{} {
	body := map[string]interface{}{
		"query":            map[string]interface{}{"bool": boolQuery},
		"sort":             esSort(order),
		"track_total_hits": true,
		"from":             p.Offset,
	}
	if p.Limit > 0 {
		body["size"] = p.Limit
	}
	return body
}

// UserIndexMapping and PostIndexMapping are the mappings the ES providers
// expect. Matched text fields are "wildcard"-typed: a case-insensitive
// "*term*" query on an analyzed text field would only match single tokens,
// not arbitrary substrings of the value.
const (
	UserIndexMapping = `{
  "mappings": {
    "dynamic": "strict",
    "properties": {
      "id":             {"type": "keyword"},
      "name":           {"type": "wildcard"},
      "username":       {"type": "wildcard"},
      "bio":            {"type": "wildcard"},
      "avatar_url":     {"type": "keyword", "index": false},
      "verified":       {"type": "boolean"},
      "follower_count": {"type": "long"},
      "created_at":     {"type": "date"}
    }
  }
}`

	PostIndexMapping = `{
  "mappings": {
    "dynamic": "strict",
    "properties": {
      "id":            {"type": "keyword"},
      "author_id":     {"type": "keyword"},
      "title":         {"type": "wildcard"},
      "content":       {"type": "wildcard"},
      "visibility":    {"type": "keyword"},
      "like_count":    {"type": "long"},
      "comment_count": {"type": "long"},
      "created_at":    {"type": "date"},
      "author": {
        "properties": {
          "name":       {"type": "keyword"},
          "username":   {"type": "keyword"},
          "avatar_url": {"type": "keyword", "index": false},
          "verified":   {"type": "boolean"}
        }
      }
    }
  }
}`
)

// EnsureIndex creates index with mapping unless it already exists.
// It reports whether the index was created.
func EnsureIndex(ctx context.Context, client *elasticsearch.Client, index, mapping string) (bool, error) {
	res, err := client.Indices.Exists([]string{index}, client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to check index %s: %w", index, err)
	}
	res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return false, nil
	case http.StatusNotFound:
	default:
		return false, fmt.Errorf("failed to check index %s: %s", index, res.Status())
	}

	res, err = client.Indices.Create(index,
		client.Indices.Create.WithBody(strings.NewReader(mapping)),
		client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("failed to create index %s: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		// Another instance won the race.
		if bytes.Contains(body, []byte("resource_already_exists_exception")) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create index %s: %s", index, res.Status())
	}
	return true, nil
}

// esUserDoc is the indexed shape of a user. See UserIndexMapping.
type esUserDoc struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Username      string    `json:"username"`
	Bio           string    `json:"bio"`
	AvatarURL     string    `json:"avatar_url"`
	Verified      bool      `json:"verified"`
	FollowerCount int64     `json:"follower_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// esPostDoc is the indexed shape of a post with its author denormalized.
// See PostIndexMapping.
type esPostDoc struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"author_id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Visibility   string    `json:"visibility"`
	LikeCount    int64     `json:"like_count"`
	CommentCount int64     `json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
	Author       struct {
		Name      string `json:"name"`
		Username  string `json:"username"`
		AvatarURL string `json:"avatar_url"`
		Verified  bool   `json:"verified"`
	} `json:"author"`
}

// esResponse is the generic Elasticsearch search response structure.
type esResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func esSearch(ctx context.Context, client *elasticsearch.Client, index string, body map[string]interface{}) (*esResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := client.Search(
		client.Search.WithContext(ctx),
		client.Search.WithIndex(index),
		client.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch error: %s", res.String())
	}

	var result esResponse
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// ESUserProvider implements UserProvider against a users index.
// Follow state still comes from the record store.
type ESUserProvider struct {
	client  *elasticsearch.Client
	index   string
	follows FollowRepository
}

// NewESUserProvider creates an Elasticsearch-backed user provider.
func NewESUserProvider(client *elasticsearch.Client, index string, follows FollowRepository) *ESUserProvider {
	return &ESUserProvider{client: client, index: index, follows: follows}
}

func (p *ESUserProvider) Search(ctx context.Context, c *UserCriteria) ([]domain.UserSummary, int, error) {
	result, err := esSearch(ctx, p.client, p.index, c.ESQuery())
	if err != nil {
		return nil, 0, err
	}

	users := make([]domain.UserSummary, 0, len(result.Hits.Hits))
	ids := make([]string, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		var doc esUserDoc
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			return nil, 0, fmt.Errorf("failed to decode user hit: %w", err)
		}
		users = append(users, domain.UserSummary{
			ID:            doc.ID,
			Name:          doc.Name,
			Username:      doc.Username,
			Bio:           doc.Bio,
			AvatarURL:     doc.AvatarURL,
			Verified:      doc.Verified,
			FollowerCount: doc.FollowerCount,
			CreatedAt:     doc.CreatedAt,
		})
		ids = append(ids, doc.ID)
	}

	following, err := p.follows.BatchIsFollowing(ctx, c.ActorID, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range users {
		users[i].IsFollowing = following[users[i].ID]
	}

	return users, result.Hits.Total.Value, nil
}

// ESPostProvider implements PostProvider against a posts index.
type ESPostProvider struct {
	client  *elasticsearch.Client
	index   string
	follows FollowRepository
}

// NewESPostProvider creates an Elasticsearch-backed post provider.
func NewESPostProvider(client *elasticsearch.Client, index string, follows FollowRepository) *ESPostProvider {
	return &ESPostProvider{client: client, index: index, follows: follows}
}

func (p *ESPostProvider) Search(ctx context.Context, c *PostCriteria) ([]domain.PostSummary, int, error) {
	followingIDs, err := p.follows.FollowingIDs(ctx, c.ActorID)
	if err != nil {
		return nil, 0, err
	}

	result, err := esSearch(ctx, p.client, p.index, c.ESQuery(followingIDs))
	if err != nil {
		return nil, 0, err
	}

	posts := make([]domain.PostSummary, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		var doc esPostDoc
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			return nil, 0, fmt.Errorf("failed to decode post hit: %w", err)
		}
		posts = append(posts, domain.PostSummary{
			ID:           doc.ID,
			Title:        doc.Title,
			Content:      TruncateContent(doc.Content),
			Visibility:   doc.Visibility,
			LikeCount:    doc.LikeCount,
			CommentCount: doc.CommentCount,
			Author: domain.AuthorSummary{
				ID:        doc.AuthorID,
				Name:      doc.Author.Name,
				Username:  doc.Author.Username,
				AvatarURL: doc.Author.AvatarURL,
				Verified:  doc.Author.Verified,
			},
			CreatedAt: doc.CreatedAt,
		})
	}

	return posts, result.Hits.Total.Value, nil
}

var (
	_ UserProvider = (*ESUserProvider)(nil)
	_ PostProvider = (*ESPostProvider)(nil)
)
