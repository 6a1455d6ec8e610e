package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
	"github.com/weiawesome/wes-io-live/search-service/internal/query"
)

// APIError is a non-2xx reply from the search endpoint.
type APIError struct {
	Status  int
	Code    string
	Message string
	Fields  []domain.FieldError
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("search returned %d %s: %s", e.Status, e.Code, e.Message)
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Message
	}
	return fmt.Sprintf("search returned %d %s: %s", e.Status, e.Code, strings.Join(parts, "; "))
}

type searchEnvelope struct {
	Success bool                   `json:"success"`
	Data    *domain.SearchResponse `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Fields  []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"fields"`
	} `json:"error"`
}

// HTTPTransport calls GET /api/v1/search on a search service.
type HTTPTransport struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPTransport creates a transport authenticating with a bearer token.
func NewHTTPTransport(baseURL, token string) *HTTPTransport {
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Search implements Transport.
func (t *HTTPTransport) Search(ctx context.Context, p Params) (*domain.SearchResponse, error) {
	values := url.Values{}
	values.Set(query.ParamQuery, p.Query)
	if p.Scope != "" {
		values.Set(query.ParamType, string(p.Scope))
	}
	if p.SortBy != "" {
		values.Set(query.ParamSortBy, string(p.SortBy))
	}
	if p.DateRange != "" {
		values.Set(query.ParamDateRange, string(p.DateRange))
	}
	if p.Verified {
		values.Set(query.ParamVerified, "true")
	}
	if p.Limit > 0 {
		values.Set(query.ParamLimit, strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		values.Set(query.ParamOffset, strconv.Itoa(p.Offset))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/api/v1/search?"+values.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call search: %w", err)
	}
	defer resp.Body.Close()

	var env searchEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || !env.Success || env.Data == nil {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			for _, f := range env.Error.Fields {
				apiErr.Fields = append(apiErr.Fields, domain.FieldError{Field: f.Field, Message: f.Message})
			}
		}
		return nil, apiErr
	}

	return env.Data, nil
}
