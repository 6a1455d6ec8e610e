package query

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr), "expected *domain.ValidationError, got %v", err)
	names := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		names = append(names, f.Field)
	}
	return names
}

func TestNormalize_Defaults(t *testing.T) {
	req, err := Normalize(url.Values{"q": {"  golang  "}}, "actor-1")
	require.NoError(t, err)

	assert.Equal(t, "golang", req.Query)
	assert.Equal(t, domain.ScopeAll, req.Scope)
	assert.Equal(t, domain.SortRelevance, req.SortBy)
	assert.Equal(t, domain.DateRangeAll, req.DateRange)
	assert.False(t, req.Verified)
	assert.Equal(t, 20, req.Limit)
	assert.Equal(t, 0, req.Offset)
	assert.Equal(t, "actor-1", req.ActorID)
}

func TestNormalize_CaseInsensitiveEnums(t *testing.T) {
	req, err := Normalize(url.Values{
		"q":         {"x"},
		"type":      {"USERS"},
		"sortBy":    {"Popularity"},
		"dateRange": {"WEEK"},
		"verified":  {"true"},
	}, "a")
	require.NoError(t, err)

	assert.Equal(t, domain.ScopeUsers, req.Scope)
	assert.Equal(t, domain.SortPopularity, req.SortBy)
	assert.Equal(t, domain.DateRangeWeek, req.DateRange)
	assert.True(t, req.Verified)
}

func TestNormalize_LimitClampedAboveMax(t *testing.T) {
	req, err := Normalize(url.Values{"q": {"x"}, "limit": {"500"}, "offset": {"40"}}, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.MaxLimit, req.Limit)
	assert.Equal(t, 40, req.Offset)
}

func TestNormalize_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		params url.Values
		fields []string
	}{
		{"missing query", url.Values{}, []string{"q"}},
		{"blank query", url.Values{"q": {"   "}}, []string{"q"}},
		{"query too long", url.Values{"q": {strings.Repeat("a", 201)}}, []string{"q"}},
		{"limit zero", url.Values{"q": {"x"}, "limit": {"0"}}, []string{"limit"}},
		{"limit not numeric", url.Values{"q": {"x"}, "limit": {"ten"}}, []string{"limit"}},
		{"negative offset", url.Values{"q": {"x"}, "offset": {"-1"}}, []string{"offset"}},
		{"unknown type", url.Values{"q": {"x"}, "type": {"rooms"}}, []string{"type"}},
		{"unknown sort", url.Values{"q": {"x"}, "sortBy": {"random"}}, []string{"sortBy"}},
		{"unknown range", url.Values{"q": {"x"}, "dateRange": {"decade"}}, []string{"dateRange"}},
		{"bad verified", url.Values{"q": {"x"}, "verified": {"maybe"}}, []string{"verified"}},
		{
			"every field reported",
			url.Values{"limit": {"-3"}, "offset": {"z"}, "type": {"nope"}},
			[]string{"q", "type", "limit", "offset"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Normalize(tt.params, "a")
			assert.Nil(t, req)
			assert.ElementsMatch(t, tt.fields, fieldNames(t, err))
		})
	}
}

func TestNormalize_QueryAtLimitAccepted(t *testing.T) {
	q := strings.Repeat("é", 200)
	req, err := Normalize(url.Values{"q": {q}}, "a")
	require.NoError(t, err)
	assert.Equal(t, q, req.Query)
}

func TestParsePage(t *testing.T) {
	limit, offset, err := ParsePage(url.Values{}, 20, 50)
	require.NoError(t, err)
	assert.Equal(t, 20, limit)
	assert.Equal(t, 0, offset)

	limit, offset, err = ParsePage(url.Values{"limit": {"99"}, "offset": {"5"}}, 20, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, limit)
	assert.Equal(t, 5, offset)

	_, _, err = ParsePage(url.Values{"limit": {"0"}, "offset": {"-2"}}, 20, 50)
	assert.ElementsMatch(t, []string{"limit", "offset"}, fieldNames(t, err))
}

func TestCutoff(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		r    domain.DateRange
		want time.Time
		ok   bool
	}{
		{domain.DateRangeAll, time.Time{}, false},
		{domain.DateRangeDay, now.Add(-24 * time.Hour), true},
		{domain.DateRangeWeek, time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC), true},
		{domain.DateRangeMonth, now.Add(-30 * 24 * time.Hour), true},
		{domain.DateRangeYear, now.Add(-365 * 24 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(string(tt.r), func(t *testing.T) {
			got, ok := Cutoff(tt.r, now)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got), "want %v got %v", tt.want, got)
		})
	}
}
