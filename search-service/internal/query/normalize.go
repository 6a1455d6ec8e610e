// Package query turns raw search parameters into a normalized SearchRequest.
package query

import (
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

// Parameter names accepted on the search endpoint.
const (
	ParamQuery     = "q"
	ParamType      = "type"
	ParamLimit     = "limit"
	ParamOffset    = "offset"
	ParamSortBy    = "sortBy"
	ParamDateRange = "dateRange"
	ParamVerified  = "verified"
)

// Normalize validates params and builds a SearchRequest for actorID.
// Every offending field is reported in a single *domain.ValidationError.
// A limit above domain.MaxLimit is clamped rather than rejected.
func Normalize(params url.Values, actorID string) (*domain.SearchRequest, error) {
	verr := &domain.ValidationError{}
	req := &domain.SearchRequest{
		Limit:   domain.DefaultLimit,
		ActorID: actorID,
	}

	q := strings.TrimSpace(params.Get(ParamQuery))
	switch {
	case q == "":
		verr.Add(ParamQuery, "is required")
	case utf8.RuneCountInString(q) > domain.MaxQueryLength:
		verr.Add(ParamQuery, "must be at most 200 characters")
	default:
		req.Query = q
	}

	var err error
	if req.Scope, err = domain.ParseScope(params.Get(ParamType)); err != nil {
		verr.Add(ParamType, err.Error())
	}
	if req.SortBy, err = domain.ParseSortBy(params.Get(ParamSortBy)); err != nil {
		verr.Add(ParamSortBy, err.Error())
	}
	if req.DateRange, err = domain.ParseDateRange(params.Get(ParamDateRange)); err != nil {
		verr.Add(ParamDateRange, err.Error())
	}

	if raw := strings.TrimSpace(params.Get(ParamLimit)); raw != "" {
		n, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			verr.Add(ParamLimit, "must be an integer")
		case n < 1:
			verr.Add(ParamLimit, "must be at least 1")
		case n > domain.MaxLimit:
			req.Limit = domain.MaxLimit
		default:
			req.Limit = n
		}
	}

	if raw := strings.TrimSpace(params.Get(ParamOffset)); raw != "" {
		n, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			verr.Add(ParamOffset, "must be an integer")
		case n < 0:
			verr.Add(ParamOffset, "must not be negative")
		default:
			req.Offset = n
		}
	}

	if raw := strings.TrimSpace(params.Get(ParamVerified)); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			verr.Add(ParamVerified, "must be a boolean")
		} else {
			req.Verified = b
		}
	}

	if verr.HasErrors() {
		return nil, verr
	}
	return req, nil
}

// ParsePage reads limit and offset for list endpoints.
// An absent limit yields def and a limit above max is clamped.
func ParsePage(params url.Values, def, max int) (limit, offset int, err error) {
	verr := &domain.ValidationError{}
	limit = def

	if raw := strings.TrimSpace(params.Get(ParamLimit)); raw != "" {
		n, convErr := strconv.Atoi(raw)
		switch {
		case convErr != nil:
			verr.Add(ParamLimit, "must be an integer")
		case n < 1:
			verr.Add(ParamLimit, "must be at least 1")
		case n > max:
			limit = max
		default:
			limit = n
		}
	}
	if raw := strings.TrimSpace(params.Get(ParamOffset)); raw != "" {
		n, convErr := strconv.Atoi(raw)
		switch {
		case convErr != nil:
			verr.Add(ParamOffset, "must be an integer")
		case n < 0:
			verr.Add(ParamOffset, "must not be negative")
		default:
			offset = n
		}
	}
	return limit, offset, verr.OrNil()
}
