package query

import (
	"time"

	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

const day = 24 * time.Hour

// Cutoff returns the earliest createdAt admitted by r relative to now.
// ok is false for DateRangeAll, meaning no lower bound.
func Cutoff(r domain.DateRange, now time.Time) (cutoff time.Time, ok bool) {
	switch r {
	case domain.DateRangeDay:
		return now.Add(-day), true
	case domain.DateRangeWeek:
		return now.Add(-7 * day), true
	case domain.DateRangeMonth:
		return now.Add(-30 * day), true
	case domain.DateRangeYear:
		return now.Add(-365 * day), true
	}
	return time.Time{}, false
}
