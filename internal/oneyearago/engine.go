package oneyearago

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minSearchYear = 2023

// postSearcher is the subset of bskyapi.Client the waterfall needs.
type postSearcher interface {
	SearchPosts(ctx context.Context, q, sort, since, until, cursor string, limit int) (uris []string, nextCursor string, err error)
}

// cursorState is the parsed form of the oneyearago cursor grammar
// v1::{years_ago}::{api_cursor}.
type cursorState struct {
	yearsAgo  int
	apiCursor string
}

// parseCursor decodes the wire cursor, resetting to the start state on any
// malformed input.
func parseCursor(raw string) cursorState {
	if raw == "" {
		return cursorState{yearsAgo: 1}
	}
	parts := strings.SplitN(raw, "::", 3)
	if len(parts) < 2 || parts[0] != "v1" {
		return cursorState{yearsAgo: 1}
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || n < 1 {
		return cursorState{yearsAgo: 1}
	}
	state := cursorState{yearsAgo: n}
	if len(parts) == 3 {
		state.apiCursor = parts[2]
	}
	return state
}

func (s cursorState) encode() string {
	return fmt.Sprintf("v1::%d::%s", s.yearsAgo, s.apiCursor)
}

// waterfall runs the one-year-ago search: starting at state.yearsAgo,
// it searches each prior calendar year's matching local day, accumulating
// URIs until limit is reached or minSearchYear is passed.
func waterfall(ctx context.Context, searcher postSearcher, did string, offsetSeconds, limit int, state cursorState, today time.Time) ([]string, string, error) {
	loc := time.FixedZone("requester", offsetSeconds)
	todayLocal := today.In(loc)

	var acc []string
	yearsAgo := state.yearsAgo
	apiCursor := state.apiCursor

	for {
		if len(acc) >= limit {
			return acc, cursorState{yearsAgo: yearsAgo, apiCursor: apiCursor}.encode(), nil
		}

		targetYear := todayLocal.Year() - yearsAgo
		if targetYear < minSearchYear {
			return acc, "", nil
		}

		targetDate := dateInYear(todayLocal, targetYear)
		since, until := dayBoundsUTC(targetDate, loc)

		fetchLimit := limit - len(acc)
		q := "from:" + did
		uris, nextCursor, err := searcher.SearchPosts(ctx, q, "latest", since, until, apiCursor, fetchLimit)
		if err != nil {
			apiCursor = ""
			yearsAgo++
			continue
		}

		acc = append(acc, uris...)
		if nextCursor == "" {
			apiCursor = ""
			yearsAgo++
		} else {
			apiCursor = nextCursor
		}
	}
}

// dateInYear substitutes Feb 28 for Feb 29 when targetYear isn't a leap
// year, so "a year ago today" never panics on a leap day.
func dateInYear(today time.Time, targetYear int) time.Time {
	month, day := today.Month(), today.Day()
	if month == time.February && day == 29 && !isLeapYear(targetYear) {
		day = 28
	}
	return time.Date(targetYear, month, day, 0, 0, 0, 0, today.Location())
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// dayBoundsUTC converts [date 00:00, date+1 00:00) in loc to RFC3339 UTC
// strings for the since/until search bounds.
func dayBoundsUTC(date time.Time, loc *time.Location) (since, until string) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339)
}
