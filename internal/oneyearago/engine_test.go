package oneyearago

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestParseCursor(t *testing.T) {
	cases := []struct {
		raw  string
		want cursorState
	}{
		{"", cursorState{yearsAgo: 1}},
		{"v1::3::", cursorState{yearsAgo: 3}},
		{"v1::3::abc", cursorState{yearsAgo: 3, apiCursor: "abc"}},
		{"garbage", cursorState{yearsAgo: 1}},
		{"v1::notanumber::x", cursorState{yearsAgo: 1}},
		{"v2::3::x", cursorState{yearsAgo: 1}},
	}
	for _, tc := range cases {
		if got := parseCursor(tc.raw); got != tc.want {
			t.Errorf("parseCursor(%q) = %+v, want %+v", tc.raw, got, tc.want)
		}
	}
}

func TestCursorState_Encode(t *testing.T) {
	s := cursorState{yearsAgo: 2, apiCursor: "xyz"}
	if got, want := s.encode(), "v1::2::xyz"; got != want {
		t.Errorf("encode() = %q, want %q", got, want)
	}
}

// fakeSearcher returns a fixed page of URIs per year, keyed by the "since"
// bound's year component, and never returns a next cursor — so the
// waterfall always advances to the prior year after one page.
type fakeSearcher struct {
	postsByYear map[int][]string
	calls       int
}

func (f *fakeSearcher) SearchPosts(ctx context.Context, q, sort, since, until, cursor string, limit int) ([]string, string, error) {
	f.calls++
	var year int
	fmt.Sscanf(since, "%d-", &year)
	uris := f.postsByYear[year]
	if len(uris) > limit {
		uris = uris[:limit]
	}
	return uris, "", nil
}

func TestWaterfall_AdvancesYearsUntilLimitReached(t *testing.T) {
	today := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	searcher := &fakeSearcher{postsByYear: map[int][]string{
		2025: {"at://a/1"},
		2024: {"at://a/2", "at://a/3"},
	}}

	uris, cursor, err := waterfall(context.Background(), searcher, "did:plc:test", 0, 3, cursorState{yearsAgo: 1}, today)
	if err != nil {
		t.Fatal(err)
	}
	if len(uris) != 3 {
		t.Fatalf("expected 3 uris, got %d: %v", len(uris), uris)
	}
	if cursor == "" {
		t.Fatal("expected a continuation cursor once the limit is reached")
	}
}

func TestWaterfall_StopsAtMinSearchYear(t *testing.T) {
	today := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	searcher := &fakeSearcher{postsByYear: map[int][]string{}}

	uris, cursor, err := waterfall(context.Background(), searcher, "did:plc:test", 0, 10, cursorState{yearsAgo: 1}, today)
	if err != nil {
		t.Fatal(err)
	}
	if len(uris) != 0 {
		t.Fatalf("expected no uris, got %v", uris)
	}
	if cursor != "" {
		t.Fatalf("expected an empty cursor once minSearchYear is passed, got %q", cursor)
	}
}

func TestDateInYear_HandlesLeapDay(t *testing.T) {
	today := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	got := dateInYear(today, 2023)
	if got.Month() != time.February || got.Day() != 28 {
		t.Fatalf("expected Feb 28 substitution, got %v", got)
	}
}
