package oneyearago

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	utcOffsetRe = regexp.MustCompile(`(?i)UTC([+-]\d{1,2}(?::\d{2})?)`)
)

// parseTimezoneDescription extracts a fixed UTC offset, in seconds, from a
// profile bio. It recognizes "UTC+9", "UTC-05:00", "utc+5:30" and the
// literal substring "Asia/Tokyo" (treated as +9h). Anything else, including
// other timezone abbreviations, yields no match.
func parseTimezoneDescription(description string) (int, bool) {
	if m := utcOffsetRe.FindStringSubmatch(description); m != nil {
		offset, ok := parseOffset(m[1])
		if ok {
			return offset, true
		}
	}

	if strings.Contains(strings.ToLower(description), "asia/tokyo") {
		return 9 * 3600, true
	}

	return 0, false
}

// parseOffset parses a signed "+9" / "-05:00" / "+5:30" string into seconds.
func parseOffset(s string) (int, bool) {
	if len(s) == 0 {
		return 0, false
	}
	sign := 1
	if s[0] == '-' {
		sign = -1
	}
	s = s[1:]

	hours, minutes := 0, 0
	parts := strings.SplitN(s, ":", 2)
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	hours = h
	if len(parts) > 1 {
		m, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, false
		}
		minutes = m
	}

	return sign * (hours*3600 + minutes*60), true
}

// profileFetcher is the subset of bskyapi.Client the timezone resolver
// needs; the real implementation is *bskyapi.Client.
type profileFetcher interface {
	GetProfile(ctx context.Context, actor string) (description string, err error)
}

// resolveTimezone returns the requester's UTC offset in seconds, consulting
// the 24h cache first. A profile fetch failure, or a bio with no
// recognizable timezone marker, defaults to UTC rather than failing the
// read path.
func resolveTimezone(ctx context.Context, cache *cacheStore, profiles profileFetcher, did string, now time.Time) (int, error) {
	if offset, ok, err := cache.getTimezone(ctx, did, now); err != nil {
		return 0, err
	} else if ok {
		return offset, nil
	}

	offset := 0
	if description, err := profiles.GetProfile(ctx, did); err == nil {
		if parsed, ok := parseTimezoneDescription(description); ok {
			offset = parsed
		}
	}

	if err := cache.setTimezone(ctx, did, offset, now); err != nil {
		return offset, err
	}
	return offset, nil
}
