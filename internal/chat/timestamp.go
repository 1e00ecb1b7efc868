// Package chat drives the question/answer/feedback cycle against the
// backend LLM endpoint, including the optimistic transcript and the
// citation deep links.
package chat

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ParseTimestamp converts a citation clock string to whole seconds.
// Accepted shapes are "HH:MM:SS", "HH:MM:SS,mmm" and "MM:SS"; the
// millisecond part is truncated. Anything else yields 0.
func ParseTimestamp(ts string) int {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return 0
	}

	// Strip a ",mmm" millisecond suffix.
	if i := strings.IndexByte(ts, ','); i >= 0 {
		if _, ok := parseClockPart(ts[i+1:]); !ok {
			return 0
		}
		ts = ts[:i]
	}

	parts := strings.Split(ts, ":")
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, ok := parseClockPart(p)
		if !ok {
			return 0
		}
		nums[i] = n
	}

	switch len(nums) {
	case 2:
		return nums[0]*60 + nums[1]
	case 3:
		return nums[0]*3600 + nums[1]*60 + nums[2]
	default:
		return 0
	}
}

// parseClockPart parses a non-empty run of ASCII digits.
func parseClockPart(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// WatchLink is the web player deep link that seeks videoID to the given
// second on load.
func WatchLink(webBase, videoID string, seconds int) string {
	return fmt.Sprintf("%s/videos/%s?t=%d", strings.TrimRight(webBase, "/"), url.PathEscape(videoID), seconds)
}

// ShareWatchLink is the public share-view equivalent of WatchLink.
func ShareWatchLink(webBase, token, videoID string, seconds int) string {
	q := url.Values{}
	q.Set("v", videoID)
	q.Set("t", strconv.Itoa(seconds))
	return fmt.Sprintf("%s/share/%s?%s", strings.TrimRight(webBase, "/"), url.PathEscape(token), q.Encode())
}
