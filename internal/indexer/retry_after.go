package indexer

import (
	"net/http"
	"strconv"
	"time"
)

// parseRetryAfter reads a Retry-After header in either delta-seconds or HTTP-date form.
// Missing, malformed or past values yield 0.
func parseRetryAfter(header http.Header) time.Duration {
	val := header.Get("Retry-After")
	if val == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(val); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(val); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}

	return 0
}
