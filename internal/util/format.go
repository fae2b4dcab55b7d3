package util

import (
	"time"

	"github.com/dustin/go-humanize"
)

// FormatBytes formats a byte count in human-readable form (e.g. "1.2 MB")
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.Bytes(uint64(bytes))
}

// FormatAgo formats a point in time relative to now (e.g. "3 minutes ago")
func FormatAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}
