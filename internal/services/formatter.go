package services

import (
	"fmt"
	"time"
)

// FormatDateTime formats t like "2 Jan 2006, 15:04".
func FormatDateTime(t time.Time) string {
	return t.Format("2 Jan 2006, 15:04")
}

// FormatTimeAgo renders the time elapsed since t in the largest whole unit.
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	days := int(diff.Hours()) / 24
	hours := int(diff.Hours()) % 24
	minutes := int(diff.Minutes()) % 60

	switch {
	case days > 0:
		return plural(days, "day") + " ago"
	case hours > 0:
		return plural(hours, "hour") + " ago"
	case minutes > 0:
		return plural(minutes, "minute") + " ago"
	}
	return "just now"
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
