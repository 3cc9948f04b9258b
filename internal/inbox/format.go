package inbox

import (
	"fmt"
	"time"
)

// FormatRelativeTime returns a short human-friendly age for t, such as
// "Just now" or "5 minutes ago". Beyond a day it falls back to the date.
func FormatRelativeTime(t time.Time) string {
	return formatRelativeTime(t, time.Now())
}

func formatRelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case d < 24*time.Hour:
		hrs := int(d.Hours())
		if hrs == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hrs)
	default:
		return t.In(now.Location()).Format("Jan 2, 2006")
	}
}
