package util

import (
	"fmt"
	"time"
)

// RelativeTime renders t relative to now the way the history list shows it:
// minutes under an hour, hours under a day, days under a week, then the date.
func RelativeTime(t, now time.Time) string {
	diff := now.Sub(t)
	if diff < 0 {
		diff = 0
	}

	switch {
	case diff < time.Hour:
		return fmt.Sprintf("%dmin atrás", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh atrás", int(diff/time.Hour))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd atrás", int(diff/(24*time.Hour)))
	}
	return t.Local().Format("02/01/2006")
}

// UnixMilli is the history id clock. Tests replace it.
var UnixMilli = func() int64 {
	return time.Now().UnixMilli()
}
