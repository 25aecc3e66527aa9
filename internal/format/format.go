// Package format renders message dates for display.
package format

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	clockLayout = "3:04 PM"
	dateLayout  = "Jan 2, 2006 at 3:04 PM"
)

// Date formats t as "Today at 3:04 PM", "Tomorrow at 3:04 PM" or
// "Jan 2, 2006 at 3:04 PM", with the day relative to now in t's location.
func Date(t, now time.Time) string {
	local := now.In(t.Location())
	switch {
	case sameDay(t, local):
		return "Today at " + t.Format(clockLayout)
	case sameDay(t, local.AddDate(0, 0, 1)):
		return "Tomorrow at " + t.Format(clockLayout)
	}
	return t.Format(dateLayout)
}

// Relative formats the distance between t and now, such as "in 6 days" or
// "3 hours ago".
func Relative(t, now time.Time) string {
	if t.After(now) {
		return "in " + strings.TrimSpace(humanize.RelTime(t, now, "", ""))
	}
	return humanize.RelTime(t, now, "ago", "")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
