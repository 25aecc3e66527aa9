package application

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortOrder selects the ordering of a dashboard listing.
type SortOrder string

const (
	// SortScheduledDate orders by scheduled date, earliest first.
	SortScheduledDate SortOrder = "scheduledDate"
	// SortTitle orders by title using locale-aware collation.
	SortTitle SortOrder = "title"
	// SortCreatedAt orders by creation time, newest first.
	SortCreatedAt SortOrder = "createdAt"
)

// Query describes a dashboard listing. An empty Sort means SortScheduledDate;
// unrecognised values fall back to SortCreatedAt.
type Query struct {
	Search   string
	Category string
	Sort     SortOrder
}

// FilterMessages returns the messages matching q in the requested order. The
// search term matches title or content case-insensitively and Category, when
// set, must match exactly.
func FilterMessages(messages []Message, q Query) []Message {
	fold := cases.Fold()
	term := fold.String(q.Search)

	result := make([]Message, 0, len(messages))
	for _, message := range messages {
		if term != "" &&
			!strings.Contains(fold.String(message.Title), term) &&
			!strings.Contains(fold.String(message.Content), term) {
			continue
		}
		if q.Category != "" && message.Category != q.Category {
			continue
		}
		result = append(result, message)
	}

	switch q.Sort {
	case "", SortScheduledDate:
		slices.SortStableFunc(result, func(a, b Message) int {
			return a.ScheduledDate.Compare(b.ScheduledDate)
		})
	case SortTitle:
		collator := collate.New(language.Und)
		slices.SortStableFunc(result, func(a, b Message) int {
			return collator.CompareString(a.Title, b.Title)
		})
	default:
		slices.SortStableFunc(result, func(a, b Message) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
	}
	return result
}

// Categories returns the distinct non-empty categories in first-seen order.
func Categories(messages []Message) []string {
	var categories []string
	for _, message := range messages {
		if message.Category != "" && !slices.Contains(categories, message.Category) {
			categories = append(categories, message.Category)
		}
	}
	return categories
}

// NextUpcoming returns the first undelivered message scheduled after now, in
// the order given. Pass the result of FilterMessages to follow the listing.
func NextUpcoming(messages []Message, now time.Time) (Message, bool) {
	for _, message := range messages {
		if message.ScheduledDate.After(now) && !message.IsDelivered {
			return message, true
		}
	}
	return Message{}, false
}

// MessagesOn returns the messages whose scheduled date falls on the calendar
// day of day, evaluated in loc.
func MessagesOn(messages []Message, day time.Time, loc *time.Location) []Message {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := day.In(loc).Date()

	var result []Message
	for _, message := range messages {
		my, mm, md := message.ScheduledDate.In(loc).Date()
		if my == y && mm == m && md == d {
			result = append(result, message)
		}
	}
	return result
}

// CountOn returns the number of messages scheduled on the calendar day of day.
func CountOn(messages []Message, day time.Time, loc *time.Location) int {
	return len(MessagesOn(messages, day, loc))
}
