package application

import (
	"slices"
	"testing"
	"time"
)

func queryFixtures() []Message {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []Message{
		{ID: "birthday", Title: "Birthday wishes", Content: "Happy birthday!", Category: "Birthday", ScheduledDate: base.Add(7 * 24 * time.Hour), CreatedAt: base},
		{ID: "work", Title: "Project reminder", Content: "Check the quarterly report", Category: "Work", ScheduledDate: base.Add(14 * 24 * time.Hour), CreatedAt: base.Add(time.Hour)},
		{ID: "reminder", Title: "annual checkup", Content: "Book the dentist", Category: "Reminder", ScheduledDate: base.Add(30 * 24 * time.Hour), CreatedAt: base.Add(2 * time.Hour)},
		{ID: "motivation", Title: "Keep going", Content: "You are doing great", ScheduledDate: base.Add(6 * time.Hour), CreatedAt: base.Add(3 * time.Hour)},
	}
}

func ids(messages []Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.ID)
	}
	return out
}

func TestFilterMessages(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		query Query
		want  []string
	}{
		"default sort is scheduled date": {query: Query{}, want: []string{"motivation", "birthday", "work", "reminder"}},
		"title collation ignores case":   {query: Query{Sort: SortTitle}, want: []string{"reminder", "birthday", "motivation", "work"}},
		"created at newest first":        {query: Query{Sort: SortCreatedAt}, want: []string{"motivation", "reminder", "work", "birthday"}},
		"unknown sort uses created at":   {query: Query{Sort: "priority"}, want: []string{"motivation", "reminder", "work", "birthday"}},
		"search matches title":           {query: Query{Search: "BIRTHDAY"}, want: []string{"birthday"}},
		"search matches content":         {query: Query{Search: "dentist"}, want: []string{"reminder"}},
		"category is exact":              {query: Query{Category: "Work"}, want: []string{"work"}},
		"category is case-sensitive":     {query: Query{Category: "work"}, want: []string{}},
		"search and category combine":    {query: Query{Search: "report", Category: "Birthday"}, want: []string{}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := ids(FilterMessages(queryFixtures(), tc.query)); !slices.Equal(got, tc.want) {
				t.Fatalf("FilterMessages = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCategories(t *testing.T) {
	t.Parallel()

	messages := append(queryFixtures(), Message{ID: "extra", Category: "Work"})
	if got := Categories(messages); !slices.Equal(got, []string{"Birthday", "Work", "Reminder"}) {
		t.Fatalf("Categories = %v", got)
	}
	if got := Categories(nil); len(got) != 0 {
		t.Fatalf("expected no categories, got %v", got)
	}
}

func TestNextUpcoming(t *testing.T) {
	t.Parallel()

	messages := FilterMessages(queryFixtures(), Query{})
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	next, ok := NextUpcoming(messages, now)
	if !ok || next.ID != "motivation" {
		t.Fatalf("NextUpcoming = %v, %v", next.ID, ok)
	}

	messages[0].IsDelivered = true
	if next, _ := NextUpcoming(messages, now); next.ID != "birthday" {
		t.Fatalf("expected delivered message to be skipped, got %v", next.ID)
	}

	if _, ok := NextUpcoming(messages, now.Add(365*24*time.Hour)); ok {
		t.Fatal("expected nothing upcoming far in the future")
	}
}

func TestMessagesOn(t *testing.T) {
	t.Parallel()

	messages := queryFixtures()
	day := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	if got := ids(MessagesOn(messages, day, time.UTC)); !slices.Equal(got, []string{"birthday"}) {
		t.Fatalf("MessagesOn = %v", got)
	}
	if got := CountOn(messages, day.Add(-7*24*time.Hour), time.UTC); got != 1 {
		t.Fatalf("expected motivation on March 1st, got %d", got)
	}

	tokyo := time.FixedZone("JST", 9*60*60)
	if got := CountOn(messages, time.Date(2024, 3, 2, 0, 0, 0, 0, tokyo), tokyo); got != 1 {
		t.Fatalf("expected motivation to move to March 2nd in JST, got %d", got)
	}
}
