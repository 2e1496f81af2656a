package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/marvin/pkg/models"
)

func TestDaysSince(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 3, DaysSince(now, now.Add(-(3*24+2)*time.Hour), time.UTC))
	assert.Equal(t, 0, DaysSince(now, now.Add(-23*time.Hour), time.UTC))
	assert.Equal(t, 1, DaysSince(now, now.Add(-24*time.Hour), time.UTC))
	assert.Equal(t, -1, DaysSince(now, now.Add(time.Hour), time.UTC))
}

func TestDaysSinceCountsWallClockDays(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// Clocks move forward on 2024-03-31, so only 71 hours pass
	updated := time.Date(2024, 3, 30, 12, 0, 0, 0, berlin)
	now := time.Date(2024, 4, 2, 12, 0, 0, 0, berlin)

	assert.Equal(t, 3, DaysSince(now, updated, berlin))
	assert.Equal(t, 2, DaysSince(now, updated, time.UTC))
}

func TestBuildContextLastUpdateAgo(t *testing.T) {
	now := time.Date(2024, 1, 30, 12, 0, 0, 0, time.UTC)
	testCases := []struct {
		name     string
		updated  time.Time
		expected string
	}{
		{name: "Hours", updated: now.Add(-5 * time.Hour), expected: "5 hours ago"},
		{name: "Three days", updated: now.Add(-(3*24 + 2) * time.Hour), expected: "3 days ago"},
		{name: "Two weeks", updated: now.Add(-14 * 24 * time.Hour), expected: "14 days ago"},
		{name: "Months", updated: now.Add(-95 * 24 * time.Hour), expected: "3 months ago"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := BuildContext(ContextInput{
				Ticket: models.Ticket{ID: "1", UpdatedOn: tc.updated},
				Now:    now,
			})
			assert.Equal(t, tc.expected, data["last_update_ago"])
		})
	}
}

func TestBuildContext(t *testing.T) {
	loc := time.FixedZone("CET", 60*60)
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	ticket := models.Ticket{
		ID:        "42",
		Project:   "Operations",
		Subject:   "Printer on fire",
		Author:    "Jane Doe",
		URL:       "https://redmine.example.com/issues/42",
		Status:    models.Status{ID: "4", Name: "Feedback"},
		StartDate: day("2023-12-01"),
		UpdatedOn: now.Add(-(3*24 + 2) * time.Hour),
		Journals: []models.Journal{
			{Notes: models.StringPtr("first")},
			{Notes: nil},
			{Notes: models.StringPtr("second")},
		},
	}
	action := models.Action{Name: "close-stale", TimeRange: 3}

	data := BuildContext(ContextInput{
		Ticket:       ticket,
		Action:       action,
		Outcome:      Outcome{Kind: Close, StatusID: "5"},
		TargetStatus: "Closed",
		Now:          now,
		Location:     loc,
		NoBotTag:     "#nobot",
	})

	assert.Equal(t, "42", data["id"])
	assert.Equal(t, "Printer on fire", data["subject"])
	assert.Equal(t, "https://redmine.example.com/issues/42", data["url"])
	assert.Equal(t, "Jane Doe", data["author"])
	assert.Equal(t, "Operations", data["project"])
	assert.Equal(t, "Feedback", data["status"])
	assert.Equal(t, "4", data["status_id"])
	assert.Equal(t, "Closed", data["target_status"])
	assert.Equal(t, "5", data["target_status_id"])
	assert.Equal(t, "close", data["outcome"])
	assert.Equal(t, "close-stale", data["action"])
	assert.Equal(t, 3, data["time_range"])
	assert.Equal(t, 3, data["days_since_last_update"])
	assert.Equal(t, "2024-01-07T11:00:00+01:00", data["updated_on"])
	assert.Equal(t, "2023-12-01", data["start_date"])
	assert.Equal(t, "", data["due_date"])
	assert.Equal(t, []string{"first", "second"}, data["journals"])
	assert.Equal(t, "#nobot", data["no_bot_tag"])
	assert.Equal(t, "2024-01-10", data["today"])
	assert.Contains(t, data["last_update_ago"], "days ago")
}

func TestBuildContextDefaultsToUTC(t *testing.T) {
	now := time.Date(2024, 1, 10, 23, 30, 0, 0, time.UTC)
	data := BuildContext(ContextInput{
		Ticket: models.Ticket{ID: "1", UpdatedOn: now},
		Now:    now,
	})

	assert.Equal(t, "2024-01-10", data["today"])
	assert.Equal(t, 0, data["days_since_last_update"])
	assert.Equal(t, "comment", data["outcome"])
}
