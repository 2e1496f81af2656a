// Package models defines data structures shared across the application.
package models

import (
	"time"
)

// DateLayout is the calendar date format used in configuration and by trackers.
const DateLayout = "2006-01-02"

// Status represents one entry of a tracker's status vocabulary.
type Status struct {
	// ID is the tracker-internal identifier (e.g., "5" in Redmine, "10001" in JIRA)
	ID string

	// Name is the human-readable status name (e.g., "Feedback")
	Name string
}

// Journal represents one history entry of a ticket.
type Journal struct {
	// Notes is the comment text of the entry. Nil means the entry carries no notes
	// at all, which is not the same as an empty comment.
	Notes *string
}

// Ticket is the read-only view of a tracker issue.
type Ticket struct {
	// ID identifies the ticket in its tracker (e.g., "42", "PROJ-7", "owner/repo#12")
	ID string

	// Project is the name of the project the ticket belongs to
	Project string

	// Subject is the ticket's title or summary
	Subject string

	// Author is the display name of the ticket's author
	Author string

	// URL is the browser link to the ticket
	URL string

	// Description is the full body text of the ticket
	Description string

	// Status is the ticket's current status
	Status Status

	// StartDate is the calendar date work is planned to start, if set
	StartDate *time.Time

	// DueDate is the calendar date the ticket is due, if set
	DueDate *time.Time

	// UpdatedOn is the timestamp of the last update
	UpdatedOn time.Time

	// ClosedOn is the timestamp when the ticket was closed, if it was
	ClosedOn *time.Time

	// Journals holds the ticket's history entries in tracker order
	Journals []Journal
}

// Action is one configured maintenance rule.
type Action struct {
	// Name is the action's key in the configuration
	Name string

	// TimeRange is the lookback in days; tickets updated within it are left alone
	TimeRange int

	// StartDate is the lower bound of the update window (YYYY-MM-DD)
	StartDate string

	// Projects restricts candidates to these project names
	Projects []string

	// Status restricts candidates to these status names
	Status []string

	// Template names the comment template
	Template string

	// CloseTicket enables the close outcome
	CloseTicket bool

	// ChangeStatusTo is a status name or id to apply, empty when unset
	ChangeStatusTo string
}

// CivilDate returns the calendar date of t, as seen in t's location, at midnight UTC.
// Dates produced this way compare correctly regardless of the zone they came from.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
