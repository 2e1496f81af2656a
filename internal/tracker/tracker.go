// Package tracker defines the boundary between the rule engine and the remote
// issue-tracking service.
package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/danielolaszy/marvin/pkg/models"
)

// StatusLister returns the tracker's full status vocabulary in the tracker's own order.
type StatusLister interface {
	Statuses(ctx context.Context) ([]models.Status, error)
}

// IssueMatcher returns the open tickets satisfying a Query.
type IssueMatcher interface {
	MatchIssues(ctx context.Context, q Query) ([]models.Ticket, error)
}

// Updater applies a decided mutation to a ticket.
type Updater interface {
	UpdateIssue(ctx context.Context, u Update) error
}

// Client is a complete tracker backend.
type Client interface {
	StatusLister
	IssueMatcher
	Updater

	// Name identifies the backend in logs (e.g., "redmine").
	Name() string
}

// Query is the candidate predicate of one action. Tickets must belong to one of
// Projects, have one of Statuses, have no close timestamp, and have been updated
// between UpdatedFrom and UpdatedTo, both calendar dates inclusive.
type Query struct {
	Projects    []string
	Statuses    []string
	UpdatedFrom string
	UpdatedTo   string

	// Location is the zone the window dates are calendar dates in. Nil means UTC.
	Location *time.Location
}

// Zone returns q.Location, or UTC when unset.
func (q Query) Zone() *time.Location {
	if q.Location == nil {
		return time.UTC
	}
	return q.Location
}

// Update is a comment, optionally combined with a status change.
type Update struct {
	TicketID string
	Notes    string

	// StatusID is applied when non-empty; empty leaves the status unchanged.
	StatusID string
}

// ConnectionError reports that a backend could not be reached or rejected the credentials.
type ConnectionError struct {
	Backend string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Contains reports whether values holds s, compared exactly.
func Contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
