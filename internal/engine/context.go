package engine

import (
	"time"

	"github.com/xeonx/timeago"

	"github.com/danielolaszy/marvin/pkg/models"
)

// relativeTime phrases any age as "N units ago"; the English preset falls back
// to a bare date after three days.
var relativeTime = timeago.NoMax(timeago.English)

// ContextInput is everything a comment template can refer to for one ticket.
type ContextInput struct {
	Ticket       models.Ticket
	Action       models.Action
	Outcome      Outcome
	TargetStatus string
	Now          time.Time
	Location     *time.Location
	NoBotTag     string
}

// DaysSince returns the whole days elapsed between updated and now, rounded down,
// counted on the wall clock of loc. A day that gains or loses an hour to a DST
// change still counts as one day.
func DaysSince(now, updated time.Time, loc *time.Location) int {
	elapsed := wallClock(now, loc).Sub(wallClock(updated, loc))
	days := int(elapsed / (24 * time.Hour))
	if elapsed < 0 && elapsed%(24*time.Hour) != 0 {
		days--
	}
	return days
}

// wallClock reads t in loc and returns the same clock reading in UTC.
func wallClock(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// BuildContext assembles the template variables for one ticket and action.
func BuildContext(in ContextInput) map[string]any {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	now := in.Now.In(loc)
	updated := in.Ticket.UpdatedOn.In(loc)

	journals := make([]string, 0, len(in.Ticket.Journals))
	for _, j := range in.Ticket.Journals {
		if j.Notes != nil {
			journals = append(journals, *j.Notes)
		}
	}

	return map[string]any{
		"id":                     in.Ticket.ID,
		"subject":                in.Ticket.Subject,
		"url":                    in.Ticket.URL,
		"author":                 in.Ticket.Author,
		"project":                in.Ticket.Project,
		"status":                 in.Ticket.Status.Name,
		"status_id":              in.Ticket.Status.ID,
		"target_status":          in.TargetStatus,
		"target_status_id":       in.Outcome.StatusID,
		"outcome":                in.Outcome.Kind.String(),
		"action":                 in.Action.Name,
		"time_range":             in.Action.TimeRange,
		"days_since_last_update": DaysSince(now, updated, loc),
		"last_update_ago":        relativeTime.FormatReference(updated, now),
		"updated_on":             updated.Format(time.RFC3339),
		"start_date":             formatDate(in.Ticket.StartDate),
		"due_date":               formatDate(in.Ticket.DueDate),
		"journals":               journals,
		"no_bot_tag":             in.NoBotTag,
		"today":                  now.Format(models.DateLayout),
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(models.DateLayout)
}
