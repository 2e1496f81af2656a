package engine

import (
	"strings"
	"time"

	"github.com/danielolaszy/marvin/pkg/models"
)

// SkipReason explains why a candidate ticket was left alone.
type SkipReason string

const (
	SkipNotStarted        SkipReason = "not yet started"
	SkipNotDue            SkipReason = "not yet due"
	SkipBotTagDescription SkipReason = "bot tag in description"
	SkipBotTagJournal     SkipReason = "bot tag in journal"
)

// SkipReasons lists every reason in evaluation order.
var SkipReasons = []SkipReason{
	SkipNotStarted,
	SkipNotDue,
	SkipBotTagDescription,
	SkipBotTagJournal,
}

// Evaluate applies the skip rules to t in fixed order and stops at the first
// rule that fires. It returns false when the ticket is eligible. An empty
// noBotTag disables both bot tag rules.
func Evaluate(t models.Ticket, noBotTag string, today time.Time) (SkipReason, bool) {
	day := models.CivilDate(today)

	if t.StartDate != nil && day.Before(models.CivilDate(*t.StartDate)) {
		return SkipNotStarted, true
	}

	if t.DueDate != nil && day.Before(models.CivilDate(*t.DueDate)) {
		return SkipNotDue, true
	}

	if noBotTag == "" {
		return "", false
	}

	if strings.Contains(t.Description, noBotTag) {
		return SkipBotTagDescription, true
	}

	for _, j := range t.Journals {
		if j.Notes != nil && strings.Contains(*j.Notes, noBotTag) {
			return SkipBotTagJournal, true
		}
	}

	return "", false
}
