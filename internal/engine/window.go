package engine

import (
	"time"

	"github.com/danielolaszy/marvin/pkg/models"
)

// Window is the inclusive updated-on range of an action, as calendar dates.
type Window struct {
	From string
	To   string
}

// ComputeWindow returns [startDate, today - timeRange days]. today is read as
// a calendar date in its own location. An inverted window is returned as is.
func ComputeWindow(today time.Time, timeRange int, startDate string) Window {
	end := models.CivilDate(today).AddDate(0, 0, -timeRange)
	return Window{
		From: startDate,
		To:   end.Format(models.DateLayout),
	}
}
