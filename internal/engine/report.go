package engine

import (
	"log/slog"
	"strings"
)

// Report summarizes one run.
type Report struct {
	Actions []ActionReport
	DryRun  bool
}

// ActionReport summarizes one action of a run.
type ActionReport struct {
	Name          string
	Window        Window
	Candidates    int
	Skipped       map[SkipReason]int
	Closed        int
	StatusChanged int
	Commented     int
}

func newActionReport(name string) ActionReport {
	return ActionReport{Name: name, Skipped: make(map[SkipReason]int)}
}

func (r *ActionReport) record(kind OutcomeKind) {
	switch kind {
	case Close:
		r.Closed++
	case ChangeStatus:
		r.StatusChanged++
	default:
		r.Commented++
	}
}

// Updated returns how many tickets received a comment.
func (r ActionReport) Updated() int {
	return r.Closed + r.StatusChanged + r.Commented
}

// TotalSkipped returns how many candidates were skipped for any reason.
func (r ActionReport) TotalSkipped() int {
	total := 0
	for _, n := range r.Skipped {
		total += n
	}
	return total
}

// Log writes one summary record per action.
func (r *Report) Log(logger *slog.Logger) {
	for _, a := range r.Actions {
		attrs := []any{
			"action", a.Name,
			"from", a.Window.From,
			"to", a.Window.To,
			"candidates", a.Candidates,
			"closed", a.Closed,
			"status_changed", a.StatusChanged,
			"commented", a.Commented,
			"skipped", a.TotalSkipped(),
			"dry_run", r.DryRun,
		}
		for _, reason := range SkipReasons {
			if n := a.Skipped[reason]; n > 0 {
				attrs = append(attrs, "skipped_"+strings.ReplaceAll(string(reason), " ", "_"), n)
			}
		}
		logger.Info("action summary", attrs...)
	}
}
