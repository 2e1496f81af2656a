package engine

import "fmt"

// StatusNotFoundError reports a status name with no match in the tracker's vocabulary.
type StatusNotFoundError struct {
	Name string
}

func (e *StatusNotFoundError) Error() string {
	return fmt.Sprintf("no issue status with the name %q could be found", e.Name)
}

// ProcessingError reports a failure while working through one action's candidates.
// It aborts the run; updates already applied stay applied.
type ProcessingError struct {
	Action   string
	TicketID string
	Err      error
}

func (e *ProcessingError) Error() string {
	if e.TicketID == "" {
		return fmt.Sprintf("action %q: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("action %q: ticket %s: %v", e.Action, e.TicketID, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}
