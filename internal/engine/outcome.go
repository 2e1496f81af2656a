package engine

import "github.com/danielolaszy/marvin/pkg/models"

// OutcomeKind is the mutation decided for an eligible ticket.
type OutcomeKind int

const (
	CommentOnly OutcomeKind = iota
	ChangeStatus
	Close
)

func (k OutcomeKind) String() string {
	switch k {
	case Close:
		return "close"
	case ChangeStatus:
		return "change_status"
	default:
		return "comment"
	}
}

// Outcome is a decided mutation. StatusID is empty for CommentOnly.
type Outcome struct {
	Kind     OutcomeKind
	StatusID string
}

// ResolvedStatus is an optional status id.
type ResolvedStatus struct {
	ID    string
	Valid bool
}

// Decide picks the outcome for an eligible ticket of action a. Close wins over
// ChangeStatus, which wins over CommentOnly. A closing action whose closed
// status is unavailable only changes the status when change_status_to resolved
// on its own.
func Decide(a models.Action, closed, change ResolvedStatus) Outcome {
	if a.CloseTicket && closed.Valid {
		return Outcome{Kind: Close, StatusID: closed.ID}
	}

	if change.Valid {
		return Outcome{Kind: ChangeStatus, StatusID: change.ID}
	}

	return Outcome{Kind: CommentOnly}
}
