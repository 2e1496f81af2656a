// Package engine decides, per configured action, which tickets to skip, which
// to comment on, and which to move to another status or close.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielolaszy/marvin/internal/tracker"
	"github.com/danielolaszy/marvin/pkg/models"
)

// Renderer turns a named comment template and its variables into comment text.
type Renderer interface {
	Render(name string, data map[string]any) (string, error)
}

// Recorder observes engine events, typically for metrics.
type Recorder interface {
	TicketSkipped(action string, reason SkipReason)
	TicketUpdated(action string, kind OutcomeKind)
	ActionFinished(action string, elapsed time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) TicketSkipped(string, SkipReason) {}
func (nopRecorder) TicketUpdated(string, OutcomeKind) {}
func (nopRecorder) ActionFinished(string, time.Duration, error) {}

// Engine runs actions against one tracker. It is not safe for concurrent Runs.
type Engine struct {
	client       tracker.Client
	renderer     Renderer
	logger       *slog.Logger
	recorder     Recorder
	now          func() time.Time
	location     *time.Location
	noBotTag     string
	closedStatus string
	strictClosed bool
	dryRun       bool
}

// Option applies configuration to the engine.
type Option func(*Engine)

// WithLogger injects the logger all decisions are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithRecorder injects an event recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLocation sets the time zone "today" and template dates are computed in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		e.location = loc
	}
}

// WithNoBotTag sets the marker that exempts tickets.
func WithNoBotTag(tag string) Option {
	return func(e *Engine) {
		e.noBotTag = tag
	}
}

// WithClosedStatus names the status closing actions apply. With strict set,
// failing to resolve it aborts the run instead of disabling closing.
func WithClosedStatus(name string, strict bool) Option {
	return func(e *Engine) {
		e.closedStatus = name
		e.strictClosed = strict
	}
}

// WithDryRun makes the engine decide and render without updating tickets.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) {
		e.dryRun = dryRun
	}
}

// New returns an engine for client rendering comments with renderer.
func New(client tracker.Client, renderer Renderer, opts ...Option) *Engine {
	e := &Engine{
		client:   client,
		renderer: renderer,
		logger:   discardLogger(),
		recorder: nopRecorder{},
		now:      time.Now,
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run processes actions sequentially in the given order. The first error stops
// the run and is returned together with the report of the work done so far.
func (e *Engine) Run(ctx context.Context, actions []models.Action) (*Report, error) {
	report := &Report{DryRun: e.dryRun}
	resolver := NewStatusResolver(e.client, e.logger)

	closed, err := e.resolveClosedStatus(ctx, resolver, actions)
	if err != nil {
		return report, err
	}

	for _, action := range actions {
		start := time.Now()
		ar, err := e.runAction(ctx, resolver, action, closed)
		report.Actions = append(report.Actions, ar)
		e.recorder.ActionFinished(action.Name, time.Since(start), err)
		if err != nil {
			return report, err
		}
	}

	return report, nil
}

func (e *Engine) resolveClosedStatus(ctx context.Context, resolver *StatusResolver, actions []models.Action) (ResolvedStatus, error) {
	if e.closedStatus == "" {
		return ResolvedStatus{}, nil
	}

	closing := false
	for _, a := range actions {
		if a.CloseTicket {
			closing = true
			break
		}
	}
	if !closing {
		return ResolvedStatus{}, nil
	}

	id, err := resolver.Resolve(ctx, e.closedStatus)
	var notFound *StatusNotFoundError
	switch {
	case errors.As(err, &notFound) && !e.strictClosed:
		e.logger.Error("closed status not found, closing disabled for this run",
			"status", e.closedStatus,
			"error", err)
		return ResolvedStatus{}, nil
	case err != nil:
		e.logger.Error("failed to resolve closed status",
			"status", e.closedStatus,
			"error", err)
		return ResolvedStatus{}, fmt.Errorf("failed to resolve closed status: %w", err)
	}

	return ResolvedStatus{ID: id, Valid: true}, nil
}

func (e *Engine) resolveChangeStatus(ctx context.Context, resolver *StatusResolver, action models.Action, logger *slog.Logger) (ResolvedStatus, error) {
	if action.ChangeStatusTo == "" {
		return ResolvedStatus{}, nil
	}

	id, err := resolver.ResolveReference(ctx, action.ChangeStatusTo)
	var notFound *StatusNotFoundError
	switch {
	case errors.As(err, &notFound):
		logger.Warn("change_status_to not found, status change disabled for this action",
			"status", action.ChangeStatusTo,
			"error", err)
		return ResolvedStatus{}, nil
	case err != nil:
		return ResolvedStatus{}, err
	}

	return ResolvedStatus{ID: id, Valid: true}, nil
}

func (e *Engine) runAction(ctx context.Context, resolver *StatusResolver, action models.Action, closed ResolvedStatus) (ActionReport, error) {
	report := newActionReport(action.Name)
	logger := e.logger.With("action", action.Name)

	change, err := e.resolveChangeStatus(ctx, resolver, action, logger)
	if err != nil {
		return report, &ProcessingError{Action: action.Name, Err: err}
	}

	now := e.now().In(e.location)
	window := ComputeWindow(now, action.TimeRange, action.StartDate)
	report.Window = window

	logger.Info("processing action",
		"from", window.From,
		"to", window.To,
		"projects", action.Projects,
		"status", action.Status)

	tickets, err := e.client.MatchIssues(ctx, tracker.Query{
		Projects:    action.Projects,
		Statuses:    action.Status,
		UpdatedFrom: window.From,
		UpdatedTo:   window.To,
		Location:    e.location,
	})
	if err != nil {
		return report, &ProcessingError{Action: action.Name, Err: fmt.Errorf("failed to match issues: %w", err)}
	}

	// Offset pagination can hand the same ticket out twice
	seen := make(map[string]bool, len(tickets))

	for _, ticket := range tickets {
		if seen[ticket.ID] {
			continue
		}
		seen[ticket.ID] = true
		report.Candidates++

		if reason, skip := Evaluate(ticket, e.noBotTag, now); skip {
			logger.Info("skipping ticket", "ticket_id", ticket.ID, "reason", string(reason))
			report.Skipped[reason]++
			e.recorder.TicketSkipped(action.Name, reason)
			continue
		}

		outcome := Decide(action, closed, change)

		var target string
		if outcome.StatusID != "" {
			target = resolver.StatusName(outcome.StatusID)
		}

		notes, err := e.renderer.Render(action.Template, BuildContext(ContextInput{
			Ticket:       ticket,
			Action:       action,
			Outcome:      outcome,
			TargetStatus: target,
			Now:          now,
			Location:     e.location,
			NoBotTag:     e.noBotTag,
		}))
		if err != nil {
			return report, &ProcessingError{Action: action.Name, TicketID: ticket.ID, Err: fmt.Errorf("failed to render template %s: %w", action.Template, err)}
		}

		if e.dryRun {
			logger.Info("dry run, ticket not updated",
				"ticket_id", ticket.ID,
				"outcome", outcome.Kind.String(),
				"status_id", outcome.StatusID)
			report.record(outcome.Kind)
			continue
		}

		err = e.client.UpdateIssue(ctx, tracker.Update{
			TicketID: ticket.ID,
			Notes:    notes,
			StatusID: outcome.StatusID,
		})
		if err != nil {
			return report, &ProcessingError{Action: action.Name, TicketID: ticket.ID, Err: fmt.Errorf("failed to update ticket: %w", err)}
		}

		logger.Info("ticket updated",
			"ticket_id", ticket.ID,
			"outcome", outcome.Kind.String(),
			"status_id", outcome.StatusID)
		report.record(outcome.Kind)
		e.recorder.TicketUpdated(action.Name, outcome.Kind)
	}

	return report, nil
}
