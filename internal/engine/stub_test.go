package engine

import (
	"context"
	"errors"

	"github.com/danielolaszy/marvin/internal/tracker"
	"github.com/danielolaszy/marvin/pkg/models"
)

// stubTracker implements tracker.Client for testing
type stubTracker struct {
	StatusesFunc    func(ctx context.Context) ([]models.Status, error)
	MatchIssuesFunc func(ctx context.Context, q tracker.Query) ([]models.Ticket, error)
	UpdateIssueFunc func(ctx context.Context, u tracker.Update) error

	statusCalls int
	queries     []tracker.Query
	updates     []tracker.Update
}

func (s *stubTracker) Name() string {
	return "stub"
}

func (s *stubTracker) Statuses(ctx context.Context) ([]models.Status, error) {
	s.statusCalls++
	if s.StatusesFunc != nil {
		return s.StatusesFunc(ctx)
	}
	return nil, errors.New("Statuses not implemented")
}

func (s *stubTracker) MatchIssues(ctx context.Context, q tracker.Query) ([]models.Ticket, error) {
	s.queries = append(s.queries, q)
	if s.MatchIssuesFunc != nil {
		return s.MatchIssuesFunc(ctx, q)
	}
	return nil, nil
}

func (s *stubTracker) UpdateIssue(ctx context.Context, u tracker.Update) error {
	if s.UpdateIssueFunc != nil {
		if err := s.UpdateIssueFunc(ctx, u); err != nil {
			return err
		}
	}
	s.updates = append(s.updates, u)
	return nil
}

func staticStatuses(statuses ...models.Status) func(context.Context) ([]models.Status, error) {
	return func(context.Context) ([]models.Status, error) {
		return statuses, nil
	}
}

// stubRenderer renders every template as "<template>:<id>:<outcome>"
type stubRenderer struct {
	RenderFunc func(name string, data map[string]any) (string, error)
	contexts   []map[string]any
}

func (r *stubRenderer) Render(name string, data map[string]any) (string, error) {
	r.contexts = append(r.contexts, data)
	if r.RenderFunc != nil {
		return r.RenderFunc(name, data)
	}
	return name + ":" + data["id"].(string) + ":" + data["outcome"].(string), nil
}
