package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/danielolaszy/marvin/internal/tracker"
	"github.com/danielolaszy/marvin/pkg/models"
)

// StatusResolver maps status names to tracker ids. The vocabulary is fetched
// on first use and every lookup is memoized, so one resolver must not outlive
// a run.
type StatusResolver struct {
	lister   tracker.StatusLister
	logger   *slog.Logger
	statuses []models.Status
	loaded   bool
	cache    map[string]resolution
}

type resolution struct {
	id  string
	err error
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewStatusResolver returns a resolver backed by lister.
func NewStatusResolver(lister tracker.StatusLister, logger *slog.Logger) *StatusResolver {
	if logger == nil {
		logger = discardLogger()
	}
	return &StatusResolver{
		lister: lister,
		logger: logger,
		cache:  make(map[string]resolution),
	}
}

func (r *StatusResolver) vocabulary(ctx context.Context) ([]models.Status, error) {
	if r.loaded {
		return r.statuses, nil
	}

	statuses, err := r.lister.Statuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list issue statuses: %w", err)
	}

	r.statuses = statuses
	r.loaded = true
	return statuses, nil
}

// Resolve returns the id of the status named exactly name. When several
// statuses share the name the first one in tracker order wins.
func (r *StatusResolver) Resolve(ctx context.Context, name string) (string, error) {
	if res, ok := r.cache[name]; ok {
		return res.id, res.err
	}

	statuses, err := r.vocabulary(ctx)
	if err != nil {
		return "", err
	}

	var matches []models.Status
	for _, s := range statuses {
		if s.Name == name {
			matches = append(matches, s)
		}
	}

	var res resolution
	switch len(matches) {
	case 0:
		res.err = &StatusNotFoundError{Name: name}
	case 1:
		res.id = matches[0].ID
		r.logger.Info("resolved issue status", "status", name, "status_id", res.id)
	default:
		res.id = matches[0].ID
		r.logger.Warn("issue status name is ambiguous, using first match",
			"status", name,
			"matches", len(matches),
			"status_id", res.id)
	}

	r.cache[name] = res
	return res.id, res.err
}

// ResolveReference accepts a status name or a status id. Names take priority;
// an id is only accepted when it exists in the tracker's vocabulary.
func (r *StatusResolver) ResolveReference(ctx context.Context, ref string) (string, error) {
	id, err := r.Resolve(ctx, ref)

	var notFound *StatusNotFoundError
	if !errors.As(err, &notFound) {
		return id, err
	}

	for _, s := range r.statuses {
		if s.ID == ref {
			r.logger.Info("resolved issue status by id", "status_id", s.ID, "status", s.Name)
			return s.ID, nil
		}
	}

	return "", err
}

// StatusName returns the name of a status id seen by this resolver, or the id
// itself when unknown.
func (r *StatusResolver) StatusName(id string) string {
	for _, s := range r.statuses {
		if s.ID == id {
			return s.Name
		}
	}
	return id
}
