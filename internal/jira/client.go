// Package jira provides the tracker backend for Jira.
package jira

import (
	"context"
	"fmt"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"

	"github.com/danielolaszy/marvin/internal/logging"
	"github.com/danielolaszy/marvin/internal/tracker"
	"github.com/danielolaszy/marvin/pkg/models"
)

const backendName = "jira"

// searchFields limits search responses to what a ticket needs
var searchFields = []string{
	"project", "summary", "description", "status", "reporter",
	"updated", "duedate", "resolutiondate", "comment",
}

// Config holds the Jira connection parameters
type Config struct {
	URL      string
	Username string
	Token    string
}

// Client handles interactions with the JIRA API
type Client struct {
	client  *jira.Client
	baseURL string
}

// NewClient creates a new JIRA client using basic auth with an API token. It
// does not contact the server.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" || cfg.Username == "" || cfg.Token == "" {
		return nil, fmt.Errorf("jira url, username and token are required")
	}

	tp := jira.BasicAuthTransport{
		Username: cfg.Username,
		Password: cfg.Token,
	}

	client, err := jira.NewClient(tp.Client(), cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("error creating JIRA client: %w", err)
	}

	return &Client{
		client:  client,
		baseURL: strings.TrimRight(cfg.URL, "/"),
	}, nil
}

// Name returns the backend name
func (c *Client) Name() string {
	return backendName
}

// Connect checks the credentials against the current user endpoint.
func (c *Client) Connect(ctx context.Context) error {
	user, _, err := c.client.User.GetSelfWithContext(ctx)
	if err != nil {
		return &tracker.ConnectionError{Backend: backendName, Err: err}
	}

	logging.Info("jira authentication successful", "user", user.DisplayName)
	return nil
}

// Statuses returns every workflow status known to the instance.
func (c *Client) Statuses(ctx context.Context) ([]models.Status, error) {
	statuses, _, err := c.client.Status.GetAllStatusesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list JIRA statuses: %w", err)
	}

	result := make([]models.Status, 0, len(statuses))
	for _, s := range statuses {
		result = append(result, models.Status{ID: s.ID, Name: s.Name})
	}
	return result, nil
}

// BuildJQL translates a query into JQL. The window end is inclusive, so the
// upper bound is the following day, exclusive.
func BuildJQL(q tracker.Query) (string, error) {
	to, err := models.ParseDate(q.UpdatedTo)
	if err != nil {
		return "", fmt.Errorf("invalid window end %q: %w", q.UpdatedTo, err)
	}
	if _, err := models.ParseDate(q.UpdatedFrom); err != nil {
		return "", fmt.Errorf("invalid window start %q: %w", q.UpdatedFrom, err)
	}

	clauses := []string{
		fmt.Sprintf("project in (%s)", quoteList(q.Projects)),
		fmt.Sprintf("status in (%s)", quoteList(q.Statuses)),
		"resolutiondate is EMPTY",
		fmt.Sprintf("updated >= %s", quote(q.UpdatedFrom)),
		fmt.Sprintf("updated < %s", quote(to.AddDate(0, 0, 1).Format(models.DateLayout))),
	}
	return strings.Join(clauses, " AND ") + " ORDER BY key ASC", nil
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func quoteList(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, quote(v))
	}
	return strings.Join(quoted, ", ")
}

// MatchIssues runs the query as a paged JQL search.
func (c *Client) MatchIssues(ctx context.Context, q tracker.Query) ([]models.Ticket, error) {
	if len(q.Projects) == 0 || len(q.Statuses) == 0 {
		return nil, nil
	}

	jql, err := BuildJQL(q)
	if err != nil {
		return nil, err
	}
	logging.Debug("searching jira issues", "jql", jql)

	var tickets []models.Ticket
	opts := &jira.SearchOptions{MaxResults: 100, Fields: searchFields}
	err = c.client.Issue.SearchPagesWithContext(ctx, jql, opts, func(issue jira.Issue) error {
		tickets = append(tickets, c.toTicket(issue))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search JIRA issues: %w", err)
	}

	return tickets, nil
}

func (c *Client) toTicket(issue jira.Issue) models.Ticket {
	ticket := models.Ticket{
		ID:  issue.Key,
		URL: c.baseURL + "/browse/" + issue.Key,
	}

	f := issue.Fields
	if f == nil {
		return ticket
	}

	ticket.Project = f.Project.Key
	ticket.Subject = f.Summary
	ticket.Description = f.Description
	ticket.UpdatedOn = time.Time(f.Updated)

	if f.Status != nil {
		ticket.Status = models.Status{ID: f.Status.ID, Name: f.Status.Name}
	}
	if f.Reporter != nil {
		ticket.Author = f.Reporter.DisplayName
	}
	if due := time.Time(f.Duedate); !due.IsZero() {
		ticket.DueDate = &due
	}
	if resolved := time.Time(f.Resolutiondate); !resolved.IsZero() {
		ticket.ClosedOn = &resolved
	}
	if f.Comments != nil {
		for _, comment := range f.Comments.Comments {
			if comment == nil {
				continue
			}
			ticket.Journals = append(ticket.Journals, models.Journal{Notes: models.StringPtr(comment.Body)})
		}
	}

	return ticket
}

// UpdateIssue adds the comment and, when a status is requested, performs the
// transition leading to it. The transition is looked up before commenting so a
// missing one leaves the issue untouched.
func (c *Client) UpdateIssue(ctx context.Context, u tracker.Update) error {
	var transitionID string
	if u.StatusID != "" {
		id, err := c.transitionTo(ctx, u.TicketID, u.StatusID)
		if err != nil {
			return err
		}
		transitionID = id
	}

	_, _, err := c.client.Issue.AddCommentWithContext(ctx, u.TicketID, &jira.Comment{Body: u.Notes})
	if err != nil {
		return fmt.Errorf("failed to comment on %s: %w", u.TicketID, err)
	}

	if transitionID == "" {
		return nil
	}

	if _, err := c.client.Issue.DoTransitionWithContext(ctx, u.TicketID, transitionID); err != nil {
		return fmt.Errorf("failed to transition %s: %w", u.TicketID, err)
	}
	return nil
}

func (c *Client) transitionTo(ctx context.Context, key, statusID string) (string, error) {
	transitions, _, err := c.client.Issue.GetTransitionsWithContext(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to list transitions of %s: %w", key, err)
	}

	for _, t := range transitions {
		if t.To.ID == statusID {
			return t.ID, nil
		}
	}
	return "", fmt.Errorf("no transition of %s leads to status %s", key, statusID)
}
