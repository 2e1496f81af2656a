// Package github provides the tracker backend for GitHub Issues.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"

	"github.com/danielolaszy/marvin/internal/logging"
	"github.com/danielolaszy/marvin/internal/tracker"
	"github.com/danielolaszy/marvin/pkg/models"
)

const (
	backendName = "github"

	// StateOpen and StateClosed are the whole status vocabulary of GitHub issues.
	StateOpen   = "open"
	StateClosed = "closed"
)

// Config holds the GitHub connection parameters
type Config struct {
	// Domain is empty or "github.com" for the public service, otherwise the
	// host (or URL) of a GitHub Enterprise instance.
	Domain string
	Token  string

	// HTTPClient replaces the oauth2 client, mainly for tests.
	HTTPClient *http.Client
}

// Client encapsulates the GitHub API client.
type Client struct {
	client *github.Client
}

// apiURL returns the REST endpoint for a GitHub domain.
func apiURL(domain string) (string, error) {
	domain = strings.TrimRight(strings.TrimSpace(domain), "/")
	if domain == "" || domain == "github.com" || domain == "https://github.com" {
		return "https://api.github.com/", nil
	}

	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	u, err := url.Parse(domain)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid github domain %q", domain)
	}
	return fmt.Sprintf("%s://%s/api/v3/", u.Scheme, u.Host), nil
}

// NewClient creates a GitHub client authenticated with a static token. It does
// not contact the server.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("github token not found in configuration")
	}

	endpoint, err := apiURL(cfg.Domain)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	client := github.NewClient(httpClient)
	if endpoint != "https://api.github.com/" {
		parsedURL, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}
		client.BaseURL = parsedURL
		client.UploadURL = parsedURL
	}

	logging.Debug("github configuration",
		"api_url", client.BaseURL.String(),
		"token", logging.MaskSensitive(cfg.Token))

	return &Client{client: client}, nil
}

// Name returns the backend name
func (c *Client) Name() string {
	return backendName
}

// Connect tests the token by fetching the authenticated user.
func (c *Client) Connect(ctx context.Context) error {
	user, _, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return &tracker.ConnectionError{Backend: backendName, Err: err}
	}

	logging.Info("github authentication successful", "username", user.GetLogin())
	return nil
}

// Statuses returns the issue states, which double as their own ids.
func (c *Client) Statuses(ctx context.Context) ([]models.Status, error) {
	return []models.Status{
		{ID: StateOpen, Name: StateOpen},
		{ID: StateClosed, Name: StateClosed},
	}, nil
}

// MatchIssues lists the open issues of every "owner/repo" project updated
// inside the query window. Only open issues are candidates, so nothing matches
// unless "open" is among the requested statuses.
func (c *Client) MatchIssues(ctx context.Context, q tracker.Query) ([]models.Ticket, error) {
	if !tracker.Contains(q.Statuses, StateOpen) {
		return nil, nil
	}

	loc := q.Zone()
	since, err := time.ParseInLocation(models.DateLayout, q.UpdatedFrom, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid window start %q: %w", q.UpdatedFrom, err)
	}

	var tickets []models.Ticket
	for _, repository := range q.Projects {
		owner, repo, err := splitRepository(repository)
		if err != nil {
			return nil, err
		}

		opts := &github.IssueListByRepoOptions{
			State:       StateOpen,
			Since:       since.UTC(),
			ListOptions: github.ListOptions{PerPage: 100},
		}

		for {
			issues, resp, err := c.client.Issues.ListByRepo(ctx, owner, repo, opts)
			if err != nil {
				logging.Error("failed to fetch github issues", "repository", repository, "error", err)
				return nil, fmt.Errorf("failed to fetch GitHub issues for %s: %w", repository, err)
			}

			for _, issue := range issues {
				// Pull requests are also returned by the Issues API
				if issue.PullRequestLinks != nil {
					continue
				}
				if issue.GetUpdatedAt().In(loc).Format(models.DateLayout) > q.UpdatedTo {
					continue
				}

				ticket, err := c.toTicket(ctx, owner, repo, issue)
				if err != nil {
					return nil, err
				}
				tickets = append(tickets, ticket)
			}

			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
	}

	logging.Debug("matched github issues", "projects", q.Projects, "count", len(tickets))
	return tickets, nil
}

func (c *Client) toTicket(ctx context.Context, owner, repo string, issue *github.Issue) (models.Ticket, error) {
	repository := owner + "/" + repo

	journals, err := c.comments(ctx, owner, repo, issue.GetNumber())
	if err != nil {
		return models.Ticket{}, err
	}

	ticket := models.Ticket{
		ID:          fmt.Sprintf("%s#%d", repository, issue.GetNumber()),
		Project:     repository,
		Subject:     issue.GetTitle(),
		Author:      issue.GetUser().GetLogin(),
		URL:         issue.GetHTMLURL(),
		Description: issue.GetBody(),
		Status:      models.Status{ID: issue.GetState(), Name: issue.GetState()},
		UpdatedOn:   issue.GetUpdatedAt(),
		Journals:    journals,
	}

	if issue.Milestone != nil && issue.Milestone.DueOn != nil {
		due := *issue.Milestone.DueOn
		ticket.DueDate = &due
	}
	if issue.ClosedAt != nil {
		closed := *issue.ClosedAt
		ticket.ClosedOn = &closed
	}

	return ticket, nil
}

func (c *Client) comments(ctx context.Context, owner, repo string, number int) ([]models.Journal, error) {
	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var journals []models.Journal
	for {
		comments, resp, err := c.client.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list comments of %s/%s#%d: %w", owner, repo, number, err)
		}

		for _, comment := range comments {
			journals = append(journals, models.Journal{Notes: comment.Body})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return journals, nil
}

// UpdateIssue posts the comment and then, when requested, sets the issue state.
func (c *Client) UpdateIssue(ctx context.Context, u tracker.Update) error {
	owner, repo, number, err := ParseTicketID(u.TicketID)
	if err != nil {
		return err
	}

	if u.StatusID != "" && u.StatusID != StateOpen && u.StatusID != StateClosed {
		return fmt.Errorf("invalid github issue state %q", u.StatusID)
	}

	_, _, err = c.client.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{
		Body: github.String(u.Notes),
	})
	if err != nil {
		return fmt.Errorf("failed to comment on %s: %w", u.TicketID, err)
	}

	if u.StatusID == "" {
		return nil
	}

	_, _, err = c.client.Issues.Edit(ctx, owner, repo, number, &github.IssueRequest{
		State: github.String(u.StatusID),
	})
	if err != nil {
		return fmt.Errorf("failed to set state of %s to %s: %w", u.TicketID, u.StatusID, err)
	}

	return nil
}

// ParseTicketID splits an "owner/repo#N" ticket id.
func ParseTicketID(id string) (owner, repo string, number int, err error) {
	repository, num, ok := strings.Cut(id, "#")
	if !ok {
		return "", "", 0, fmt.Errorf("invalid github ticket id %q, expected owner/repo#number", id)
	}

	number, err = strconv.Atoi(num)
	if err != nil || number <= 0 {
		return "", "", 0, fmt.Errorf("invalid github ticket id %q, expected owner/repo#number", id)
	}

	owner, repo, err = splitRepository(repository)
	if err != nil {
		return "", "", 0, err
	}
	return owner, repo, number, nil
}

func splitRepository(repository string) (string, string, error) {
	parts := strings.Split(repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format: %s, expected format: owner/repo", repository)
	}
	return parts[0], parts[1], nil
}

