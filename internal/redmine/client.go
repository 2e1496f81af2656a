// Package redmine implements the tracker backend for the Redmine REST API.
package redmine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/danielolaszy/marvin/internal/tracker"
	"github.com/danielolaszy/marvin/pkg/models"
)

const (
	backendName = "redmine"

	// pageSize is the largest page Redmine serves without admin changes.
	pageSize = 100
)

// Config holds the connection parameters of a Redmine instance
type Config struct {
	URL     string
	APIKey  string
	Version string

	// HTTPClient defaults to a client with a 30 second timeout.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client handles interactions with the Redmine REST API
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// APIError is returned for non-2xx responses.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Errors     []string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("redmine: %s %s returned %d", e.Method, e.Path, e.StatusCode)
	if len(e.Errors) > 0 {
		msg += ": " + strings.Join(e.Errors, "; ")
	}
	return msg
}

// NewClient creates a new Redmine client. It does not contact the server.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.URL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("redmine: invalid url %q", cfg.URL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	userAgent := "marvin"
	if cfg.Version != "" {
		userAgent += " (redmine/" + cfg.Version + ")"
	}

	return &Client{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		userAgent:  userAgent,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Name returns the backend name
func (c *Client) Name() string {
	return backendName
}

// Connect verifies the URL and API key by fetching the current user.
func (c *Client) Connect(ctx context.Context) error {
	var resp struct {
		User struct {
			ID    int    `json:"id"`
			Login string `json:"login"`
		} `json:"user"`
	}
	if err := c.get(ctx, "/users/current.json", nil, &resp); err != nil {
		return &tracker.ConnectionError{Backend: backendName, Err: err}
	}

	c.logger.Debug("connected to redmine", "url", c.baseURL, "user", resp.User.Login)
	return nil
}

// Statuses returns every issue status in Redmine's order.
func (c *Client) Statuses(ctx context.Context) ([]models.Status, error) {
	var resp struct {
		IssueStatuses []idName `json:"issue_statuses"`
	}
	if err := c.get(ctx, "/issue_statuses.json", nil, &resp); err != nil {
		return nil, err
	}

	statuses := make([]models.Status, 0, len(resp.IssueStatuses))
	for _, s := range resp.IssueStatuses {
		statuses = append(statuses, models.Status{ID: strconv.Itoa(s.ID), Name: s.Name})
	}
	return statuses, nil
}

// MatchIssues pages through the open issues updated inside the query window,
// keeps those whose project and status names match, and loads their journals.
func (c *Client) MatchIssues(ctx context.Context, q tracker.Query) ([]models.Ticket, error) {
	params := url.Values{}
	params.Set("status_id", "open")
	params.Set("updated_on", "><"+q.UpdatedFrom+"|"+q.UpdatedTo)
	params.Set("sort", "id")
	params.Set("limit", strconv.Itoa(pageSize))

	var tickets []models.Ticket
	for offset := 0; ; {
		params.Set("offset", strconv.Itoa(offset))

		var page issuesPage
		if err := c.get(ctx, "/issues.json", params, &page); err != nil {
			return nil, err
		}

		for _, i := range page.Issues {
			if !matches(i, q) {
				continue
			}

			ticket, err := c.ticket(ctx, i.ID)
			if err != nil {
				return nil, err
			}
			tickets = append(tickets, ticket)
		}

		offset += len(page.Issues)
		if len(page.Issues) == 0 || offset >= page.TotalCount {
			break
		}
	}

	c.logger.Debug("matched redmine issues",
		"from", q.UpdatedFrom,
		"to", q.UpdatedTo,
		"count", len(tickets))
	return tickets, nil
}

func matches(i issue, q tracker.Query) bool {
	return i.ClosedOn == nil &&
		tracker.Contains(q.Projects, i.Project.Name) &&
		tracker.Contains(q.Statuses, i.Status.Name)
}

func (c *Client) ticket(ctx context.Context, id int) (models.Ticket, error) {
	params := url.Values{}
	params.Set("include", "journals")

	var resp struct {
		Issue issue `json:"issue"`
	}
	if err := c.get(ctx, fmt.Sprintf("/issues/%d.json", id), params, &resp); err != nil {
		return models.Ticket{}, err
	}

	return c.toTicket(resp.Issue)
}

// UpdateIssue adds a note and, when requested, sets the status in one request.
func (c *Client) UpdateIssue(ctx context.Context, u tracker.Update) error {
	body := updateRequest{}
	body.Issue.Notes = u.Notes

	if u.StatusID != "" {
		statusID, err := strconv.Atoi(u.StatusID)
		if err != nil {
			return fmt.Errorf("redmine: invalid status id %q", u.StatusID)
		}
		body.Issue.StatusID = &statusID
	}

	return c.do(ctx, http.MethodPut, "/issues/"+url.PathEscape(u.TicketID)+".json", nil, body, nil)
}

func (c *Client) toTicket(i issue) (models.Ticket, error) {
	updated, err := time.Parse(time.RFC3339, i.UpdatedOn)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("redmine: issue %d: invalid updated_on %q: %w", i.ID, i.UpdatedOn, err)
	}

	start, err := parseOptionalDate(i.StartDate)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("redmine: issue %d: invalid start_date: %w", i.ID, err)
	}
	due, err := parseOptionalDate(i.DueDate)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("redmine: issue %d: invalid due_date: %w", i.ID, err)
	}

	ticket := models.Ticket{
		ID:          strconv.Itoa(i.ID),
		Project:     i.Project.Name,
		Subject:     i.Subject,
		Author:      i.Author.Name,
		URL:         fmt.Sprintf("%s/issues/%d", c.baseURL, i.ID),
		Description: i.Description,
		Status:      models.Status{ID: strconv.Itoa(i.Status.ID), Name: i.Status.Name},
		StartDate:   start,
		DueDate:     due,
		UpdatedOn:   updated,
	}

	if i.ClosedOn != nil {
		closed, err := time.Parse(time.RFC3339, *i.ClosedOn)
		if err == nil {
			ticket.ClosedOn = &closed
		}
	}

	for _, j := range i.Journals {
		ticket.Journals = append(ticket.Journals, models.Journal{Notes: j.Notes})
	}

	return ticket, nil
}

func parseOptionalDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := models.ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, params, nil, out)
}

// do sends one authenticated request. A nil body sends none; a nil out discards
// the response.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("redmine: encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("redmine: creating request: %w", err)
	}
	req.Header.Set("X-Redmine-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("redmine: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("redmine: reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Method: method, Path: path, StatusCode: resp.StatusCode}
		var errBody struct {
			Errors []string `json:"errors"`
		}
		if json.Unmarshal(data, &errBody) == nil {
			apiErr.Errors = errBody.Errors
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("redmine: decoding %s response: %w", path, err)
	}
	return nil
}
