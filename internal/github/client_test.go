package github

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/marvin/internal/tracker"
)

// TestGitHubDomainToAPIURL tests the logic that converts a domain to an API URL
func TestGitHubDomainToAPIURL(t *testing.T) {
	testCases := []struct {
		name           string
		domain         string
		expectedAPIURL string
	}{
		{
			name:           "Default GitHub.com",
			domain:         "github.com",
			expectedAPIURL: "https://api.github.com/",
		},
		{
			name:           "GitHub Enterprise",
			domain:         "github.example.com",
			expectedAPIURL: "https://github.example.com/api/v3/",
		},
		{
			name:           "GitHub Enterprise URL",
			domain:         "https://github.example.com/",
			expectedAPIURL: "https://github.example.com/api/v3/",
		},
		{
			name:           "Empty Domain (should default to github.com)",
			domain:         "",
			expectedAPIURL: "https://api.github.com/",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			apiURL, err := apiURL(tc.domain)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedAPIURL, apiURL)

			_, err = url.Parse(apiURL)
			assert.NoError(t, err)
		})
	}
}

func TestParseTicketID(t *testing.T) {
	testCases := []struct {
		id      string
		owner   string
		repo    string
		number  int
		wantErr bool
	}{
		{id: "acme/widgets#12", owner: "acme", repo: "widgets", number: 12},
		{id: "acme/widgets", wantErr: true},
		{id: "acme#12", wantErr: true},
		{id: "acme/widgets#x", wantErr: true},
		{id: "acme/widgets#0", wantErr: true},
		{id: "/widgets#3", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.id, func(t *testing.T) {
			owner, repo, number, err := ParseTicketID(tc.id)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.owner, owner)
			assert.Equal(t, tc.repo, repo)
			assert.Equal(t, tc.number, number)
		})
	}
}

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{Domain: server.URL, Token: "ghp_test", HTTPClient: server.Client()})
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestConnect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/user", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"login": "marvin-bot"})
	})
	client := newTestClient(t, mux)

	assert.NoError(t, client.Connect(context.Background()))
}

func TestConnectFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/user", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, map[string]any{"message": "Bad credentials"})
	})
	client := newTestClient(t, mux)

	err := client.Connect(context.Background())

	var connErr *tracker.ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, "github", connErr.Backend)
}

func TestStatuses(t *testing.T) {
	client, err := NewClient(Config{Token: "ghp_test"})
	require.NoError(t, err)

	statuses, err := client.Statuses(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, "open", statuses[0].ID)
	assert.Equal(t, "closed", statuses[1].Name)
}

func TestMatchIssues(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/repos/acme/widgets/issues", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "open", q.Get("state"))
		assert.Equal(t, "2020-01-01T00:00:00Z", q.Get("since"))
		writeJSON(w, []map[string]any{
			{
				"number":     1,
				"title":      "Stale bug",
				"body":       "Broken since forever",
				"state":      "open",
				"html_url":   "https://github.com/acme/widgets/issues/1",
				"user":       map[string]any{"login": "jane"},
				"updated_at": "2024-01-02T10:00:00Z",
				"milestone":  map[string]any{"due_on": "2024-02-01T08:00:00Z"},
			},
			{
				"number":       2,
				"title":        "A pull request",
				"state":        "open",
				"updated_at":   "2024-01-02T10:00:00Z",
				"pull_request": map[string]any{"url": "https://api.github.com/repos/acme/widgets/pulls/2"},
			},
			{
				"number":     3,
				"title":      "Too fresh",
				"state":      "open",
				"updated_at": "2024-01-05T10:00:00Z",
			},
		})
	})
	mux.HandleFunc("/api/v3/repos/acme/widgets/issues/1/comments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{{"body": "any update?"}})
	})
	client := newTestClient(t, mux)

	tickets, err := client.MatchIssues(context.Background(), tracker.Query{
		Projects:    []string{"acme/widgets"},
		Statuses:    []string{"open"},
		UpdatedFrom: "2020-01-01",
		UpdatedTo:   "2024-01-03",
	})
	require.NoError(t, err)
	require.Len(t, tickets, 1)

	ticket := tickets[0]
	assert.Equal(t, "acme/widgets#1", ticket.ID)
	assert.Equal(t, "acme/widgets", ticket.Project)
	assert.Equal(t, "Stale bug", ticket.Subject)
	assert.Equal(t, "jane", ticket.Author)
	assert.Equal(t, "https://github.com/acme/widgets/issues/1", ticket.URL)
	assert.Equal(t, "open", ticket.Status.Name)
	require.NotNil(t, ticket.DueDate)
	assert.Equal(t, "2024-02-01", ticket.DueDate.Format("2006-01-02"))
	require.Len(t, ticket.Journals, 1)
	assert.Equal(t, "any update?", *ticket.Journals[0].Notes)
}

func TestMatchIssuesUsesQueryZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/repos/acme/widgets/issues", func(w http.ResponseWriter, r *http.Request) {
		// Midnight 2020-01-01 in Tokyo
		assert.Equal(t, "2019-12-31T15:00:00Z", r.URL.Query().Get("since"))
		writeJSON(w, []map[string]any{
			// 2024-01-03 23:30 in Tokyo
			{"number": 1, "title": "Last day", "state": "open", "updated_at": "2024-01-03T14:30:00Z"},
			// 2024-01-04 00:30 in Tokyo, still 2024-01-03 in UTC
			{"number": 2, "title": "Past midnight", "state": "open", "updated_at": "2024-01-03T15:30:00Z"},
		})
	})
	mux.HandleFunc("/api/v3/repos/acme/widgets/issues/1/comments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{})
	})
	client := newTestClient(t, mux)

	tickets, err := client.MatchIssues(context.Background(), tracker.Query{
		Projects:    []string{"acme/widgets"},
		Statuses:    []string{"open"},
		UpdatedFrom: "2020-01-01",
		UpdatedTo:   "2024-01-03",
		Location:    tokyo,
	})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "acme/widgets#1", tickets[0].ID)
}

func TestMatchIssuesWithoutOpenStatus(t *testing.T) {
	client := newTestClient(t, http.NewServeMux())

	tickets, err := client.MatchIssues(context.Background(), tracker.Query{
		Projects:    []string{"acme/widgets"},
		Statuses:    []string{"closed"},
		UpdatedFrom: "2020-01-01",
		UpdatedTo:   "2024-01-03",
	})
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestMatchIssuesInvalidRepository(t *testing.T) {
	client := newTestClient(t, http.NewServeMux())

	_, err := client.MatchIssues(context.Background(), tracker.Query{
		Projects:    []string{"widgets"},
		Statuses:    []string{"open"},
		UpdatedFrom: "2020-01-01",
		UpdatedTo:   "2024-01-03",
	})
	assert.Error(t, err)
}

func TestUpdateIssue(t *testing.T) {
	var comment, edit map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/repos/acme/widgets/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &comment))
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]any{"id": 1})
	})
	mux.HandleFunc("/api/v3/repos/acme/widgets/issues/7", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &edit))
		writeJSON(w, map[string]any{"number": 7, "state": "closed"})
	})
	client := newTestClient(t, mux)

	err := client.UpdateIssue(context.Background(), tracker.Update{
		TicketID: "acme/widgets#7",
		Notes:    "Closing due to inactivity.",
		StatusID: "closed",
	})
	require.NoError(t, err)
	assert.Equal(t, "Closing due to inactivity.", comment["body"])
	assert.Equal(t, "closed", edit["state"])
}

func TestUpdateIssueCommentOnly(t *testing.T) {
	edited := false
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/repos/acme/widgets/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]any{"id": 1})
	})
	mux.HandleFunc("/api/v3/repos/acme/widgets/issues/7", func(w http.ResponseWriter, r *http.Request) {
		edited = true
	})
	client := newTestClient(t, mux)

	require.NoError(t, client.UpdateIssue(context.Background(), tracker.Update{TicketID: "acme/widgets#7", Notes: "ping"}))
	assert.False(t, edited)
}

func TestUpdateIssueInvalidState(t *testing.T) {
	commented := false
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/repos/acme/widgets/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		commented = true
	})
	client := newTestClient(t, mux)

	err := client.UpdateIssue(context.Background(), tracker.Update{TicketID: "acme/widgets#7", Notes: "x", StatusID: "5"})
	assert.Error(t, err)
	assert.False(t, commented)
}
