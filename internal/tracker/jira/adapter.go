package jira

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	gojira "github.com/andygrunwald/go-jira"

	"github.com/nhle/jirabot/internal/model"
	"github.com/nhle/jirabot/internal/tracker"
)

// fetchFields are the Jira fields requested for a lookup.
var fetchFields = []string{"summary", "status", "assignee", "reporter"}

// Session implements tracker.Session on top of an authenticated go-jira
// client.
type Session struct {
	client  *gojira.Client
	baseURL string
}

func newSession(client *gojira.Client, baseURL string) *Session {
	return &Session{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// FetchIssue retrieves a single Jira issue by key.
func (s *Session) FetchIssue(
	ctx context.Context,
	key string,
) (*model.Issue, error) {
	opts := &gojira.GetQueryOptions{Fields: strings.Join(fetchFields, ",")}

	issue, resp, err := s.client.Issue.GetWithContext(ctx, key, opts)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf(
				"fetching Jira issue %s: %w", key, tracker.ErrNotFound,
			)
		}
		return nil, fmt.Errorf("fetching Jira issue %s: %w", key, err)
	}

	return s.issueToRecord(issue), nil
}

// issueToRecord converts a go-jira Issue to a model.Issue.
func (s *Session) issueToRecord(issue *gojira.Issue) *model.Issue {
	rec := &model.Issue{
		Key:       issue.Key,
		Permalink: s.permalink(issue.Key),
	}

	fields := issue.Fields
	if fields == nil {
		return rec
	}

	rec.Summary = fields.Summary
	if fields.Assignee != nil {
		rec.Assignee = fields.Assignee.DisplayName
	}
	if fields.Reporter != nil {
		rec.Reporter = fields.Reporter.DisplayName
	}
	if fields.Status != nil {
		rec.Status = fields.Status.Name
	}

	return rec
}

// permalink returns the browse URL of an issue in the Jira web UI.
func (s *Session) permalink(key string) string {
	return s.baseURL + "/browse/" + key
}
