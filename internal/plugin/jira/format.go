package jira

import (
	"fmt"

	"github.com/nhle/jirabot/internal/model"
)

const (
	noAssignee = "Unassigned"
	noReporter = "Anonymous"
)

// formatIssue renders the two-line lookup reply.
func formatIssue(issue *model.Issue) string {
	return fmt.Sprintf("(%s) \"%s\" (by %s)\nassigned to %s - %s",
		issue.Status,
		issue.Summary,
		orDefault(issue.Reporter, noReporter),
		orDefault(issue.Assignee, noAssignee),
		issue.Permalink,
	)
}

func formatNotFound(key string) string {
	return fmt.Sprintf("issue %s not found.", key)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
