package jira

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/jirabot/internal/chat"
	"github.com/nhle/jirabot/internal/issueref"
	"github.com/nhle/jirabot/internal/metrics"
	"github.com/nhle/jirabot/internal/tracker"
)

const (
	msgEmptyID     = "issue id cannot be empty"
	msgMalformedID = "issue id format incorrect"
)

// lookupIssue answers "jira <identifier>". Any fetch failure is reported
// to the user as not found.
func (p *Plugin) lookupIssue(ctx context.Context, msg *chat.Message, args []string) (string, error) {
	if p.session == nil {
		return "", fmt.Errorf("jira plugin is not active")
	}

	var candidate string
	if len(args) > 0 {
		candidate = args[0]
	}

	key, ok := p.verifyIssueID(ctx, msg, candidate)
	if !ok {
		metrics.LookupsTotal.WithLabelValues("invalid").Inc()
		return "", nil
	}

	log := chat.LoggerFrom(ctx).With("issue", key)

	start := time.Now()
	issue, err := p.session.FetchIssue(ctx, key)
	metrics.LookupDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.LookupsTotal.WithLabelValues("found").Inc()
		return formatIssue(issue), nil
	case errors.Is(err, tracker.ErrNotFound):
		metrics.LookupsTotal.WithLabelValues("not_found").Inc()
		log.Debug("issue not found")
	default:
		metrics.LookupsTotal.WithLabelValues("error").Inc()
		log.Error("fetching issue", "error", err)
	}
	return formatNotFound(key), nil
}

// verifyIssueID extracts the issue key from the message. On failure the
// reason is sent back to the sender and ok is false.
func (p *Plugin) verifyIssueID(ctx context.Context, msg *chat.Message, candidate string) (string, bool) {
	ref, err := issueref.Extract(msg.Body, candidate)
	if err == nil {
		return ref.String(), true
	}

	text := msgMalformedID
	if errors.Is(err, issueref.ErrEmptyIdentifier) {
		text = msgEmptyID
	}
	if sendErr := p.bot.Send(ctx, chat.Reply{To: msg, Text: text}); sendErr != nil {
		chat.LoggerFrom(ctx).Error("sending reply", "error", sendErr)
	}
	return "", false
}
