package console

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/jirabot/internal/chat"
)

type handlerFunc func(ctx context.Context, msg *chat.Message)

func (f handlerFunc) Handle(ctx context.Context, msg *chat.Message) { f(ctx, msg) }

func TestHandleLine(t *testing.T) {
	c := New(Config{User: "alice", Stdout: &bytes.Buffer{}})

	var got []*chat.Message
	h := handlerFunc(func(_ context.Context, msg *chat.Message) { got = append(got, msg) })

	c.HandleLine(context.Background(), h, "  !jira proj-1  ")
	c.HandleLine(context.Background(), h, "   ")

	require.Len(t, got, 1)
	assert.Equal(t, "!jira proj-1", got[0].Body)
	assert.Equal(t, "alice", got[0].From)
	assert.Equal(t, chat.KindDirect, got[0].Kind)
	assert.NotEmpty(t, got[0].ID)
}

func TestSend(t *testing.T) {
	var out bytes.Buffer
	c := New(Config{Stdout: &out})

	require.NoError(t, c.Send(context.Background(), chat.Reply{Text: "issue PROJ-1 not found."}))
	assert.Contains(t, out.String(), "jirabot:")
	assert.Contains(t, out.String(), "issue PROJ-1 not found.\n")
}

func TestSendDirect(t *testing.T) {
	var out bytes.Buffer
	c := New(Config{Stdout: &out})

	require.NoError(t, c.SendDirect(context.Background(), "admin", "Jira not configured."))
	assert.Contains(t, out.String(), "to admin:")
	assert.Contains(t, out.String(), "Jira not configured.")
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{})
	assert.Equal(t, "console", c.user)
	assert.NotNil(t, c.stdin)
	assert.NotNil(t, c.stdout)
}
