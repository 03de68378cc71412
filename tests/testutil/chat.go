package testutil

import (
	"context"
	"errors"

	"github.com/nhle/jirabot/internal/chat"
)

// DirectMessage is a private message captured by RecordingTransport.
type DirectMessage struct {
	User string
	Text string
}

// RecordingTransport is a chat.Transport that keeps everything it is
// asked to send.
type RecordingTransport struct {
	Replies []chat.Reply
	Direct  []DirectMessage

	// Fail makes every send return an error.
	Fail bool
}

// Send records r.
func (t *RecordingTransport) Send(_ context.Context, r chat.Reply) error {
	if t.Fail {
		return errors.New("transport closed")
	}
	t.Replies = append(t.Replies, r)
	return nil
}

// SendDirect records a private message.
func (t *RecordingTransport) SendDirect(_ context.Context, user, text string) error {
	if t.Fail {
		return errors.New("transport closed")
	}
	t.Direct = append(t.Direct, DirectMessage{User: user, Text: text})
	return nil
}

// Texts returns the text of every recorded reply in order.
func (t *RecordingTransport) Texts() []string {
	out := make([]string, len(t.Replies))
	for i, r := range t.Replies {
		out[i] = r.Text
	}
	return out
}

// RecordingBot is a chat.Bot backed by a RecordingTransport.
type RecordingBot struct {
	RecordingTransport
	Warnings []string
}

// WarnAdmins records text.
func (b *RecordingBot) WarnAdmins(_ context.Context, text string) {
	b.Warnings = append(b.Warnings, text)
}
