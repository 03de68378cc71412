// Package slack is a chat transport for Slack using Socket Mode.
package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/nhle/jirabot/internal/chat"
	"github.com/nhle/jirabot/internal/logging"
)

// Config holds Slack transport configuration.
type Config struct {
	BotToken string
	AppToken string
	Debug    bool
	Logger   *slog.Logger

	// APIURL overrides the Web API endpoint. It must end with a slash.
	APIURL string
}

// Transport receives Slack messages over Socket Mode and replies through
// the Web API.
type Transport struct {
	api    *slack.Client
	socket *socketmode.Client
	logger *slog.Logger

	botUserID string
}

// New creates a Slack transport. Nothing is contacted until Run.
func New(cfg Config) *Transport {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default().Logger
	}

	opts := []slack.Option{slack.OptionAppLevelToken(cfg.AppToken)}
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}
	api := slack.New(cfg.BotToken, opts...)

	return &Transport{
		api:    api,
		socket: socketmode.New(api, socketmode.OptionDebug(cfg.Debug)),
		logger: cfg.Logger,
	}
}

// Run connects and feeds messages to h until ctx is cancelled. Events are
// handled one at a time by a single loop.
func (t *Transport) Run(ctx context.Context, h chat.Handler) error {
	auth, err := t.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	t.botUserID = auth.UserID
	t.logger.Info("slack bot authenticated", "user_id", auth.UserID, "team", auth.Team)

	go t.handleEvents(ctx, h)

	return t.socket.RunContext(ctx)
}

func (t *Transport) handleEvents(ctx context.Context, h chat.Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-t.socket.Events:
			if !ok {
				return
			}
			t.handleEvent(ctx, h, evt)
		}
	}
}

func (t *Transport) handleEvent(ctx context.Context, h chat.Handler, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		t.logger.Info("slack socket mode connecting")

	case socketmode.EventTypeConnected:
		t.logger.Info("slack socket mode connected")

	case socketmode.EventTypeConnectionError:
		t.logger.Error("slack socket mode connection error")

	case socketmode.EventTypeEventsAPI:
		event, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		if evt.Request != nil {
			t.socket.Ack(*evt.Request)
		}
		t.handleEventsAPI(ctx, h, event)
	}
}

func (t *Transport) handleEventsAPI(ctx context.Context, h chat.Handler, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	ev, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	if msg := t.toMessage(ev); msg != nil {
		h.Handle(ctx, msg)
	}
}

// toMessage converts a Slack message event. The bot's own messages, bot
// posts and edit/delete subtypes yield nil.
func (t *Transport) toMessage(ev *slackevents.MessageEvent) *chat.Message {
	if ev.User == "" || ev.User == t.botUserID || ev.BotID != "" || ev.SubType != "" {
		return nil
	}

	kind := chat.KindChannel
	if ev.ChannelType == "im" {
		kind = chat.KindDirect
	}

	return &chat.Message{
		ID:       uuid.NewString(),
		From:     ev.User,
		Channel:  ev.Channel,
		ThreadID: ev.ThreadTimeStamp,
		Body:     ev.Text,
		Kind:     kind,
	}
}

// Send posts r.Text to the channel of the message it answers, inside the
// same thread when there is one.
func (t *Transport) Send(ctx context.Context, r chat.Reply) error {
	if r.To == nil || r.To.Channel == "" {
		return errors.New("slack reply without a channel")
	}

	opts := []slack.MsgOption{slack.MsgOptionText(r.Text, false)}
	if r.To.ThreadID != "" {
		opts = append(opts, slack.MsgOptionTS(r.To.ThreadID))
	}

	if _, _, err := t.api.PostMessageContext(ctx, r.To.Channel, opts...); err != nil {
		return fmt.Errorf("posting to %s: %w", r.To.Channel, err)
	}
	return nil
}

// SendDirect posts text to the app's direct-message channel with user.
func (t *Transport) SendDirect(ctx context.Context, user, text string) error {
	if _, _, err := t.api.PostMessageContext(ctx, user, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("messaging %s: %w", user, err)
	}
	return nil
}
