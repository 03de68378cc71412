// Package chat hosts bot plugins: it runs their lifecycle, keeps the
// command registry and dispatches inbound chat messages to commands.
package chat

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nhle/jirabot/internal/logging"
)

// ErrNotConfigured is returned by Activate when a plugin has no user
// configuration.
var ErrNotConfigured = errors.New("plugin not configured")

// Kind tells where a message was posted.
type Kind string

const (
	KindDirect  Kind = "direct"
	KindChannel Kind = "channel"
)

// Message is one inbound chat message.
type Message struct {
	// ID correlates every log line produced while handling the message.
	ID       string
	From     string
	Channel  string
	ThreadID string
	Body     string
	Kind     Kind
}

// Reply is an outbound message answering To.
type Reply struct {
	To   *Message
	Text string
}

// Config is a plugin's flat key-value configuration.
type Config map[string]string

// Bot is the surface a plugin uses to talk back to chat.
type Bot interface {
	Send(ctx context.Context, r Reply) error
	WarnAdmins(ctx context.Context, text string)
}

// Command is a named chat command. Run receives the originating message
// and the whitespace-split arguments following the command name. A
// non-empty returned text is sent back as a reply.
type Command struct {
	Name string
	Help string
	Run  func(ctx context.Context, msg *Message, args []string) (string, error)
}

// Plugin is a unit of bot functionality with a configure, check and
// activate lifecycle.
type Plugin interface {
	Name() string

	// Template returns the configuration keys with their default values.
	Template() Config

	// Configure merges user settings over the template and returns the
	// effective configuration. A nil user config leaves the plugin
	// unconfigured and returns nil.
	Configure(user Config) Config

	// CheckConfiguration validates an effective configuration.
	CheckConfiguration(cfg Config) error

	// Activate prepares the plugin for use. Commands are registered only
	// when it returns nil.
	Activate(ctx context.Context, bot Bot) error

	Commands() []Command
}

// Transport delivers replies to a chat backend.
type Transport interface {
	Send(ctx context.Context, r Reply) error

	// SendDirect posts text privately to a user.
	SendDirect(ctx context.Context, user, text string) error
}

// Handler consumes inbound messages. Transports call Handle from a
// single loop, one message at a time.
type Handler interface {
	Handle(ctx context.Context, msg *Message)
}

type loggerKey struct{}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the logger stored in ctx, or the default logger.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return logging.Default().Logger
}
