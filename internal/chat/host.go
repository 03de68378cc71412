package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/nhle/jirabot/internal/logging"
	"github.com/nhle/jirabot/internal/metrics"
)

const helpCommand = "help"

// HostConfig configures a Host.
type HostConfig struct {
	// Prefix must start every command message. Defaults to "!".
	Prefix string

	// Admins receive WarnAdmins messages.
	Admins []string

	Logger *slog.Logger
}

// Host owns the command registry and implements Bot for its plugins.
type Host struct {
	transport Transport
	prefix    string
	admins    []string
	logger    *slog.Logger

	commands map[string]Command
	active   map[string]bool
}

// NewHost creates a Host sending replies through transport. The built-in
// help command is always registered.
func NewHost(transport Transport, cfg HostConfig) *Host {
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default().Logger
	}

	h := &Host{
		transport: transport,
		prefix:    cfg.Prefix,
		admins:    cfg.Admins,
		logger:    cfg.Logger,
		commands:  make(map[string]Command),
		active:    make(map[string]bool),
	}
	h.commands[helpCommand] = Command{
		Name: helpCommand,
		Help: "list available commands",
		Run:  h.help,
	}
	return h
}

// Register runs the plugin lifecycle with the user's settings (nil when
// the config file has none) and registers the plugin's commands if it
// activates. A plugin that fails to activate stays inactive; the error is
// logged and returned but the host keeps running.
func (h *Host) Register(ctx context.Context, p Plugin, user Config) error {
	log := h.logger.With("plugin", p.Name())

	cfg := p.Configure(user)
	if cfg != nil {
		if err := p.CheckConfiguration(cfg); err != nil {
			log.Error("invalid configuration", "error", err)
			return fmt.Errorf("checking %s configuration: %w", p.Name(), err)
		}
	}

	if err := p.Activate(ctx, h); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			log.Warn("plugin not activated", "reason", err)
		} else {
			log.Error("plugin not activated", "error", err)
		}
		return fmt.Errorf("activating %s: %w", p.Name(), err)
	}

	for _, cmd := range p.Commands() {
		h.commands[strings.ToLower(cmd.Name)] = cmd
	}
	h.active[p.Name()] = true
	log.Info("plugin activated", "commands", len(p.Commands()))
	return nil
}

// Active reports whether the named plugin activated.
func (h *Host) Active(name string) bool {
	return h.active[name]
}

// Lookup returns the registered command with the given name.
func (h *Host) Lookup(name string) (Command, bool) {
	cmd, ok := h.commands[strings.ToLower(name)]
	return cmd, ok
}

// Handle dispatches one message. Messages without the prefix are ignored.
// The longest registered command name matching the leading words wins.
func (h *Host) Handle(ctx context.Context, msg *Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	log := h.logger.With("request_id", msg.ID, "from", msg.From, "channel", msg.Channel)
	ctx = WithLogger(ctx, log)

	defer func() {
		if r := recover(); r != nil {
			logging.CapturePanic(r, "request_id", msg.ID)
		}
	}()

	body := strings.TrimSpace(msg.Body)
	if !strings.HasPrefix(body, h.prefix) {
		return
	}
	words := strings.Fields(strings.TrimPrefix(body, h.prefix))
	if len(words) == 0 {
		return
	}

	cmd, args, ok := h.match(words)
	if !ok {
		log.Debug("unknown command", "command", words[0])
		h.reply(ctx, log, msg, fmt.Sprintf("Command %q not found.", words[0]))
		return
	}

	metrics.CommandsTotal.WithLabelValues(cmd.Name).Inc()
	log.Debug("dispatching command", "command", cmd.Name, "args", len(args))

	text, err := cmd.Run(ctx, msg, args)
	if err != nil {
		log.Error("command failed", "command", cmd.Name, "error", err)
		if text == "" {
			text = fmt.Sprintf("Command %q failed: %v", cmd.Name, err)
		}
	}
	if text != "" {
		h.reply(ctx, log, msg, text)
	}
}

func (h *Host) match(words []string) (Command, []string, bool) {
	for n := len(words); n > 0; n-- {
		name := strings.ToLower(strings.Join(words[:n], " "))
		if cmd, ok := h.commands[name]; ok {
			return cmd, words[n:], true
		}
	}
	return Command{}, nil, false
}

func (h *Host) reply(ctx context.Context, log *slog.Logger, msg *Message, text string) {
	if err := h.Send(ctx, Reply{To: msg, Text: text}); err != nil {
		log.Error("sending reply", "error", err)
	}
}

// Send delivers r through the transport.
func (h *Host) Send(ctx context.Context, r Reply) error {
	return h.transport.Send(ctx, r)
}

// WarnAdmins sends text privately to every configured admin. Delivery
// failures are logged.
func (h *Host) WarnAdmins(ctx context.Context, text string) {
	log := LoggerFrom(ctx)
	if len(h.admins) == 0 {
		log.Warn("admin warning with no admins configured", "warning", text)
		return
	}
	for _, admin := range h.admins {
		if err := h.transport.SendDirect(ctx, admin, text); err != nil {
			log.Error("warning admin", "admin", admin, "error", err)
		}
	}
}

func (h *Host) help(_ context.Context, _ *Message, _ []string) (string, error) {
	names := make([]string, 0, len(h.commands))
	for name := range h.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Available commands:")
	for _, name := range names {
		fmt.Fprintf(&b, "\n%s%s - %s", h.prefix, name, h.commands[name].Help)
	}
	return b.String(), nil
}
