// Package jira is the chat plugin answering issue lookups against a Jira
// server.
package jira

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/nhle/jirabot/internal/auth"
	"github.com/nhle/jirabot/internal/chat"
	"github.com/nhle/jirabot/internal/credential"
	"github.com/nhle/jirabot/internal/logging"
	"github.com/nhle/jirabot/internal/tracker"
	trackerjira "github.com/nhle/jirabot/internal/tracker/jira"
)

// Name is the plugin name and its config file section.
const Name = "jira"

// Configuration keys.
const (
	KeyAPIURL                 = "API_URL"
	KeyUsername               = "USERNAME"
	KeyPassword               = "PASSWORD"
	KeyOAuthAccessToken       = "OAUTH_ACCESS_TOKEN"
	KeyOAuthAccessTokenSecret = "OAUTH_ACCESS_TOKEN_SECRET"
	KeyOAuthConsumerKey       = "OAUTH_CONSUMER_KEY"
	KeyOAuthKeyCertFile       = "OAUTH_KEY_CERT_FILE"
)

const (
	msgNotConfigured = "Jira not configured."
	msgLoginFailed   = "Failed to activate Jira plugin, maybe check the configuration"
	msgNotImpl       = "Not implemented"
)

// ErrInvalidConfiguration is returned by CheckConfiguration.
var ErrInvalidConfiguration = errors.New("invalid jira configuration")

var oauthKeys = []string{
	KeyOAuthAccessToken,
	KeyOAuthAccessTokenSecret,
	KeyOAuthConsumerKey,
	KeyOAuthKeyCertFile,
}

// Template returns the configuration keys with their defaults. Empty
// OAuth values mean OAuth is not configured.
func Template() chat.Config {
	return chat.Config{
		KeyAPIURL:                 "http://jira.example.com",
		KeyUsername:               "jirabot",
		KeyPassword:               "password",
		KeyOAuthAccessToken:       "",
		KeyOAuthAccessTokenSecret: "",
		KeyOAuthConsumerKey:       "",
		KeyOAuthKeyCertFile:       "",
	}
}

// Plugin holds the tracker session once activated.
type Plugin struct {
	connector tracker.Connector
	lookup    func(key string) (string, error)
	logger    *slog.Logger

	config  chat.Config
	bot     chat.Bot
	session tracker.Session
	method  string
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithConnector replaces the go-jira connector.
func WithConnector(c tracker.Connector) Option {
	return func(p *Plugin) { p.connector = c }
}

// WithSecretLookup replaces the OS keyring used for "keyring:" values.
func WithSecretLookup(lookup func(key string) (string, error)) Option {
	return func(p *Plugin) { p.lookup = lookup }
}

// WithLogger sets the plugin logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Plugin) { p.logger = l }
}

// New creates an inactive plugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		connector: trackerjira.NewConnector(nil),
		lookup:    credential.Get,
		logger:    logging.Default().Logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("plugin", Name)
	return p
}

// Name returns "jira".
func (p *Plugin) Name() string { return Name }

// Template returns the configuration template.
func (p *Plugin) Template() chat.Config { return Template() }

// Configure merges user settings over the template. Keys are matched
// case-insensitively. A nil user config leaves the plugin unconfigured.
func (p *Plugin) Configure(user chat.Config) chat.Config {
	if user == nil {
		p.config = nil
		return nil
	}

	cfg := Template()
	for k, v := range user {
		cfg[strings.ToUpper(k)] = v
	}
	p.config = cfg
	return cfg
}

// CheckConfiguration rejects unknown keys, a non-absolute API_URL and a
// partial OAuth set.
func (p *Plugin) CheckConfiguration(cfg chat.Config) error {
	template := Template()
	var unknown []string
	for k := range cfg {
		if _, ok := template[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: unknown keys %s", ErrInvalidConfiguration, strings.Join(unknown, ", "))
	}

	// A keyring reference is only resolved at activation.
	if apiURL := cfg[KeyAPIURL]; !credential.IsRef(apiURL) {
		u, err := url.Parse(apiURL)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("%w: %s must be an absolute URL, got %q", ErrInvalidConfiguration, KeyAPIURL, apiURL)
		}
	}

	var set, missing []string
	for _, k := range oauthKeys {
		if cfg[k] == "" {
			missing = append(missing, k)
		} else {
			set = append(set, k)
		}
	}
	if len(set) > 0 && len(missing) > 0 {
		return fmt.Errorf("%w: incomplete oauth settings, missing %s", ErrInvalidConfiguration, strings.Join(missing, ", "))
	}

	return nil
}

// Activate logs into Jira, OAuth first and basic auth second. Without a
// configuration, or when no login succeeds, admins are warned and the
// plugin stays inactive.
func (p *Plugin) Activate(ctx context.Context, bot chat.Bot) error {
	p.bot = bot
	p.session = nil

	if p.config == nil {
		p.logger.Info(msgNotConfigured)
		bot.WarnAdmins(ctx, msgNotConfigured)
		return chat.ErrNotConfigured
	}

	cfg, err := p.resolveSecrets(p.config)
	if err != nil {
		p.logger.Error(msgLoginFailed, "error", err)
		bot.WarnAdmins(ctx, msgLoginFailed)
		return err
	}

	apiURL := cfg[KeyAPIURL]
	a := auth.New(p.connector, apiURL, p.logger,
		&auth.OAuth{
			AccessToken:       cfg[KeyOAuthAccessToken],
			AccessTokenSecret: cfg[KeyOAuthAccessTokenSecret],
			ConsumerKey:       cfg[KeyOAuthConsumerKey],
			KeyCertFile:       cfg[KeyOAuthKeyCertFile],
		},
		&auth.Basic{
			Username: cfg[KeyUsername],
			Password: cfg[KeyPassword],
		},
	)

	session, method, err := a.Authenticate(ctx)
	if err != nil {
		p.logger.Error(msgLoginFailed, "error", err)
		bot.WarnAdmins(ctx, msgLoginFailed)
		return fmt.Errorf("logging into %s: %w", apiURL, err)
	}

	p.session = session
	p.method = method
	return nil
}

// Method returns the login strategy that produced the session, or "" when
// the plugin is inactive.
func (p *Plugin) Method() string {
	if p.session == nil {
		return ""
	}
	return p.method
}

// resolveSecrets returns a copy of cfg with keyring references replaced
// by the stored secrets.
func (p *Plugin) resolveSecrets(cfg chat.Config) (chat.Config, error) {
	out := make(chat.Config, len(cfg))
	for k, v := range cfg {
		resolved, err := credential.Resolve(v, p.lookup)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}

// Commands returns the lookup, create and assign commands.
func (p *Plugin) Commands() []chat.Command {
	return []chat.Command{
		{
			Name: "jira",
			Help: "show the summary of an issue and a link to it",
			Run:  p.lookupIssue,
		},
		{
			Name: "jira create",
			Help: "create a new issue (not implemented yet)",
			Run:  notImplemented,
		},
		{
			Name: "jira assign",
			Help: "(re)assign an issue to a user (not implemented yet)",
			Run:  notImplemented,
		},
	}
}

func notImplemented(context.Context, *chat.Message, []string) (string, error) {
	return msgNotImpl, nil
}
