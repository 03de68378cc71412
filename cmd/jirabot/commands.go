package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/jirabot/internal/chat"
	"github.com/nhle/jirabot/internal/chat/console"
	slacktransport "github.com/nhle/jirabot/internal/chat/slack"
	"github.com/nhle/jirabot/internal/credential"
	"github.com/nhle/jirabot/internal/logging"
	"github.com/nhle/jirabot/internal/metrics"
	"github.com/nhle/jirabot/internal/model"
	"github.com/nhle/jirabot/internal/plugin/jira"
	"github.com/nhle/jirabot/internal/theme"
)

func runSlack(cmd *cobra.Command, _ []string) error {
	if cfg.Slack.BotToken == "" || cfg.Slack.AppToken == "" {
		return errors.New("slack.bot_token and slack.app_token must be set (or JIRABOT_SLACK_BOT_TOKEN / JIRABOT_SLACK_APP_TOKEN)")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport := slacktransport.New(slacktransport.Config{
		BotToken: cfg.Slack.BotToken,
		AppToken: cfg.Slack.AppToken,
		Debug:    cfg.Slack.Debug,
		Logger:   logging.Default().Logger,
	})
	host := newHost(ctx, transport)
	_ = startJira(ctx, host, cmd.ErrOrStderr())

	logging.Info("starting jirabot", "version", Version, "transport", "slack", "sentry", cfg.Bot.SentryDSN != "")
	if err := transport.Run(ctx, host); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error("slack transport stopped", "error", err)
		return err
	}
	return nil
}

func runConsole(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport := console.New(console.Config{
		User:        cfg.Console.User,
		HistoryFile: cfg.Console.HistoryFile,
	})
	host := newHost(ctx, transport)
	_ = startJira(ctx, host, cmd.OutOrStdout())

	return transport.Run(ctx, host)
}

// runCheck runs the plugin lifecycle once against the configured server.
// Admin warnings go to the terminal.
func runCheck(cmd *cobra.Command, _ []string) error {
	user := pluginConfig(cfg)
	if user == nil {
		return fmt.Errorf("no plugins.%s section in %s", jira.Name, configPath)
	}

	transport := console.New(console.Config{Stdout: cmd.OutOrStdout()})
	host := chat.NewHost(transport, chat.HostConfig{
		Admins: []string{"admin"},
		Logger: logging.Default().Logger,
	})

	p := jira.New(jira.WithLogger(logging.Default().Logger))
	if err := host.Register(cmd.Context(), p, user); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in via %s\n", p.Method())
	return nil
}

func newHost(ctx context.Context, transport chat.Transport) *chat.Host {
	if addr := cfg.Metrics.ListenAddr; addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr, logging.Default().Logger); err != nil {
				logging.Error("metrics listener stopped", "error", err)
			}
		}()
	}

	return chat.NewHost(transport, chat.HostConfig{
		Prefix: cfg.Bot.Prefix,
		Admins: cfg.Bot.Admins,
		Logger: logging.Default().Logger,
	})
}

// startJira registers the Jira plugin and reports a failed activation on
// w. The bot keeps running without the plugin's commands.
func startJira(ctx context.Context, host *chat.Host, w io.Writer) error {
	p := jira.New(jira.WithLogger(logging.Default().Logger))
	err := host.Register(ctx, p, pluginConfig(cfg))
	if err != nil {
		fmt.Fprintln(w, theme.ErrorStyle.Render("jira plugin inactive: "+err.Error()))
	}
	return err
}

// pluginConfig returns the user's Jira settings, or nil when the config
// file has no section for the plugin.
func pluginConfig(c *model.AppConfig) chat.Config {
	settings := c.Plugin(jira.Name)
	if settings == nil {
		return nil
	}
	return chat.Config(settings)
}

// writeTemplate fills the Jira section of the config at path with the
// template defaults. Existing values win unless force is set.
func writeTemplate(path string, c *model.AppConfig, force bool) error {
	if c.Plugins == nil {
		c.Plugins = map[string]map[string]string{}
	}
	section := c.Plugins[jira.Name]
	if section == nil {
		section = map[string]string{}
	}

	for k, v := range jira.Template() {
		key := strings.ToLower(k)
		if _, ok := section[key]; ok && !force {
			continue
		}
		section[key] = v
	}
	c.Plugins[jira.Name] = section

	return model.SaveConfig(path, c)
}

func runCredentialSet(cmd *cobra.Command, key string) error {
	var secret string
	err := huh.NewInput().
		Title("Secret for " + key).
		Description("Stored in the system keyring").
		EchoMode(huh.EchoModePassword).
		Value(&secret).
		Validate(func(s string) error {
			if s == "" {
				return errors.New("secret cannot be empty")
			}
			return nil
		}).
		Run()
	if err != nil {
		return fmt.Errorf("reading secret: %w", err)
	}

	if err := credential.Set(key, secret); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stored. Reference it in the config as %s%s\n", credential.RefPrefix, key)
	return nil
}

func runCredentialDelete(cmd *cobra.Command, key string) error {
	if err := credential.Delete(key); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", key)
	return nil
}
