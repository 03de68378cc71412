package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// BotConfig holds settings shared by every transport.
type BotConfig struct {
	// Prefix is the string a chat message must start with to be treated
	// as a command (e.g., "!").
	Prefix string `mapstructure:"prefix" yaml:"prefix"`

	// Admins lists the chat user IDs that receive administrator warnings.
	Admins []string `mapstructure:"admins" yaml:"admins"`

	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	SentryDSN   string `mapstructure:"sentry_dsn" yaml:"sentry_dsn"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// SlackConfig holds the Socket Mode credentials for the Slack transport.
type SlackConfig struct {
	// BotToken is the xoxb- token used for Web API calls.
	BotToken string `mapstructure:"bot_token" yaml:"bot_token"`

	// AppToken is the xapp- token used to open the Socket Mode connection.
	AppToken string `mapstructure:"app_token" yaml:"app_token"`

	Debug bool `mapstructure:"debug" yaml:"debug"`
}

// ConsoleConfig holds settings for the local readline transport.
type ConsoleConfig struct {
	User        string `mapstructure:"user" yaml:"user"`
	HistoryFile string `mapstructure:"history_file" yaml:"history_file"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	// ListenAddr is the address serving /metrics. Empty disables it.
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Bot     BotConfig     `mapstructure:"bot" yaml:"bot"`
	Slack   SlackConfig   `mapstructure:"slack" yaml:"slack"`
	Console ConsoleConfig `mapstructure:"console" yaml:"console"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Plugins maps a plugin name to its flat key-value settings. Keys are
	// lowercased by viper; plugins normalize them on Configure.
	Plugins map[string]map[string]string `mapstructure:"plugins" yaml:"plugins"`
}

// DefaultConfigPath returns the configuration file path. JIRABOT_CONFIG
// takes precedence over ~/.config/jirabot/config.yaml.
func DefaultConfigPath() string {
	if p := os.Getenv("JIRABOT_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "jirabot", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Bot: BotConfig{
			Prefix:      "!",
			LogLevel:    "info",
			Environment: "development",
		},
		Console: ConsoleConfig{
			User: "console",
		},
		Plugins: map[string]map[string]string{},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file is not an error: defaults and JIRABOT_* environment
// variables still apply.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("JIRABOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every bot-level key needs a default so AutomaticEnv can see it
	// during Unmarshal.
	v.SetDefault("bot.prefix", "!")
	v.SetDefault("bot.admins", []string{})
	v.SetDefault("bot.log_level", "info")
	v.SetDefault("bot.log_file", "")
	v.SetDefault("bot.sentry_dsn", "")
	v.SetDefault("bot.environment", "development")
	v.SetDefault("slack.bot_token", "")
	v.SetDefault("slack.app_token", "")
	v.SetDefault("slack.debug", false)
	v.SetDefault("console.user", "console")
	v.SetDefault("console.history_file", "")
	v.SetDefault("metrics.listen_addr", "")

	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Plugins == nil {
		cfg.Plugins = map[string]map[string]string{}
	}

	// Unmarshal drops empty sections; "jira: {}" still configures the plugin.
	if raw, ok := v.Get("plugins").(map[string]any); ok {
		for name := range raw {
			if cfg.Plugins[name] == nil {
				cfg.Plugins[name] = map[string]string{}
			}
		}
	}

	cfg.expandEnvVars()
	return cfg, nil
}

// Plugin returns the settings for the named plugin, or nil when the
// config file has no section for it.
func (c *AppConfig) Plugin(name string) map[string]string {
	return c.Plugins[strings.ToLower(name)]
}

// envRef matches the ${NAME} form only. A bare $ is part of the value.
var envRef = regexp.MustCompile(`\$\{(\w+)\}`)

// expandEnv replaces ${NAME} with the environment value. References to
// unset variables are left as written.
func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		if val, ok := os.LookupEnv(envRef.FindStringSubmatch(ref)[1]); ok {
			return val
		}
		return ref
	})
}

func (c *AppConfig) expandEnvVars() {
	c.Slack.BotToken = expandEnv(c.Slack.BotToken)
	c.Slack.AppToken = expandEnv(c.Slack.AppToken)
	c.Bot.SentryDSN = expandEnv(c.Bot.SentryDSN)
	for _, settings := range c.Plugins {
		for k, val := range settings {
			settings[k] = expandEnv(val)
		}
	}
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("bot", cfg.Bot)
	v.Set("slack", cfg.Slack)
	v.Set("console", cfg.Console)
	v.Set("metrics", cfg.Metrics)
	v.Set("plugins", cfg.Plugins)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
