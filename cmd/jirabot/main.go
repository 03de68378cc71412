// Command jirabot is a chat bot answering Jira issue lookups.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/jirabot/internal/logging"
	"github.com/nhle/jirabot/internal/model"
)

// Version is set at build time
var Version = "dev"

var (
	configPath string
	cfg        *model.AppConfig
)

func main() {
	os.Exit(run())
}

func run() (exitCode int) {
	defer func() {
		if r := recover(); r != nil {
			logging.CapturePanic(r, "component", "main")
			fmt.Fprintf(os.Stderr, "FATAL: unrecovered panic: %v\n", r)
			exitCode = 2
		}
	}()
	defer logging.Flush(2 * time.Second)

	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

var rootCmd = &cobra.Command{
	Use:   "jirabot",
	Short: "Chat bot for Jira issue lookups",
	Long: `jirabot answers "!jira PROJ-123" in chat with the issue's status,
summary, reporter, assignee and a link to it.

Without a subcommand it connects to Slack.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runSlack,
}

var slackCmd = &cobra.Command{
	Use:   "slack",
	Short: "Run the bot on Slack (Socket Mode)",
	RunE:  runSlack,
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Run the bot in the terminal",
	RunE:  runConsole,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the Jira configuration and try to log in",
	RunE:  runCheck,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configTemplateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write the Jira plugin settings template into the config file",
	Long: `Adds every Jira plugin key with its default value to the config file.
Values already present are kept unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if err := writeTemplate(configPath, cfg, force); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
		return nil
	},
}

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage secrets stored in the system keyring",
	Long: `Secrets stored here can be referenced from the config file as
"keyring:<key>", for example:

  plugins:
    jira:
      password: keyring:jira-password`,
}

var credentialSetCmd = &cobra.Command{
	Use:   "set <key>",
	Short: "Prompt for a secret and store it under key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCredentialSet(cmd, args[0])
	},
}

var credentialDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Remove the secret stored under key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCredentialDelete(cmd, args[0])
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "config file path")
	configTemplateCmd.Flags().Bool("force", false, "overwrite existing Jira settings with the defaults")

	configCmd.AddCommand(configTemplateCmd)
	credentialCmd.AddCommand(credentialSetCmd, credentialDeleteCmd)
	rootCmd.AddCommand(slackCmd, consoleCmd, checkCmd, configCmd, credentialCmd)
}

// loadConfig reads the config file and initializes logging.
func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if err := logging.Init(logging.Config{
		Level:     logging.ParseLevel(cfg.Bot.LogLevel),
		SentryDSN: cfg.Bot.SentryDSN,
		Env:       cfg.Bot.Environment,
		Version:   Version,
		LogFile:   cfg.Bot.LogFile,
	}); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to initialize logging: %v\n", err)
	}
	return nil
}
