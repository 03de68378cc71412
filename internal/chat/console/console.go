// Package console is a chat transport reading commands from the terminal.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/google/uuid"

	"github.com/nhle/jirabot/internal/chat"
	"github.com/nhle/jirabot/internal/theme"
)

// Config holds console transport configuration.
type Config struct {
	// User is the sender name given to every typed line.
	User string

	// HistoryFile persists input history. Empty keeps it in memory.
	HistoryFile string

	Stdin  io.ReadCloser
	Stdout io.Writer
}

// Console reads one line at a time and hands it to a chat.Handler.
type Console struct {
	user        string
	historyFile string
	stdin       io.ReadCloser
	stdout      io.Writer

	mu sync.Mutex
}

// New creates a console transport. Nil streams select the process's
// standard input and output.
func New(cfg Config) *Console {
	if cfg.User == "" {
		cfg.User = "console"
	}
	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	return &Console{
		user:        cfg.User,
		historyFile: cfg.HistoryFile,
		stdin:       cfg.Stdin,
		stdout:      cfg.Stdout,
	}
}

// Run reads lines until EOF or ctx is cancelled. Ctrl+C clears the line.
func (c *Console) Run(ctx context.Context, h chat.Handler) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            theme.PromptStyle.Render(c.user+"> "),
		HistoryFile:       c.historyFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdin:             c.stdin,
		Stdout:            c.stdout,
	})
	if err != nil {
		return fmt.Errorf("creating readline: %w", err)
	}
	defer rl.Close()

	go func() {
		<-ctx.Done()
		_ = rl.Close()
	}()

	c.printBanner()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		c.HandleLine(ctx, h, line)
	}
}

// HandleLine turns one typed line into a direct message for h. Blank
// lines are skipped.
func (c *Console) HandleLine(ctx context.Context, h chat.Handler, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	h.Handle(ctx, &chat.Message{
		ID:   uuid.NewString(),
		From: c.user,
		Body: line,
		Kind: chat.KindDirect,
	})
}

// Send prints a reply.
func (c *Console) Send(_ context.Context, r chat.Reply) error {
	return c.println(theme.BotLabelStyle.Render("jirabot:") + " " + r.Text)
}

// SendDirect prints a private message addressed to user.
func (c *Console) SendDirect(_ context.Context, user, text string) error {
	return c.println(theme.WarningStyle.Render("to "+user+":") + " " + text)
}

func (c *Console) printBanner() {
	_ = c.println(theme.HeaderStyle.Render("jirabot console"))
	_ = c.println(theme.HelpStyle.Render("Type !help for commands, Ctrl+D to quit."))
}

func (c *Console) println(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintln(c.stdout, s); err != nil {
		return fmt.Errorf("writing to console: %w", err)
	}
	return nil
}
