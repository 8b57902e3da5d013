// ============================================================================
// meinBOT (mBOT) - Chat Command Bot
// ============================================================================
//
// Package:     console
// Description: Line-oriented REPL transport: every input line is one chat
//              message from a fixed local user
// Author:      Mike Stoffels
// Created:     2026-09-24
// License:     MIT
// ============================================================================

package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/msto63/mBOT/foundation/core/log"
	"github.com/msto63/mBOT/pkg/dispatch"
)

// Dispatcher routes one inbound message
type Dispatcher interface {
	Dispatch(ctx context.Context, msg dispatch.Message) (bool, error)
}

// Localizer renders catalog texts
type Localizer interface {
	Localize(key string, data map[string]interface{}) string
}

// Config holds the identity the console speaks as
type Config struct {
	Platform  string
	UserID    string
	ChannelID string
	Prompt    string
	// Quiet suppresses the welcome line and hints for unmatched input
	Quiet bool
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Platform:  "console",
		UserID:    "console",
		ChannelID: "console",
		Prompt:    "> ",
	}
}

// Console reads messages from in and writes styled replies to out
type Console struct {
	config     Config
	dispatcher Dispatcher
	texts      Localizer
	in         io.Reader
	out        io.Writer
	styles     Styles
	logger     *log.Logger

	mu sync.Mutex
}

// New creates a console transport. texts may be nil.
func New(cfg Config, dispatcher Dispatcher, texts Localizer, in io.Reader, out io.Writer, logger *log.Logger) *Console {
	def := DefaultConfig()
	if cfg.Platform == "" {
		cfg.Platform = def.Platform
	}
	if cfg.UserID == "" {
		cfg.UserID = def.UserID
	}
	if cfg.ChannelID == "" {
		cfg.ChannelID = cfg.UserID
	}
	if logger == nil {
		logger = log.GetDefault()
	}
	return &Console{
		config:     cfg,
		dispatcher: dispatcher,
		texts:      texts,
		in:         in,
		out:        out,
		styles:     NewStyles(out),
		logger:     logger.WithField("component", "console"),
	}
}

// Run processes input lines until EOF, "exit"/"quit" or ctx is done
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	if !c.config.Quiet && c.texts != nil {
		c.println(c.styles.Hint.Render(c.texts.Localize("console.welcome", nil)))
	}

	for {
		c.prompt()
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			switch strings.TrimSpace(line) {
			case "":
				continue
			case "exit", "quit":
				return nil
			}
			if err := c.handle(ctx, line); err != nil {
				return err
			}
		}
	}
}

func (c *Console) handle(ctx context.Context, line string) error {
	reply := dispatch.ReplierFunc(func(ctx context.Context, text string) error {
		c.println(c.styles.RenderReply(text))
		return nil
	})

	handled, err := c.dispatcher.Dispatch(ctx, dispatch.Message{
		Platform:  c.config.Platform,
		UserID:    c.config.UserID,
		ChannelID: c.config.ChannelID,
		Text:      line,
		Reply:     reply,
	})
	if err != nil {
		c.logger.WarnWithErr("dispatch failed", err)
		c.println(c.styles.Failure.Render(err.Error()))
		return nil
	}
	if !handled && !c.config.Quiet && c.texts != nil {
		c.println(c.styles.Hint.Render(c.texts.Localize("console.unhandled", nil)))
	}
	return nil
}

func (c *Console) prompt() {
	if c.config.Prompt == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, c.styles.Prompt.Render(c.config.Prompt))
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}
