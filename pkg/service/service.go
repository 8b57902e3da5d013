// ============================================================================
// meinBOT (mBOT) - Chat Command Bot
// ============================================================================
//
// Package:     service
// Description: Command groups sharing a two-token dispatch prefix with a
//              default command for bare or unknown invocations
// Author:      Mike Stoffels
// Created:     2026-09-18
// License:     MIT
// ============================================================================

package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	mboterror "github.com/msto63/mBOT/foundation/core/error"
	"github.com/msto63/mBOT/foundation/core/log"
	mbotstringx "github.com/msto63/mBOT/foundation/utils/stringx"
	"github.com/msto63/mBOT/pkg/command"
	"github.com/msto63/mBOT/pkg/dispatch"
)

// Options declares a service
type Options struct {
	Name        string
	Aliases     []string
	Description string
	Doc         string
	Hidden      bool
}

// Service is a named group of commands invoked as "<service> <command>".
// The default command, stored under the empty sub-name, answers bare and
// unknown invocations.
type Service struct {
	name        string
	aliases     []string
	description string
	doc         string
	hidden      atomic.Bool

	reg    *command.Registry
	logger *log.Logger

	mu                sync.RWMutex
	commands          map[string]*command.Command
	order             []string
	defaultOverridden bool
}

// New creates a service, registers its default command with the router and
// the service itself as a registry entry.
func New(reg *command.Registry, opts Options) (*Service, error) {
	if err := reg.CheckName(opts.Name); err != nil {
		return nil, mboterror.Wrap(err, "service registration failed").WithOperation("service.New")
	}

	s := &Service{
		name:        opts.Name,
		aliases:     append([]string(nil), opts.Aliases...),
		description: opts.Description,
		doc:         opts.Doc,
		reg:         reg,
		logger:      reg.Logger().WithField("service", opts.Name),
		commands:    make(map[string]*command.Command),
	}
	s.hidden.Store(opts.Hidden)

	def, err := reg.Bind(opts.Name, opts.Name, command.NewAliasSet(opts.Aliases...), command.Options{
		Description: opts.Description,
		Handlers:    []dispatch.Handler{s.fallback},
	})
	if err != nil {
		return nil, mboterror.Wrap(err, "service registration failed").WithOperation("service.New")
	}
	s.commands[""] = def

	if err := reg.Register(s); err != nil {
		return nil, err
	}

	s.logger.Debug("service registered", log.Fields{"aliases": len(opts.Aliases)})
	return s, nil
}

// fallback answers an invocation that matched no sub-command
func (s *Service) fallback(ctx context.Context, ev *dispatch.Event) dispatch.Signal {
	def := s.Default()
	if ev.Args == "" {
		return s.failAndFinish(ctx, def, s.reg.Localize("service.no_command", map[string]interface{}{
			"service": s.name,
		}))
	}
	return s.failAndFinish(ctx, def, s.reg.Localize("service.unknown_command", map[string]interface{}{
		"service": s.name,
		"command": ev.Args,
	}))
}

func (s *Service) failAndFinish(ctx context.Context, def *command.Command, text string) dispatch.Signal {
	if err := def.SendFailure(ctx, text); err != nil {
		s.logger.WarnWithErr("fallback reply failed", err)
	}
	return dispatch.Finish
}

// OnCommand declares a sub-command. An empty name overrides the default
// command in place; its aliases are ignored.
func (s *Service) OnCommand(opts command.Options) (*command.Command, error) {
	sub := strings.TrimSpace(opts.Name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if sub == "" {
		return s.overrideDefaultLocked(opts)
	}

	if mbotstringx.HasWhitespace(sub) {
		return nil, mboterror.Newf("invalid command name '%s'", sub).
			WithCode(mboterror.CodeInvalidName).
			WithOperation("service.OnCommand").
			WithDetail("service", s.name)
	}
	if _, exists := s.commands[sub]; exists {
		return nil, s.duplicate(sub)
	}

	key := s.name + " " + sub
	aliases := command.BuildAliases(s.name, s.aliases, sub, opts.Aliases)
	cmd, err := s.reg.Bind(key, key, aliases, opts)
	if err != nil {
		return nil, mboterror.Wrap(err, "sub-command registration failed").
			WithOperation("service.OnCommand").
			WithDetail("service", s.name)
	}
	s.commands[sub] = cmd
	s.order = append(s.order, sub)

	s.logger.Debug("sub-command registered", log.Fields{"command": sub, "aliases": aliases.Len()})
	return cmd, nil
}

func (s *Service) overrideDefaultLocked(opts command.Options) (*command.Command, error) {
	if s.defaultOverridden {
		return nil, s.duplicate("")
	}
	if len(opts.Aliases) > 0 {
		s.logger.Warn("aliases of the default command are ignored", log.Fields{"aliases": strings.Join(opts.Aliases, ",")})
	}

	def := s.commands[""]
	if err := def.Override(opts); err != nil {
		return nil, err
	}
	s.defaultOverridden = true
	return def, nil
}

func (s *Service) duplicate(sub string) error {
	return mboterror.Newf("command '%s' already registered in service '%s'", sub, s.name).
		WithCode(mboterror.CodeDuplicateCommand).
		WithOperation("service.OnCommand").
		WithDetail("service", s.name).
		WithDetail("command", sub)
}

// Name returns the service name
func (s *Service) Name() string {
	return s.name
}

// Aliases returns the service aliases
func (s *Service) Aliases() []string {
	return append([]string(nil), s.aliases...)
}

// Description returns the one-line description
func (s *Service) Description() string {
	return s.description
}

// Doc returns the documentation text
func (s *Service) Doc() string {
	return s.doc
}

func (s *Service) Hidden() bool { return s.hidden.Load() }
func (s *Service) Hide()        { s.hidden.Store(true) }
func (s *Service) Unhide()      { s.hidden.Store(false) }

// Default returns the default command
func (s *Service) Default() *command.Command {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commands[""]
}

// Command returns the sub-command registered under sub
func (s *Service) Command(sub string) (*command.Command, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.commands[sub]
	return c, ok
}

// Commands returns the sub-commands in registration order, without the
// default command
func (s *Service) Commands() []*command.Command {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*command.Command, 0, len(s.order))
	for _, sub := range s.order {
		out = append(out, s.commands[sub])
	}
	return out
}

// UsageString returns the service help page: documentation followed by one
// line per visible command, the default command first
func (s *Service) UsageString() string {
	s.mu.RLock()
	subs := append([]string{""}, s.order...)
	cmds := make([]*command.Command, len(subs))
	for i, sub := range subs {
		cmds[i] = s.commands[sub]
	}
	s.mu.RUnlock()

	notAvailable := s.reg.Localize("expr.not_available", nil)
	var lines []string
	for i, cmd := range cmds {
		if cmd.Hidden() {
			continue
		}
		name := subs[i]
		if name == "" {
			name = s.reg.Localize("expr.direct_call", nil)
		}
		lines = append(lines, s.reg.Localize("service.list_item", map[string]interface{}{
			"command":     name,
			"description": mbotstringx.FromBlankDefault(cmd.Description(), notAvailable),
		}))
	}

	list := strings.Join(lines, "\n")
	if len(lines) == 0 {
		list = s.reg.Localize("expr.no_commands", nil)
	}
	return s.reg.Localize("service.usage", map[string]interface{}{
		"service":  s.name,
		"doc":      mbotstringx.FromBlankDefault(s.doc, notAvailable),
		"commands": list,
	})
}
