// ============================================================================
// meinBOT (mBOT) - Chat Command Bot
// ============================================================================
//
// Package:     builtin
// Description: Commands every mBOT instance carries: help, stats and status
// Author:      Mike Stoffels
// Created:     2026-09-25
// License:     MIT
// ============================================================================

package builtin

import (
	"context"
	"strings"

	mbotstringx "github.com/msto63/mBOT/foundation/utils/stringx"
	"github.com/msto63/mBOT/pkg/command"
	"github.com/msto63/mBOT/pkg/dispatch"
	"github.com/msto63/mBOT/pkg/service"
)

// InstallHelp registers the help command (alias "usage")
func InstallHelp(reg *command.Registry) (*command.Command, error) {
	h := &help{reg: reg}
	cmd, err := reg.NewCommand(command.Options{
		Name:        "help",
		Aliases:     []string{"usage"},
		Description: reg.Localize("help.description", nil),
		Usage:       reg.Localize("help.usage", nil),
		Handlers:    []dispatch.Handler{h.handle},
	})
	if err != nil {
		return nil, err
	}
	h.cmd = cmd
	return cmd, nil
}

type help struct {
	reg *command.Registry
	cmd *command.Command
}

func (h *help) handle(ctx context.Context, ev *dispatch.Event) dispatch.Signal {
	tokens := mbotstringx.Tokens(ev.Args)
	if len(tokens) == 0 {
		return h.cmd.Finish(ctx, h.mainPage())
	}

	name := tokens[0]
	entry, ok := h.reg.Lookup(name)
	if !ok {
		_ = h.cmd.SendFailure(ctx, h.reg.Localize("help.unknown_command", map[string]interface{}{"command": name}))
		return dispatch.Finish
	}

	usage := entry.UsageString()
	title := entry.Name()
	if len(tokens) > 1 {
		sub := tokens[1]
		switch e := entry.(type) {
		case *service.Service:
			c, ok := e.Command(sub)
			if !ok {
				_ = h.cmd.SendFailure(ctx, h.reg.Localize("service.unknown_command", map[string]interface{}{
					"service": e.Name(),
					"command": sub,
				}))
				return dispatch.Finish
			}
			usage = c.UsageString()
			title = c.Key()
		case *command.CommandWithSwitch:
			if s, ok := e.Switch(sub); ok {
				usage = h.reg.Localize("command.usage", map[string]interface{}{
					"usage": mbotstringx.FromBlankDefault(s.Usage(), h.reg.Localize("expr.not_available", nil)),
				})
				title = s.Key()
			}
		}
	}

	return h.cmd.Finish(ctx, h.reg.Localize("help.command", map[string]interface{}{
		"command": title,
		"usage":   usage,
	}))
}

func (h *help) mainPage() string {
	notAvailable := h.reg.Localize("expr.not_available", nil)
	var lines []string
	for _, e := range h.reg.List(true) {
		lines = append(lines, h.reg.Localize("help.list_item", map[string]interface{}{
			"command":     e.Name(),
			"description": mbotstringx.FromBlankDefault(e.Description(), notAvailable),
		}))
	}
	list := strings.Join(lines, "\n")
	if len(lines) == 0 {
		list = h.reg.Localize("expr.no_commands", nil)
	}
	return h.reg.Localize("help.main", map[string]interface{}{"commands": list})
}
