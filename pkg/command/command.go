package command

import (
	"context"
	"sort"
	"strings"
	"sync"

	mboterror "github.com/msto63/mBOT/foundation/core/error"
	mbotstringx "github.com/msto63/mBOT/foundation/utils/stringx"
	"github.com/msto63/mBOT/pkg/dispatch"
)

// Options declares a command
type Options struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Permission  dispatch.Permission
	Disabled    bool
	Hidden      bool
	Handlers    []dispatch.Handler
}

// Entry is a top-level registry entry: a command or a service
type Entry interface {
	Name() string
	Description() string
	Hidden() bool
	UsageString() string
}

// Command is a user-invocable action bound to one route
type Command struct {
	endpoint
}

// UsageString returns the usage block shown by help
func (c *Command) UsageString() string {
	return c.Localize("command.usage", map[string]interface{}{
		"usage": c.usageOrNotAvailable(),
	})
}

// Override replaces the handler chain, texts, permission and flags of c
// while keeping its route registration. Only allowed before the registry is
// frozen.
func (c *Command) Override(opts Options) error {
	if c.reg.Frozen() {
		return mboterror.New("command registry is frozen").
			WithCode(mboterror.CodeRegistryFrozen).
			WithOperation("command.Override").
			WithDetail("key", c.key)
	}
	c.matcher.ReplaceHandlers(opts.Handlers...)
	if opts.Description != "" {
		c.description = opts.Description
	}
	if opts.Usage != "" {
		c.usage = opts.Usage
	}
	if opts.Permission != nil {
		c.permission = opts.Permission
	}
	c.enabled.Store(!opts.Disabled)
	c.hidden.Store(opts.Hidden)
	return nil
}

func (c *Command) usageOrNotAvailable() string {
	if mbotstringx.IsBlank(c.usage) {
		return c.Localize("expr.not_available", nil)
	}
	return c.usage
}

// CommandWithSwitch is a command with named sub-modes, each dispatched as
// "<command> <switch>"
type CommandWithSwitch struct {
	Command

	mu       sync.RWMutex
	switches map[string]*Switch
	order    []string
}

// NewSwitch attaches a switch. Enabled, hidden and permission default to the
// parent's current values.
func (c *CommandWithSwitch) NewSwitch(name string, opts SwitchOptions) (*Switch, error) {
	if mbotstringx.IsBlank(name) || mbotstringx.HasWhitespace(name) {
		return nil, mboterror.Newf("invalid switch name '%s'", name).
			WithCode(mboterror.CodeInvalidName).
			WithOperation("command.NewSwitch").
			WithDetail("command", c.key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.switches[name]; exists {
		return nil, mboterror.Newf("switch '%s' already exists on '%s'", name, c.key).
			WithCode(mboterror.CodeDuplicateSwitch).
			WithOperation("command.NewSwitch").
			WithDetail("command", c.key).
			WithDetail("switch", name)
	}

	s := &Switch{name: name, parent: c}
	key := c.key + " " + name
	aliases := BuildAliases(c.key, c.aliases.Sorted(), name, nil)

	swOpts := Options{
		Description: opts.Usage,
		Usage:       opts.Usage,
		Permission:  c.permission,
		Disabled:    !c.Enabled(),
		Hidden:      c.Hidden(),
	}
	if opts.Permission != nil {
		swOpts.Permission = opts.Permission
	}
	if opts.Enabled != nil {
		swOpts.Disabled = !*opts.Enabled
	}
	if opts.Hidden != nil {
		swOpts.Hidden = *opts.Hidden
	}
	s.init(c.reg, key, key, aliases, swOpts)

	m, err := c.reg.router.Register(s.route(opts.Handlers))
	if err != nil {
		return nil, mboterror.Wrap(err, "switch registration failed").WithOperation("command.NewSwitch")
	}
	s.matcher = m

	if c.switches == nil {
		c.switches = make(map[string]*Switch)
	}
	c.switches[name] = s
	c.order = append(c.order, name)

	s.logger.Debug("switch registered", nil)
	return s, nil
}

// Switch returns the switch with the given name
func (c *CommandWithSwitch) Switch(name string) (*Switch, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.switches[name]
	return s, ok
}

// Switches returns all switches in registration order
func (c *CommandWithSwitch) Switches() []*Switch {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Switch, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.switches[name])
	}
	return out
}

// UsageString lists the usage of every visible switch below the command's
// own usage text
func (c *CommandWithSwitch) UsageString() string {
	var lines []string
	for _, s := range c.Switches() {
		if s.Hidden() {
			continue
		}
		usage := s.usage
		if mbotstringx.IsBlank(usage) {
			usage = c.key + " " + s.name + c.Localize("expr.not_available", nil)
		}
		lines = append(lines, c.Localize("command.switch_item", map[string]interface{}{"usage": usage}))
	}

	switches := strings.Join(lines, "\n")
	if len(lines) == 0 {
		switches = c.Localize("expr.no_commands", nil)
	}
	return c.Localize("command.switch_usage", map[string]interface{}{
		"doc":      c.usageOrNotAvailable(),
		"switches": switches,
	})
}

// replyUsage answers a bare invocation with the usage string
func (c *CommandWithSwitch) replyUsage(ctx context.Context, _ *dispatch.Event) dispatch.Signal {
	return c.Finish(ctx, c.UsageString())
}

// SwitchOptions declares a switch. Nil pointers inherit from the parent.
type SwitchOptions struct {
	Enabled    *bool
	Hidden     *bool
	Usage      string
	Permission dispatch.Permission
	Handlers   []dispatch.Handler
}

// Switch is a named sub-mode of a CommandWithSwitch
type Switch struct {
	endpoint
	name   string
	parent *CommandWithSwitch
}

// SwitchName returns the switch token without the parent key
func (s *Switch) SwitchName() string {
	return s.name
}

// Parent returns the command the switch belongs to
func (s *Switch) Parent() *CommandWithSwitch {
	return s.parent
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
}
