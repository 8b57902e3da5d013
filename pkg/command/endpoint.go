package command

import (
	"context"
	"sync/atomic"

	"github.com/msto63/mBOT/foundation/core/log"
	"github.com/msto63/mBOT/pkg/dispatch"
)

// Catalog renders user-visible texts
type Catalog interface {
	T(key string, data ...map[string]interface{}) string
}

// endpoint is the state and reply surface shared by commands and switches:
// everything bound to one registered route.
type endpoint struct {
	label       string
	key         string
	aliases     AliasSet
	description string
	usage       string
	permission  dispatch.Permission

	enabled atomic.Bool
	hidden  atomic.Bool

	matcher dispatch.Matcher
	reg     *Registry
	logger  *log.Logger
}

func (e *endpoint) init(reg *Registry, label, key string, aliases AliasSet, opts Options) {
	e.reg = reg
	e.label = label
	e.key = key
	e.aliases = aliases
	e.description = opts.Description
	e.usage = opts.Usage
	e.permission = opts.Permission
	e.enabled.Store(!opts.Disabled)
	e.hidden.Store(opts.Hidden)
	e.logger = reg.logger.WithField("command", key)
}

// route builds the router registration for this endpoint
func (e *endpoint) route(handlers []dispatch.Handler) dispatch.Route {
	return dispatch.Route{
		Key:        e.key,
		Aliases:    e.aliases.Sorted(),
		Permission: e.allows,
		Rule:       func(context.Context, *dispatch.Event) bool { return e.Enabled() },
		Handlers:   handlers,
	}
}

func (e *endpoint) allows(ctx context.Context, ev *dispatch.Event) bool {
	return e.permission == nil || e.permission(ctx, ev)
}

// Name returns the name shown in replies
func (e *endpoint) Name() string {
	return e.label
}

// Key returns the canonical dispatch key
func (e *endpoint) Key() string {
	return e.key
}

// Aliases returns the alias dispatch keys
func (e *endpoint) Aliases() AliasSet {
	return e.aliases
}

// Description returns the one-line description
func (e *endpoint) Description() string {
	return e.description
}

// Usage returns the usage text as given at registration
func (e *endpoint) Usage() string {
	return e.usage
}

// Permission returns the permission check, nil meaning everyone
func (e *endpoint) Permission() dispatch.Permission {
	return e.permission
}

func (e *endpoint) Enabled() bool { return e.enabled.Load() }
func (e *endpoint) Enable()       { e.enabled.Store(true) }
func (e *endpoint) Disable()      { e.enabled.Store(false) }
func (e *endpoint) Hidden() bool  { return e.hidden.Load() }
func (e *endpoint) Hide()         { e.hidden.Store(true) }
func (e *endpoint) Unhide()       { e.hidden.Store(false) }

// Matcher returns the router handle of the endpoint
func (e *endpoint) Matcher() dispatch.Matcher {
	return e.matcher
}

// Handle appends h to the handler chain
func (e *endpoint) Handle(h dispatch.Handler) {
	e.matcher.Handle(h)
}

// Receive appends a step waiting for the next message, stored as State[id]
func (e *endpoint) Receive(id string, h dispatch.Handler) {
	e.matcher.Receive(id, h)
}

// Got appends a step asking for State[key] with a formatted question prompt
func (e *endpoint) Got(key, prompt string, h dispatch.Handler) {
	if prompt != "" {
		prompt = Format(GlyphQuestion, e.label, prompt)
	}
	e.matcher.Got(key, prompt, h)
}

// SendRaw sends message unformatted
func (e *endpoint) SendRaw(ctx context.Context, message string) error {
	return e.matcher.Send(ctx, message)
}

// Send sends message in the basic format
func (e *endpoint) Send(ctx context.Context, message string) error {
	return e.matcher.Send(ctx, Format("", e.label, message))
}

// SendSuccess sends message with the success glyph
func (e *endpoint) SendSuccess(ctx context.Context, message string) error {
	return e.matcher.Send(ctx, Format(GlyphSuccess, e.label, message))
}

// SendFailure sends message with the failure glyph
func (e *endpoint) SendFailure(ctx context.Context, message string) error {
	return e.matcher.Send(ctx, Format(GlyphFailure, e.label, message))
}

// SendWarning sends message with the warning glyph
func (e *endpoint) SendWarning(ctx context.Context, message string) error {
	return e.matcher.Send(ctx, Format(GlyphWarning, e.label, message))
}

// SendQuestion sends message with the question glyph
func (e *endpoint) SendQuestion(ctx context.Context, message string) error {
	return e.matcher.Send(ctx, Format(GlyphQuestion, e.label, message))
}

// Finish ends the conversation, sending message in the basic format if set
func (e *endpoint) Finish(ctx context.Context, message string) dispatch.Signal {
	return e.matcher.Finish(ctx, e.formatOptional(message))
}

// Pause waits for the next message, sending message if set
func (e *endpoint) Pause(ctx context.Context, message string) dispatch.Signal {
	return e.matcher.Pause(ctx, e.formatOptional(message))
}

// Reject reruns the current step on the next message, sending message if set
func (e *endpoint) Reject(ctx context.Context, message string) dispatch.Signal {
	return e.matcher.Reject(ctx, e.formatOptional(message))
}

func (e *endpoint) formatOptional(message string) string {
	if message == "" {
		return ""
	}
	return Format("", e.label, message)
}

// Localize renders a catalog text. The command prefix is available to the
// template as {{.prefix}}.
func (e *endpoint) Localize(key string, data map[string]interface{}) string {
	return e.reg.Localize(key, data)
}

// Logger returns the logger of the endpoint
func (e *endpoint) Logger() *log.Logger {
	return e.logger
}
