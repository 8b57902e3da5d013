package dispatch

import (
	"context"
	"sync"

	"github.com/msto63/mBOT/foundation/core/log"
)

// Route describes a registration with the router: a canonical key, alias
// patterns, checks and the initial handler chain.
type Route struct {
	Key        string
	Aliases    []string
	Permission Permission
	Rule       Rule
	Handlers   []Handler
}

// Matcher is the handle of a registered route. Handlers use it to reply and
// to steer the conversation.
type Matcher interface {
	// Key returns the canonical pattern of the route
	Key() string
	// Patterns returns the canonical key followed by all alias patterns
	Patterns() []string

	// Handle appends a handler to the chain
	Handle(h Handler)
	// Receive appends a step that waits for the next message of the
	// conversation, stores its text in State[id] and then runs h
	Receive(id string, h Handler)
	// Got appends a step that makes sure State[key] is set, prompting with
	// prompt and waiting for the next message if it is not, then runs h
	Got(key, prompt string, h Handler)
	// ReplaceHandlers swaps the whole chain, keeping the registration
	ReplaceHandlers(handlers ...Handler)

	// Send replies to the event carried by ctx
	Send(ctx context.Context, text string) error
	// Finish sends text if non-empty and returns the Finish signal
	Finish(ctx context.Context, text string) Signal
	// Pause returns the Pause signal; text, if non-empty, is sent after
	// the conversation is parked
	Pause(ctx context.Context, text string) Signal
	// Reject returns the Reject signal; text, if non-empty, is sent after
	// the conversation is parked
	Reject(ctx context.Context, text string) Signal
}

// step is a handler, optionally preceded by a wait for State[waitKey]
type step struct {
	handler Handler
	waitKey string
	prompt  string
}

func (s step) waits() bool {
	return s.waitKey != ""
}

type route struct {
	key        string
	patterns   []string
	permission Permission
	rule       Rule
	logger     *log.Logger

	mu    sync.RWMutex
	steps []step
}

func newRoute(key string, patterns []string, r Route, logger *log.Logger) *route {
	rt := &route{
		key:        key,
		patterns:   patterns,
		permission: r.Permission,
		rule:       r.Rule,
		logger:     logger.WithField("route", key),
	}
	for _, h := range r.Handlers {
		if h != nil {
			rt.steps = append(rt.steps, step{handler: h})
		}
	}
	return rt
}

func (r *route) Key() string {
	return r.key
}

func (r *route) Patterns() []string {
	out := make([]string, len(r.patterns))
	copy(out, r.patterns)
	return out
}

func (r *route) Handle(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step{handler: h})
}

func (r *route) Receive(id string, h Handler) {
	r.Got(id, "", h)
}

func (r *route) Got(key, prompt string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step{handler: h, waitKey: key, prompt: prompt})
}

func (r *route) ReplaceHandlers(handlers ...Handler) {
	steps := make([]step, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			steps = append(steps, step{handler: h})
		}
	}
	r.mu.Lock()
	r.steps = steps
	r.mu.Unlock()
}

func (r *route) snapshot() []step {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]step, len(r.steps))
	copy(out, r.steps)
	return out
}

func (r *route) Send(ctx context.Context, text string) error {
	ev, ok := EventFrom(ctx)
	if !ok {
		return errNoEvent("dispatch.Matcher.Send")
	}
	return ev.Send(ctx, text)
}

func (r *route) Finish(ctx context.Context, text string) Signal {
	r.sendOptional(ctx, text)
	return Finish
}

func (r *route) Pause(ctx context.Context, text string) Signal {
	r.deferOptional(ctx, text)
	return Pause
}

func (r *route) Reject(ctx context.Context, text string) Signal {
	r.deferOptional(ctx, text)
	return Reject
}

// deferOptional queues text on the event; the table sends it once the
// continuation is parked, so an immediate answer finds it waiting.
func (r *route) deferOptional(ctx context.Context, text string) {
	if text == "" {
		return
	}
	ev, ok := EventFrom(ctx)
	if !ok {
		r.sendOptional(ctx, text)
		return
	}
	ev.deferred = append(ev.deferred, text)
}

func (r *route) sendOptional(ctx context.Context, text string) {
	if text == "" {
		return
	}
	if err := r.Send(ctx, text); err != nil {
		r.logger.WarnWithErr("reply failed", err)
	}
}

func (r *route) allows(ctx context.Context, ev *Event) bool {
	if r.rule != nil && !r.rule(ctx, ev) {
		return false
	}
	if r.permission != nil && !r.permission(ctx, ev) {
		return false
	}
	return true
}
