// ============================================================================
// meinBOT (mBOT) - Chat Command Bot
// ============================================================================
//
// Package:     dispatch
// Description: Host router: matches inbound chat messages against registered
//              command patterns and runs handler chains
// Author:      Mike Stoffels
// Created:     2026-09-16
// License:     MIT
// ============================================================================

package dispatch

import (
	"context"
	"time"

	mboterror "github.com/msto63/mBOT/foundation/core/error"
)

// Signal tells the router how to continue after a handler returns
type Signal int

const (
	// Next runs the following handler of the chain
	Next Signal = iota
	// Finish ends the chain and drops any pending continuation
	Finish
	// Pause ends this run; the next message of the conversation resumes at
	// the following handler
	Pause
	// Reject ends this run; the next message of the conversation reruns the
	// current step
	Reject
)

// String returns the signal name
func (s Signal) String() string {
	switch s {
	case Next:
		return "next"
	case Finish:
		return "finish"
	case Pause:
		return "pause"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// Replier delivers reply text back to the conversation a message came from
type Replier interface {
	Reply(ctx context.Context, text string) error
}

// ReplierFunc adapts a function to Replier
type ReplierFunc func(ctx context.Context, text string) error

// Reply calls f
func (f ReplierFunc) Reply(ctx context.Context, text string) error {
	return f(ctx, text)
}

// Message is an inbound chat message as handed over by a transport
type Message struct {
	Platform  string
	UserID    string
	ChannelID string
	Text      string
	Reply     Replier
}

// Event is the routed view of a Message passed through a handler chain.
// One Event lives for a whole conversation, so State survives Pause and
// Reject.
type Event struct {
	ID        string
	Platform  string
	UserID    string
	ChannelID string
	Received  time.Time

	// Text is the raw message text, Prefix the command prefix it started
	// with and Pattern the registered pattern that matched.
	Text    string
	Prefix  string
	Pattern string
	// Key is the canonical key of the matched route
	Key string
	// Args is the text after the matched pattern, inner spacing preserved
	Args string

	State map[string]string
	Reply Replier

	// deferred holds Pause and Reject texts until the continuation is parked
	deferred []string
}

// clone copies the event with its own State map
func (e *Event) clone() *Event {
	c := *e
	c.State = make(map[string]string, len(e.State))
	for k, v := range e.State {
		c.State[k] = v
	}
	c.deferred = nil
	return &c
}

// takeDeferred returns and clears the queued texts
func (e *Event) takeDeferred() []string {
	out := e.deferred
	e.deferred = nil
	return out
}

// Send replies to the conversation of the event
func (e *Event) Send(ctx context.Context, text string) error {
	if e.Reply == nil {
		return mboterror.New("event has no reply channel").WithCode(mboterror.CodeNoEvent).WithOperation("dispatch.Event.Send")
	}
	return e.Reply.Reply(ctx, text)
}

// Conversation identifies the platform, channel and user of the event
func (e *Event) Conversation() string {
	return conversationKey(e.Platform, e.ChannelID, e.UserID)
}

func conversationKey(platform, channel, user string) string {
	return platform + "\x00" + channel + "\x00" + user
}

type eventKey struct{}

// WithEvent returns a context carrying ev
func WithEvent(ctx context.Context, ev *Event) context.Context {
	return context.WithValue(ctx, eventKey{}, ev)
}

// EventFrom returns the event a handler is running for
func EventFrom(ctx context.Context) (*Event, bool) {
	ev, ok := ctx.Value(eventKey{}).(*Event)
	return ev, ok && ev != nil
}

// Handler is one step of a handler chain
type Handler func(ctx context.Context, ev *Event) Signal

// Permission decides whether the sender of ev may use a route
type Permission func(ctx context.Context, ev *Event) bool

// Rule decides whether a route accepts ev at all
type Rule func(ctx context.Context, ev *Event) bool

// Superusers permits only the given user IDs. An ID may be qualified with
// its platform as "platform:user".
func Superusers(ids ...string) Permission {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(_ context.Context, ev *Event) bool {
		if _, ok := set[ev.UserID]; ok {
			return true
		}
		_, ok := set[ev.Platform+":"+ev.UserID]
		return ok
	}
}

// AllOf permits only if every non-nil permission does
func AllOf(perms ...Permission) Permission {
	return func(ctx context.Context, ev *Event) bool {
		for _, p := range perms {
			if p != nil && !p(ctx, ev) {
				return false
			}
		}
		return true
	}
}
