package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	mboterror "github.com/msto63/mBOT/foundation/core/error"
	"github.com/msto63/mBOT/foundation/core/log"
	mbotstringx "github.com/msto63/mBOT/foundation/utils/stringx"
)

// Router is the registration surface the command layer talks to
type Router interface {
	Register(r Route) (Matcher, error)
}

// Outcome describes how a dispatch ended
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFinished  Outcome = "finished"
	OutcomePaused    Outcome = "paused"
	OutcomeRejected  Outcome = "rejected"
	OutcomeWaiting   Outcome = "waiting"
	OutcomeDenied    Outcome = "denied"
	OutcomeFailed    Outcome = "failed"
)

// Record describes one dispatched message
type Record struct {
	EventID   string
	Platform  string
	UserID    string
	ChannelID string
	Key       string
	Pattern   string
	Args      string
	Resumed   bool
	Outcome   Outcome
	Started   time.Time
	Duration  time.Duration
}

// Observer is notified after every dispatched message
type Observer interface {
	Observe(ctx context.Context, rec Record)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(ctx context.Context, rec Record)

// Observe calls f
func (f ObserverFunc) Observe(ctx context.Context, rec Record) {
	f(ctx, rec)
}

// Options configures a Table
type Options struct {
	// Prefixes a command must start with. Nil means "/"; an empty string
	// entry accepts commands without prefix.
	Prefixes []string
	// ContinuationTTL bounds how long a paused conversation waits for its
	// next message. Zero means five minutes.
	ContinuationTTL time.Duration
	Logger          *log.Logger
	// Now replaces time.Now, for tests
	Now func() time.Time
}

// DefaultContinuationTTL is used when Options.ContinuationTTL is zero
const DefaultContinuationTTL = 5 * time.Minute

type continuation struct {
	route   *route
	steps   []step
	index   int
	ev      *Event
	expires time.Time
}

// Table is the in-process Router: an exact-pattern table matched by longest
// token prefix.
type Table struct {
	mu        sync.RWMutex
	prefixes  []string
	patterns  map[string]*route
	routes    []*route
	maxDepth  int
	frozen    bool
	observers []Observer

	ttl    time.Duration
	now    func() time.Time
	logger *log.Logger

	pendingMu sync.Mutex
	pending   map[string]*continuation
}

// NewTable creates an empty routing table
func NewTable(opts Options) *Table {
	prefixes := opts.Prefixes
	if prefixes == nil {
		prefixes = []string{"/"}
	}
	prefixes = append([]string(nil), prefixes...)
	sort.SliceStable(prefixes, func(i, j int) bool {
		return len(prefixes[i]) > len(prefixes[j])
	})

	logger := opts.Logger
	if logger == nil {
		logger = log.GetDefault()
	}
	ttl := opts.ContinuationTTL
	if ttl <= 0 {
		ttl = DefaultContinuationTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Table{
		prefixes: prefixes,
		patterns: make(map[string]*route),
		ttl:      ttl,
		now:      now,
		logger:   logger.WithField("component", "dispatch"),
		pending:  make(map[string]*continuation),
	}
}

// Prefixes returns the accepted command prefixes, longest first
func (t *Table) Prefixes() []string {
	return append([]string(nil), t.prefixes...)
}

// Register adds a route. Every pattern must be unique across the table.
func (t *Table) Register(r Route) (Matcher, error) {
	key := normalizePattern(r.Key)
	if key == "" {
		return nil, mboterror.New("route key cannot be empty").
			WithCode(mboterror.CodeInvalidName).
			WithOperation("dispatch.Register")
	}

	patterns := []string{key}
	seen := map[string]bool{key: true}
	for _, alias := range r.Aliases {
		p := normalizePattern(alias)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		patterns = append(patterns, p)
	}
	sort.Strings(patterns[1:])

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return nil, mboterror.New("router is frozen").
			WithCode(mboterror.CodeRegistryFrozen).
			WithOperation("dispatch.Register").
			WithDetail("key", key)
	}
	for _, p := range patterns {
		if owner, exists := t.patterns[p]; exists {
			return nil, mboterror.Newf("pattern '%s' already registered", p).
				WithCode(mboterror.CodeDuplicatePattern).
				WithOperation("dispatch.Register").
				WithDetail("key", key).
				WithDetail("owner", owner.key)
		}
	}

	rt := newRoute(key, patterns, r, t.logger)
	for _, p := range patterns {
		t.patterns[p] = rt
		if depth := len(mbotstringx.Tokens(p)); depth > t.maxDepth {
			t.maxDepth = depth
		}
	}
	t.routes = append(t.routes, rt)

	t.logger.Debug("route registered", log.Fields{"key": key, "patterns": len(patterns)})
	return rt, nil
}

// AddObserver subscribes o to dispatch records
func (t *Table) AddObserver(o Observer) {
	if o == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, o)
}

// Freeze rejects further registrations
func (t *Table) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frozen = true
}

// Frozen reports whether Freeze was called
func (t *Table) Frozen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frozen
}

// Lookup returns the route owning an exact pattern
func (t *Table) Lookup(pattern string) (Matcher, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rt, ok := t.patterns[normalizePattern(pattern)]
	if !ok {
		return nil, false
	}
	return rt, true
}

// Routes returns all routes sorted by key
func (t *Table) Routes() []Matcher {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Matcher, 0, len(t.routes))
	for _, rt := range t.routes {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Match resolves text the way Dispatch would, without running anything
func (t *Table) Match(text string) (m Matcher, pattern, args string, ok bool) {
	rt, _, pattern, args, ok := t.match(strings.TrimSpace(text))
	if !ok {
		return nil, "", "", false
	}
	return rt, pattern, args, true
}

func (t *Table) match(text string) (*route, string, string, string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, prefix := range t.prefixes {
		if !strings.HasPrefix(text, prefix) {
			continue
		}
		body := text[len(prefix):]
		tokens := mbotstringx.Tokens(body)
		n := len(tokens)
		if n > t.maxDepth {
			n = t.maxDepth
		}
		for ; n > 0; n-- {
			pattern := strings.Join(tokens[:n], " ")
			if rt, ok := t.patterns[pattern]; ok {
				args, _ := mbotstringx.CutFields(body, n)
				return rt, prefix, pattern, args, true
			}
		}
	}
	return nil, "", "", "", false
}

// Dispatch routes msg. It reports false if no route took the message. A
// conversation with a pending continuation always resumes it.
func (t *Table) Dispatch(ctx context.Context, msg Message) (bool, error) {
	if msg.Reply == nil {
		return false, mboterror.New("message has no reply channel").
			WithCode(mboterror.CodeInvalidInput).
			WithOperation("dispatch.Dispatch")
	}

	text := strings.TrimSpace(msg.Text)
	now := t.now()

	if c := t.takeContinuation(conversationKey(msg.Platform, msg.ChannelID, msg.UserID), now); c != nil {
		// the parked copy belongs to this dispatch alone once taken
		ev := c.ev
		ev.ID = uuid.NewString()
		ev.Received = now
		ev.Text = text
		ev.Args = text
		ev.Reply = msg.Reply
		if s := c.steps[c.index]; s.waits() {
			ev.State[s.waitKey] = text
		}
		t.run(ctx, c.route, c.steps, c.index, ev, true)
		return true, nil
	}

	rt, prefix, pattern, args, ok := t.match(text)
	if !ok {
		return false, nil
	}

	ev := &Event{
		ID:        uuid.NewString(),
		Platform:  msg.Platform,
		UserID:    msg.UserID,
		ChannelID: msg.ChannelID,
		Received:  now,
		Text:      text,
		Prefix:    prefix,
		Pattern:   pattern,
		Key:       rt.key,
		Args:      args,
		State:     make(map[string]string),
		Reply:     msg.Reply,
	}

	ctx = WithEvent(ctx, ev)
	if !rt.allows(ctx, ev) {
		t.logger.Debug("route denied", log.Fields{"key": rt.key, "user_id": ev.UserID})
		t.notify(ctx, recordFor(ev, false, OutcomeDenied, now, 0))
		return false, nil
	}

	t.run(ctx, rt, rt.snapshot(), 0, ev, false)
	return true, nil
}

func (t *Table) run(ctx context.Context, rt *route, steps []step, start int, ev *Event, resumed bool) {
	started := t.now()
	ctx = WithEvent(ctx, ev)

	outcome := t.execute(ctx, rt, steps, start, ev)

	t.logger.WithRequestID(ev.ID).Debug("message dispatched", log.Fields{
		"key":     rt.key,
		"outcome": string(outcome),
		"resumed": resumed,
	})
	t.notify(ctx, recordFor(ev, resumed, outcome, started, time.Since(started)))
}

func (t *Table) execute(ctx context.Context, rt *route, steps []step, start int, ev *Event) Outcome {
	for i := start; i < len(steps); i++ {
		s := steps[i]
		if s.waits() {
			if _, ok := ev.State[s.waitKey]; !ok {
				t.park(rt, steps, i, ev)
				if s.prompt != "" {
					rt.sendOptional(ctx, s.prompt)
				}
				return OutcomeWaiting
			}
		}

		sig, panicked := t.call(ctx, rt, s.handler, ev)
		deferred := ev.takeDeferred()
		if panicked {
			return OutcomeFailed
		}

		switch sig {
		case Finish:
			t.flush(ctx, rt, deferred)
			return OutcomeFinished
		case Pause:
			if i+1 < len(steps) {
				t.park(rt, steps, i+1, ev)
			}
			t.flush(ctx, rt, deferred)
			return OutcomePaused
		case Reject:
			if s.waits() {
				delete(ev.State, s.waitKey)
			}
			t.park(rt, steps, i, ev)
			t.flush(ctx, rt, deferred)
			return OutcomeRejected
		}
		t.flush(ctx, rt, deferred)
	}
	return OutcomeCompleted
}

func (t *Table) flush(ctx context.Context, rt *route, texts []string) {
	for _, text := range texts {
		rt.sendOptional(ctx, text)
	}
}

func (t *Table) call(ctx context.Context, rt *route, h Handler, ev *Event) (sig Signal, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.WithRequestID(ev.ID).Error("handler panicked", log.Fields{
				"key":   rt.key,
				"panic": fmt.Sprint(r),
			})
			sig, panicked = Finish, true
		}
	}()
	return h(ctx, ev), false
}

// park stores a copy of ev; the running chain keeps the original, so the
// goroutine that resumes the conversation never shares it.
func (t *Table) park(rt *route, steps []step, index int, ev *Event) {
	c := &continuation{
		route:   rt,
		steps:   steps,
		index:   index,
		ev:      ev.clone(),
		expires: t.now().Add(t.ttl),
	}
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	t.pending[ev.Conversation()] = c
}

func (t *Table) takeContinuation(conv string, now time.Time) *continuation {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	c, ok := t.pending[conv]
	if !ok {
		return nil
	}
	delete(t.pending, conv)
	if now.After(c.expires) {
		return nil
	}
	return c
}

// Pending returns the number of conversations waiting for a message
func (t *Table) Pending() int {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	return len(t.pending)
}

// Sweep drops expired continuations and returns how many were dropped
func (t *Table) Sweep() int {
	now := t.now()
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	dropped := 0
	for conv, c := range t.pending {
		if now.After(c.expires) {
			delete(t.pending, conv)
			dropped++
		}
	}
	return dropped
}

func (t *Table) notify(ctx context.Context, rec Record) {
	t.mu.RLock()
	observers := t.observers
	t.mu.RUnlock()
	for _, o := range observers {
		o.Observe(ctx, rec)
	}
}

func recordFor(ev *Event, resumed bool, outcome Outcome, started time.Time, d time.Duration) Record {
	return Record{
		EventID:   ev.ID,
		Platform:  ev.Platform,
		UserID:    ev.UserID,
		ChannelID: ev.ChannelID,
		Key:       ev.Key,
		Pattern:   ev.Pattern,
		Args:      ev.Args,
		Resumed:   resumed,
		Outcome:   outcome,
		Started:   started,
		Duration:  d,
	}
}

func normalizePattern(p string) string {
	return strings.Join(mbotstringx.Tokens(p), " ")
}

func errNoEvent(op string) error {
	return mboterror.New("no event in context").WithCode(mboterror.CodeNoEvent).WithOperation(op)
}
