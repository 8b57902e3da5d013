package command

import (
	"sync"

	mboterror "github.com/msto63/mBOT/foundation/core/error"
	"github.com/msto63/mBOT/foundation/core/i18n"
	"github.com/msto63/mBOT/foundation/core/log"
	mbotstringx "github.com/msto63/mBOT/foundation/utils/stringx"
	"github.com/msto63/mBOT/pkg/dispatch"
)

// RegistryOptions configures a Registry
type RegistryOptions struct {
	// Router receives every route; a fresh dispatch.Table if nil
	Router dispatch.Router
	// Catalog renders replies and help; the embedded catalogs if nil
	Catalog Catalog
	Logger  *log.Logger
	// Prefix is the command prefix quoted in help texts, "/" if empty
	Prefix string
}

// Registry is the process-scoped table of top-level commands and services.
// It is populated during startup and frozen before traffic is served.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	frozen  bool

	router  dispatch.Router
	catalog Catalog
	logger  *log.Logger
	prefix  string
}

// NewRegistry creates an empty registry
func NewRegistry(opts RegistryOptions) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = log.GetDefault()
	}
	router := opts.Router
	if router == nil {
		router = dispatch.NewTable(dispatch.Options{Logger: logger})
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = i18n.MustDefault()
	}
	return &Registry{
		entries: make(map[string]Entry),
		router:  router,
		catalog: catalog,
		logger:  logger.WithField("component", "command"),
		prefix:  mbotstringx.FromBlankDefault(opts.Prefix, "/"),
	}
}

// Router returns the router commands register with
func (r *Registry) Router() dispatch.Router {
	return r.router
}

// Logger returns the registry logger
func (r *Registry) Logger() *log.Logger {
	return r.logger
}

// Prefix returns the command prefix used in help texts
func (r *Registry) Prefix() string {
	return r.prefix
}

// Localize renders a catalog text with prefix added to data
func (r *Registry) Localize(key string, data map[string]interface{}) string {
	merged := make(map[string]interface{}, len(data)+1)
	merged["prefix"] = r.prefix
	for k, v := range data {
		merged[k] = v
	}
	return r.catalog.T(key, merged)
}

// Register adds a top-level entry. The name must be unique and free of
// whitespace.
func (r *Registry) Register(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkNameLocked(e.Name(), "command.Register"); err != nil {
		return err
	}
	r.entries[e.Name()] = e
	r.logger.Debug("entry registered", log.Fields{"name": e.Name()})
	return nil
}

// CheckName reports whether name could be registered right now
func (r *Registry) CheckName(name string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.checkNameLocked(name, "command.CheckName")
}

func (r *Registry) checkNameLocked(name, op string) error {
	if r.frozen {
		return mboterror.New("command registry is frozen").
			WithCode(mboterror.CodeRegistryFrozen).
			WithOperation(op).
			WithDetail("name", name)
	}
	if mbotstringx.IsBlank(name) || mbotstringx.HasWhitespace(name) {
		return mboterror.Newf("invalid command name '%s'", name).
			WithCode(mboterror.CodeInvalidName).
			WithOperation(op)
	}
	if _, exists := r.entries[name]; exists {
		return mboterror.Newf("command '%s' already registered", name).
			WithCode(mboterror.CodeDuplicateCommand).
			WithOperation(op).
			WithDetail("name", name)
	}
	return nil
}

// Lookup returns the entry registered under name
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Len returns the number of entries
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// List returns the entries sorted by name, optionally without hidden ones
func (r *Registry) List(excludeHidden bool) []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if excludeHidden && e.Hidden() {
			continue
		}
		out = append(out, e)
	}
	r.mu.RUnlock()
	sortEntries(out)
	return out
}

// Freeze ends the registration phase
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether Freeze was called
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// NewCommand registers a top-level command with the router and the registry
func (r *Registry) NewCommand(opts Options) (*Command, error) {
	c := &Command{}
	if err := r.registerTopLevel(&c.endpoint, opts, opts.Handlers, c); err != nil {
		return nil, err
	}
	return c, nil
}

// NewCommandWithSwitch registers a top-level command that owns switches.
// Without handlers a bare invocation replies with the usage string.
func (r *Registry) NewCommandWithSwitch(opts Options) (*CommandWithSwitch, error) {
	c := &CommandWithSwitch{switches: make(map[string]*Switch)}
	handlers := opts.Handlers
	if len(handlers) == 0 {
		handlers = []dispatch.Handler{c.replyUsage}
	}
	if err := r.registerTopLevel(&c.endpoint, opts, handlers, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Registry) registerTopLevel(e *endpoint, opts Options, handlers []dispatch.Handler, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkNameLocked(opts.Name, "command.NewCommand"); err != nil {
		return err
	}

	e.init(r, opts.Name, opts.Name, NewAliasSet(opts.Aliases...), opts)
	m, err := r.router.Register(e.route(handlers))
	if err != nil {
		return mboterror.Wrap(err, "command registration failed").
			WithOperation("command.NewCommand").
			WithDetail("name", opts.Name)
	}
	e.matcher = m
	r.entries[opts.Name] = entry

	e.logger.Debug("command registered", log.Fields{"aliases": len(e.aliases)})
	return nil
}

// Bind registers a command reachable only through the router, such as a
// service sub-command. It is not a registry entry; label names it in replies.
func (r *Registry) Bind(label, key string, aliases AliasSet, opts Options) (*Command, error) {
	if r.Frozen() {
		return nil, mboterror.New("command registry is frozen").
			WithCode(mboterror.CodeRegistryFrozen).
			WithOperation("command.Bind").
			WithDetail("key", key)
	}
	if aliases == nil {
		aliases = AliasSet{}
	}

	c := &Command{}
	c.init(r, label, key, aliases, opts)
	m, err := r.router.Register(c.route(opts.Handlers))
	if err != nil {
		return nil, mboterror.Wrap(err, "command registration failed").
			WithOperation("command.Bind").
			WithDetail("key", key)
	}
	c.matcher = m
	return c, nil
}
