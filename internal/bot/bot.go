// ============================================================================
// meinBOT (mBOT) - Chat Command Bot
// ============================================================================
//
// Package:     bot
// Description: Assembles router, registries, APIs, health checks, the
//              invocation log and the installed commands into one bot
// Author:      Mike Stoffels
// Created:     2026-09-27
// License:     MIT
// ============================================================================

package bot

import (
	"context"
	"io"
	"time"

	mboterror "github.com/msto63/mBOT/foundation/core/error"
	"github.com/msto63/mBOT/foundation/core/i18n"
	"github.com/msto63/mBOT/foundation/core/log"
	"github.com/msto63/mBOT/internal/builtin"
	"github.com/msto63/mBOT/internal/plugins"
	"github.com/msto63/mBOT/internal/store"
	"github.com/msto63/mBOT/pkg/apimgr"
	"github.com/msto63/mBOT/pkg/command"
	"github.com/msto63/mBOT/pkg/core/cache"
	"github.com/msto63/mBOT/pkg/core/config"
	"github.com/msto63/mBOT/pkg/core/health"
	"github.com/msto63/mBOT/pkg/core/version"
	"github.com/msto63/mBOT/pkg/dispatch"
)

const (
	// maintenanceInterval is how often expired continuations are swept
	maintenanceInterval = time.Minute
	// pruneInterval is how often the invocation log is pruned
	pruneInterval = time.Hour
)

// Bot is one fully assembled bot instance
type Bot struct {
	config   *config.Config
	logger   *log.Logger
	catalog  *i18n.Manager
	table    *dispatch.Table
	registry *command.Registry
	apis     *apimgr.Manager
	health   *health.Registry
	store    *store.Store
	reports  *cache.Cache[plugins.WeatherReport]
}

// Options tunes New beyond the configuration
type Options struct {
	// Now replaces time.Now in the router and store, for tests
	Now func() time.Time
	// SkipStore forces the invocation log off regardless of config
	SkipStore bool
}

// New builds a bot from cfg. The registries are frozen before it returns.
func New(cfg *config.Config, logger *log.Logger, opts Options) (*Bot, error) {
	if cfg == nil {
		return nil, mboterror.New("config is nil").WithCode(mboterror.CodeMissingConfig).WithOperation("bot.New")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.GetDefault()
	}

	b := &Bot{config: cfg, logger: logger.WithField("component", "bot")}

	catalog, err := i18n.New(i18n.Options{
		Locale:      cfg.General.Locale,
		OverrideDir: cfg.General.LocalesDir,
	})
	if err != nil {
		return nil, err
	}
	if err := catalog.SetLocale(cfg.General.Locale); err != nil {
		b.logger.Warn("locale not available, using default", log.Fields{"locale": cfg.General.Locale, "default": i18n.DefaultLocale})
		catalog.SetLocale(i18n.DefaultLocale)
	}
	b.catalog = catalog

	b.table = dispatch.NewTable(dispatch.Options{
		Prefixes:        cfg.Bot.CommandPrefixes,
		ContinuationTTL: cfg.Bot.ContinuationTTL.Duration,
		Logger:          logger,
		Now:             opts.Now,
	})
	b.registry = command.NewRegistry(command.RegistryOptions{
		Router:  b.table,
		Catalog: catalog,
		Logger:  logger,
		Prefix:  cfg.PrimaryPrefix(),
	})

	b.health = health.NewRegistry(cfg.General.Name, version.Platform)
	b.health.RegisterFunc("router", func(ctx context.Context) health.CheckResult {
		return health.CheckResult{
			Status:  health.StatusHealthy,
			Message: "ok",
			Details: map[string]interface{}{"commands": b.registry.Len(), "pending": b.table.Pending()},
		}
	})

	if err := b.buildAPIs(logger); err != nil {
		return nil, err
	}

	if cfg.Store.Enabled && !opts.SkipStore {
		st, err := store.Open(store.Config{Path: cfg.Store.Path, Now: opts.Now}, logger)
		if err != nil {
			return nil, err
		}
		b.store = st
		b.table.AddObserver(st)
		b.health.Register(health.PingCheck("store", st))
	}

	if err := b.install(); err != nil {
		b.Close()
		return nil, err
	}

	b.registry.Freeze()
	b.table.Freeze()
	b.apis.Freeze()

	b.logger.Info("bot assembled", log.Fields{
		"commands": b.registry.Len(),
		"apis":     b.apis.Len(),
		"store":    b.store != nil,
		"locale":   catalog.Locale(),
	})
	return b, nil
}

func (b *Bot) buildAPIs(logger *log.Logger) error {
	b.apis = apimgr.NewManager()
	for _, ac := range b.config.APIs {
		opts := []apimgr.Option{
			apimgr.WithName(ac.Name),
			apimgr.WithTimeout(ac.Timeout.Duration),
			apimgr.WithCooldown(ac.Cooldown.Duration),
			apimgr.WithDisabled(ac.Disabled),
			apimgr.WithLogger(logger),
		}
		if ac.Proxy != "" {
			opts = append(opts, apimgr.WithProxy(ac.Proxy))
		}
		api, err := apimgr.New(ac.URL, opts...)
		if err != nil {
			return mboterror.Wrap(err, "invalid api").WithOperation("bot.buildAPIs").WithDetail("api", ac.Name)
		}
		if err := b.apis.Add(api); err != nil {
			return err
		}
		b.health.Register(health.APICheck(api))
	}
	return nil
}

// install registers the built-in commands and the plugins
func (b *Bot) install() error {
	if _, err := builtin.InstallHelp(b.registry); err != nil {
		return err
	}

	var usage builtin.UsageSource
	if b.store != nil {
		usage = b.store
	}
	if _, err := builtin.InstallStats(b.registry, usage); err != nil {
		return err
	}
	if _, err := builtin.InstallStatus(b.registry, b.health, dispatch.Superusers(b.config.General.Superusers...)); err != nil {
		return err
	}

	if _, err := plugins.InstallEcho(b.registry); err != nil {
		return err
	}
	if _, err := plugins.InstallPing(b.registry); err != nil {
		return err
	}
	if api, ok := b.apis.Lookup(plugins.WeatherAPIName); ok {
		b.reports = cache.New[plugins.WeatherReport](cache.DefaultConfig())
		if _, err := plugins.InstallWeather(b.registry, api, b.reports); err != nil {
			return err
		}
	} else {
		b.logger.Info("weather service not installed, no api named " + plugins.WeatherAPIName)
	}
	return nil
}

// Dispatch routes one inbound message
func (b *Bot) Dispatch(ctx context.Context, msg dispatch.Message) (bool, error) {
	return b.table.Dispatch(ctx, msg)
}

// Run performs periodic maintenance until ctx is done: expired
// continuations are swept and the invocation log is pruned to its
// retention.
func (b *Bot) Run(ctx context.Context) {
	b.prune(ctx)

	sweep := time.NewTicker(maintenanceInterval)
	defer sweep.Stop()
	prune := time.NewTicker(pruneInterval)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			if n := b.table.Sweep(); n > 0 {
				b.logger.Debug("expired continuations swept", log.Fields{"count": n})
			}
		case <-prune.C:
			b.prune(ctx)
		}
	}
}

func (b *Bot) prune(ctx context.Context) {
	if b.store == nil || b.config.Store.RetentionDays <= 0 {
		return
	}
	retention := time.Duration(b.config.Store.RetentionDays) * 24 * time.Hour
	if _, err := b.store.Prune(ctx, retention); err != nil {
		b.logger.WarnWithErr("prune failed", err)
	}
}

// Close releases the store and the caches
func (b *Bot) Close() error {
	if b.reports != nil {
		b.reports.Close()
	}
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}

// WriteCommands prints one line per top-level registry entry
func (b *Bot) WriteCommands(w io.Writer) error {
	for _, e := range b.registry.List(false) {
		hidden := ""
		if e.Hidden() {
			hidden = " (hidden)"
		}
		if _, err := io.WriteString(w, b.registry.Prefix()+e.Name()+hidden+"\t"+e.Description()+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// Config returns the configuration the bot was built from
func (b *Bot) Config() *config.Config { return b.config }

// Registry returns the command registry
func (b *Bot) Registry() *command.Registry { return b.registry }

// Table returns the router
func (b *Bot) Table() *dispatch.Table { return b.table }

// APIs returns the API manager
func (b *Bot) APIs() *apimgr.Manager { return b.apis }

// Health returns the health registry
func (b *Bot) Health() *health.Registry { return b.health }

// Store returns the invocation log, nil when disabled
func (b *Bot) Store() *store.Store { return b.store }

// Catalog returns the message catalog
func (b *Bot) Catalog() *i18n.Manager { return b.catalog }
