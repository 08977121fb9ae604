package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/browser"
	"github.com/lotas/tabgruppen/internal/config"
	"github.com/lotas/tabgruppen/internal/directory"
	"github.com/lotas/tabgruppen/internal/firefox"
	"github.com/lotas/tabgruppen/internal/lifecycle"
	"github.com/lotas/tabgruppen/internal/server"
	"github.com/lotas/tabgruppen/internal/state"
	"github.com/lotas/tabgruppen/internal/storage"
	"github.com/lotas/tabgruppen/internal/tags"
	"github.com/lotas/tabgruppen/internal/visibility"
)

const (
	// storageWatchInterval is the fallback poll for writes made by other
	// processes when file notifications are unavailable.
	storageWatchInterval = 2 * time.Second
	connectTimeout       = 10 * time.Second
)

// runtime holds every component of one process.
type runtime struct {
	cfg     config.Config
	kv      *storage.Store
	host    browser.Host
	srv     *server.Server // nil when reading a profile offline
	profile string

	dir      *directory.Store
	tags     *tags.Service
	registry *visibility.Registry
	vis      *visibility.Reconciler
	life     *lifecycle.Service
	state    *state.Store
	bus      *browser.Bus
}

// openStorage loads configuration and opens the database only, for
// commands that never touch a browser.
func openStorage(f *rootFlags) (config.Config, *storage.Store, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := applog.Init(cfg.LogDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open log file: %v\n", err)
	}
	kv, err := storage.Open(cfg.DBPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, kv, nil
}

// openRuntime loads configuration, opens the database and builds the
// components over either the extension transport or a Firefox profile.
func openRuntime(f *rootFlags, live bool) (*runtime, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.profile != "" {
		cfg.Profile = f.profile
	}
	if err := applog.Init(cfg.LogDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open log file: %v\n", err)
	}

	rt := &runtime{cfg: cfg}
	if live {
		rt.srv = server.New(cfg.Port)
		rt.host = rt.srv
		rt.profile = "live"
	} else {
		profiles, err := firefox.DiscoverProfiles()
		if err != nil {
			return nil, fmt.Errorf("discover profiles: %w", err)
		}
		profile, err := firefox.SelectProfile(profiles, cfg.Profile)
		if err != nil {
			return nil, err
		}
		host, err := firefox.OpenProfile(profile)
		if err != nil {
			return nil, err
		}
		rt.host = host
		rt.profile = profile.Name
	}

	kv, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	rt.kv = kv

	visCfg, err := cfg.Visibility()
	if err != nil {
		kv.Close()
		return nil, err
	}
	if visCfg.Mode != visibility.IndexTabNever && visCfg.ExtensionBaseURL == "" {
		applog.Warn("config.index_tab_disabled", "reason", "extension_base_url unset")
		visCfg.Mode = visibility.IndexTabNever
	}

	rt.dir = directory.NewStore(kv, rt.host)
	rt.tags = tags.NewService(tags.NewStore(kv), kv)
	rt.registry = visibility.NewRegistry(kv)
	rt.vis = visibility.New(rt.host, rt.registry, visCfg)
	rt.life = lifecycle.New(rt.host, rt.dir, kv)
	rt.state = state.New(state.Sources{
		Host:      rt.host,
		Directory: rt.dir,
		Tags:      rt.tags,
	}, state.WithRefreshInterval(cfg.RefreshInterval))
	rt.bus = browser.NewBus()
	return rt, nil
}

// Close releases the database and the cached stores.
func (rt *runtime) Close() {
	rt.dir.Close()
	rt.tags.Store().Close()
	if err := rt.kv.Close(); err != nil {
		applog.Error("storage.close", err)
	}
	applog.Close()
}

// live reports whether mutations reach a browser.
func (rt *runtime) live() bool {
	return rt.srv != nil
}

// start runs the event fan-out, the state store, the placeholder registry,
// the storage watcher and, when live, the transport, the tag sweeper and
// lifecycle cleanup. The returned function cancels them and waits.
func (rt *runtime) start(ctx context.Context) func() error {
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)

	stateEvents := rt.bus.Subscribe()
	registryEvents := rt.bus.Subscribe()
	var lifecycleEvents, tagEvents <-chan browser.Event
	if rt.live() {
		lifecycleEvents = rt.bus.Subscribe()
		tagEvents = rt.bus.Subscribe()
	}

	if err := rt.registry.Load(ctx); err != nil {
		applog.Error("visibility.registry.load", err)
	} else {
		applog.Info("visibility.registry.loaded", "placeholders", rt.registry.Len())
	}

	g.Go(func() error {
		rt.bus.Run(ctx, rt.host.Events())
		return nil
	})
	g.Go(func() error {
		return rt.state.Run(ctx, stateEvents)
	})
	g.Go(func() error {
		rt.registry.Run(ctx, registryEvents)
		return nil
	})
	g.Go(func() error {
		if err := rt.kv.Watch(ctx, storageWatchInterval); err != nil {
			applog.Error("storage.watch", err)
		}
		return nil
	})

	if rt.live() {
		rt.srv.OnConnect(func() {
			if err := rt.state.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
				applog.Error("state.refresh", err)
			}
			rt.pruneTags(ctx)
		})
		g.Go(func() error {
			return rt.srv.ListenAndServe(ctx)
		})
		g.Go(func() error {
			rt.life.Run(ctx, lifecycleEvents)
			return nil
		})
		g.Go(func() error {
			rt.tags.Run(ctx, tagEvents)
			return nil
		})
	}

	return func() error {
		cancel()
		return g.Wait()
	}
}

// pruneTags drops the tags of tabs that closed while nothing was
// listening, such as during a browser restart.
func (rt *runtime) pruneTags(ctx context.Context) {
	tabs, err := rt.host.QueryTabs(ctx, browser.TabQuery{})
	if err != nil {
		applog.Error("tags.prune", err)
		return
	}
	open := make([]int, 0, len(tabs))
	for _, t := range tabs {
		open = append(open, t.ID)
	}
	n, err := rt.tags.Prune(ctx, open)
	if err != nil {
		applog.Error("tags.prune", err)
		return
	}
	if n > 0 {
		applog.Info("tags.pruned", "tabs", n)
	}
}

// ready waits until the state reflects the browser: an offline profile is
// read at once, a live one after the extension connects.
func (rt *runtime) ready(ctx context.Context) error {
	if rt.live() {
		fmt.Fprintf(os.Stderr, "Waiting for Firefox extension on port %d...\n", rt.cfg.Port)
		connected := make(chan struct{})
		var once sync.Once
		rt.srv.OnConnect(func() { once.Do(func() { close(connected) }) })
		if rt.srv.Connected() {
			once.Do(func() { close(connected) })
		}
		select {
		case <-connected:
		case <-time.After(connectTimeout):
			return fmt.Errorf("timed out waiting for extension (%s)", connectTimeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return rt.state.Refresh(ctx)
}
