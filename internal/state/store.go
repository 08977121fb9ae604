// Package state maintains the live, denormalized view of every window,
// tab and container, patched on each browser event and rebuilt
// periodically from scratch.
package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/browser"
	"github.com/lotas/tabgruppen/internal/directory"
	"github.com/lotas/tabgruppen/internal/site"
	"github.com/lotas/tabgruppen/internal/tags"
	"github.com/lotas/tabgruppen/internal/types"
)

// DefaultRefreshInterval is how often the store rebuilds from scratch.
const DefaultRefreshInterval = 5 * time.Minute

// Sources are the collaborators the store reads from.
type Sources struct {
	Host      browser.Host
	Directory *directory.Store
	Tags      *tags.Service
	Sites     *site.Classifier
}

// Store owns the working copy. All mutation happens on the goroutine
// running Run; readers get deep copies of the last published state.
type Store struct {
	src      Sources
	interval time.Duration
	refresh  chan chan error

	mu        sync.RWMutex
	published *BrowserState

	subMu  sync.Mutex
	subs   map[int]chan struct{}
	nextID int
}

// Option configures a Store.
type Option func(*Store)

// WithRefreshInterval overrides DefaultRefreshInterval.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.interval = d
		}
	}
}

// New returns a Store. Nothing is fetched until Run.
func New(src Sources, opts ...Option) *Store {
	if src.Sites == nil {
		src.Sites = site.NewClassifier()
	}
	s := &Store{
		src:       src,
		interval:  DefaultRefreshInterval,
		refresh:   make(chan chan error),
		published: emptyState(),
		subs:      make(map[int]chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State returns a deep copy of the last published state.
func (s *Store) State() *BrowserState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.published.Clone()
}

// Subscribe returns a channel that receives a value after each publish.
// Notifications coalesce: a slow reader sees one pending value, then reads
// the latest State.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()
	return ch, func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Refresh asks the running store to rebuild from scratch and waits for it.
func (s *Store) Refresh(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case s.refresh <- reply:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (s *Store) publish(wk *working) {
	st := wk.derive()
	s.mu.Lock()
	s.published = st
	s.mu.Unlock()

	s.subMu.Lock()
	for _, ch := range s.subs {
		signal(ch)
	}
	s.subMu.Unlock()
}

// Run rebuilds the state, then applies events and change notifications
// until ctx is done. It is the only writer of the working copy.
func (s *Store) Run(ctx context.Context, events <-chan browser.Event) error {
	dirChanged := make(chan struct{}, 1)
	tagChanged := make(chan struct{}, 1)
	stopDir := s.src.Directory.OnChanged(func() { signal(dirChanged) })
	defer stopDir()
	stopTags := s.src.Tags.OnChanged(func() { signal(tagChanged) })
	defer stopTags()

	wk := newWorking()
	if err := s.rebuild(ctx, wk); err != nil {
		applog.Error("state.rebuild", err)
	}
	s.publish(wk)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.apply(ctx, wk, ev)
		case <-dirChanged:
			if err := s.reloadDirectory(ctx, wk); err != nil {
				applog.Error("state.directory", err)
				continue
			}
		case <-tagChanged:
			if err := s.reloadTags(ctx, wk); err != nil {
				applog.Error("state.tags", err)
				continue
			}
		case <-ticker.C:
			if err := s.rebuild(ctx, wk); err != nil {
				applog.Error("state.rebuild", err)
				continue
			}
		case reply := <-s.refresh:
			err := s.rebuild(ctx, wk)
			reply <- err
			if err != nil {
				continue
			}
		}
		s.publish(wk)
	}
}

// rebuild replaces the working copy with freshly fetched state. wk is left
// untouched on error.
func (s *Store) rebuild(ctx context.Context, wk *working) error {
	var (
		windows    []types.Window
		containers []types.Container
		incognito  bool
		dir        *directory.Snapshot
		tagSnap    *tags.Snapshot
		tagIDs     map[int]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		windows, err = s.src.Host.GetAllWindows(gctx, true)
		return err
	})
	g.Go(func() (err error) {
		containers, err = s.src.Host.QueryContainers(gctx)
		return err
	})
	g.Go(func() (err error) {
		incognito, err = s.src.Host.IsAllowedIncognitoAccess(gctx)
		return err
	})
	g.Go(func() (err error) {
		dir, err = s.src.Directory.Snapshot(gctx)
		return err
	})
	g.Go(func() (err error) {
		tagSnap, err = s.src.Tags.Store().Snapshot(gctx)
		return err
	})
	g.Go(func() (err error) {
		tagIDs, err = s.src.Tags.TagsForTabs(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}

	fresh := newWorking()
	for _, w := range windows {
		fresh.addWindow(w)
	}
	fresh.containers = containers
	fresh.incognitoAllowed = incognito
	fresh.setDirectory(dir.Value())
	fresh.tags = tagSnap
	fresh.tagIDs = tagIDs

	urls := fresh.urls()
	fresh.sites = s.src.Sites.Classify(urls)
	keep := make(map[string]bool, len(urls))
	for _, u := range urls {
		keep[u] = true
	}
	s.src.Sites.Forget(keep)

	*wk = *fresh
	applog.Info("state.rebuilt", "windows", len(windows), "containers", len(containers))
	return nil
}

func (s *Store) reloadDirectory(ctx context.Context, wk *working) error {
	dir, err := s.src.Directory.Snapshot(ctx)
	if err != nil {
		return err
	}
	wk.setDirectory(dir.Value())
	return nil
}

func (s *Store) reloadTags(ctx context.Context, wk *working) error {
	snap, err := s.src.Tags.Store().Snapshot(ctx)
	if err != nil {
		return err
	}
	ids, err := s.src.Tags.TagsForTabs(ctx)
	if err != nil {
		return err
	}
	wk.tags = snap
	wk.tagIDs = ids
	return nil
}

func (s *Store) classify(wk *working, url string) {
	if _, ok := wk.sites[url]; ok {
		return
	}
	for u, d := range s.src.Sites.Classify([]string{url}) {
		wk.sites[u] = d
	}
}

// apply patches the working copy for one event.
func (s *Store) apply(ctx context.Context, wk *working, ev browser.Event) {
	switch ev := ev.(type) {
	case browser.TabCreated:
		s.classify(wk, ev.Tab.URL)
		wk.insertTab(ev.Tab)
	case browser.TabRemoved:
		wk.removeTab(ev.TabID)
	case browser.TabUpdated:
		s.classify(wk, ev.Tab.URL)
		wk.updateTab(ev.Tab)
	case browser.TabMoved:
		wk.moveTab(ev.TabID, ev.WindowID, ev.ToIndex)
	case browser.TabAttached:
		wk.moveTab(ev.TabID, ev.NewWindowID, ev.NewPosition)
	case browser.TabActivated:
		wk.activateTab(ev.WindowID, ev.TabID, ev.PreviousTabID)
	case browser.WindowCreated:
		w := ev.Window
		if w.Tabs == nil {
			full, err := s.src.Host.GetWindow(ctx, w.ID, true)
			if err != nil {
				applog.Error("state.window", err, "window", w.ID)
			} else {
				w = full
			}
		}
		if existing, ok := wk.windows[w.ID]; ok && len(w.Tabs) == 0 {
			existing.Incognito = w.Incognito
			existing.Focused = w.Focused
			return
		}
		for _, t := range w.Tabs {
			s.classify(wk, t.URL)
		}
		wk.addWindow(w)
	case browser.WindowRemoved:
		wk.removeWindow(ev.WindowID)
	case browser.ContainerCreated:
		wk.addContainer(ev.Container)
	case browser.ContainerUpdated:
		wk.updateContainer(ev.Container)
	case browser.ContainerRemoved:
		wk.removeContainer(ev.Container.CookieStoreID)
	}
}
