package lifecycle

import (
	"context"
	"errors"
	"slices"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/browser"
	"github.com/lotas/tabgruppen/internal/tabgroup"
)

// Run watches tab and container events. When the last tab of a container
// closes, a temporary container is cleared and deleted, and an autoclean
// container is cleared. Events are read from the start; until the open
// tabs have been listed once, each tab event retries the listing instead
// of being applied. Run returns when ctx is done or events is closed.
func (s *Service) Run(ctx context.Context, events <-chan browser.Event) {
	stores := s.openTabs(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if stores == nil {
				stores = s.openTabs(ctx)
				if _, ok := ev.(browser.ContainerRemoved); !ok {
					continue
				}
			}
			switch ev := ev.(type) {
			case browser.TabCreated:
				stores[ev.Tab.ID] = ev.Tab.CookieStoreID
			case browser.TabUpdated:
				stores[ev.TabID] = ev.Tab.CookieStoreID
			case browser.TabRemoved:
				cs, known := stores[ev.TabID]
				delete(stores, ev.TabID)
				if !known || s.inUse(stores, cs) {
					continue
				}
				s.lastTabClosed(ctx, cs)
			case browser.ContainerRemoved:
				s.forget(ctx, ev.Container.CookieStoreID)
			}
		}
	}
}

// openTabs maps each open tab to its cookie store, or returns nil if the
// browser cannot be queried yet.
func (s *Service) openTabs(ctx context.Context) map[int]string {
	tabs, err := s.host.QueryTabs(ctx, browser.TabQuery{})
	if err != nil {
		if ctx.Err() == nil {
			applog.Warn("lifecycle.query", "err", err)
		}
		return nil
	}
	stores := make(map[int]string, len(tabs))
	for _, t := range tabs {
		stores[t.ID] = t.CookieStoreID
	}
	return stores
}

func (s *Service) inUse(stores map[int]string, cookieStoreID string) bool {
	for _, cs := range stores {
		if cs == cookieStoreID {
			return true
		}
	}
	return false
}

func (s *Service) lastTabClosed(ctx context.Context, cookieStoreID string) {
	if cookieStoreID == tabgroup.PrivateCookieStore {
		return
	}
	temps, err := s.TemporaryContainers(ctx)
	if err != nil {
		applog.Error("lifecycle.temporary", err)
		return
	}
	if slices.Contains(temps, cookieStoreID) {
		if err := s.host.RemoveForCookieStore(ctx, cookieStoreID); err != nil {
			applog.Error("lifecycle.temporary.clear", err, "container", cookieStoreID)
		}
		if err := s.host.RemoveContainer(ctx, cookieStoreID); err != nil && !errors.Is(err, browser.ErrNotFound) {
			applog.Error("lifecycle.temporary.remove", err, "container", cookieStoreID)
		}
		s.forget(ctx, cookieStoreID)
		applog.Info("lifecycle.temporary.deleted", "container", cookieStoreID)
		return
	}

	enabled, err := s.IsAutocleanEnabled(ctx, cookieStoreID)
	if err != nil {
		applog.Error("lifecycle.autoclean", err, "container", cookieStoreID)
		return
	}
	if !enabled {
		return
	}
	if err := s.host.RemoveForCookieStore(ctx, cookieStoreID); err != nil {
		applog.Error("lifecycle.autoclean.clear", err, "container", cookieStoreID)
		return
	}
	applog.Info("lifecycle.autoclean.cleared", "container", cookieStoreID)
}

// forget drops a deleted container from the temporary and autoclean lists.
func (s *Service) forget(ctx context.Context, cookieStoreID string) {
	drop := func(ids []string) []string {
		return slices.DeleteFunc(ids, func(x string) bool { return x == cookieStoreID })
	}
	for _, key := range []string{TemporaryKey, AutocleanKey} {
		ids, found, err := s.readList(ctx, key)
		if err != nil {
			applog.Error("lifecycle.forget", err, "key", key)
			continue
		}
		if !found || !slices.Contains(ids, cookieStoreID) {
			continue
		}
		if err := s.updateList(ctx, key, drop); err != nil {
			applog.Error("lifecycle.forget", err, "key", key)
		}
	}
}
