// Package lifecycle runs operations that touch both the directory and the
// browser's containers and tabs.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/browser"
	"github.com/lotas/tabgruppen/internal/directory"
	"github.com/lotas/tabgruppen/internal/tabgroup"
	"github.com/lotas/tabgruppen/internal/types"
)

// Persisted keys.
const (
	AutocleanKey       = "cookies.autoclean.enabledTabGroupIds"
	LegacyAutocleanKey = "cookies.autoclean.enabledUserContexts"
	TemporaryKey       = "temporaryContainers"
)

// KV is the persisted key-value store.
type KV interface {
	Get(ctx context.Context, key string, v any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
}

// Service runs lifecycle operations.
type Service struct {
	host browser.Host
	dir  *directory.Store
	kv   KV

	mu sync.Mutex // guards read-modify-write of the persisted lists
}

// New returns a Service.
func New(host browser.Host, dir *directory.Store, kv KV) *Service {
	return &Service{host: host, dir: dir, kv: kv}
}

func (s *Service) leaves(ctx context.Context, id tabgroup.ID) ([]string, error) {
	if _, err := tabgroup.Parse(id); err != nil {
		return nil, err
	}
	snap, err := s.dir.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.ChildContainers(id), nil
}

// CloseTabGroup closes every tab of the containers under id. Tabs that are
// already gone are ignored.
func (s *Service) CloseTabGroup(ctx context.Context, id tabgroup.ID) error {
	stores, err := s.leaves(ctx, id)
	if err != nil {
		return err
	}
	var ids []int
	for _, cs := range stores {
		tabs, err := s.host.QueryTabs(ctx, browser.TabQuery{CookieStoreID: cs})
		if err != nil {
			applog.Error("lifecycle.close.query", err, "container", cs)
			continue
		}
		for _, t := range tabs {
			ids = append(ids, t.ID)
		}
	}
	for _, tabID := range ids {
		if err := s.host.RemoveTabs(ctx, []int{tabID}); err != nil {
			applog.Error("lifecycle.close", err, "tab", tabID)
		}
	}
	applog.Info("lifecycle.closed", "group", id, "tabs", len(ids))
	return nil
}

// CreateChildContainer creates a container and files it under parent. If
// filing fails the container stays at the root.
func (s *Service) CreateChildContainer(ctx context.Context, parent tabgroup.ID, details types.ContainerDetails) (types.Container, error) {
	a, err := tabgroup.Parse(parent)
	if err != nil {
		return types.Container{}, err
	}
	if !a.IsSupergroup() {
		return types.Container{}, fmt.Errorf("%w: %q is not a supergroup", tabgroup.ErrInvalidID, parent)
	}
	c, err := s.host.CreateContainer(ctx, details)
	if err != nil {
		return types.Container{}, fmt.Errorf("create container: %w", err)
	}
	if err := s.dir.MoveTabGroupToSupergroup(ctx, c.CookieStoreID, parent); err != nil {
		return c, fmt.Errorf("file %s under %s: %w", c.CookieStoreID, parent, err)
	}
	return c, nil
}

// CreateChildTemporaryContainer creates a container that is deleted with
// its browsing data once its last tab closes.
func (s *Service) CreateChildTemporaryContainer(ctx context.Context, parent tabgroup.ID) (types.Container, error) {
	temps, err := s.TemporaryContainers(ctx)
	if err != nil {
		return types.Container{}, err
	}
	details := types.ContainerDetails{
		Name:  fmt.Sprintf("Temporary Container %d", len(temps)+1),
		Color: "toolbar",
		Icon:  "chill",
	}
	c, err := s.CreateChildContainer(ctx, parent, details)
	if c.CookieStoreID == "" {
		return c, err
	}
	if markErr := s.updateList(ctx, TemporaryKey, func(ids []string) []string {
		return append(ids, c.CookieStoreID)
	}); markErr != nil {
		return c, errors.Join(err, markErr)
	}
	return c, err
}

// RemoveBrowsingDataForTabGroupID clears the browsing data of every
// container under id in parallel. Every container is attempted; the
// failures are returned together.
func (s *Service) RemoveBrowsingDataForTabGroupID(ctx context.Context, id tabgroup.ID) error {
	stores, err := s.leaves(ctx, id)
	if err != nil {
		return err
	}
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, cs := range stores {
		wg.Add(1)
		go func(cs string) {
			defer wg.Done()
			if err := s.host.RemoveForCookieStore(ctx, cs); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("clear %s: %w", cs, err))
				mu.Unlock()
			}
		}(cs)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (s *Service) readList(ctx context.Context, key string) ([]string, bool, error) {
	var ids []string
	found, err := s.kv.Get(ctx, key, &ids)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return ids, found, nil
}

func (s *Service) updateList(ctx context.Context, key string, fn func([]string) []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, _, err := s.readList(ctx, key)
	if err != nil {
		return err
	}
	ids = fn(ids)
	if ids == nil {
		ids = []string{}
	}
	if err := s.kv.Set(ctx, key, ids); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// TemporaryContainers returns the cookie stores flagged as temporary.
func (s *Service) TemporaryContainers(ctx context.Context) ([]string, error) {
	ids, _, err := s.readList(ctx, TemporaryKey)
	return ids, err
}

// AutocleanEnabled returns the tab groups with autoclean on. The first
// read after an upgrade converts the legacy per-container list.
func (s *Service) AutocleanEnabled(ctx context.Context) ([]tabgroup.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, found, err := s.readList(ctx, AutocleanKey)
	if err != nil || found {
		return ids, err
	}
	var legacy []int
	ok, err := s.kv.Get(ctx, LegacyAutocleanKey, &legacy)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", LegacyAutocleanKey, err)
	}
	if !ok {
		return []tabgroup.ID{}, nil
	}
	ids = make([]tabgroup.ID, 0, len(legacy))
	for _, uc := range legacy {
		cs := tabgroup.CookieStoreForUserContext(uc)
		if !slices.Contains(ids, cs) {
			ids = append(ids, cs)
		}
	}
	if err := s.kv.Set(ctx, AutocleanKey, ids); err != nil {
		return nil, fmt.Errorf("migrate autoclean: %w", err)
	}
	if err := s.kv.Delete(ctx, LegacyAutocleanKey); err != nil {
		return nil, fmt.Errorf("migrate autoclean: %w", err)
	}
	applog.Info("lifecycle.autoclean.migrated", "groups", len(ids))
	return ids, nil
}

// SetAutoclean turns autoclean on or off for a tab group.
func (s *Service) SetAutoclean(ctx context.Context, id tabgroup.ID, enabled bool) error {
	if _, err := tabgroup.Parse(id); err != nil {
		return err
	}
	// run the migration before editing the new list
	if _, err := s.AutocleanEnabled(ctx); err != nil {
		return err
	}
	return s.updateList(ctx, AutocleanKey, func(ids []string) []string {
		ids = slices.DeleteFunc(ids, func(x string) bool { return x == id })
		if enabled {
			ids = append(ids, id)
		}
		return ids
	})
}

// IsAutocleanEnabled reports whether a container has autoclean on, either
// directly or through a supergroup it is filed under.
func (s *Service) IsAutocleanEnabled(ctx context.Context, cookieStoreID string) (bool, error) {
	enabled, err := s.AutocleanEnabled(ctx)
	if err != nil || len(enabled) == 0 {
		return false, err
	}
	snap, err := s.dir.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	for id := cookieStoreID; ; {
		if slices.Contains(enabled, id) {
			return true, nil
		}
		parent, ok := snap.ParentTabGroupID(id)
		if !ok {
			return false, nil
		}
		id = parent
	}
}
