// Package directory keeps the forest of supergroups that organizes
// containers, persisted under a single storage key.
package directory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/lotas/tabgruppen/internal/tabgroup"
	"github.com/lotas/tabgruppen/internal/types"
)

const (
	// StorageKey holds the Storage value.
	StorageKey = "tabGroupDirectory"
	// LegacySortingOrderKey holds the old []int container ordering.
	LegacySortingOrderKey = "userContextSortingOrder"
)

// KV is the persisted key-value store the directory lives in.
type KV interface {
	Get(ctx context.Context, key string, v any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	OnChanged(fn func(keys []string)) (cancel func())
}

// ContainerLister lists the native containers.
type ContainerLister interface {
	QueryContainers(ctx context.Context) ([]types.Container, error)
}

// Store reads, repairs and mutates the directory.
type Store struct {
	kv         KV
	containers ContainerLister

	writeMu sync.Mutex // serializes read-modify-write cycles

	mu        sync.Mutex
	raw       Storage
	rawValid  bool
	gen       uint64 // bumped on every storage change
	listeners map[int]func()
	nextID    int
	stop      func()
}

// NewStore returns a Store over kv. Containers are consulted on every read
// so that deleted containers are pruned and new ones placed.
func NewStore(kv KV, containers ContainerLister) *Store {
	s := &Store{kv: kv, containers: containers, listeners: make(map[int]func())}
	s.stop = kv.OnChanged(s.storageChanged)
	return s
}

// Close stops listening for storage changes.
func (s *Store) Close() {
	s.stop()
}

func (s *Store) storageChanged(keys []string) {
	if !slices.Contains(keys, StorageKey) && !slices.Contains(keys, LegacySortingOrderKey) {
		return
	}
	s.mu.Lock()
	s.raw = nil
	s.rawValid = false
	s.gen++
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// OnChanged registers fn to run after the persisted directory changes,
// whether written by this Store or by another process.
func (s *Store) OnChanged(fn func()) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) loadRaw(ctx context.Context) (Storage, error) {
	s.mu.Lock()
	if s.rawValid {
		raw := s.raw.Clone()
		s.mu.Unlock()
		return raw, nil
	}
	gen := s.gen
	s.mu.Unlock()

	var raw Storage
	if _, err := s.kv.Get(ctx, StorageKey, &raw); err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	s.mu.Lock()
	// A change that landed during the read may postdate raw.
	if s.gen == gen {
		s.raw = raw.Clone()
		s.rawValid = true
	}
	s.mu.Unlock()
	return raw, nil
}

// CookieStores returns the live cookie stores that belong in the
// directory: the default store followed by every native container.
func CookieStores(containers []types.Container) []string {
	out := make([]string, 0, len(containers)+1)
	out = append(out, tabgroup.DefaultCookieStore)
	for _, c := range containers {
		out = append(out, c.CookieStoreID)
	}
	return out
}

// Value returns the repaired directory.
func (s *Store) Value(ctx context.Context) (Storage, error) {
	raw, err := s.loadRaw(ctx)
	if err != nil {
		return nil, err
	}
	containers, err := s.containers.QueryContainers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	var legacy []int
	if _, err := s.kv.Get(ctx, LegacySortingOrderKey, &legacy); err != nil {
		return nil, fmt.Errorf("read legacy order: %w", err)
	}
	return Repair(raw, CookieStores(containers), legacy), nil
}

// Snapshot returns an immutable view of the repaired directory.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	v, err := s.Value(ctx)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(v), nil
}

// update runs fn on the current value and persists the result if fn
// reports a change.
func (s *Store) update(ctx context.Context, fn func(v Storage, snap *Snapshot) bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	v, err := s.Value(ctx)
	if err != nil {
		return err
	}
	if !fn(v, NewSnapshot(v)) {
		return nil
	}
	if err := s.kv.Set(ctx, StorageKey, v); err != nil {
		return fmt.Errorf("write directory: %w", err)
	}
	return nil
}

// CreateSupergroup adds an empty supergroup under the root and returns its id.
func (s *Store) CreateSupergroup(ctx context.Context, name string) (tabgroup.ID, error) {
	var id tabgroup.ID
	err := s.update(ctx, func(v Storage, _ *Snapshot) bool {
		next := 0
		for _, sg := range v {
			if sg.SupergroupID > next {
				next = sg.SupergroupID
			}
		}
		next++
		id, _ = tabgroup.Supergroup(next)
		v[id] = Supergroup{SupergroupID: next, Name: name, Members: []tabgroup.ID{}}
		root := v[tabgroup.Root]
		root.Members = append(root.Members, id)
		v[tabgroup.Root] = root
		return true
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// RenameSupergroup renames a supergroup. Unknown ids are ignored.
func (s *Store) RenameSupergroup(ctx context.Context, id tabgroup.ID, name string) error {
	return s.update(ctx, func(v Storage, _ *Snapshot) bool {
		sg, ok := v[id]
		if !ok || sg.Name == name {
			return false
		}
		sg.Name = name
		v[id] = sg
		return true
	})
}

// RemoveSupergroup deletes a supergroup and hands its members to its
// parent, appended after the parent's own members. The root and unknown
// ids are ignored.
func (s *Store) RemoveSupergroup(ctx context.Context, id tabgroup.ID) error {
	return s.update(ctx, func(v Storage, snap *Snapshot) bool {
		if id == tabgroup.Root {
			return false
		}
		removed, ok := v[id]
		if !ok {
			return false
		}
		parentID, ok := snap.ParentTabGroupID(id)
		if !ok {
			parentID = tabgroup.Root
		}
		parent := v[parentID]
		parent.Members = slices.DeleteFunc(parent.Members, func(m tabgroup.ID) bool { return m == id })
		parent.Members = append(parent.Members, removed.Members...)
		v[parentID] = parent
		delete(v, id)
		return true
	})
}

// MoveTabGroupToSupergroup detaches id from its parent and appends it to
// newParentID. Moving a tab group into itself or below itself, moving the
// root, and moving into an unknown supergroup are ignored.
func (s *Store) MoveTabGroupToSupergroup(ctx context.Context, id, newParentID tabgroup.ID) error {
	if _, err := tabgroup.Parse(id); err != nil {
		return err
	}
	a, err := tabgroup.Parse(newParentID)
	if err != nil {
		return err
	}
	if !a.IsSupergroup() {
		return fmt.Errorf("%w: %q is not a supergroup", tabgroup.ErrInvalidID, newParentID)
	}
	return s.update(ctx, func(v Storage, snap *Snapshot) bool {
		if id == tabgroup.Root || id == newParentID || snap.HasDescendant(id, newParentID) {
			return false
		}
		if _, ok := v[newParentID]; !ok {
			return false
		}
		oldParentID, ok := snap.ParentTabGroupID(id)
		if !ok {
			return false
		}
		old := v[oldParentID]
		old.Members = slices.DeleteFunc(old.Members, func(m tabgroup.ID) bool { return m == id })
		v[oldParentID] = old

		dst := v[newParentID]
		dst.Members = append(dst.Members, id)
		v[newParentID] = dst
		return true
	})
}

// MoveTabGroupUp swaps id with its preceding sibling.
func (s *Store) MoveTabGroupUp(ctx context.Context, id tabgroup.ID) error {
	return s.swap(ctx, id, -1)
}

// MoveTabGroupDown swaps id with its following sibling.
func (s *Store) MoveTabGroupDown(ctx context.Context, id tabgroup.ID) error {
	return s.swap(ctx, id, +1)
}

func (s *Store) swap(ctx context.Context, id tabgroup.ID, delta int) error {
	return s.update(ctx, func(v Storage, snap *Snapshot) bool {
		parentID, ok := snap.ParentTabGroupID(id)
		if !ok {
			return false
		}
		parent := v[parentID]
		i := slices.Index(parent.Members, id)
		j := i + delta
		if i < 0 || j < 0 || j >= len(parent.Members) {
			return false
		}
		parent.Members[i], parent.Members[j] = parent.Members[j], parent.Members[i]
		v[parentID] = parent
		return true
	})
}
