// Package tags keeps the flat directory of tab tags and the per-tab tag
// assignment.
package tags

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
)

const (
	// StorageKey holds the Directory value.
	StorageKey = "tagDirectory"
	// TabAttribute is the per-tab attribute name holding a tag id.
	TabAttribute = "tag"
	// NoTag is the tag id of an untagged tab.
	NoTag = 0
)

var (
	// ErrInvalidTagID is returned for negative tag ids.
	ErrInvalidTagID = errors.New("invalid tag id")
	// ErrUnknownTag is returned when assigning a tag that does not exist.
	ErrUnknownTag = errors.New("unknown tag")
)

// Tag is a user-defined label for tabs.
type Tag struct {
	TagID int    `json:"tagId"`
	Name  string `json:"name"`
}

// Directory is the persisted tag directory: tag id to tag.
type Directory map[int]Tag

// Clone returns a copy of d.
func (d Directory) Clone() Directory {
	out := make(Directory, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Snapshot is an immutable view of the tag directory.
type Snapshot struct {
	value Directory
}

// NewSnapshot captures a copy of d.
func NewSnapshot(d Directory) *Snapshot {
	return &Snapshot{value: d.Clone()}
}

// Value returns a copy of the captured directory.
func (s *Snapshot) Value() Directory { return s.value.Clone() }

// Tag returns tag id.
func (s *Snapshot) Tag(id int) (Tag, bool) {
	t, ok := s.value[id]
	return t, ok
}

// Tags returns every tag ordered by id.
func (s *Snapshot) Tags() []Tag {
	out := make([]Tag, 0, len(s.value))
	for _, t := range s.value {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TagID < out[j].TagID })
	return out
}

// KV is the persisted key-value store the directory lives in.
type KV interface {
	Get(ctx context.Context, key string, v any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	OnChanged(fn func(keys []string)) (cancel func())
}

// Store reads and mutates the tag directory.
type Store struct {
	kv KV

	writeMu sync.Mutex

	mu        sync.Mutex
	cache     Directory
	gen       uint64
	listeners map[int]func()
	nextID    int
	stop      func()
}

// NewStore returns a Store over kv.
func NewStore(kv KV) *Store {
	s := &Store{kv: kv, listeners: make(map[int]func())}
	s.stop = kv.OnChanged(s.storageChanged)
	return s
}

// Close stops listening for storage changes.
func (s *Store) Close() { s.stop() }

func (s *Store) storageChanged(keys []string) {
	if !slices.Contains(keys, StorageKey) {
		return
	}
	s.mu.Lock()
	s.cache = nil
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

// OnChanged registers fn to run after the tag directory changes.
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

// Value returns the tag directory. Entries with a non-positive id or a key
// that disagrees with their id are dropped.
func (s *Store) Value(ctx context.Context) (Directory, error) {
	s.mu.Lock()
	if s.cache != nil {
		v := s.cache.Clone()
		s.mu.Unlock()
		return v, nil
	}
	gen := s.gen
	s.mu.Unlock()

	var raw Directory
	if _, err := s.kv.Get(ctx, StorageKey, &raw); err != nil {
		return nil, fmt.Errorf("read tags: %w", err)
	}
	v := make(Directory, len(raw))
	for id, t := range raw {
		if id > 0 && t.TagID == id {
			v[id] = t
		}
	}

	s.mu.Lock()
	if s.gen == gen {
		s.cache = v.Clone()
	}
	s.mu.Unlock()
	return v, nil
}

// Snapshot returns an immutable view of the tag directory.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	v, err := s.Value(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{value: v}, nil
}

func (s *Store) update(ctx context.Context, fn func(v Directory) bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	v, err := s.Value(ctx)
	if err != nil {
		return err
	}
	if !fn(v) {
		return nil
	}
	if err := s.kv.Set(ctx, StorageKey, v); err != nil {
		return fmt.Errorf("write tags: %w", err)
	}
	return nil
}

// CreateTag adds a tag with id one above the largest existing id.
func (s *Store) CreateTag(ctx context.Context, name string) (Tag, error) {
	var tag Tag
	err := s.update(ctx, func(v Directory) bool {
		next := NoTag
		for id := range v {
			next = max(next, id)
		}
		tag = Tag{TagID: next + 1, Name: name}
		v[tag.TagID] = tag
		return true
	})
	if err != nil {
		return Tag{}, err
	}
	return tag, nil
}

// RenameTag renames a tag. Unknown ids are ignored.
func (s *Store) RenameTag(ctx context.Context, id int, name string) error {
	return s.update(ctx, func(v Directory) bool {
		t, ok := v[id]
		if !ok || t.Name == name {
			return false
		}
		t.Name = name
		v[id] = t
		return true
	})
}

// RemoveTagFromDirectory deletes a tag definition. Tabs assigned the tag
// keep their assignment; see Service.DeleteTag.
func (s *Store) RemoveTagFromDirectory(ctx context.Context, id int) error {
	return s.update(ctx, func(v Directory) bool {
		if _, ok := v[id]; !ok {
			return false
		}
		delete(v, id)
		return true
	})
}
