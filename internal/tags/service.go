package tags

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/browser"
	"github.com/lotas/tabgruppen/internal/storage"
)

// TabAttributes is the per-tab attribute layer.
type TabAttributes interface {
	SetTabValue(ctx context.Context, tabID int, name string, v any) error
	TabValue(ctx context.Context, tabID int, name string, v any) (bool, error)
	TabValues(ctx context.Context, name string) (map[int]json.RawMessage, error)
	RemoveTabValue(ctx context.Context, tabID int, name string) error
	OnChanged(fn func(keys []string)) (cancel func())
}

// Service ties tag definitions to per-tab assignments.
type Service struct {
	store *Store
	attrs TabAttributes
}

// NewService returns a Service over store and attrs.
func NewService(store *Store, attrs TabAttributes) *Service {
	return &Service{store: store, attrs: attrs}
}

// Store returns the tag directory store.
func (s *Service) Store() *Store { return s.store }

// TagForTab returns the tag id of a tab, NoTag if it has none.
func (s *Service) TagForTab(ctx context.Context, tabID int) (int, error) {
	var id int
	if _, err := s.attrs.TabValue(ctx, tabID, TabAttribute, &id); err != nil {
		return NoTag, err
	}
	return id, nil
}

// SetTagForTab assigns tagID to a tab. NoTag clears the assignment.
func (s *Service) SetTagForTab(ctx context.Context, tabID, tagID int) error {
	if tagID < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTagID, tagID)
	}
	if tagID != NoTag {
		v, err := s.store.Value(ctx)
		if err != nil {
			return err
		}
		if _, ok := v[tagID]; !ok {
			return fmt.Errorf("%w: %d", ErrUnknownTag, tagID)
		}
	}
	return s.attrs.SetTabValue(ctx, tabID, TabAttribute, tagID)
}

// TagsForTabs returns the tag id of every tab that has a tag.
func (s *Service) TagsForTabs(ctx context.Context) (map[int]int, error) {
	raw, err := s.attrs.TabValues(ctx, TabAttribute)
	if err != nil {
		return nil, err
	}
	out := make(map[int]int, len(raw))
	for tabID, data := range raw {
		var id int
		if err := json.Unmarshal(data, &id); err != nil {
			return nil, fmt.Errorf("decode tag of tab %d: %w", tabID, err)
		}
		if id != NoTag {
			out[tabID] = id
		}
	}
	return out, nil
}

// DeleteTag removes a tag from the directory, then resets every tab that
// carried it to NoTag.
func (s *Service) DeleteTag(ctx context.Context, tagID int) error {
	if err := s.store.RemoveTagFromDirectory(ctx, tagID); err != nil {
		return err
	}
	assigned, err := s.TagsForTabs(ctx)
	if err != nil {
		return err
	}
	for tabID, id := range assigned {
		if id != tagID {
			continue
		}
		if err := s.attrs.SetTabValue(ctx, tabID, TabAttribute, NoTag); err != nil {
			return err
		}
	}
	return nil
}

// Run drops the tag of every tab reported closed until ctx is done or
// events is closed. Firefox reuses tab ids across sessions, so a tag left
// behind would land on an unrelated tab.
func (s *Service) Run(ctx context.Context, events <-chan browser.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			removed, ok := ev.(browser.TabRemoved)
			if !ok {
				continue
			}
			if err := s.attrs.RemoveTabValue(ctx, removed.TabID, TabAttribute); err != nil {
				applog.Error("tags.forget", err, "tab", removed.TabID)
			}
		}
	}
}

// Prune drops the tag of every tab not in open. It returns how many were
// dropped.
func (s *Service) Prune(ctx context.Context, open []int) (int, error) {
	raw, err := s.attrs.TabValues(ctx, TabAttribute)
	if err != nil {
		return 0, err
	}
	n := 0
	for tabID := range raw {
		if slices.Contains(open, tabID) {
			continue
		}
		if err := s.attrs.RemoveTabValue(ctx, tabID, TabAttribute); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// OnChanged registers fn to run after the tag directory or any tab's tag
// assignment changes.
func (s *Service) OnChanged(fn func()) (cancel func()) {
	stopDir := s.store.OnChanged(fn)
	key := storage.TabAttributeKey(TabAttribute)
	stopAttrs := s.attrs.OnChanged(func(keys []string) {
		if slices.Contains(keys, key) {
			fn()
		}
	})
	return func() {
		stopDir()
		stopAttrs()
	}
}
