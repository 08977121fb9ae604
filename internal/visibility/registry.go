package visibility

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/browser"
	"github.com/lotas/tabgruppen/internal/tabgroup"
)

// Per-tab attributes recording placeholder tabs across restarts.
const (
	AttrIndexTabURL           = "indexTabUrl"
	AttrIndexTabUserContextID = "indexTabUserContextId"
)

// TabAttributes is the per-tab attribute layer.
type TabAttributes interface {
	SetTabValue(ctx context.Context, tabID int, name string, v any) error
	TabValues(ctx context.Context, name string) (map[int]json.RawMessage, error)
	RemoveTabValue(ctx context.Context, tabID int, name string) error
}

// Registry maps placeholder tab ids to the cookie store they stand for.
type Registry struct {
	attrs TabAttributes

	mu   sync.Mutex
	tabs map[int]string
}

// NewRegistry returns an empty Registry persisting through attrs. attrs may
// be nil, in which case nothing is persisted.
func NewRegistry(attrs TabAttributes) *Registry {
	return &Registry{attrs: attrs, tabs: make(map[int]string)}
}

// Load seeds the registry from persisted tab attributes.
func (r *Registry) Load(ctx context.Context) error {
	if r.attrs == nil {
		return nil
	}
	urls, err := r.attrs.TabValues(ctx, AttrIndexTabURL)
	if err != nil {
		return err
	}
	contexts, err := r.attrs.TabValues(ctx, AttrIndexTabUserContextID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for tabID, raw := range contexts {
		var u string
		if data, ok := urls[tabID]; !ok || json.Unmarshal(data, &u) != nil || !IsIndexTabURL(u) {
			continue
		}
		var userContextID int
		if err := json.Unmarshal(raw, &userContextID); err != nil {
			continue
		}
		r.tabs[tabID] = tabgroup.CookieStoreForUserContext(userContextID)
	}
	return nil
}

// Register records tabID as the placeholder of cookieStoreID.
func (r *Registry) Register(ctx context.Context, tabID int, rawURL, cookieStoreID string) error {
	r.mu.Lock()
	r.tabs[tabID] = cookieStoreID
	r.mu.Unlock()
	if r.attrs == nil {
		return nil
	}
	a, err := tabgroup.Parse(cookieStoreID)
	if err != nil {
		return err
	}
	if err := r.attrs.SetTabValue(ctx, tabID, AttrIndexTabURL, rawURL); err != nil {
		return err
	}
	return r.attrs.SetTabValue(ctx, tabID, AttrIndexTabUserContextID, a.UserContextID)
}

// Forget drops tabID.
func (r *Registry) Forget(ctx context.Context, tabID int) {
	r.mu.Lock()
	_, ok := r.tabs[tabID]
	delete(r.tabs, tabID)
	r.mu.Unlock()
	if !ok || r.attrs == nil {
		return
	}
	for _, name := range []string{AttrIndexTabURL, AttrIndexTabUserContextID} {
		if err := r.attrs.RemoveTabValue(ctx, tabID, name); err != nil {
			applog.Error("indextab.forget", err, "tab", tabID)
		}
	}
}

// CookieStore returns the cookie store tabID is a placeholder for.
func (r *Registry) CookieStore(tabID int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.tabs[tabID]
	return cs, ok
}

// Len returns the number of known placeholder tabs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tabs)
}

// Run keeps the registry in sync with tab lifecycle events until events is
// closed or ctx is done.
func (r *Registry) Run(ctx context.Context, events <-chan browser.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.handle(ctx, ev)
		}
	}
}

func (r *Registry) handle(ctx context.Context, ev browser.Event) {
	switch ev := ev.(type) {
	case browser.TabRemoved:
		r.Forget(ctx, ev.TabID)
	case browser.TabUpdated:
		if ev.Tab.URL != "" && !IsIndexTabURL(ev.Tab.URL) {
			r.Forget(ctx, ev.TabID)
		}
	}
}
