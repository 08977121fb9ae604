// Package visibility hides and shows the tabs of a container within a
// window, keeping every window with a visible active tab.
package visibility

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/browser"
	"github.com/lotas/tabgruppen/internal/tabgroup"
	"github.com/lotas/tabgruppen/internal/types"
)

// Config controls how groups are hidden.
type Config struct {
	Mode IndexTabMode
	// NativeGroups delegates hiding to the browser's tab groups when the
	// host has them.
	NativeGroups bool
	// ExtensionBaseURL is the moz-extension:// origin placeholder pages are
	// served from.
	ExtensionBaseURL string
}

// Reconciler hides and shows containers on windows.
type Reconciler struct {
	host     browser.Host
	registry *Registry
	cfg      Config

	mu sync.Mutex // one reconciliation at a time
}

// New returns a Reconciler.
func New(host browser.Host, registry *Registry, cfg Config) *Reconciler {
	if cfg.Mode == "" {
		cfg.Mode = IndexTabCollapsed
	}
	return &Reconciler{host: host, registry: registry, cfg: cfg}
}

// layout is the classification of a window's tabs for one container.
type layout struct {
	window       types.Window
	hideable     []int       // unpinned, visible, non-placeholder tabs of the container
	hidden       []int       // hidden tabs of the container
	placeholders []types.Tab // placeholder tabs standing for the container
	pinned       []types.Tab // pinned tabs of the container, never focused on hide
	others       []types.Tab // every other tab
	active       types.Tab
	hasActive    bool
}

func (r *Reconciler) isPlaceholderFor(t types.Tab, cookieStoreID string, c *types.Container) bool {
	if !IsIndexTabURLFrom(r.cfg.ExtensionBaseURL, t.URL) {
		return false
	}
	if cs, ok := r.registry.CookieStore(t.ID); ok {
		return cs == cookieStoreID
	}
	if c == nil {
		return false
	}
	p, err := ParseIndexTabURL(t.URL)
	return err == nil && p.Title == c.Name && p.Color == c.Color && p.Icon == c.Icon
}

func (r *Reconciler) classify(w types.Window, cookieStoreID string, c *types.Container) layout {
	l := layout{window: w}
	for _, t := range w.Tabs {
		if t.Active {
			l.active, l.hasActive = t, true
		}
		switch {
		case r.isPlaceholderFor(t, cookieStoreID, c):
			l.placeholders = append(l.placeholders, t)
		case t.CookieStoreID != cookieStoreID:
			l.others = append(l.others, t)
		case t.Hidden:
			l.hidden = append(l.hidden, t.ID)
		case t.Pinned:
			l.pinned = append(l.pinned, t)
		default:
			l.hideable = append(l.hideable, t.ID)
		}
	}
	return l
}

func (r *Reconciler) native() browser.TabGroups {
	if !r.cfg.NativeGroups {
		return nil
	}
	return r.host.NativeGroups()
}

// load fetches the window and container. ok is false when the window is
// gone or private, in which case there is nothing to do.
func (r *Reconciler) load(ctx context.Context, op string, windowID int, cookieStoreID string) (layout, *types.Container, bool, error) {
	a, err := tabgroup.Parse(cookieStoreID)
	if err != nil {
		return layout{}, nil, false, err
	}
	if !a.IsCookieStore() {
		return layout{}, nil, false, fmt.Errorf("%w: %q is not a container", tabgroup.ErrInvalidID, cookieStoreID)
	}
	w, err := r.host.GetWindow(ctx, windowID, true)
	if err != nil {
		applog.Error(op, err, "window", windowID)
		return layout{}, nil, false, nil
	}
	if w.Incognito || a.Private {
		return layout{}, nil, false, nil
	}
	var container *types.Container
	if c, err := r.host.GetContainer(ctx, cookieStoreID); err == nil {
		container = &c
	}
	return r.classify(w, cookieStoreID, container), container, true, nil
}

// HideContainerOnWindow hides the unpinned tabs of a container in a window
// and returns the ids it hid. Nothing is hidden in private windows, when
// the container has no visible tabs, or when no other tab could take focus.
// Failing native calls are logged and end the operation without error;
// only invalid input is returned as an error.
func (r *Reconciler) HideContainerOnWindow(ctx context.Context, windowID int, cookieStoreID string) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, container, ok, err := r.load(ctx, "visibility.hide", windowID, cookieStoreID)
	if err != nil || !ok || len(l.hideable) == 0 {
		return nil, err
	}

	if groups := r.native(); groups != nil {
		return r.hideNative(ctx, groups, l, container), nil
	}

	candidates := slices.Clone(l.others)
	if r.cfg.Mode != IndexTabNever && len(l.placeholders) == 0 {
		if tab, ok := r.createPlaceholder(ctx, l, cookieStoreID, container); ok {
			candidates = append(candidates, tab)
		}
	} else {
		candidates = append(candidates, l.placeholders...)
	}

	if l.hasActive && slices.Contains(l.hideable, l.active.ID) {
		next, ok := focusCandidate(candidates)
		if !ok {
			applog.Warn("visibility.hide.aborted", "window", windowID, "container", cookieStoreID, "reason", "no tab to focus")
			return nil, nil
		}
		if err := r.host.ActivateTab(ctx, next.ID); err != nil {
			applog.Error("visibility.hide.activate", err, "window", windowID, "tab", next.ID)
			return nil, nil
		}
	}

	if err := r.host.HideTabs(ctx, l.hideable); err != nil {
		applog.Error("visibility.hide", err, "window", windowID, "container", cookieStoreID)
		return nil, nil
	}
	applog.Info("visibility.hidden", "window", windowID, "container", cookieStoreID, "tabs", len(l.hideable))
	return l.hideable, nil
}

// focusCandidate picks the most recently accessed visible tab.
func focusCandidate(tabs []types.Tab) (types.Tab, bool) {
	var best types.Tab
	found := false
	for _, t := range tabs {
		if t.Hidden {
			continue
		}
		if !found || t.LastAccessed > best.LastAccessed {
			best, found = t, true
		}
	}
	return best, found
}

func (r *Reconciler) createPlaceholder(ctx context.Context, l layout, cookieStoreID string, c *types.Container) (types.Tab, bool) {
	p := Placeholder{Title: cookieStoreID}
	if c != nil {
		p = Placeholder{Title: c.Name, Icon: c.Icon, Color: c.Color, IconURL: c.IconURL}
	}
	rawURL := IndexTabURL(r.cfg.ExtensionBaseURL, p)

	index := 0
	for _, t := range l.window.Tabs {
		if slices.Contains(l.hideable, t.ID) {
			index = t.Index
			break
		}
	}
	tab, err := r.host.CreateTab(ctx, browser.CreateTabOptions{
		WindowID: l.window.ID,
		URL:      rawURL,
		Index:    &index,
		Active:   false,
	})
	if err != nil {
		applog.Error("visibility.indextab.create", err, "window", l.window.ID, "container", cookieStoreID)
		return types.Tab{}, false
	}
	if err := r.registry.Register(ctx, tab.ID, rawURL, cookieStoreID); err != nil {
		applog.Error("visibility.indextab.register", err, "tab", tab.ID)
	}
	return tab, true
}

func (r *Reconciler) hideNative(ctx context.Context, groups browser.TabGroups, l layout, c *types.Container) []int {
	groupID, err := groups.GroupTabs(ctx, l.window.ID, l.hideable)
	if err != nil {
		applog.Error("visibility.group", err, "window", l.window.ID)
		return nil
	}
	collapsed := true
	u := browser.GroupUpdate{Collapsed: &collapsed}
	if c != nil {
		u.Title, u.Color = c.Name, c.Color
	}
	if err := groups.UpdateGroup(ctx, groupID, u); err != nil {
		applog.Error("visibility.group.collapse", err, "group", groupID)
		return nil
	}
	return l.hideable
}

// ShowContainerOnWindow unhides every hidden tab of a container in a window.
// In collapsed mode the container's placeholder tabs are closed afterwards.
func (r *Reconciler) ShowContainerOnWindow(ctx context.Context, windowID int, cookieStoreID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, _, ok, err := r.load(ctx, "visibility.show", windowID, cookieStoreID)
	if err != nil || !ok {
		return err
	}

	if groups := r.native(); groups != nil {
		var grouped []int
		for _, t := range l.window.Tabs {
			if t.CookieStoreID == cookieStoreID && t.GroupID != types.NoGroup {
				grouped = append(grouped, t.ID)
			}
		}
		if len(grouped) > 0 {
			if err := groups.UngroupTabs(ctx, grouped); err != nil {
				applog.Error("visibility.ungroup", err, "window", windowID)
			}
		}
		return nil
	}

	if len(l.hidden) > 0 {
		if err := r.host.ShowTabs(ctx, l.hidden); err != nil {
			applog.Error("visibility.show", err, "window", windowID, "container", cookieStoreID)
			return nil
		}
	}

	if r.cfg.Mode != IndexTabCollapsed || len(l.placeholders) == 0 {
		return nil
	}
	ids := make([]int, 0, len(l.placeholders))
	activePlaceholder := false
	for _, t := range l.placeholders {
		ids = append(ids, t.ID)
		activePlaceholder = activePlaceholder || t.Active
	}
	if activePlaceholder && len(l.hidden) > 0 {
		shown := make([]types.Tab, 0, len(l.hidden))
		for _, t := range l.window.Tabs {
			if slices.Contains(l.hidden, t.ID) {
				t.Hidden = false
				shown = append(shown, t)
			}
		}
		if next, ok := focusCandidate(shown); ok {
			if err := r.host.ActivateTab(ctx, next.ID); err != nil {
				applog.Error("visibility.show.activate", err, "tab", next.ID)
			}
		}
	}
	if err := r.host.RemoveTabs(ctx, ids); err != nil {
		applog.Error("visibility.indextab.close", err, "window", windowID)
	}
	for _, id := range ids {
		r.registry.Forget(ctx, id)
	}
	return nil
}

// ShowAllOnWindow unhides every hidden tab in a window regardless of
// container, and expands any collapsed native groups.
func (r *Reconciler) ShowAllOnWindow(ctx context.Context, windowID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, err := r.host.GetWindow(ctx, windowID, true)
	if err != nil {
		applog.Error("visibility.showall", err, "window", windowID)
		return nil
	}
	if w.Incognito {
		return nil
	}
	var hidden []int
	groupIDs := make(map[int]bool)
	for _, t := range w.Tabs {
		if t.Hidden {
			hidden = append(hidden, t.ID)
		}
		if t.GroupID != types.NoGroup {
			groupIDs[t.GroupID] = true
		}
	}
	if len(hidden) > 0 {
		if err := r.host.ShowTabs(ctx, hidden); err != nil {
			applog.Error("visibility.showall", err, "window", windowID)
		}
	}
	if groups := r.native(); groups != nil {
		expanded := false
		for id := range groupIDs {
			if err := groups.UpdateGroup(ctx, id, browser.GroupUpdate{Collapsed: &expanded}); err != nil {
				applog.Error("visibility.group.expand", err, "group", id)
			}
		}
	}
	return nil
}
