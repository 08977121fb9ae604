// Package browsertest provides an in-memory browser for tests.
//
// Host behaves like Firefox for the calls the core makes: indices are
// renumbered on insert/remove, hide/show flip the hidden flag, and every
// mutation is reported on the event channel.
package browsertest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/lotas/tabgruppen/internal/browser"
	"github.com/lotas/tabgruppen/internal/types"
)

// Host is a fake browser.Host.
type Host struct {
	mu         sync.Mutex
	windows    map[int]*types.Window
	containers []types.Container
	events     chan browser.Event

	nextTabID       int
	nextWindowID    int
	nextUserContext int
	clock           int64

	// IncognitoAllowed is returned by IsAllowedIncognitoAccess.
	IncognitoAllowed bool
	// Groups, when set, is returned by NativeGroups.
	Groups *Groups

	// Cleared records every cookie store whose browsing data was removed.
	Cleared []string
	// FailClear makes RemoveForCookieStore fail for the given cookie stores.
	FailClear map[string]error
	// FailHide makes HideTabs fail.
	FailHide error

	failQuery error
}

// New returns an empty browser with the default cookie store only.
func New() *Host {
	return &Host{
		windows:         make(map[int]*types.Window),
		events:          make(chan browser.Event, 1024),
		nextTabID:       1,
		nextWindowID:    1,
		nextUserContext: 1,
		clock:           1_700_000_000_000,
	}
}

var _ browser.Host = (*Host)(nil)

func (h *Host) emit(ev browser.Event) {
	select {
	case h.events <- ev:
	default:
	}
}

// Events implements browser.Host.
func (h *Host) Events() <-chan browser.Event { return h.events }

// NativeGroups implements browser.Host.
func (h *Host) NativeGroups() browser.TabGroups {
	if h.Groups == nil {
		return nil
	}
	return h.Groups
}

// DrainEvents discards pending events.
func (h *Host) DrainEvents() {
	for {
		select {
		case <-h.events:
		default:
			return
		}
	}
}

// AddWindow opens an empty window and returns its id.
func (h *Host) AddWindow(incognito bool) int {
	h.mu.Lock()
	id := h.nextWindowID
	h.nextWindowID++
	h.windows[id] = &types.Window{ID: id, Incognito: incognito, Tabs: []types.Tab{}}
	w := cloneWindow(*h.windows[id])
	h.mu.Unlock()
	h.emit(browser.WindowCreated{Window: w})
	return id
}

// AddWindowWithoutTabs opens a window already holding one default
// container tab per url. Like Firefox for restored windows, it reports a
// WindowCreated without the tab list and no TabCreated.
func (h *Host) AddWindowWithoutTabs(incognito bool, urls ...string) int {
	h.mu.Lock()
	id := h.nextWindowID
	h.nextWindowID++
	w := &types.Window{ID: id, Incognito: incognito, Tabs: []types.Tab{}}
	for i, u := range urls {
		h.clock++
		w.Tabs = append(w.Tabs, types.Tab{
			ID:            h.nextTabID,
			URL:           u,
			WindowID:      id,
			Index:         i,
			CookieStoreID: "firefox-default",
			Incognito:     incognito,
			LastAccessed:  h.clock,
			GroupID:       types.NoGroup,
		})
		h.nextTabID++
	}
	h.windows[id] = w
	h.mu.Unlock()
	h.emit(browser.WindowCreated{Window: types.Window{ID: id, Incognito: incognito}})
	return id
}

// Navigate loads url in a tab and reports the update.
func (h *Host) Navigate(tabID int, url string) {
	h.mu.Lock()
	w, i := h.findTab(tabID)
	if w == nil {
		h.mu.Unlock()
		return
	}
	w.Tabs[i].URL = url
	tab := w.Tabs[i]
	h.mu.Unlock()
	h.emit(browser.TabUpdated{TabID: tabID, Tab: tab})
}

// TabOption customises AddTab.
type TabOption func(*types.Tab)

func Pinned() TabOption          { return func(t *types.Tab) { t.Pinned = true } }
func Active() TabOption          { return func(t *types.Tab) { t.Active = true } }
func Hidden() TabOption          { return func(t *types.Tab) { t.Hidden = true } }
func Title(s string) TabOption   { return func(t *types.Tab) { t.Title = s } }
func LastAccessed(ms int64) TabOption {
	return func(t *types.Tab) { t.LastAccessed = ms }
}

// AddTab appends a tab to a window.
func (h *Host) AddTab(windowID int, url, cookieStoreID string, opts ...TabOption) types.Tab {
	h.mu.Lock()
	w, ok := h.windows[windowID]
	if !ok {
		h.mu.Unlock()
		panic(fmt.Sprintf("browsertest: no window %d", windowID))
	}
	h.clock++
	tab := types.Tab{
		ID:            h.nextTabID,
		URL:           url,
		WindowID:      windowID,
		Index:         len(w.Tabs),
		CookieStoreID: cookieStoreID,
		Incognito:     w.Incognito,
		LastAccessed:  h.clock,
		GroupID:       types.NoGroup,
	}
	h.nextTabID++
	for _, o := range opts {
		o(&tab)
	}
	if tab.Active {
		for i := range w.Tabs {
			w.Tabs[i].Active = false
		}
	}
	w.Tabs = append(w.Tabs, tab)
	h.mu.Unlock()
	h.emit(browser.TabCreated{Tab: tab})
	return tab
}

// AddContainer defines a new container.
func (h *Host) AddContainer(name, color, icon string) types.Container {
	c, _ := h.CreateContainer(context.Background(), types.ContainerDetails{Name: name, Color: color, Icon: icon})
	return c
}

// Tab returns the current state of a tab.
func (h *Host) Tab(id int) (types.Tab, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, i := h.findTab(id)
	if w == nil {
		return types.Tab{}, false
	}
	return w.Tabs[i], true
}

// ActiveTabID returns the active tab of a window, or 0.
func (h *Host) ActiveTabID(windowID int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	w := h.windows[windowID]
	if w == nil {
		return 0
	}
	for _, t := range w.Tabs {
		if t.Active {
			return t.ID
		}
	}
	return 0
}

// WindowTabs returns the tabs of a window in index order.
func (h *Host) WindowTabs(windowID int) []types.Tab {
	h.mu.Lock()
	defer h.mu.Unlock()
	w := h.windows[windowID]
	if w == nil {
		return nil
	}
	return append([]types.Tab(nil), w.Tabs...)
}

func (h *Host) findTab(id int) (*types.Window, int) {
	for _, w := range h.windows {
		for i := range w.Tabs {
			if w.Tabs[i].ID == id {
				return w, i
			}
		}
	}
	return nil, -1
}

func renumber(w *types.Window) {
	for i := range w.Tabs {
		w.Tabs[i].Index = i
	}
}

func cloneWindow(w types.Window) types.Window {
	w.Tabs = append([]types.Tab(nil), w.Tabs...)
	return w
}

// --- browser.Tabs ---

// FailQueryTabs makes QueryTabs fail with err until called again with nil.
func (h *Host) FailQueryTabs(err error) {
	h.mu.Lock()
	h.failQuery = err
	h.mu.Unlock()
}

func (h *Host) QueryTabs(_ context.Context, q browser.TabQuery) ([]types.Tab, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failQuery != nil {
		return nil, h.failQuery
	}
	var out []types.Tab
	for _, id := range h.windowIDs() {
		if q.WindowID != 0 && q.WindowID != id {
			continue
		}
		for _, t := range h.windows[id].Tabs {
			if q.CookieStoreID != "" && t.CookieStoreID != q.CookieStoreID {
				continue
			}
			if q.Hidden != nil && t.Hidden != *q.Hidden {
				continue
			}
			out = append(out, t)
		}
	}
	return out, nil
}

func (h *Host) GetTab(_ context.Context, tabID int) (types.Tab, error) {
	t, ok := h.Tab(tabID)
	if !ok {
		return types.Tab{}, fmt.Errorf("tab %d: %w", tabID, browser.ErrNotFound)
	}
	return t, nil
}

func (h *Host) CreateTab(_ context.Context, opts browser.CreateTabOptions) (types.Tab, error) {
	h.mu.Lock()
	w, ok := h.windows[opts.WindowID]
	if !ok {
		h.mu.Unlock()
		return types.Tab{}, fmt.Errorf("window %d: %w", opts.WindowID, browser.ErrNotFound)
	}
	cookieStore := opts.CookieStoreID
	if cookieStore == "" {
		cookieStore = "firefox-default"
	}
	h.clock++
	tab := types.Tab{
		ID:            h.nextTabID,
		URL:           opts.URL,
		WindowID:      w.ID,
		CookieStoreID: cookieStore,
		Incognito:     w.Incognito,
		LastAccessed:  h.clock,
		GroupID:       types.NoGroup,
	}
	h.nextTabID++
	pos := len(w.Tabs)
	if opts.Index != nil && *opts.Index >= 0 && *opts.Index < pos {
		pos = *opts.Index
	}
	w.Tabs = append(w.Tabs, types.Tab{})
	copy(w.Tabs[pos+1:], w.Tabs[pos:])
	w.Tabs[pos] = tab
	renumber(w)
	tab = w.Tabs[pos]
	h.mu.Unlock()
	h.emit(browser.TabCreated{Tab: tab})
	if opts.Active {
		if err := h.ActivateTab(context.Background(), tab.ID); err != nil {
			return types.Tab{}, err
		}
		tab.Active = true
	}
	return tab, nil
}

func (h *Host) RemoveTabs(_ context.Context, tabIDs []int) error {
	for _, id := range tabIDs {
		h.mu.Lock()
		w, i := h.findTab(id)
		if w == nil {
			h.mu.Unlock()
			return fmt.Errorf("tab %d: %w", id, browser.ErrNotFound)
		}
		w.Tabs = append(w.Tabs[:i], w.Tabs[i+1:]...)
		renumber(w)
		windowID := w.ID
		h.mu.Unlock()
		h.emit(browser.TabRemoved{TabID: id, WindowID: windowID})
	}
	return nil
}

func (h *Host) ActivateTab(_ context.Context, tabID int) error {
	h.mu.Lock()
	w, i := h.findTab(tabID)
	if w == nil {
		h.mu.Unlock()
		return fmt.Errorf("tab %d: %w", tabID, browser.ErrNotFound)
	}
	prev := 0
	for j := range w.Tabs {
		if w.Tabs[j].Active {
			prev = w.Tabs[j].ID
		}
		w.Tabs[j].Active = false
	}
	h.clock++
	w.Tabs[i].Active = true
	w.Tabs[i].LastAccessed = h.clock
	windowID := w.ID
	h.mu.Unlock()
	h.emit(browser.TabActivated{TabID: tabID, PreviousTabID: prev, WindowID: windowID})
	return nil
}

func (h *Host) HideTabs(ctx context.Context, tabIDs []int) error {
	if h.FailHide != nil {
		return h.FailHide
	}
	for _, id := range tabIDs {
		h.mu.Lock()
		w, i := h.findTab(id)
		if w != nil && w.Tabs[i].Active {
			h.mu.Unlock()
			return fmt.Errorf("tab %d is active and cannot be hidden", id)
		}
		h.mu.Unlock()
	}
	return h.setHidden(tabIDs, true)
}

func (h *Host) ShowTabs(_ context.Context, tabIDs []int) error {
	return h.setHidden(tabIDs, false)
}

func (h *Host) setHidden(tabIDs []int, hidden bool) error {
	for _, id := range tabIDs {
		h.mu.Lock()
		w, i := h.findTab(id)
		if w == nil {
			h.mu.Unlock()
			continue
		}
		w.Tabs[i].Hidden = hidden
		tab := w.Tabs[i]
		h.mu.Unlock()
		h.emit(browser.TabUpdated{TabID: id, Tab: tab})
	}
	return nil
}

// MoveTab moves a tab within its window or into another one.
func (h *Host) MoveTab(tabID, windowID, index int) {
	h.mu.Lock()
	w, i := h.findTab(tabID)
	if w == nil {
		h.mu.Unlock()
		return
	}
	tab := w.Tabs[i]
	w.Tabs = append(w.Tabs[:i], w.Tabs[i+1:]...)
	renumber(w)
	dst := h.windows[windowID]
	if index < 0 || index > len(dst.Tabs) {
		index = len(dst.Tabs)
	}
	tab.WindowID = windowID
	dst.Tabs = append(dst.Tabs, types.Tab{})
	copy(dst.Tabs[index+1:], dst.Tabs[index:])
	dst.Tabs[index] = tab
	renumber(dst)
	from := w.ID
	h.mu.Unlock()
	if from == windowID {
		h.emit(browser.TabMoved{TabID: tabID, WindowID: windowID, FromIndex: i, ToIndex: index})
		return
	}
	h.emit(browser.TabAttached{TabID: tabID, NewWindowID: windowID, NewPosition: index})
}

// --- browser.Windows ---

func (h *Host) windowIDs() []int {
	ids := make([]int, 0, len(h.windows))
	for id := range h.windows {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (h *Host) GetAllWindows(_ context.Context, populate bool) ([]types.Window, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []types.Window
	for _, id := range h.windowIDs() {
		w := cloneWindow(*h.windows[id])
		if !populate {
			w.Tabs = nil
		}
		out = append(out, w)
	}
	return out, nil
}

func (h *Host) GetWindow(_ context.Context, windowID int, populate bool) (types.Window, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.windows[windowID]
	if !ok {
		return types.Window{}, fmt.Errorf("window %d: %w", windowID, browser.ErrNotFound)
	}
	out := cloneWindow(*w)
	if !populate {
		out.Tabs = nil
	}
	return out, nil
}

// RemoveWindow closes a window and all its tabs.
func (h *Host) RemoveWindow(windowID int) {
	h.mu.Lock()
	w, ok := h.windows[windowID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.windows, windowID)
	tabs := w.Tabs
	h.mu.Unlock()
	for _, t := range tabs {
		h.emit(browser.TabRemoved{TabID: t.ID, WindowID: windowID, IsWindowClosing: true})
	}
	h.emit(browser.WindowRemoved{WindowID: windowID})
}

// --- browser.Containers ---

func (h *Host) QueryContainers(context.Context) ([]types.Container, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]types.Container(nil), h.containers...), nil
}

func (h *Host) GetContainer(_ context.Context, cookieStoreID string) (types.Container, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.containers {
		if c.CookieStoreID == cookieStoreID {
			return c, nil
		}
	}
	return types.Container{}, fmt.Errorf("container %s: %w", cookieStoreID, browser.ErrNotFound)
}

func (h *Host) CreateContainer(_ context.Context, d types.ContainerDetails) (types.Container, error) {
	h.mu.Lock()
	c := types.Container{
		CookieStoreID: "firefox-container-" + strconv.Itoa(h.nextUserContext),
		Name:          d.Name,
		Color:         d.Color,
		Icon:          d.Icon,
		IconURL:       "resource://usercontext-content/" + d.Icon + ".svg",
	}
	h.nextUserContext++
	h.containers = append(h.containers, c)
	h.mu.Unlock()
	h.emit(browser.ContainerCreated{Container: c})
	return c, nil
}

// UpdateContainer renames or recolours a container.
func (h *Host) UpdateContainer(c types.Container) {
	h.mu.Lock()
	for i := range h.containers {
		if h.containers[i].CookieStoreID == c.CookieStoreID {
			h.containers[i] = c
		}
	}
	h.mu.Unlock()
	h.emit(browser.ContainerUpdated{Container: c})
}

func (h *Host) RemoveContainer(_ context.Context, cookieStoreID string) error {
	h.mu.Lock()
	var removed *types.Container
	for i, c := range h.containers {
		if c.CookieStoreID == cookieStoreID {
			removed = &c
			h.containers = append(h.containers[:i], h.containers[i+1:]...)
			break
		}
	}
	h.mu.Unlock()
	if removed == nil {
		return fmt.Errorf("container %s: %w", cookieStoreID, browser.ErrNotFound)
	}
	h.emit(browser.ContainerRemoved{Container: *removed})
	return nil
}

// --- browser.BrowsingData / browser.Extension ---

func (h *Host) RemoveForCookieStore(_ context.Context, cookieStoreID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.FailClear[cookieStoreID]; err != nil {
		return err
	}
	h.Cleared = append(h.Cleared, cookieStoreID)
	return nil
}

// ClearedStores returns a sorted copy of Cleared.
func (h *Host) ClearedStores() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := append([]string(nil), h.Cleared...)
	sort.Strings(out)
	return out
}

func (h *Host) IsAllowedIncognitoAccess(context.Context) (bool, error) {
	return h.IncognitoAllowed, nil
}

// Groups is a fake native tab grouping backend.
type Groups struct {
	host   *Host
	mu     sync.Mutex
	nextID int
	// Collapsed records the collapsed flag of each group.
	Collapsed map[int]bool
}

// EnableGroups installs a native grouping backend on h.
func (h *Host) EnableGroups() *Groups {
	g := &Groups{host: h, nextID: 1, Collapsed: make(map[int]bool)}
	h.Groups = g
	return g
}

func (g *Groups) GroupTabs(_ context.Context, windowID int, tabIDs []int) (int, error) {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.Collapsed[id] = false
	g.mu.Unlock()
	g.host.setGroup(tabIDs, id)
	return id, nil
}

func (g *Groups) UpdateGroup(_ context.Context, groupID int, u browser.GroupUpdate) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.Collapsed[groupID]; !ok {
		return fmt.Errorf("group %d: %w", groupID, browser.ErrNotFound)
	}
	if u.Collapsed != nil {
		g.Collapsed[groupID] = *u.Collapsed
	}
	return nil
}

func (g *Groups) UngroupTabs(_ context.Context, tabIDs []int) error {
	g.host.setGroup(tabIDs, types.NoGroup)
	return nil
}

func (h *Host) setGroup(tabIDs []int, groupID int) {
	for _, id := range tabIDs {
		h.mu.Lock()
		w, i := h.findTab(id)
		if w == nil {
			h.mu.Unlock()
			continue
		}
		w.Tabs[i].GroupID = groupID
		tab := w.Tabs[i]
		h.mu.Unlock()
		h.emit(browser.TabUpdated{TabID: id, Tab: tab})
	}
}
