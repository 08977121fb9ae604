package state

import (
	"slices"
	"sort"

	"github.com/lotas/tabgruppen/internal/directory"
	"github.com/lotas/tabgruppen/internal/tabgroup"
	"github.com/lotas/tabgruppen/internal/tags"
	"github.com/lotas/tabgruppen/internal/types"
)

// working is the mutable copy owned by the store's Run goroutine.
type working struct {
	windows          map[int]*types.Window // tabs in index order
	containers       []types.Container
	incognitoAllowed bool
	dirRaw           directory.Storage
	dir              *directory.Snapshot
	tags             *tags.Snapshot
	tagIDs           map[int]int
	sites            map[string]string // url -> registrable domain
}

func newWorking() *working {
	return &working{
		windows: make(map[int]*types.Window),
		dirRaw:  directory.Storage{},
		dir:     directory.NewSnapshot(nil),
		tags:    tags.NewSnapshot(nil),
		tagIDs:  make(map[int]int),
		sites:   make(map[string]string),
	}
}

func renumber(w *types.Window) {
	for i := range w.Tabs {
		w.Tabs[i].Index = i
	}
}

func (wk *working) window(id int) *types.Window {
	w, ok := wk.windows[id]
	if !ok {
		w = &types.Window{ID: id, Tabs: []types.Tab{}}
		wk.windows[id] = w
	}
	return w
}

func (wk *working) findTab(tabID int) (*types.Window, int) {
	for _, w := range wk.windows {
		for i := range w.Tabs {
			if w.Tabs[i].ID == tabID {
				return w, i
			}
		}
	}
	return nil, -1
}

func insertAt(w *types.Window, t types.Tab, pos int) {
	if pos < 0 || pos > len(w.Tabs) {
		pos = len(w.Tabs)
	}
	t.WindowID = w.ID
	w.Tabs = slices.Insert(w.Tabs, pos, t)
	renumber(w)
}

// insertTab adds a tab at its index, replacing any stale copy.
func (wk *working) insertTab(t types.Tab) {
	wk.detach(t.ID)
	w := wk.window(t.WindowID)
	if t.Incognito {
		w.Incognito = true
	}
	insertAt(w, t, t.Index)
}

// detach takes a tab out of its window, renumbering the rest.
func (wk *working) detach(tabID int) (types.Tab, bool) {
	w, i := wk.findTab(tabID)
	if w == nil {
		return types.Tab{}, false
	}
	t := w.Tabs[i]
	w.Tabs = slices.Delete(w.Tabs, i, i+1)
	renumber(w)
	return t, true
}

func (wk *working) removeTab(tabID int) {
	wk.detach(tabID)
	delete(wk.tagIDs, tabID)
}

// updateTab merges the new fields of a tab in place. Unknown tabs are
// inserted.
func (wk *working) updateTab(t types.Tab) {
	w, i := wk.findTab(t.ID)
	if w == nil {
		wk.insertTab(t)
		return
	}
	t.WindowID = w.ID
	t.Index = w.Tabs[i].Index
	w.Tabs[i] = t
}

// moveTab reinserts a tab at toIndex of windowID, which may be another
// window. Both windows are renumbered.
func (wk *working) moveTab(tabID, windowID, toIndex int) {
	t, ok := wk.detach(tabID)
	if !ok {
		return
	}
	insertAt(wk.window(windowID), t, toIndex)
}

func (wk *working) activateTab(windowID, tabID, previousTabID int) {
	w, ok := wk.windows[windowID]
	if !ok {
		return
	}
	for i := range w.Tabs {
		if w.Tabs[i].ID == previousTabID {
			w.Tabs[i].Active = false
		}
	}
	for i := range w.Tabs {
		w.Tabs[i].Active = false
	}
	for i := range w.Tabs {
		if w.Tabs[i].ID == tabID {
			w.Tabs[i].Active = true
		}
	}
}

func (wk *working) addWindow(w types.Window) {
	tabs := slices.Clone(w.Tabs)
	if tabs == nil {
		tabs = []types.Tab{}
	}
	sort.SliceStable(tabs, func(i, j int) bool { return tabs[i].Index < tabs[j].Index })
	w.Tabs = tabs
	renumber(&w)
	delete(wk.windows, w.ID)
	for _, t := range w.Tabs {
		wk.detach(t.ID)
	}
	wk.windows[w.ID] = &w
}

func (wk *working) removeWindow(id int) {
	if w, ok := wk.windows[id]; ok {
		for _, t := range w.Tabs {
			delete(wk.tagIDs, t.ID)
		}
	}
	delete(wk.windows, id)
}

func (wk *working) setDirectory(raw directory.Storage) {
	wk.dirRaw = raw.Clone()
	if wk.dirRaw == nil {
		wk.dirRaw = directory.Storage{}
	}
	wk.dir = directory.NewSnapshot(wk.dirRaw)
}

// addContainer appends a container and places it ungrouped at the root.
func (wk *working) addContainer(c types.Container) {
	for i := range wk.containers {
		if wk.containers[i].CookieStoreID == c.CookieStoreID {
			wk.containers[i] = c
			return
		}
	}
	wk.containers = append(wk.containers, c)
	raw := wk.dirRaw.Clone()
	root, ok := raw[tabgroup.Root]
	if !ok {
		root = directory.Supergroup{Members: []tabgroup.ID{}}
	}
	if !wk.dir.HasDescendant(tabgroup.Root, c.CookieStoreID) {
		root.Members = append(root.Members, c.CookieStoreID)
	}
	raw[tabgroup.Root] = root
	wk.setDirectory(raw)
}

func (wk *working) updateContainer(c types.Container) {
	for i := range wk.containers {
		if wk.containers[i].CookieStoreID == c.CookieStoreID {
			wk.containers[i] = c
		}
	}
}

// removeContainer drops a container and strips it from every supergroup.
func (wk *working) removeContainer(cookieStoreID string) {
	wk.containers = slices.DeleteFunc(wk.containers, func(c types.Container) bool {
		return c.CookieStoreID == cookieStoreID
	})
	raw := wk.dirRaw.Clone()
	for id, sg := range raw {
		sg.Members = slices.DeleteFunc(sg.Members, func(m tabgroup.ID) bool { return m == cookieStoreID })
		raw[id] = sg
	}
	wk.setDirectory(raw)
}

func (wk *working) urls() []string {
	var out []string
	seen := make(map[string]bool)
	for _, w := range wk.windows {
		for _, t := range w.Tabs {
			if !seen[t.URL] {
				seen[t.URL] = true
				out = append(out, t.URL)
			}
		}
	}
	return out
}

func fromNative(t types.Tab) Tab {
	return Tab{
		ID:            t.ID,
		URL:           t.URL,
		Title:         t.Title,
		FavIconURL:    t.FavIconURL,
		WindowID:      t.WindowID,
		Discarded:     t.Discarded,
		Hidden:        t.Hidden,
		Active:        t.Active,
		Pinned:        t.Pinned,
		Index:         t.Index,
		IsSharing:     t.IsSharing,
		LastAccessed:  t.LastAccessed,
		Muted:         t.Muted,
		Audible:       t.Audible,
		CookieStoreID: t.CookieStoreID,
	}
}

func describe(c types.Container) ContainerDescriptor {
	d := ContainerDescriptor{
		CookieStoreID: c.CookieStoreID,
		Name:          c.Name,
		Color:         c.Color,
		ColorCode:     c.ColorCode,
		Icon:          c.Icon,
		IconURL:       c.IconURL,
	}
	if a, err := tabgroup.Parse(c.CookieStoreID); err == nil {
		d.UserContextID = a.UserContextID
		d.Private = a.Private
	}
	return d
}

// Display names of the built-in cookie stores.
var (
	defaultContainer = types.Container{CookieStoreID: tabgroup.DefaultCookieStore, Name: "No Container", Icon: "circle", Color: "toolbar"}
	privateContainer = types.Container{CookieStoreID: tabgroup.PrivateCookieStore, Name: "Private Browsing", Icon: "private", Color: "purple", ColorCode: "#8f00ff"}
)

// derive builds the published state from the working copy.
func (wk *working) derive() *BrowserState {
	st := emptyState()
	st.EnabledInPrivateBrowsing = wk.incognitoAllowed
	st.Supergroups = wk.dirRaw.Clone()
	st.Tags = wk.tags.Value()

	hasPrivate := wk.incognitoAllowed
	for id, w := range wk.windows {
		st.WindowIDs = append(st.WindowIDs, id)
		hasPrivate = hasPrivate || w.Incognito
	}
	sort.Ints(st.WindowIDs)

	for _, id := range st.WindowIDs {
		w := wk.windows[id]
		ws := WindowState{
			ID:                        id,
			IsPrivate:                 w.Incognito,
			Tabs:                      make(map[int]Tab, len(w.Tabs)),
			ActiveTabIDs:              []int{},
			PinnedTabIDs:              []int{},
			ActiveContainers:          []tabgroup.ID{},
			UnpinnedTabIDsByContainer: map[tabgroup.ID][]int{},
		}
		seen := make(map[string]bool)
		for _, nt := range w.Tabs {
			t := fromNative(nt)
			t.WindowID = id
			ws.Tabs[t.ID] = t
			if t.Active {
				ws.ActiveTabIDs = append(ws.ActiveTabIDs, t.ID)
			}
			if t.Pinned {
				ws.PinnedTabIDs = append(ws.PinnedTabIDs, t.ID)
			} else {
				ws.UnpinnedTabIDsByContainer[t.CookieStoreID] = append(ws.UnpinnedTabIDsByContainer[t.CookieStoreID], t.ID)
			}
			if !seen[t.CookieStoreID] {
				seen[t.CookieStoreID] = true
				ws.ActiveContainers = append(ws.ActiveContainers, t.CookieStoreID)
			}
			st.TabIDsByContainer[t.CookieStoreID] = append(st.TabIDsByContainer[t.CookieStoreID], t.ID)
			if s := wk.sites[t.URL]; s != "" {
				st.TabIDsBySite[s] = append(st.TabIDsBySite[s], t.ID)
			}
			if tag, ok := wk.tagIDs[t.ID]; ok && tag != tags.NoTag {
				st.TagIDsForTabs[t.ID] = tag
			}
		}
		wk.dir.SortContainers(ws.ActiveContainers)
		st.Windows[id] = ws
	}

	pos := make(map[int][2]int)
	for _, ws := range st.Windows {
		for _, t := range ws.Tabs {
			pos[t.ID] = [2]int{t.WindowID, t.Index}
		}
	}
	byPos := func(ids []int) {
		sort.SliceStable(ids, func(i, j int) bool {
			a, b := pos[ids[i]], pos[ids[j]]
			if a[0] != b[0] {
				return a[0] < b[0]
			}
			return a[1] < b[1]
		})
	}
	for _, ws := range st.Windows {
		byPos(ws.ActiveTabIDs)
		byPos(ws.PinnedTabIDs)
		for _, ids := range ws.UnpinnedTabIDsByContainer {
			byPos(ids)
		}
	}
	for _, ids := range st.TabIDsByContainer {
		byPos(ids)
	}
	for _, ids := range st.TabIDsBySite {
		byPos(ids)
	}

	containers := append([]types.Container{defaultContainer}, wk.containers...)
	if hasPrivate {
		containers = append(containers, privateContainer)
	}
	for _, c := range containers {
		st.DisplayedContainers = append(st.DisplayedContainers, describe(c))
	}
	sort.SliceStable(st.DisplayedContainers, func(i, j int) bool {
		return wk.dir.Compare(st.DisplayedContainers[i].CookieStoreID, st.DisplayedContainers[j].CookieStoreID) < 0
	})
	return st
}
