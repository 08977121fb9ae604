package state

import (
	"maps"
	"slices"
	"sort"

	"github.com/lotas/tabgruppen/internal/directory"
	"github.com/lotas/tabgruppen/internal/tabgroup"
	"github.com/lotas/tabgruppen/internal/tags"
)

// Tab is the published view of a browser tab.
type Tab struct {
	ID            int    `json:"id"`
	URL           string `json:"url"`
	Title         string `json:"title"`
	FavIconURL    string `json:"favIconUrl"`
	WindowID      int    `json:"windowId"`
	Discarded     bool   `json:"discarded"`
	Hidden        bool   `json:"hidden"`
	Active        bool   `json:"active"`
	Pinned        bool   `json:"pinned"`
	Index         int    `json:"index"`
	IsSharing     bool   `json:"isSharing"`
	LastAccessed  int64  `json:"lastAccessed"`
	Muted         bool   `json:"muted"`
	Audible       bool   `json:"audible"`
	CookieStoreID string `json:"cookieStoreId"`
}

// WindowState is the published view of one window.
type WindowState struct {
	ID                        int                    `json:"id"`
	IsPrivate                 bool                   `json:"isPrivate"`
	Tabs                      map[int]Tab            `json:"tabs"`
	ActiveTabIDs              []int                  `json:"activeTabIds"`
	PinnedTabIDs              []int                  `json:"pinnedTabIds"`
	ActiveContainers          []tabgroup.ID          `json:"activeContainers"`
	UnpinnedTabIDsByContainer map[tabgroup.ID][]int `json:"unpinnedTabIdsByContainer"`
}

// ContainerDescriptor describes a container for display.
type ContainerDescriptor struct {
	CookieStoreID string `json:"cookieStoreId"`
	UserContextID int    `json:"userContextId"`
	Name          string `json:"name"`
	Color         string `json:"color"`
	ColorCode     string `json:"colorCode"`
	Icon          string `json:"icon"`
	IconURL       string `json:"iconUrl"`
	Private       bool   `json:"private"`
}

// BrowserState is the denormalized, serializable view of every window,
// tab, container, supergroup and tag. Every tab id bucket is ordered by
// (windowId, index).
type BrowserState struct {
	WindowIDs                []int                 `json:"windowIds"`
	Windows                  map[int]WindowState   `json:"windows"`
	DisplayedContainers      []ContainerDescriptor `json:"displayedContainers"`
	Tags                     tags.Directory        `json:"tags"`
	TagIDsForTabs            map[int]int           `json:"tagIdsForTabs"`
	Supergroups              directory.Storage     `json:"supergroups"`
	TabIDsByContainer        map[tabgroup.ID][]int `json:"tabIdsByContainer"`
	TabIDsBySite             map[string][]int      `json:"tabIdsBySite"`
	EnabledInPrivateBrowsing bool                  `json:"enabledInPrivateBrowsing"`
}

func emptyState() *BrowserState {
	return &BrowserState{
		WindowIDs:           []int{},
		Windows:             map[int]WindowState{},
		DisplayedContainers: []ContainerDescriptor{},
		Tags:                tags.Directory{},
		TagIDsForTabs:       map[int]int{},
		Supergroups:         directory.Storage{},
		TabIDsByContainer:   map[tabgroup.ID][]int{},
		TabIDsBySite:        map[string][]int{},
	}
}

// Clone returns a deep copy of b.
func (b *BrowserState) Clone() *BrowserState {
	out := &BrowserState{
		WindowIDs:                slices.Clone(b.WindowIDs),
		Windows:                  make(map[int]WindowState, len(b.Windows)),
		DisplayedContainers:      slices.Clone(b.DisplayedContainers),
		Tags:                     b.Tags.Clone(),
		TagIDsForTabs:            maps.Clone(b.TagIDsForTabs),
		Supergroups:              b.Supergroups.Clone(),
		TabIDsByContainer:        cloneBuckets(b.TabIDsByContainer),
		TabIDsBySite:             cloneBuckets(b.TabIDsBySite),
		EnabledInPrivateBrowsing: b.EnabledInPrivateBrowsing,
	}
	for id, w := range b.Windows {
		out.Windows[id] = WindowState{
			ID:                        w.ID,
			IsPrivate:                 w.IsPrivate,
			Tabs:                      maps.Clone(w.Tabs),
			ActiveTabIDs:              slices.Clone(w.ActiveTabIDs),
			PinnedTabIDs:              slices.Clone(w.PinnedTabIDs),
			ActiveContainers:          slices.Clone(w.ActiveContainers),
			UnpinnedTabIDsByContainer: cloneBuckets(w.UnpinnedTabIDsByContainer),
		}
	}
	return out
}

func cloneBuckets[K comparable](m map[K][]int) map[K][]int {
	if m == nil {
		return nil
	}
	out := make(map[K][]int, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}

// Tab looks a tab up across all windows.
func (b *BrowserState) Tab(id int) (Tab, bool) {
	for _, w := range b.Windows {
		if t, ok := w.Tabs[id]; ok {
			return t, true
		}
	}
	return Tab{}, false
}

// AllTabs returns every tab ordered by (windowId, index).
func (b *BrowserState) AllTabs() []Tab {
	var out []Tab
	for _, id := range b.WindowIDs {
		for _, t := range b.Windows[id].Tabs {
			out = append(out, t)
		}
	}
	sortTabs(out)
	return out
}

// Directory returns a snapshot over the published supergroups.
func (b *BrowserState) Directory() *directory.Snapshot {
	return directory.NewSnapshot(b.Supergroups)
}

// Container returns the descriptor of a displayed container.
func (b *BrowserState) Container(cookieStoreID string) (ContainerDescriptor, bool) {
	for _, c := range b.DisplayedContainers {
		if c.CookieStoreID == cookieStoreID {
			return c, true
		}
	}
	return ContainerDescriptor{}, false
}

func sortTabs(tabs []Tab) {
	sort.Slice(tabs, func(i, j int) bool {
		if tabs[i].WindowID != tabs[j].WindowID {
			return tabs[i].WindowID < tabs[j].WindowID
		}
		return tabs[i].Index < tabs[j].Index
	})
}
