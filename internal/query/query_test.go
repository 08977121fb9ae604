package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lotas/tabgruppen/internal/directory"
	"github.com/lotas/tabgruppen/internal/state"
	"github.com/lotas/tabgruppen/internal/tabgroup"
)

const (
	work = "firefox-container-1"
	shop = "firefox-container-2"
	bank = "firefox-container-3"
)

func fixture() *state.BrowserState {
	tabs := []state.Tab{
		{ID: 1, WindowID: 1, Index: 0, CookieStoreID: work, Pinned: true},
		{ID: 2, WindowID: 1, Index: 1, CookieStoreID: shop},
		{ID: 3, WindowID: 1, Index: 2, CookieStoreID: work},
		{ID: 4, WindowID: 2, Index: 0, CookieStoreID: bank, Hidden: true},
		{ID: 5, WindowID: 2, Index: 1, CookieStoreID: tabgroup.DefaultCookieStore},
	}
	st := &state.BrowserState{
		WindowIDs: []int{1, 2},
		Windows:   map[int]state.WindowState{},
		Supergroups: directory.Storage{
			tabgroup.Root:  {Members: []tabgroup.ID{"supergroup-1", tabgroup.DefaultCookieStore, work}},
			"supergroup-1": {SupergroupID: 1, Members: []tabgroup.ID{"supergroup-2", shop}},
			"supergroup-2": {SupergroupID: 2, Members: []tabgroup.ID{bank}},
		},
		TabIDsBySite: map[string][]int{
			"example.com": {1, 4},
			"example.org": {2, 3, 5},
		},
	}
	for _, t := range tabs {
		w, ok := st.Windows[t.WindowID]
		if !ok {
			w = state.WindowState{ID: t.WindowID, Tabs: map[int]state.Tab{}}
		}
		w.Tabs[t.ID] = t
		st.Windows[t.WindowID] = w
	}
	return st
}

func TestNoFiltersReturnsEverythingInOrder(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3, 4, 5}, IDs(Tabs(fixture())))
}

func TestSingleFilters(t *testing.T) {
	st := fixture()
	tests := []struct {
		name   string
		filter Filter
		want   []int
	}{
		{"window", InWindow(2), []int{4, 5}},
		{"container", InTabGroup(work), []int{1, 3}},
		{"supergroup expands recursively", InTabGroup("supergroup-1"), []int{2, 4}},
		{"nested supergroup", InTabGroup("supergroup-2"), []int{4}},
		{"root is everything in the directory", InTabGroup(tabgroup.Root), []int{1, 2, 3, 4, 5}},
		{"pinned", Pinned(true), []int{1}},
		{"unpinned", Pinned(false), []int{2, 3, 4, 5}},
		{"site", OnSite("example.com"), []int{1, 4}},
		{"unknown site", OnSite("nowhere.test"), []int{}},
		{"hidden", Hidden(true), []int{4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IDs(Tabs(st, tt.filter)))
		})
	}
}

func TestFiltersOnlyNarrow(t *testing.T) {
	st := fixture()
	all := IDs(Tabs(st))
	one := IDs(Tabs(st, OnSite("example.org")))
	two := IDs(Tabs(st, OnSite("example.org"), InWindow(1)))
	three := IDs(Tabs(st, OnSite("example.org"), InWindow(1), InTabGroup(work)))

	assert.Subset(t, all, one)
	assert.Subset(t, one, two)
	assert.Subset(t, two, three)
	assert.Equal(t, []int{2, 3, 5}, one)
	assert.Equal(t, []int{2, 3}, two)
	assert.Equal(t, []int{3}, three)
}

type static struct{ st *state.BrowserState }

func (s static) State() *state.BrowserState { return s.st.Clone() }

func TestService(t *testing.T) {
	svc := NewService(static{fixture()})
	assert.Equal(t, []int{4, 5}, IDs(svc.Tabs(InWindow(2))))
}
