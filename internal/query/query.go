// Package query filters the tabs of a browser state.
package query

import (
	"github.com/lotas/tabgruppen/internal/directory"
	"github.com/lotas/tabgruppen/internal/state"
	"github.com/lotas/tabgruppen/internal/tabgroup"
)

// Filter narrows a tab set. Filters receive the state so they can consult
// its directory and site buckets.
type Filter func(st *state.BrowserState) func(t state.Tab) bool

// InWindow keeps tabs of one window.
func InWindow(windowID int) Filter {
	return func(*state.BrowserState) func(state.Tab) bool {
		return func(t state.Tab) bool { return t.WindowID == windowID }
	}
}

// InTabGroup keeps tabs whose container is id or, when id names a
// supergroup, any container nested below it.
func InTabGroup(id tabgroup.ID) Filter {
	return func(st *state.BrowserState) func(state.Tab) bool {
		var stores []string
		if tabgroup.IsSupergroup(id) {
			stores = directory.NewSnapshot(st.Supergroups).ChildContainers(id)
		} else {
			stores = []string{id}
		}
		set := make(map[string]bool, len(stores))
		for _, cs := range stores {
			set[cs] = true
		}
		return func(t state.Tab) bool { return set[t.CookieStoreID] }
	}
}

// Pinned keeps tabs whose pinned flag equals pinned.
func Pinned(pinned bool) Filter {
	return func(*state.BrowserState) func(state.Tab) bool {
		return func(t state.Tab) bool { return t.Pinned == pinned }
	}
}

// OnSite keeps tabs whose registrable domain is domain.
func OnSite(domain string) Filter {
	return func(st *state.BrowserState) func(state.Tab) bool {
		set := make(map[int]bool)
		for _, id := range st.TabIDsBySite[domain] {
			set[id] = true
		}
		return func(t state.Tab) bool { return set[t.ID] }
	}
}

// Hidden keeps tabs whose hidden flag equals hidden.
func Hidden(hidden bool) Filter {
	return func(*state.BrowserState) func(state.Tab) bool {
		return func(t state.Tab) bool { return t.Hidden == hidden }
	}
}

// Tabs returns the tabs of st matching every filter, ordered by
// (windowId, index). No filters returns every tab.
func Tabs(st *state.BrowserState, filters ...Filter) []state.Tab {
	preds := make([]func(state.Tab) bool, 0, len(filters))
	for _, f := range filters {
		preds = append(preds, f(st))
	}
	var out []state.Tab
outer:
	for _, t := range st.AllTabs() {
		for _, p := range preds {
			if !p(t) {
				continue outer
			}
		}
		out = append(out, t)
	}
	return out
}

// IDs returns the ids of tabs.
func IDs(tabs []state.Tab) []int {
	out := make([]int, len(tabs))
	for i, t := range tabs {
		out[i] = t.ID
	}
	return out
}

// Source yields the current browser state.
type Source interface {
	State() *state.BrowserState
}

// Service runs queries against a live store.
type Service struct {
	src Source
}

// NewService returns a Service over src.
func NewService(src Source) *Service {
	return &Service{src: src}
}

// Tabs runs Tabs against the current state.
func (s *Service) Tabs(filters ...Filter) []state.Tab {
	return Tabs(s.src.State(), filters...)
}
