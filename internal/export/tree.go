// Package export renders the tab-group directory and the tabs filed under it.
package export

import (
	"time"

	"github.com/lotas/tabgruppen/internal/state"
	"github.com/lotas/tabgruppen/internal/tabgroup"
)

// Node kinds.
const (
	KindSupergroup = "supergroup"
	KindContainer  = "container"
)

// Document is the exported tree.
type Document struct {
	Profile    string    `json:"profile,omitempty" yaml:"profile,omitempty"`
	ExportedAt time.Time `json:"exported_at" yaml:"exported_at"`
	Groups     []Node    `json:"groups" yaml:"groups"`
	// Unfiled lists containers with open tabs that the directory does not
	// reach, such as the private cookie store.
	Unfiled []Node `json:"unfiled,omitempty" yaml:"unfiled,omitempty"`
}

// Node is a supergroup or a container.
type Node struct {
	ID       tabgroup.ID `json:"id" yaml:"id"`
	Kind     string      `json:"kind" yaml:"kind"`
	Name     string      `json:"name" yaml:"name"`
	Color    string      `json:"color,omitempty" yaml:"color,omitempty"`
	Tabs     []Tab       `json:"tabs,omitempty" yaml:"tabs,omitempty"`
	Children []Node      `json:"children,omitempty" yaml:"children,omitempty"`
}

// Tab is one exported tab.
type Tab struct {
	ID           int       `json:"id" yaml:"id"`
	Title        string    `json:"title" yaml:"title"`
	URL          string    `json:"url" yaml:"url"`
	Site         string    `json:"site,omitempty" yaml:"site,omitempty"`
	WindowID     int       `json:"window_id" yaml:"window_id"`
	Pinned       bool      `json:"pinned,omitempty" yaml:"pinned,omitempty"`
	Hidden       bool      `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Tag          string    `json:"tag,omitempty" yaml:"tag,omitempty"`
	LastAccessed time.Time `json:"last_accessed" yaml:"last_accessed"`
}

// TabCount counts the tabs of n and everything below it.
func (n Node) TabCount() int {
	c := len(n.Tabs)
	for _, ch := range n.Children {
		c += ch.TabCount()
	}
	return c
}

// Build walks the directory of st from the root.
func Build(st *state.BrowserState, profile string) Document {
	b := newBuilder(st)
	doc := Document{
		Profile:    profile,
		ExportedAt: time.Now(),
		Groups:     b.children(tabgroup.Root),
	}
	if doc.Groups == nil {
		doc.Groups = []Node{}
	}
	for _, t := range st.AllTabs() {
		cs := t.CookieStoreID
		if b.seen[cs] {
			continue
		}
		b.seen[cs] = true
		doc.Unfiled = append(doc.Unfiled, b.container(cs))
	}
	return doc
}

type builder struct {
	st    *state.BrowserState
	tabs  map[string][]state.Tab
	sites map[int]string
	seen  map[tabgroup.ID]bool
}

func newBuilder(st *state.BrowserState) *builder {
	b := &builder{
		st:    st,
		tabs:  make(map[string][]state.Tab),
		sites: make(map[int]string),
		seen:  make(map[tabgroup.ID]bool),
	}
	for _, t := range st.AllTabs() {
		b.tabs[t.CookieStoreID] = append(b.tabs[t.CookieStoreID], t)
	}
	for site, ids := range st.TabIDsBySite {
		for _, id := range ids {
			b.sites[id] = site
		}
	}
	return b
}

func (b *builder) children(id tabgroup.ID) []Node {
	sg, ok := b.st.Supergroups[id]
	if !ok {
		return nil
	}
	b.seen[id] = true
	var out []Node
	for _, m := range sg.Members {
		if b.seen[m] {
			continue
		}
		if tabgroup.IsCookieStore(m) {
			b.seen[m] = true
			out = append(out, b.container(m))
			continue
		}
		child, ok := b.st.Supergroups[m]
		if !ok {
			continue
		}
		out = append(out, Node{
			ID:       m,
			Kind:     KindSupergroup,
			Name:     child.Name,
			Children: b.children(m),
		})
	}
	return out
}

func (b *builder) container(cs string) Node {
	n := Node{ID: cs, Kind: KindContainer, Name: cs}
	if c, ok := b.st.Container(cs); ok {
		n.Name = c.Name
		n.Color = c.Color
	}
	for _, t := range b.tabs[cs] {
		entry := Tab{
			ID:           t.ID,
			Title:        t.Title,
			URL:          t.URL,
			Site:         b.sites[t.ID],
			WindowID:     t.WindowID,
			Pinned:       t.Pinned,
			Hidden:       t.Hidden,
			LastAccessed: time.UnixMilli(t.LastAccessed),
		}
		if tagID, ok := b.st.TagIDsForTabs[t.ID]; ok {
			entry.Tag = b.st.Tags[tagID].Name
		}
		n.Tabs = append(n.Tabs, entry)
	}
	return n
}
