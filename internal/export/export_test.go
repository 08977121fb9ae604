package export

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lotas/tabgruppen/internal/directory"
	"github.com/lotas/tabgruppen/internal/state"
	"github.com/lotas/tabgruppen/internal/tabgroup"
	"github.com/lotas/tabgruppen/internal/tags"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixture() *state.BrowserState {
	day := int64(24 * time.Hour / time.Millisecond)
	tabs := []state.Tab{
		{ID: 1, WindowID: 1, Index: 0, Title: "Go docs", URL: "https://go.dev/doc", CookieStoreID: "firefox-container-1", Pinned: true, LastAccessed: now.UnixMilli() - 3*day},
		{ID: 2, WindowID: 1, Index: 1, Title: "", URL: "https://example.com/a", CookieStoreID: "firefox-container-2", Hidden: true, LastAccessed: now.UnixMilli() - day},
		{ID: 3, WindowID: 1, Index: 2, Title: "Home", URL: "https://example.org", CookieStoreID: tabgroup.DefaultCookieStore, LastAccessed: now.UnixMilli()},
		{ID: 4, WindowID: 2, Index: 0, Title: "Secret", URL: "https://private.example", CookieStoreID: tabgroup.PrivateCookieStore, LastAccessed: now.UnixMilli()},
	}
	st := &state.BrowserState{
		WindowIDs: []int{1, 2},
		Windows:   map[int]state.WindowState{},
		DisplayedContainers: []state.ContainerDescriptor{
			{CookieStoreID: tabgroup.DefaultCookieStore, Name: "No Container"},
			{CookieStoreID: "firefox-container-1", Name: "Work", Color: "blue"},
			{CookieStoreID: "firefox-container-2", Name: "Shopping", Color: "pink"},
			{CookieStoreID: tabgroup.PrivateCookieStore, Name: "Private Browsing", Private: true},
		},
		Supergroups: directory.Storage{
			tabgroup.Root:  {Members: []tabgroup.ID{"supergroup-1", tabgroup.DefaultCookieStore}},
			"supergroup-1": {SupergroupID: 1, Name: "Projects", Members: []tabgroup.ID{"firefox-container-1", "supergroup-2"}},
			"supergroup-2": {SupergroupID: 2, Name: "Errands", Members: []tabgroup.ID{"firefox-container-2"}},
		},
		Tags:          tags.Directory{1: {TagID: 1, Name: "later"}},
		TagIDsForTabs: map[int]int{2: 1},
		TabIDsBySite:  map[string][]int{"go.dev": {1}, "example.com": {2}},
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

func build() Document {
	doc := Build(fixture(), "default")
	doc.ExportedAt = now
	return doc
}

func TestBuildFollowsDirectory(t *testing.T) {
	doc := build()

	if len(doc.Groups) != 2 {
		t.Fatalf("expected 2 top-level nodes, got %d", len(doc.Groups))
	}
	projects := doc.Groups[0]
	if projects.Kind != KindSupergroup || projects.Name != "Projects" {
		t.Errorf("first node = %+v", projects)
	}
	if projects.TabCount() != 2 {
		t.Errorf("Projects tab count = %d, want 2", projects.TabCount())
	}
	errands := projects.Children[1]
	if errands.Name != "Errands" || errands.Children[0].Name != "Shopping" {
		t.Errorf("nested supergroup = %+v", errands)
	}
	shopTab := errands.Children[0].Tabs[0]
	if shopTab.Tag != "later" || shopTab.Site != "example.com" || !shopTab.Hidden {
		t.Errorf("shopping tab = %+v", shopTab)
	}
	if doc.Groups[1].Name != "No Container" {
		t.Errorf("second node = %+v", doc.Groups[1])
	}

	if len(doc.Unfiled) != 1 || doc.Unfiled[0].ID != tabgroup.PrivateCookieStore {
		t.Errorf("unfiled = %+v", doc.Unfiled)
	}
}

func TestBuildEmptyState(t *testing.T) {
	doc := Build(&state.BrowserState{}, "")
	if doc.Groups == nil || len(doc.Groups) != 0 || doc.Unfiled != nil {
		t.Errorf("doc = %+v", doc)
	}
}

func TestJSON(t *testing.T) {
	out, err := JSON(build())
	if err != nil {
		t.Fatal(err)
	}
	var parsed struct {
		Profile string `json:"profile"`
		Groups  []struct {
			Name     string `json:"name"`
			Children []struct {
				Name string `json:"name"`
				Tabs []struct {
					URL    string `json:"url"`
					Pinned bool   `json:"pinned"`
				} `json:"tabs"`
			} `json:"children"`
		} `json:"groups"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Profile != "default" {
		t.Errorf("profile = %q", parsed.Profile)
	}
	work := parsed.Groups[0].Children[0]
	if work.Name != "Work" || len(work.Tabs) != 1 || !work.Tabs[0].Pinned {
		t.Errorf("work container = %+v", work)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("JSON should end with newline")
	}
}

func TestYAML(t *testing.T) {
	out, err := YAML(build())
	if err != nil {
		t.Fatal(err)
	}
	var parsed map[string]any
	if err := yaml.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if parsed["profile"] != "default" {
		t.Errorf("profile = %v", parsed["profile"])
	}
	if !strings.Contains(out, "name: Projects") {
		t.Errorf("missing supergroup, got:\n%s", out)
	}
}

func TestMarkdown(t *testing.T) {
	result := Markdown(build())

	for _, want := range []string{
		"# Tab groups (default)",
		"## Projects (2 tabs)",
		"### Work (1 tab)",
		"#### Shopping (1 tab)",
		"## No Container (1 tab)",
		"[Go docs](https://go.dev/doc) · pinned · 3 days ago",
		"## Unfiled",
		"### Private Browsing (1 tab)",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("missing %q, got:\n%s", want, result)
		}
	}
}

func TestMarkdown_TitleFallbackToURL(t *testing.T) {
	result := Markdown(build())
	if !strings.Contains(result, "[https://example.com/a](https://example.com/a) · hidden · #later · 1 day ago") {
		t.Errorf("expected URL as title with flags, got:\n%s", result)
	}
}
