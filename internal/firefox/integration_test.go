package firefox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lotas/tabgruppen/internal/browser"
	"github.com/lotas/tabgruppen/internal/types"
)

func writeProfile(t *testing.T, session, containers string) string {
	t.Helper()
	profileDir := t.TempDir()
	backupDir := filepath.Join(profileDir, "sessionstore-backups")
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		t.Fatal(err)
	}
	mozlz4, err := CompressMozLz4([]byte(session))
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := os.WriteFile(filepath.Join(backupDir, "recovery.jsonlz4"), mozlz4, 0644); err != nil {
		t.Fatal(err)
	}
	if containers != "" {
		if err := os.WriteFile(filepath.Join(profileDir, "containers.json"), []byte(containers), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return profileDir
}

func TestIntegration_ProfileHost(t *testing.T) {
	sessionJSON := `{
		"version": ["sessionrestore", 1],
		"windows": [{
			"selected": 1,
			"tabs": [
				{"entries": [{"url": "https://example.com", "title": "Example"}], "index": 1, "userContextId": 1},
				{"entries": [{"url": "https://example.com/2", "title": "Example 2"}], "index": 1, "userContextId": 1, "hidden": true},
				{"entries": [{"url": "https://other.com/page", "title": "Other"}], "index": 1}
			]
		}]
	}`
	containersJSON := `{"identities": [{"userContextId": 1, "public": true, "icon": "briefcase", "color": "orange", "l10nID": "userContextWork.label"}]}`

	dir := writeProfile(t, sessionJSON, containersJSON)
	host, err := OpenProfile(types.Profile{Name: "test", Path: dir})
	if err != nil {
		t.Fatalf("open profile: %v", err)
	}
	ctx := context.Background()

	windows, err := host.GetAllWindows(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(windows) != 1 || len(windows[0].Tabs) != 3 {
		t.Fatalf("windows = %+v", windows)
	}

	tabs, err := host.QueryTabs(ctx, browser.TabQuery{CookieStoreID: "firefox-container-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(tabs) != 2 {
		t.Errorf("expected 2 tabs in the Work container, got %d", len(tabs))
	}
	hidden := true
	tabs, _ = host.QueryTabs(ctx, browser.TabQuery{Hidden: &hidden})
	if len(tabs) != 1 || tabs[0].URL != "https://example.com/2" {
		t.Errorf("hidden tabs = %+v", tabs)
	}

	c, err := host.GetContainer(ctx, "firefox-container-1")
	if err != nil || c.Name != "Work" {
		t.Errorf("container = %+v, %v", c, err)
	}
	if _, err := host.GetContainer(ctx, "firefox-container-9"); !errors.Is(err, browser.ErrNotFound) {
		t.Errorf("unknown container err = %v", err)
	}

	if err := host.HideTabs(ctx, []int{1}); !errors.Is(err, browser.ErrUnsupported) {
		t.Errorf("HideTabs err = %v, want ErrUnsupported", err)
	}
	if _, err := host.CreateContainer(ctx, types.ContainerDetails{Name: "x"}); !errors.Is(err, browser.ErrUnsupported) {
		t.Errorf("CreateContainer err = %v, want ErrUnsupported", err)
	}
	if host.Session().Profile.Name != "test" {
		t.Errorf("profile not recorded: %+v", host.Session().Profile)
	}
}

func TestIntegration_ProfileWithoutContainers(t *testing.T) {
	dir := writeProfile(t, `{"windows":[{"tabs":[{"entries":[{"url":"https://a.example"}],"index":1}]}]}`, "")
	host, err := OpenProfile(types.Profile{Path: dir})
	if err != nil {
		t.Fatal(err)
	}
	cs, err := host.QueryContainers(context.Background())
	if err != nil || len(cs) != 0 {
		t.Errorf("containers = %v, %v", cs, err)
	}
}
