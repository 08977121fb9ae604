package firefox

import (
	"encoding/json"
	"testing"
)

func TestDecompressMozLz4(t *testing.T) {
	t.Run("valid mozlz4 payload", func(t *testing.T) {
		original := []byte(`{"windows":[{"tabs":[]}]}`)

		payload, err := CompressMozLz4(original)
		if err != nil {
			t.Fatalf("CompressMozLz4 failed: %v", err)
		}
		if string(payload[:8]) != "mozLz40\x00" {
			t.Fatalf("missing magic: %q", payload[:8])
		}

		result, err := DecompressMozLz4(payload)
		if err != nil {
			t.Fatalf("DecompressMozLz4 returned error: %v", err)
		}
		if string(result) != string(original) {
			t.Errorf("expected %q, got %q", string(original), string(result))
		}
	})

	t.Run("invalid header returns error", func(t *testing.T) {
		bad := []byte("BADMAGIC\x00\x00\x00\x00some data here")
		_, err := DecompressMozLz4(bad)
		if err == nil {
			t.Fatal("expected error for invalid header, got nil")
		}
	})

	t.Run("too short data returns error", func(t *testing.T) {
		short := []byte("mozLz40")
		_, err := DecompressMozLz4(short)
		if err == nil {
			t.Fatal("expected error for too-short data, got nil")
		}
	})
}

func TestParseSession(t *testing.T) {
	// 2 windows:
	// - window 1: tab in container 2 (pinned), tab with history (index=2,
	//   current page is entries[1], hidden), tab without entries (skipped).
	//   selected=2 makes the history tab active.
	// - window 2: a single default tab.
	session := map[string]interface{}{
		"windows": []map[string]interface{}{
			{
				"selected": 2,
				"tabs": []map[string]interface{}{
					{
						"entries": []map[string]interface{}{
							{"url": "https://example.com", "title": "Example"},
						},
						"index":         1,
						"lastAccessed":  1707654321000,
						"image":         "https://example.com/favicon.ico",
						"userContextId": 2,
						"pinned":        true,
					},
					{
						"entries": []map[string]interface{}{
							{"url": "https://old.com", "title": "Old Page"},
							{"url": "https://current.com", "title": "Current Page"},
						},
						"index":        2,
						"lastAccessed": 1707654999000,
						"hidden":       true,
					},
					{
						"entries": []map[string]interface{}{},
					},
				},
			},
			{
				"tabs": []map[string]interface{}{
					{
						"entries": []map[string]interface{}{
							{"url": "https://second.com", "title": "Second"},
						},
						"index": 1,
					},
				},
			},
		},
	}

	data, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}

	sd, err := ParseSession(data)
	if err != nil {
		t.Fatalf("ParseSession returned error: %v", err)
	}

	if len(sd.Windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(sd.Windows))
	}
	w1 := sd.Windows[0]
	if w1.ID != 1 || len(w1.Tabs) != 2 {
		t.Fatalf("window 1 = id %d with %d tabs, want id 1 with 2 tabs", w1.ID, len(w1.Tabs))
	}

	tab0 := w1.Tabs[0]
	if tab0.URL != "https://example.com" || tab0.Title != "Example" {
		t.Errorf("tab0 = %q %q", tab0.URL, tab0.Title)
	}
	if tab0.CookieStoreID != "firefox-container-2" {
		t.Errorf("tab0 CookieStoreID: expected firefox-container-2, got %q", tab0.CookieStoreID)
	}
	if !tab0.Pinned || tab0.Active {
		t.Errorf("tab0 pinned=%v active=%v", tab0.Pinned, tab0.Active)
	}
	if tab0.FavIconURL != "https://example.com/favicon.ico" {
		t.Errorf("tab0 FavIconURL = %q", tab0.FavIconURL)
	}
	if tab0.LastAccessedTime().UnixMilli() != 1707654321000 {
		t.Errorf("tab0 LastAccessed: expected 1707654321000, got %d", tab0.LastAccessed)
	}
	if tab0.GroupID != -1 {
		t.Errorf("tab0 GroupID = %d, want ungrouped", tab0.GroupID)
	}

	tab1 := w1.Tabs[1]
	if tab1.URL != "https://current.com" || tab1.Title != "Current Page" {
		t.Errorf("tab1 = %q %q, want the current history entry", tab1.URL, tab1.Title)
	}
	if tab1.CookieStoreID != "firefox-default" {
		t.Errorf("tab1 CookieStoreID = %q", tab1.CookieStoreID)
	}
	if !tab1.Hidden || !tab1.Active || tab1.Index != 1 {
		t.Errorf("tab1 hidden=%v active=%v index=%d", tab1.Hidden, tab1.Active, tab1.Index)
	}

	w2 := sd.Windows[1]
	if len(w2.Tabs) != 1 || w2.Tabs[0].ID != 3 || w2.Tabs[0].WindowID != 2 {
		t.Errorf("window 2 tabs = %+v", w2.Tabs)
	}
}

func TestParseSessionPrivateWindow(t *testing.T) {
	data := []byte(`{"windows":[{"isPrivate":true,"tabs":[{"entries":[{"url":"https://p.example"}],"index":1,"userContextId":3}]}]}`)
	sd, err := ParseSession(data)
	if err != nil {
		t.Fatal(err)
	}
	tab := sd.Windows[0].Tabs[0]
	if tab.CookieStoreID != "firefox-private" || !tab.Incognito {
		t.Errorf("private tab = %+v", tab)
	}
}

func TestParseContainers(t *testing.T) {
	data := []byte(`{
		"version": 5,
		"lastUserContextId": 6,
		"identities": [
			{"userContextId": 1, "public": true, "icon": "fingerprint", "color": "blue", "l10nID": "userContextPersonal.label"},
			{"userContextId": 5, "public": false, "icon": "", "color": "", "name": "userContextIdInternal.thumbnail"},
			{"userContextId": 6, "public": true, "icon": "dollar", "color": "green", "name": "Bank"}
		]
	}`)
	cs, err := ParseContainers(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 2 {
		t.Fatalf("expected 2 public containers, got %d", len(cs))
	}
	if cs[0].CookieStoreID != "firefox-container-1" || cs[0].Name != "Personal" {
		t.Errorf("built-in container = %+v", cs[0])
	}
	if cs[1].Name != "Bank" || cs[1].IconURL != "resource://usercontext-content/dollar.svg" {
		t.Errorf("custom container = %+v", cs[1])
	}
}
