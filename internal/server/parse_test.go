package server

import (
	"encoding/json"
	"testing"

	"github.com/lotas/tabgruppen/internal/browser"
)

func decode(t *testing.T, raw string) IncomingMsg {
	t.Helper()
	var msg IncomingMsg
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestParseWindowCreated(t *testing.T) {
	msg := decode(t, `{
		"type": "event",
		"event": "windows.onCreated",
		"window": {
			"id": 3, "incognito": false, "focused": true,
			"tabs": [
				{"id": 1, "url": "https://example.com", "windowId": 3, "index": 0, "cookieStoreId": "firefox-default", "lastAccessed": 1700000000000, "groupId": 5},
				{"id": 2, "url": "https://other.com", "windowId": 3, "index": 1, "cookieStoreId": "firefox-container-1", "pinned": true}
			]
		}
	}`)

	ev, err := ParseEvent(msg)
	if err != nil {
		t.Fatal(err)
	}
	wc, ok := ev.(browser.WindowCreated)
	if !ok {
		t.Fatalf("got %T", ev)
	}
	w := wc.Window
	if w.ID != 3 || !w.Focused || len(w.Tabs) != 2 {
		t.Fatalf("window = %+v", w)
	}
	if w.Tabs[0].GroupID != 5 {
		t.Errorf("tab 1 group = %d, want 5", w.Tabs[0].GroupID)
	}
	if w.Tabs[1].GroupID != -1 || !w.Tabs[1].Pinned {
		t.Errorf("tab 2 = %+v", w.Tabs[1])
	}
	if w.Tabs[0].LastAccessedTime().IsZero() {
		t.Error("tab LastAccessed is zero")
	}
}

func TestParseWindowWithoutTabs(t *testing.T) {
	w, err := ParseWindow(json.RawMessage(`{"id": 4, "incognito": true}`))
	if err != nil {
		t.Fatal(err)
	}
	if w.Tabs != nil {
		t.Errorf("Tabs = %v, want nil for an unpopulated window", w.Tabs)
	}
	if !w.Incognito {
		t.Error("incognito lost")
	}
}

func TestParseEvents(t *testing.T) {
	tests := []struct {
		raw  string
		want browser.Event
	}{
		{
			`{"type":"event","event":"tabs.onActivated","tabId":5,"previousTabId":4,"windowId":1}`,
			browser.TabActivated{TabID: 5, PreviousTabID: 4, WindowID: 1},
		},
		{
			`{"type":"event","event":"tabs.onMoved","tabId":5,"windowId":1,"fromIndex":0,"toIndex":3}`,
			browser.TabMoved{TabID: 5, WindowID: 1, FromIndex: 0, ToIndex: 3},
		},
		{
			`{"type":"event","event":"tabs.onAttached","tabId":5,"newWindowId":2,"newPosition":1}`,
			browser.TabAttached{TabID: 5, NewWindowID: 2, NewPosition: 1},
		},
		{
			`{"type":"event","event":"windows.onRemoved","windowId":2}`,
			browser.WindowRemoved{WindowID: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.want.Name(), func(t *testing.T) {
			got, err := ParseEvent(decode(t, tt.raw))
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseContainerEvents(t *testing.T) {
	raw := `{"type":"event","event":"contextualIdentities.onUpdated","container":{"cookieStoreId":"firefox-container-3","name":"Bank","color":"green","icon":"dollar"}}`
	ev, err := ParseEvent(decode(t, raw))
	if err != nil {
		t.Fatal(err)
	}
	cu, ok := ev.(browser.ContainerUpdated)
	if !ok {
		t.Fatalf("got %T", ev)
	}
	if cu.Container.Name != "Bank" || cu.Container.CookieStoreID != "firefox-container-3" {
		t.Errorf("container = %+v", cu.Container)
	}
}

func TestParseUpdatedFallsBackToTabID(t *testing.T) {
	ev, err := ParseEvent(decode(t, `{"type":"event","event":"tabs.onUpdated","tab":{"id":8,"hidden":true}}`))
	if err != nil {
		t.Fatal(err)
	}
	tu := ev.(browser.TabUpdated)
	if tu.TabID != 8 || !tu.Tab.Hidden {
		t.Errorf("got %+v", tu)
	}
}

func TestParseUnknownEvent(t *testing.T) {
	if _, err := ParseEvent(IncomingMsg{Type: "event", Event: "bookmarks.onCreated"}); err == nil {
		t.Error("expected error for unknown event")
	}
}

func TestOutgoingMsgParams(t *testing.T) {
	data, err := json.Marshal(OutgoingMsg{ID: "cmd-1", Action: "tabs.hide", Params: tabIDsParams{TabIDs: []int{3}}})
	if err != nil {
		t.Fatal(err)
	}
	var parsed map[string]any
	json.Unmarshal(data, &parsed)
	params, _ := parsed["params"].(map[string]any)
	if ids, _ := params["tabIds"].([]any); len(ids) != 1 {
		t.Errorf("params = %v", parsed["params"])
	}
}
