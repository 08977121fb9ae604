package server

import (
	"encoding/json"
	"fmt"

	"github.com/lotas/tabgruppen/internal/browser"
	"github.com/lotas/tabgruppen/internal/types"
)

type wireWindow struct {
	ID        int               `json:"id"`
	Incognito bool              `json:"incognito"`
	Focused   bool              `json:"focused"`
	Tabs      []json.RawMessage `json:"tabs"`
}

// ParseTab converts a raw JSON tab into a Tab. Browsers without native tab
// groups omit groupId, which then reads as ungrouped.
func ParseTab(raw json.RawMessage) (types.Tab, error) {
	t := types.Tab{GroupID: types.NoGroup}
	if err := json.Unmarshal(raw, &t); err != nil {
		return types.Tab{}, fmt.Errorf("parse tab: %w", err)
	}
	return t, nil
}

func parseTabs(raw []json.RawMessage) ([]types.Tab, error) {
	tabs := make([]types.Tab, 0, len(raw))
	for _, r := range raw {
		t, err := ParseTab(r)
		if err != nil {
			return nil, err
		}
		tabs = append(tabs, t)
	}
	return tabs, nil
}

// ParseWindow converts a raw JSON window into a Window. Tabs stays nil when
// the window was sent without them.
func ParseWindow(raw json.RawMessage) (types.Window, error) {
	var ww wireWindow
	if err := json.Unmarshal(raw, &ww); err != nil {
		return types.Window{}, fmt.Errorf("parse window: %w", err)
	}
	return fromWire(ww)
}

func fromWire(ww wireWindow) (types.Window, error) {
	w := types.Window{ID: ww.ID, Incognito: ww.Incognito, Focused: ww.Focused}
	if ww.Tabs == nil {
		return w, nil
	}
	tabs, err := parseTabs(ww.Tabs)
	if err != nil {
		return types.Window{}, fmt.Errorf("window %d: %w", ww.ID, err)
	}
	w.Tabs = tabs
	return w, nil
}

func parseContainer(raw json.RawMessage) (types.Container, error) {
	var c types.Container
	if err := json.Unmarshal(raw, &c); err != nil {
		return types.Container{}, fmt.Errorf("parse container: %w", err)
	}
	return c, nil
}

// ParseEvent converts an IncomingMsg of type "event" into a browser event.
func ParseEvent(msg IncomingMsg) (browser.Event, error) {
	switch msg.Event {
	case browser.TabCreated{}.Name():
		t, err := ParseTab(msg.Tab)
		if err != nil {
			return nil, err
		}
		return browser.TabCreated{Tab: t}, nil
	case browser.TabUpdated{}.Name():
		t, err := ParseTab(msg.Tab)
		if err != nil {
			return nil, err
		}
		id := msg.TabID
		if id == 0 {
			id = t.ID
		}
		return browser.TabUpdated{TabID: id, Tab: t}, nil
	case browser.TabRemoved{}.Name():
		return browser.TabRemoved{TabID: msg.TabID, WindowID: msg.WindowID, IsWindowClosing: msg.IsWindowClosing}, nil
	case browser.TabMoved{}.Name():
		return browser.TabMoved{TabID: msg.TabID, WindowID: msg.WindowID, FromIndex: msg.FromIndex, ToIndex: msg.ToIndex}, nil
	case browser.TabAttached{}.Name():
		return browser.TabAttached{TabID: msg.TabID, NewWindowID: msg.NewWindowID, NewPosition: msg.NewPosition}, nil
	case browser.TabActivated{}.Name():
		return browser.TabActivated{TabID: msg.TabID, PreviousTabID: msg.PreviousTabID, WindowID: msg.WindowID}, nil
	case browser.WindowCreated{}.Name():
		w, err := ParseWindow(msg.Window)
		if err != nil {
			return nil, err
		}
		return browser.WindowCreated{Window: w}, nil
	case browser.WindowRemoved{}.Name():
		return browser.WindowRemoved{WindowID: msg.WindowID}, nil
	case browser.ContainerCreated{}.Name(), browser.ContainerUpdated{}.Name(), browser.ContainerRemoved{}.Name():
		c, err := parseContainer(msg.Container)
		if err != nil {
			return nil, err
		}
		switch msg.Event {
		case browser.ContainerCreated{}.Name():
			return browser.ContainerCreated{Container: c}, nil
		case browser.ContainerUpdated{}.Name():
			return browser.ContainerUpdated{Container: c}, nil
		}
		return browser.ContainerRemoved{Container: c}, nil
	}
	return nil, fmt.Errorf("unknown event %q", msg.Event)
}
