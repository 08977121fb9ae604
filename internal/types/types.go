package types

import "time"

// NoGroup is the native tab group id of an ungrouped tab.
const NoGroup = -1

// Tab is a native browser tab as reported by the tabs API.
type Tab struct {
	ID            int    `json:"id"`
	URL           string `json:"url"`
	Title         string `json:"title"`
	FavIconURL    string `json:"favIconUrl,omitempty"`
	WindowID      int    `json:"windowId"`
	Index         int    `json:"index"`
	CookieStoreID string `json:"cookieStoreId"`
	Incognito     bool   `json:"incognito"`
	Discarded     bool   `json:"discarded"`
	Hidden        bool   `json:"hidden"`
	Active        bool   `json:"active"`
	Pinned        bool   `json:"pinned"`
	IsSharing     bool   `json:"isSharing"`
	Muted         bool   `json:"muted"`
	Audible       bool   `json:"audible"`
	LastAccessed  int64  `json:"lastAccessed"` // unix millis
	GroupID       int    `json:"groupId"`      // native tab group, NoGroup if none
}

// LastAccessedTime converts LastAccessed to a time.Time.
func (t Tab) LastAccessedTime() time.Time {
	return time.UnixMilli(t.LastAccessed)
}

// Window is a native browser window. Tabs is nil when the window was fetched
// without populating its tabs.
type Window struct {
	ID        int   `json:"id"`
	Incognito bool  `json:"incognito"`
	Focused   bool  `json:"focused"`
	Tabs      []Tab `json:"tabs,omitempty"`
}

// Container is a native contextual identity.
type Container struct {
	CookieStoreID string `json:"cookieStoreId"`
	Name          string `json:"name"`
	Icon          string `json:"icon"`
	IconURL       string `json:"iconUrl,omitempty"`
	Color         string `json:"color"`
	ColorCode     string `json:"colorCode,omitempty"`
}

// ContainerDetails are the fields needed to create a container.
type ContainerDetails struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// Profile represents a Firefox profile.
type Profile struct {
	Name       string
	Path       string // absolute path to profile directory
	IsDefault  bool
	IsRelative bool
}

// SessionData holds the windows and containers read from a Firefox profile
// while the browser is not connected.
type SessionData struct {
	Windows    []Window
	Containers []Container
	Profile    Profile
	ParsedAt   time.Time
}
