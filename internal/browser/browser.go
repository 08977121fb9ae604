// Package browser describes the native browser APIs the core depends on.
//
// Implementations live in internal/server (the connected extension),
// internal/firefox (read-only, from a profile on disk) and
// internal/browser/browsertest (in memory, for tests).
package browser

import (
	"context"
	"errors"

	"github.com/lotas/tabgruppen/internal/types"
)

// ErrNotFound is returned when a tab, window or container does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnsupported is returned by read-only hosts for mutating calls.
var ErrUnsupported = errors.New("unsupported by this host")

// TabQuery filters Tabs.QueryTabs. Zero values mean "any".
type TabQuery struct {
	WindowID      int    `json:"windowId,omitempty"`
	CookieStoreID string `json:"cookieStoreId,omitempty"`
	Hidden        *bool  `json:"hidden,omitempty"`
}

// CreateTabOptions are the options of Tabs.CreateTab.
type CreateTabOptions struct {
	WindowID      int    `json:"windowId,omitempty"`
	URL           string `json:"url,omitempty"`
	CookieStoreID string `json:"cookieStoreId,omitempty"`
	Index         *int   `json:"index,omitempty"`
	Active        bool   `json:"active"`
}

// Tabs is the native tabs API.
type Tabs interface {
	QueryTabs(ctx context.Context, q TabQuery) ([]types.Tab, error)
	GetTab(ctx context.Context, tabID int) (types.Tab, error)
	CreateTab(ctx context.Context, opts CreateTabOptions) (types.Tab, error)
	RemoveTabs(ctx context.Context, tabIDs []int) error
	ActivateTab(ctx context.Context, tabID int) error
	HideTabs(ctx context.Context, tabIDs []int) error
	ShowTabs(ctx context.Context, tabIDs []int) error
}

// Windows is the native windows API.
type Windows interface {
	GetAllWindows(ctx context.Context, populate bool) ([]types.Window, error)
	GetWindow(ctx context.Context, windowID int, populate bool) (types.Window, error)
}

// Containers is the native contextual identities API.
type Containers interface {
	QueryContainers(ctx context.Context) ([]types.Container, error)
	GetContainer(ctx context.Context, cookieStoreID string) (types.Container, error)
	CreateContainer(ctx context.Context, details types.ContainerDetails) (types.Container, error)
	RemoveContainer(ctx context.Context, cookieStoreID string) error
}

// BrowsingData clears cookies, localStorage and indexedDB of a cookie store.
type BrowsingData interface {
	RemoveForCookieStore(ctx context.Context, cookieStoreID string) error
}

// Extension answers questions about the extension itself.
type Extension interface {
	IsAllowedIncognitoAccess(ctx context.Context) (bool, error)
}

// GroupUpdate changes a native tab group.
type GroupUpdate struct {
	Title     string `json:"title,omitempty"`
	Color     string `json:"color,omitempty"`
	Collapsed *bool  `json:"collapsed,omitempty"`
}

// TabGroups is the native tab grouping API of newer browsers.
type TabGroups interface {
	GroupTabs(ctx context.Context, windowID int, tabIDs []int) (groupID int, err error)
	UpdateGroup(ctx context.Context, groupID int, update GroupUpdate) error
	UngroupTabs(ctx context.Context, tabIDs []int) error
}

// Host bundles every native API the core needs plus the event stream.
type Host interface {
	Tabs
	Windows
	Containers
	BrowsingData
	Extension
	// Events delivers native events in the order the browser generated them.
	Events() <-chan Event
	// NativeGroups returns the grouping backend, or nil if the browser has none.
	NativeGroups() TabGroups
}
