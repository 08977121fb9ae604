package browser

import "github.com/lotas/tabgruppen/internal/types"

// Event is a native browser event. The concrete types below are the only
// implementations.
type Event interface {
	// Name is the extension API event name, e.g. "tabs.onCreated".
	Name() string
}

type TabCreated struct {
	Tab types.Tab
}

type TabRemoved struct {
	TabID           int
	WindowID        int
	IsWindowClosing bool
}

// TabUpdated carries the full tab after the update.
type TabUpdated struct {
	TabID int
	Tab   types.Tab
}

type TabMoved struct {
	TabID     int
	WindowID  int
	FromIndex int
	ToIndex   int
}

// TabAttached is fired when a tab lands in a different window.
type TabAttached struct {
	TabID       int
	NewWindowID int
	NewPosition int
}

// TabActivated names the previously active tab explicitly. PreviousTabID is
// 0 when the browser did not report one.
type TabActivated struct {
	TabID         int
	PreviousTabID int
	WindowID      int
}

type WindowCreated struct {
	Window types.Window
}

type WindowRemoved struct {
	WindowID int
}

type ContainerCreated struct {
	Container types.Container
}

type ContainerUpdated struct {
	Container types.Container
}

type ContainerRemoved struct {
	Container types.Container
}

func (TabCreated) Name() string       { return "tabs.onCreated" }
func (TabRemoved) Name() string       { return "tabs.onRemoved" }
func (TabUpdated) Name() string       { return "tabs.onUpdated" }
func (TabMoved) Name() string         { return "tabs.onMoved" }
func (TabAttached) Name() string      { return "tabs.onAttached" }
func (TabActivated) Name() string     { return "tabs.onActivated" }
func (WindowCreated) Name() string    { return "windows.onCreated" }
func (WindowRemoved) Name() string    { return "windows.onRemoved" }
func (ContainerCreated) Name() string { return "contextualIdentities.onCreated" }
func (ContainerUpdated) Name() string { return "contextualIdentities.onUpdated" }
func (ContainerRemoved) Name() string { return "contextualIdentities.onRemoved" }
