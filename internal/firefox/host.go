package firefox

import (
	"context"
	"fmt"
	"sync"

	"github.com/lotas/tabgruppen/internal/browser"
	"github.com/lotas/tabgruppen/internal/types"
)

// Host is a read-only browser.Host backed by a profile's session and
// containers files. It lets the state layer run while the extension is not
// connected. Every mutating call returns browser.ErrUnsupported and no
// events are ever delivered.
type Host struct {
	profileDir string

	mu   sync.Mutex
	data *types.SessionData

	events chan browser.Event
}

// OpenProfile reads the session and containers of profile.
func OpenProfile(profile types.Profile) (*Host, error) {
	h := &Host{profileDir: profile.Path, events: make(chan browser.Event)}
	if err := h.Reload(); err != nil {
		return nil, err
	}
	h.data.Profile = profile
	return h, nil
}

var _ browser.Host = (*Host)(nil)

// Reload re-reads the files on disk.
func (h *Host) Reload() error {
	sd, err := ReadSessionFile(h.profileDir)
	if err != nil {
		return err
	}
	containers, err := ReadContainersFile(h.profileDir)
	if err != nil {
		return err
	}
	sd.Containers = containers
	h.mu.Lock()
	if h.data != nil {
		sd.Profile = h.data.Profile
	}
	h.data = sd
	h.mu.Unlock()
	return nil
}

// Session returns the data read by the last Reload.
func (h *Host) Session() *types.SessionData {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.data
}

func unsupported(op string) error {
	return fmt.Errorf("%s: %w", op, browser.ErrUnsupported)
}

func (h *Host) Events() <-chan browser.Event { return h.events }
func (h *Host) NativeGroups() browser.TabGroups { return nil }

func (h *Host) QueryTabs(_ context.Context, q browser.TabQuery) ([]types.Tab, error) {
	sd := h.Session()
	var out []types.Tab
	for _, w := range sd.Windows {
		if q.WindowID != 0 && q.WindowID != w.ID {
			continue
		}
		for _, t := range w.Tabs {
			if q.CookieStoreID != "" && t.CookieStoreID != q.CookieStoreID {
				continue
			}
			if q.Hidden != nil && t.Hidden != *q.Hidden {
				continue
			}
			out = append(out, t)
		}
	}
	return out, nil
}

func (h *Host) GetTab(_ context.Context, tabID int) (types.Tab, error) {
	for _, w := range h.Session().Windows {
		for _, t := range w.Tabs {
			if t.ID == tabID {
				return t, nil
			}
		}
	}
	return types.Tab{}, fmt.Errorf("tab %d: %w", tabID, browser.ErrNotFound)
}

func (h *Host) GetAllWindows(_ context.Context, populate bool) ([]types.Window, error) {
	sd := h.Session()
	out := make([]types.Window, 0, len(sd.Windows))
	for _, w := range sd.Windows {
		out = append(out, copyWindow(w, populate))
	}
	return out, nil
}

func (h *Host) GetWindow(_ context.Context, windowID int, populate bool) (types.Window, error) {
	for _, w := range h.Session().Windows {
		if w.ID == windowID {
			return copyWindow(w, populate), nil
		}
	}
	return types.Window{}, fmt.Errorf("window %d: %w", windowID, browser.ErrNotFound)
}

func copyWindow(w types.Window, populate bool) types.Window {
	if !populate {
		w.Tabs = nil
		return w
	}
	w.Tabs = append([]types.Tab(nil), w.Tabs...)
	return w
}

func (h *Host) QueryContainers(context.Context) ([]types.Container, error) {
	return append([]types.Container(nil), h.Session().Containers...), nil
}

func (h *Host) GetContainer(_ context.Context, cookieStoreID string) (types.Container, error) {
	for _, c := range h.Session().Containers {
		if c.CookieStoreID == cookieStoreID {
			return c, nil
		}
	}
	return types.Container{}, fmt.Errorf("container %s: %w", cookieStoreID, browser.ErrNotFound)
}

// Private windows are not persisted by the session store.
func (h *Host) IsAllowedIncognitoAccess(context.Context) (bool, error) {
	return false, nil
}

func (h *Host) CreateTab(context.Context, browser.CreateTabOptions) (types.Tab, error) {
	return types.Tab{}, unsupported("create tab")
}

func (h *Host) RemoveTabs(context.Context, []int) error { return unsupported("remove tabs") }
func (h *Host) ActivateTab(context.Context, int) error { return unsupported("activate tab") }
func (h *Host) HideTabs(context.Context, []int) error { return unsupported("hide tabs") }
func (h *Host) ShowTabs(context.Context, []int) error { return unsupported("show tabs") }

func (h *Host) CreateContainer(context.Context, types.ContainerDetails) (types.Container, error) {
	return types.Container{}, unsupported("create container")
}

func (h *Host) RemoveContainer(context.Context, string) error {
	return unsupported("remove container")
}

func (h *Host) RemoveForCookieStore(context.Context, string) error {
	return unsupported("remove browsing data")
}
