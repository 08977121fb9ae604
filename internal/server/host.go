package server

import (
	"context"
	"encoding/json"

	"github.com/lotas/tabgruppen/internal/browser"
	"github.com/lotas/tabgruppen/internal/types"
)

type tabIDsParams struct {
	TabIDs []int `json:"tabIds"`
}

type cookieStoreParams struct {
	CookieStoreID string `json:"cookieStoreId"`
}

func (s *Server) QueryTabs(ctx context.Context, q browser.TabQuery) ([]types.Tab, error) {
	var raw []json.RawMessage
	if err := s.Call(ctx, "tabs.query", q, &raw); err != nil {
		return nil, err
	}
	return parseTabs(raw)
}

func (s *Server) GetTab(ctx context.Context, tabID int) (types.Tab, error) {
	var raw json.RawMessage
	if err := s.Call(ctx, "tabs.get", map[string]int{"tabId": tabID}, &raw); err != nil {
		return types.Tab{}, err
	}
	return ParseTab(raw)
}

func (s *Server) CreateTab(ctx context.Context, opts browser.CreateTabOptions) (types.Tab, error) {
	var raw json.RawMessage
	if err := s.Call(ctx, "tabs.create", opts, &raw); err != nil {
		return types.Tab{}, err
	}
	return ParseTab(raw)
}

func (s *Server) RemoveTabs(ctx context.Context, tabIDs []int) error {
	return s.Call(ctx, "tabs.remove", tabIDsParams{TabIDs: tabIDs}, nil)
}

func (s *Server) ActivateTab(ctx context.Context, tabID int) error {
	return s.Call(ctx, "tabs.update", map[string]any{"tabId": tabID, "active": true}, nil)
}

func (s *Server) HideTabs(ctx context.Context, tabIDs []int) error {
	return s.Call(ctx, "tabs.hide", tabIDsParams{TabIDs: tabIDs}, nil)
}

func (s *Server) ShowTabs(ctx context.Context, tabIDs []int) error {
	return s.Call(ctx, "tabs.show", tabIDsParams{TabIDs: tabIDs}, nil)
}

func (s *Server) GetAllWindows(ctx context.Context, populate bool) ([]types.Window, error) {
	var raw []wireWindow
	if err := s.Call(ctx, "windows.getAll", map[string]bool{"populate": populate}, &raw); err != nil {
		return nil, err
	}
	out := make([]types.Window, 0, len(raw))
	for _, ww := range raw {
		w, err := fromWire(ww)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func (s *Server) GetWindow(ctx context.Context, windowID int, populate bool) (types.Window, error) {
	var ww wireWindow
	params := map[string]any{"windowId": windowID, "populate": populate}
	if err := s.Call(ctx, "windows.get", params, &ww); err != nil {
		return types.Window{}, err
	}
	return fromWire(ww)
}

func (s *Server) QueryContainers(ctx context.Context) ([]types.Container, error) {
	var out []types.Container
	if err := s.Call(ctx, "contextualIdentities.query", struct{}{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) GetContainer(ctx context.Context, cookieStoreID string) (types.Container, error) {
	var c types.Container
	err := s.Call(ctx, "contextualIdentities.get", cookieStoreParams{cookieStoreID}, &c)
	return c, err
}

func (s *Server) CreateContainer(ctx context.Context, details types.ContainerDetails) (types.Container, error) {
	var c types.Container
	err := s.Call(ctx, "contextualIdentities.create", details, &c)
	return c, err
}

func (s *Server) RemoveContainer(ctx context.Context, cookieStoreID string) error {
	return s.Call(ctx, "contextualIdentities.remove", cookieStoreParams{cookieStoreID}, nil)
}

func (s *Server) RemoveForCookieStore(ctx context.Context, cookieStoreID string) error {
	return s.Call(ctx, "browsingData.remove", cookieStoreParams{cookieStoreID}, nil)
}

func (s *Server) IsAllowedIncognitoAccess(ctx context.Context) (bool, error) {
	var allowed bool
	err := s.Call(ctx, "extension.isAllowedIncognitoAccess", struct{}{}, &allowed)
	return allowed, err
}

// NativeGroups implements browser.Host. Whether the browser actually
// supports tab groups is only known when a command fails, so callers opt
// in through configuration.
func (s *Server) NativeGroups() browser.TabGroups {
	return groups{s}
}

type groups struct{ s *Server }

func (g groups) GroupTabs(ctx context.Context, windowID int, tabIDs []int) (int, error) {
	var id int
	params := map[string]any{"windowId": windowID, "tabIds": tabIDs}
	err := g.s.Call(ctx, "tabs.group", params, &id)
	return id, err
}

func (g groups) UpdateGroup(ctx context.Context, groupID int, u browser.GroupUpdate) error {
	params := struct {
		GroupID int `json:"groupId"`
		browser.GroupUpdate
	}{groupID, u}
	return g.s.Call(ctx, "tabGroups.update", params, nil)
}

func (g groups) UngroupTabs(ctx context.Context, tabIDs []int) error {
	return g.s.Call(ctx, "tabs.ungroup", tabIDsParams{TabIDs: tabIDs}, nil)
}
