package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/lotas/tabgruppen/internal/browser"
)

// extension dials srv and answers commands with reply. It returns the
// client connection for sending events.
func extension(t *testing.T, srv *Server, reply func(OutgoingMsg) IncomingMsg) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })

	go func() {
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var cmd OutgoingMsg
			if err := json.Unmarshal(data, &cmd); err != nil {
				continue
			}
			if reply == nil {
				continue
			}
			resp := reply(cmd)
			resp.ID = cmd.ID
			out, _ := json.Marshal(resp)
			if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
				return
			}
		}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !srv.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("server never saw the connection")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func ok(result any) IncomingMsg {
	yes := true
	raw, _ := json.Marshal(result)
	return IncomingMsg{OK: &yes, Result: raw}
}

func failed(code, msg string) IncomingMsg {
	no := false
	return IncomingMsg{OK: &no, Code: code, Error: msg}
}

func TestServerForwardsEvents(t *testing.T) {
	srv := New(0)
	conn := extension(t, srv, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw := `{"type":"event","event":"tabs.onRemoved","tabId":7,"windowId":2,"isWindowClosing":true}`
	if err := conn.Write(ctx, websocket.MessageText, []byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case ev := <-srv.Events():
		got, ok := ev.(browser.TabRemoved)
		if !ok {
			t.Fatalf("got %T, want TabRemoved", ev)
		}
		if got.TabID != 7 || got.WindowID != 2 || !got.IsWindowClosing {
			t.Errorf("got %+v", got)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestServerCallRoundTrip(t *testing.T) {
	srv := New(0)
	seen := make(chan OutgoingMsg, 1)
	extension(t, srv, func(cmd OutgoingMsg) IncomingMsg {
		seen <- cmd
		return ok([]map[string]any{
			{"id": 1, "url": "https://example.com/", "windowId": 1, "index": 0, "cookieStoreId": "firefox-container-2"},
		})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tabs, err := srv.QueryTabs(ctx, browser.TabQuery{CookieStoreID: "firefox-container-2"})
	if err != nil {
		t.Fatalf("QueryTabs: %v", err)
	}
	if len(tabs) != 1 || tabs[0].CookieStoreID != "firefox-container-2" {
		t.Fatalf("got %+v", tabs)
	}
	if tabs[0].GroupID != -1 {
		t.Errorf("missing groupId should read as ungrouped, got %d", tabs[0].GroupID)
	}
	if cmd := <-seen; cmd.Action != "tabs.query" || cmd.ID == "" {
		t.Errorf("command = %+v", cmd)
	}
}

func TestServerCallErrors(t *testing.T) {
	srv := New(0)
	extension(t, srv, func(cmd OutgoingMsg) IncomingMsg {
		if cmd.Action == "tabs.get" {
			return failed(CodeNotFound, "Invalid tab ID: 9")
		}
		return failed("", "boom")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := srv.GetTab(ctx, 9)
	if !errors.Is(err, browser.ErrNotFound) {
		t.Errorf("GetTab err = %v, want ErrNotFound", err)
	}
	err = srv.HideTabs(ctx, []int{1})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("HideTabs err = %v, want boom", err)
	}
}

func TestServerNotConnected(t *testing.T) {
	srv := New(0)
	err := srv.RemoveTabs(context.Background(), []int{1})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
}

func TestServerDisconnectFailsPendingCalls(t *testing.T) {
	srv := New(0)
	conn := extension(t, srv, nil) // never answers

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ShowTabs(context.Background(), []int{1})
	}()
	time.Sleep(50 * time.Millisecond)
	conn.Close(websocket.StatusNormalClosure, "bye")

	select {
	case err := <-errc:
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("err = %v, want ErrNotConnected", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending call never failed")
	}
}

func TestServerOnConnect(t *testing.T) {
	srv := New(0)
	called := make(chan struct{}, 1)
	srv.OnConnect(func() { called <- struct{}{} })
	extension(t, srv, nil)

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("OnConnect hook not run")
	}
}
