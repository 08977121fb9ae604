// Package server connects to the browser extension over a WebSocket and
// exposes it as a browser.Host.
//
// The extension sends two kinds of messages: events ({"type":"event"}) and
// responses to commands (carrying the command id). Commands go the other
// way as {"id","action","params"}.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/browser"
)

// ErrNotConnected is returned by commands while no extension is connected.
var ErrNotConnected = errors.New("extension not connected")

// DefaultTimeout bounds a command round trip when the caller's context has
// no deadline.
const DefaultTimeout = 30 * time.Second

// IncomingMsg is a message from the extension.
type IncomingMsg struct {
	Type  string `json:"type,omitempty"`
	Event string `json:"event,omitempty"`

	// Event payload fields
	Tab             json.RawMessage `json:"tab,omitempty"`
	Window          json.RawMessage `json:"window,omitempty"`
	Container       json.RawMessage `json:"container,omitempty"`
	TabID           int             `json:"tabId,omitempty"`
	WindowID        int             `json:"windowId,omitempty"`
	PreviousTabID   int             `json:"previousTabId,omitempty"`
	FromIndex       int             `json:"fromIndex,omitempty"`
	ToIndex         int             `json:"toIndex,omitempty"`
	NewWindowID     int             `json:"newWindowId,omitempty"`
	NewPosition     int             `json:"newPosition,omitempty"`
	IsWindowClosing bool            `json:"isWindowClosing,omitempty"`

	// Command response fields
	ID     string          `json:"id,omitempty"`
	OK     *bool           `json:"ok,omitempty"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Response error codes.
const (
	CodeNotFound     = "notFound"
	codeDisconnected = "disconnected"
)

// OutgoingMsg is a command to the extension.
type OutgoingMsg struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Params any    `json:"params,omitempty"`
}

// Server manages the WebSocket connection to the extension.
type Server struct {
	port    int
	events  chan browser.Event
	timeout time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	connCtx   context.Context
	pending   map[string]chan IncomingMsg
	onConnect []func()
}

// New creates a new Server. Port 0 means the caller manages the listener.
func New(port int) *Server {
	return &Server{
		port:    port,
		events:  make(chan browser.Event, 1024),
		timeout: DefaultTimeout,
		pending: make(map[string]chan IncomingMsg),
	}
}

var _ browser.Host = (*Server)(nil)

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Events implements browser.Host.
func (s *Server) Events() <-chan browser.Event {
	return s.events
}

// Connected reports whether an extension is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// OnConnect registers fn to run each time an extension connects. Events
// missed while disconnected are not replayed, so listeners typically
// rebuild their state.
func (s *Server) OnConnect(fn func()) {
	s.mu.Lock()
	s.onConnect = append(s.onConnect, fn)
	s.mu.Unlock()
}

// Send sends a command to the connected extension without waiting for the
// response.
func (s *Server) Send(msg OutgoingMsg) error {
	s.mu.Lock()
	conn := s.conn
	ctx := s.connCtx
	s.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	applog.Info("ws.send", "action", msg.Action, "id", msg.ID)
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// Call sends a command and waits for its response. A non-nil result
// receives the decoded response payload.
func (s *Server) Call(ctx context.Context, action string, params, result any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	id := uuid.NewString()
	ch := make(chan IncomingMsg, 1)
	s.mu.Lock()
	s.pending[id] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	if err := s.Send(OutgoingMsg{ID: id, Action: action, Params: params}); err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", action, ctx.Err())
	case resp := <-ch:
		if resp.OK == nil || !*resp.OK {
			return fmt.Errorf("%s: %w", action, responseError(resp))
		}
		if result == nil || len(resp.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("%s: decode result: %w", action, err)
		}
		return nil
	}
}

func responseError(resp IncomingMsg) error {
	switch resp.Code {
	case CodeNotFound:
		return fmt.Errorf("%s: %w", resp.Error, browser.ErrNotFound)
	case codeDisconnected:
		return ErrNotConnected
	}
	if resp.Error == "" {
		return errors.New("command failed")
	}
	return errors.New(resp.Error)
}

func (s *Server) dispatch(msg IncomingMsg) {
	if msg.Type == "event" {
		ev, err := ParseEvent(msg)
		if err != nil {
			applog.Error("ws.event.parse", err, "event", msg.Event)
			return
		}
		select {
		case s.events <- ev:
		default:
			applog.Warn("ws.event.dropped", "event", msg.Event)
		}
		return
	}
	if msg.ID == "" {
		applog.Warn("ws.recv.unknown", "type", msg.Type)
		return
	}
	s.mu.Lock()
	ch, ok := s.pending[msg.ID]
	s.mu.Unlock()
	if !ok {
		applog.Warn("ws.recv.orphan", "id", msg.ID)
		return
	}
	select {
	case ch <- msg:
	default:
	}
}

// failPending answers every in-flight command with a disconnect error.
func (s *Server) failPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.pending {
		select {
		case ch <- IncomingMsg{Code: codeDisconnected}:
		default:
		}
	}
}

// Handler returns an http.Handler that accepts WebSocket upgrades.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			applog.Error("ws.accept", err)
			return
		}

		conn.SetReadLimit(16 << 20) // windows.getAll with many tabs can be large

		ctx := r.Context()
		s.mu.Lock()
		if s.conn != nil {
			applog.Info("ws.replaced")
			s.conn.CloseNow()
		}
		s.conn = conn
		s.connCtx = ctx
		hooks := append([]func(){}, s.onConnect...)
		s.mu.Unlock()

		applog.Info("ws.connected", "remote", r.RemoteAddr)
		for _, fn := range hooks {
			go fn()
		}

		defer func() {
			s.mu.Lock()
			current := s.conn == conn
			if current {
				s.conn = nil
				s.connCtx = nil
			}
			s.mu.Unlock()
			if current {
				s.failPending()
			}
			conn.CloseNow()
			applog.Info("ws.disconnected")
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg IncomingMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				applog.Error("ws.parse", err)
				continue
			}
			s.dispatch(msg)
		}
	})
}

// ListenAndServe starts the WebSocket server on the configured port.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	applog.Info("server.start", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
