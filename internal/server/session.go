package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/livetemplate/syntaxstudio/internal/pane"
	"github.com/livetemplate/syntaxstudio/internal/playground"
	"github.com/livetemplate/syntaxstudio/internal/preview"
)

// writeWait bounds a single websocket write.
const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the page may be opened through the desktop shell's asset server
	},
}

// MessageEnvelope is the websocket frame in both directions.
type MessageEnvelope struct {
	Action string          `json:"action"`
	Pane   string          `json:"pane,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Client actions.
const (
	ActionEdit            = "edit"
	ActionToggle          = "toggle"
	ActionTheme           = "theme"
	ActionFontSize        = "fontSize"
	ActionCopy            = "copy"
	ActionClipboardResult = "clipboardResult"
)

// Server messages.
const (
	MessageInit      = "init"
	MessagePreview   = "preview"
	MessagePane      = "pane"
	MessageValue     = "value"
	MessageNotify    = "notify"
	MessageClipboard = "clipboard"
	MessageError     = "error"
)

// InitData is sent once when a session starts.
type InitData struct {
	Session string            `json:"session"`
	Panes   []pane.State      `json:"panes"`
	Values  map[string]string `json:"values"`
	Sandbox string            `json:"sandbox"`
}

// PreviewData carries a composed document.
type PreviewData struct {
	Document string `json:"document"`
}

// NotifyData is a user-facing notification.
type NotifyData struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// ErrorData reports a rejected action.
type ErrorData struct {
	Message string `json:"message"`
}

// Session is one websocket connection and the playground it drives.
type Session struct {
	id     string
	conn   *websocket.Conn
	server *Server
	ctrl   *playground.Controller
	clip   *browserClipboard
	debug  bool

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Controller returns the playground driven by this session.
func (s *Session) Controller() *playground.Controller {
	return s.ctrl
}

func (s *Session) send(action, paneKey string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", action, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(MessageEnvelope{Action: action, Pane: paneKey, Data: raw})
}

func (s *Session) sendLogged(action, paneKey string, data any) {
	if err := s.send(action, paneKey, data); err != nil && s.debug {
		log.Printf("[WS] Session %s: failed to send %s: %v", s.id, action, err)
	}
}

// Render delivers a composed preview to the page.
func (s *Session) Render(doc string) {
	s.sendLogged(MessagePreview, "", PreviewData{Document: doc})
}

// Notify shows a notification on the page.
func (s *Session) Notify(level, message string) {
	s.sendLogged(MessageNotify, "", NotifyData{Level: level, Message: message})
}

func (s *Session) sendError(format string, args ...any) {
	s.sendLogged(MessageError, "", ErrorData{Message: fmt.Sprintf(format, args...)})
}

func (s *Session) sendPane(p *pane.Pane) {
	s.sendLogged(MessagePane, p.Kind().Key(), p.State())
}

func (s *Session) sendInit() error {
	values := make(map[string]string, len(pane.Kinds))
	for _, k := range pane.Kinds {
		values[k.Key()] = s.ctrl.Value(k)
	}
	return s.send(MessageInit, "", InitData{
		Session: s.id,
		Panes:   s.ctrl.Panes(),
		Values:  values,
		Sandbox: preview.SandboxPolicy,
	})
}

// Apply replaces a buffer from outside the page and mirrors the new value
// into the page's editor.
func (s *Session) Apply(kind pane.Kind, value string) <-chan error {
	result := s.ctrl.Edit(kind, value)
	s.sendLogged(MessageValue, kind.Key(), value)
	return result
}

func (s *Session) handleMessage(msg MessageEnvelope) {
	if msg.Action == ActionClipboardResult {
		var res clipboardResult
		if err := json.Unmarshal(msg.Data, &res); err != nil {
			s.sendError("invalid clipboard result: %v", err)
			return
		}
		if !s.clip.resolve(res) && s.debug {
			log.Printf("[WS] Session %s: stale clipboard result %s", s.id, res.ID)
		}
		return
	}

	kind, err := pane.ParseKind(msg.Pane)
	if err != nil {
		s.sendError("%v", err)
		return
	}
	p := s.ctrl.Pane(kind)

	switch msg.Action {
	case ActionEdit:
		var value string
		if err := json.Unmarshal(msg.Data, &value); err != nil {
			s.sendError("invalid %s edit: %v", kind, err)
			return
		}
		result := s.ctrl.Edit(kind, value)
		go func() {
			if err := <-result; err != nil {
				log.Printf("[WS] Session %s: failed to save %s: %v", s.id, kind, err)
				s.sendError("failed to save %s: %v", kind, err)
			}
		}()

	case ActionToggle:
		p.Toggle()
		s.sendPane(p)

	case ActionTheme, ActionFontSize:
		var value string
		if err := json.Unmarshal(msg.Data, &value); err != nil {
			s.sendError("invalid %s: %v", msg.Action, err)
			return
		}
		set := p.SetTheme
		if msg.Action == ActionFontSize {
			set = p.SetFontSize
		}
		if err := set(value); err != nil {
			s.sendError("%v", err)
		}
		// Echo the state either way so a rejected choice snaps back.
		s.sendPane(p)

	case ActionCopy:
		go s.ctrl.Copy(s.ctx, kind, s.clip, s)

	default:
		s.sendError("unknown action %q", msg.Action)
	}
}

// serveWebSocket upgrades the connection and runs one playground for it
// until the client goes away.
func (srv *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Failed to upgrade connection: %v", err)
		return
	}

	srv.wg.Add(1)
	defer srv.wg.Done()

	ctx, cancel := context.WithCancel(srv.ctx)
	s := &Session{
		id:     uuid.NewString(),
		conn:   conn,
		server: srv,
		debug:  srv.cfg.Server.Debug,
		ctx:    ctx,
		cancel: cancel,
	}
	s.clip = newBrowserClipboard(s, srv.cfg.Editor.GetClipboardTimeout())

	opts := append(srv.controllerOptions(), playground.WithSurface(s))
	ctrl, err := playground.New(r.Context(), srv.store, opts...)
	if err != nil {
		log.Printf("[WS] Failed to start playground: %v", err)
		s.sendError("failed to load playground: %v", err)
		cancel()
		conn.Close()
		return
	}
	s.ctrl = ctrl

	srv.RegisterSession(s)
	defer func() {
		cancel()
		if err := ctrl.Close(); err != nil {
			log.Printf("[WS] Session %s: close failed: %v", s.id, err)
		}
		srv.UnregisterSession(s)
		conn.Close()
	}()

	if err := s.sendInit(); err != nil {
		log.Printf("[WS] Session %s: failed to send init: %v", s.id, err)
		return
	}

	if s.debug {
		log.Printf("[WS] Client connected: %s (session %s)", conn.RemoteAddr(), s.id)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Unexpected close: %v", err)
			}
			break
		}
		var msg MessageEnvelope
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError("invalid message: %v", err)
			continue
		}
		if s.debug {
			log.Printf("[WS] Session %s received %s %s", s.id, msg.Action, msg.Pane)
		}
		s.handleMessage(msg)
	}

	if s.debug {
		log.Printf("[WS] Client disconnected: %s (session %s)", conn.RemoteAddr(), s.id)
	}
}
