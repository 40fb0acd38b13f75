package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/syntaxstudio/internal/config"
	"github.com/livetemplate/syntaxstudio/internal/pane"
	"github.com/livetemplate/syntaxstudio/internal/preview"
	"github.com/livetemplate/syntaxstudio/internal/storage"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Storage.Driver = "memory"
	cfg.Editor.DebounceDelay = "10ms"
	cfg.Editor.ClipboardTimeout = "2s"
	cfg.API = &config.APIConfig{Enabled: true, RateLimit: &config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000}}
	return cfg
}

type testServer struct {
	srv   *Server
	http  *httptest.Server
	store *storage.Memory
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	store := storage.NewMemory()
	srv, err := New(cfg, store)
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		ts.Close()
	})
	return &testServer{srv: srv, http: ts, store: store}
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendAction(t *testing.T, conn *websocket.Conn, action, paneKey string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(MessageEnvelope{Action: action, Pane: paneKey, Data: raw}))
}

// readUntil reads messages until one matches action and accept.
func readUntil(t *testing.T, conn *websocket.Conn, action string, accept func(MessageEnvelope) bool) MessageEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg MessageEnvelope
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", action)
		if msg.Action == action && (accept == nil || accept(msg)) {
			return msg
		}
	}
}

func decode[T any](t *testing.T, msg MessageEnvelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(msg.Data, &v))
	return v
}

func previewContains(t *testing.T, want string) func(MessageEnvelope) bool {
	return func(msg MessageEnvelope) bool {
		return strings.Contains(decode[PreviewData](t, msg).Document, want)
	}
}

func TestServePage(t *testing.T) {
	ts := newTestServer(t, testConfig())

	resp, err := http.Get(ts.http.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.NotEmpty(t, resp.Header.Get("Content-Security-Policy"))

	page := string(body)
	for _, key := range []string{"html", "css", "js"} {
		assert.Contains(t, page, `data-pane="`+key+`"`)
	}
	assert.Contains(t, page, `sandbox="allow-scripts"`)
	assert.Contains(t, page, "/assets/playground.js")
	assert.Contains(t, page, "dracula")
	assert.Contains(t, page, "18px")
}

func TestRenderPageOptions(t *testing.T) {
	ts := newTestServer(t, testConfig())

	body, err := ts.srv.RenderPage()
	require.NoError(t, err)
	// Attribute values are HTML-escaped JSON.
	assert.Contains(t, string(body), "&#34;mode&#34;:&#34;javascript&#34;")
	assert.Contains(t, string(body), "&#34;Ctrl-Space&#34;:&#34;autocomplete&#34;")
}

func TestServeAssets(t *testing.T) {
	ts := newTestServer(t, testConfig())

	tests := []struct {
		path        string
		status      int
		contentType string
	}{
		{"/assets/playground.js", http.StatusOK, "application/javascript"},
		{"/assets/playground.css", http.StatusOK, "text/css"},
		{"/assets/missing.js", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(ts.http.URL + tt.path)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.contentType != "" {
				assert.Equal(t, tt.contentType, resp.Header.Get("Content-Type"))
			}
		})
	}
}

func TestCompression(t *testing.T) {
	ts := newTestServer(t, testConfig())

	req, _ := http.NewRequest("GET", ts.http.URL+"/assets/playground.js", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
}

func TestSessionInitAndFirstPreview(t *testing.T) {
	ts := newTestServer(t, testConfig())
	conn := ts.dial(t)

	init := decode[InitData](t, readUntil(t, conn, MessageInit, nil))
	assert.NotEmpty(t, init.Session)
	assert.Equal(t, "allow-scripts", init.Sandbox)
	require.Len(t, init.Panes, 3)
	assert.Equal(t, map[string]string{"html": "", "css": "", "js": ""}, init.Values)

	msg := readUntil(t, conn, MessagePreview, nil)
	assert.Equal(t, preview.Compose(preview.Document{}), decode[PreviewData](t, msg).Document)
}

func TestSessionEditRendersAndPersists(t *testing.T) {
	ts := newTestServer(t, testConfig())
	conn := ts.dial(t)
	readUntil(t, conn, MessageInit, nil)

	sendAction(t, conn, ActionEdit, "html", "<p>hi</p>")
	sendAction(t, conn, ActionEdit, "css", "p{color:red}")

	readUntil(t, conn, MessagePreview, previewContains(t, "<body><p>hi</p></body>\n  <style>p{color:red}</style>"))

	assert.Eventually(t, func() bool {
		raw, found, _ := ts.store.Get(context.Background(), "syntax-studio-css")
		return found && raw == `"p{color:red}"`
	}, 2*time.Second, 10*time.Millisecond)

	// A new tab starts from the stored buffers.
	second := ts.dial(t)
	init := decode[InitData](t, readUntil(t, second, MessageInit, nil))
	assert.Equal(t, "<p>hi</p>", init.Values["html"])
	assert.Equal(t, "p{color:red}", init.Values["css"])
}

func TestSessionPaneActions(t *testing.T) {
	ts := newTestServer(t, testConfig())
	conn := ts.dial(t)
	readUntil(t, conn, MessageInit, nil)

	sendAction(t, conn, ActionToggle, "css", nil)
	state := decode[pane.State](t, readUntil(t, conn, MessagePane, nil))
	assert.Equal(t, "css", state.Key)
	assert.False(t, state.Open)
	assert.Equal(t, []pane.Control{pane.ControlTitle, pane.ControlToggle}, state.Controls)

	sendAction(t, conn, ActionTheme, "js", "dracula")
	state = decode[pane.State](t, readUntil(t, conn, MessagePane, nil))
	assert.Equal(t, pane.ThemeDracula, state.Theme)
	assert.Equal(t, pane.ThemeDracula, state.Options.Theme)

	sendAction(t, conn, ActionFontSize, "js", "16px")
	state = decode[pane.State](t, readUntil(t, conn, MessagePane, nil))
	assert.Equal(t, pane.FontSize("16px"), state.FontSize)

	sendAction(t, conn, ActionTheme, "js", "neon")
	errMsg := decode[ErrorData](t, readUntil(t, conn, MessageError, nil))
	assert.Contains(t, errMsg.Message, "unknown theme")
	state = decode[pane.State](t, readUntil(t, conn, MessagePane, nil))
	assert.Equal(t, pane.ThemeDracula, state.Theme, "rejected theme leaves the pane unchanged")
}

func TestSessionRejectsBadMessages(t *testing.T) {
	ts := newTestServer(t, testConfig())
	conn := ts.dial(t)
	readUntil(t, conn, MessageInit, nil)

	sendAction(t, conn, ActionEdit, "python", "x")
	assert.Contains(t, decode[ErrorData](t, readUntil(t, conn, MessageError, nil)).Message, "unknown pane")

	sendAction(t, conn, "explode", "html", nil)
	assert.Contains(t, decode[ErrorData](t, readUntil(t, conn, MessageError, nil)).Message, "unknown action")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Contains(t, decode[ErrorData](t, readUntil(t, conn, MessageError, nil)).Message, "invalid message")

	// The session survives all of the above.
	sendAction(t, conn, ActionEdit, "js", "ok()")
	readUntil(t, conn, MessagePreview, previewContains(t, "<script>ok()</script>"))
}

func TestSessionCopy(t *testing.T) {
	ts := newTestServer(t, testConfig())
	conn := ts.dial(t)
	readUntil(t, conn, MessageInit, nil)

	sendAction(t, conn, ActionEdit, "css", "a{}")
	sendAction(t, conn, ActionCopy, "css", nil)

	req := decode[ClipboardRequest](t, readUntil(t, conn, MessageClipboard, nil))
	assert.Equal(t, "a{}", req.Text)
	sendAction(t, conn, ActionClipboardResult, "", clipboardResult{ID: req.ID, OK: true})

	note := decode[NotifyData](t, readUntil(t, conn, MessageNotify, nil))
	assert.Equal(t, pane.LevelInfo, note.Level)
	assert.Equal(t, "Copied to clipboard!", note.Message)

	sendAction(t, conn, ActionCopy, "css", nil)
	req = decode[ClipboardRequest](t, readUntil(t, conn, MessageClipboard, nil))
	sendAction(t, conn, ActionClipboardResult, "", clipboardResult{ID: req.ID, OK: false, Error: "NotAllowedError"})

	note = decode[NotifyData](t, readUntil(t, conn, MessageNotify, nil))
	assert.Equal(t, pane.LevelError, note.Level)
	assert.Contains(t, note.Message, "NotAllowedError")
}

func TestSessionCopyTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Editor.ClipboardTimeout = "50ms"
	ts := newTestServer(t, cfg)
	conn := ts.dial(t)
	readUntil(t, conn, MessageInit, nil)

	sendAction(t, conn, ActionCopy, "html", nil)
	readUntil(t, conn, MessageClipboard, nil)

	note := decode[NotifyData](t, readUntil(t, conn, MessageNotify, nil))
	assert.Equal(t, pane.LevelError, note.Level)
	assert.Contains(t, note.Message, "deadline exceeded")
}

func TestAPIDocument(t *testing.T) {
	ts := newTestServer(t, testConfig())
	conn := ts.dial(t)
	readUntil(t, conn, MessageInit, nil)

	req, _ := http.NewRequest(http.MethodPut, ts.http.URL+"/api/document/css", strings.NewReader("h1{}"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var doc preview.Document
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "h1{}", doc.Style)

	// The live session sees the new value and re-renders.
	value := readUntil(t, conn, MessageValue, nil)
	assert.Equal(t, "css", value.Pane)
	assert.Equal(t, "h1{}", decode[string](t, value))
	readUntil(t, conn, MessagePreview, previewContains(t, "<style>h1{}</style>"))

	resp, err = http.Get(ts.http.URL + "/api/document")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	resp.Body.Close()
	assert.Equal(t, preview.Document{Style: "h1{}"}, doc)

	resp, err = http.Get(ts.http.URL + "/api/preview")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "sandbox allow-scripts", resp.Header.Get("Content-Security-Policy"))
	assert.Equal(t, preview.Compose(doc), string(body))

	req, _ = http.NewRequest(http.MethodDelete, ts.http.URL+"/api/document", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	got, err := ts.srv.Document(context.Background())
	require.NoError(t, err)
	assert.Equal(t, preview.Document{}, got)
}

func TestAPIErrors(t *testing.T) {
	ts := newTestServer(t, testConfig())

	req, _ := http.NewRequest(http.MethodPut, ts.http.URL+"/api/document/python", strings.NewReader("x"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	big := strings.NewReader(strings.Repeat("a", maxRequestBodySize+1))
	req, _ = http.NewRequest(http.MethodPut, ts.http.URL+"/api/document/html", big)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodPost, ts.http.URL+"/api/document", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAPICorruptStoreFailsLoudly(t *testing.T) {
	ts := newTestServer(t, testConfig())
	require.NoError(t, ts.store.Set(context.Background(), "syntax-studio-js", "{oops"))

	resp, err := http.Get(ts.http.URL + "/api/document")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), "syntax-studio-js")
}

func TestAPIDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.API = nil
	ts := newTestServer(t, cfg)

	resp, err := http.Get(ts.http.URL + "/api/document")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSyncDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>seed</h1>"), 0644))

	ts := newTestServer(t, testConfig())
	require.NoError(t, ts.srv.EnableSync(dir))

	doc, err := ts.srv.Document(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<h1>seed</h1>", doc.Markup, "existing files are applied at start")

	conn := ts.dial(t)
	readUntil(t, conn, MessageInit, nil)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "script.js"), []byte("sync()"), 0644))
	readUntil(t, conn, MessagePreview, previewContains(t, "<script>sync()</script>"))

	assert.Eventually(t, func() bool {
		doc, err := ts.srv.Document(context.Background())
		return err == nil && doc.Script == "sync()"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestSyncDirectoryMissing(t *testing.T) {
	ts := newTestServer(t, testConfig())
	assert.Error(t, ts.srv.EnableSync(filepath.Join(t.TempDir(), "nope")))
	assert.Empty(t, ts.srv.SyncDir())
}

func TestSyncDirectorySwitchStopsPreviousWatcher(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	ts := newTestServer(t, testConfig())

	require.NoError(t, ts.srv.EnableSync(first))
	require.NoError(t, ts.srv.EnableSync(second))
	assert.Equal(t, second, ts.srv.SyncDir())

	require.NoError(t, os.WriteFile(filepath.Join(first, "index.html"), []byte("<p>stale folder</p>"), 0644))
	// A write to the active folder lands after the stale one would have.
	require.NoError(t, os.WriteFile(filepath.Join(second, "style.css"), []byte("p{}"), 0644))

	require.Eventually(t, func() bool {
		doc, err := ts.srv.Document(context.Background())
		return err == nil && doc.Style == "p{}"
	}, 2*time.Second, 20*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	doc, err := ts.srv.Document(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Markup, "writes to the previous sync folder are ignored")
}

func TestSyncDirectoryFailedSwitchKeepsCurrent(t *testing.T) {
	dir := t.TempDir()
	ts := newTestServer(t, testConfig())

	require.NoError(t, ts.srv.EnableSync(dir))
	require.Error(t, ts.srv.EnableSync(filepath.Join(t.TempDir(), "nope")))
	assert.Equal(t, dir, ts.srv.SyncDir())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "script.js"), []byte("still()"), 0644))
	assert.Eventually(t, func() bool {
		doc, err := ts.srv.Document(context.Background())
		return err == nil && doc.Script == "still()"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), func(pane.Kind, string) error { return nil }, false)
	require.NoError(t, err)
	w.Start()

	require.NoError(t, w.Stop())
	assert.NotPanics(t, func() { _ = w.Stop() })

	unstarted, err := NewWatcher(t.TempDir(), func(pane.Kind, string) error { return nil }, false)
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		_ = unstarted.Stop()
		_ = unstarted.Stop()
	})
}

func TestShutdownClosesSessions(t *testing.T) {
	ts := newTestServer(t, testConfig())
	conn := ts.dial(t)
	readUntil(t, conn, MessageInit, nil)

	assert.Eventually(t, func() bool { return len(ts.srv.Sessions()) == 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ts.srv.Shutdown(ctx))

	assert.Empty(t, ts.srv.Sessions())
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
