package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwarner/greenflow/internal/config"
	"github.com/mwarner/greenflow/internal/database"
	"github.com/mwarner/greenflow/internal/history"
	"github.com/mwarner/greenflow/internal/script"
	"github.com/mwarner/greenflow/internal/terminal"
	"github.com/mwarner/greenflow/internal/tn3270/tn3270test"
)

type fixture struct {
	srv    *Server
	dialer *tn3270test.Dialer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	dialer := tn3270test.NewDialer()
	registry := terminal.NewRegistry(log, dialer, terminal.NewPool(4))
	t.Cleanup(func() { registry.Shutdown(context.Background()) })

	scripts, err := script.NewStore(log, t.TempDir())
	require.NoError(t, err)

	db, err := database.Open(filepath.Join(t.TempDir(), "greenflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Default()
	srv := New(Deps{
		Log:      log,
		Cfg:      cfg,
		Registry: registry,
		Scripts:  scripts,
		Executor: script.NewExecutor(log, registry),
		History:  history.NewStore(db),
	})
	return &fixture{srv: srv, dialer: dialer}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func (f *fixture) connect(t *testing.T, host string) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/v1/connections/connect", map[string]any{"host": host})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	info := decodeBody[terminal.SessionInfo](t, w)
	require.NotEmpty(t, info.ID)
	return info.ID
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"status": "ok"}, decodeBody[map[string]string](t, w))
}

func TestConnectAndSessions(t *testing.T) {
	f := newFixture(t)

	id := f.connect(t, "mainframe.example")

	w := f.do(t, http.MethodGet, "/v1/connections/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[map[string][]terminal.SessionInfo](t, w)
	require.Len(t, resp["sessions"], 1)
	assert.Equal(t, id, resp["sessions"][0].ID)
	assert.True(t, resp["sessions"][0].Connected)
	assert.Equal(t, 23, resp["sessions"][0].Port)
}

func TestConnectDefaultsPort(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/v1/connections/connect", map[string]any{"host": "h"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "h:23", f.dialer.LastHandle().Address)
}

func TestConnectMissingHost(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/v1/connections/connect", map[string]any{"port": 23})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConnectFailureRemovesSession(t *testing.T) {
	f := newFixture(t)
	f.dialer.DialErr = errors.New("host unreachable")

	w := f.do(t, http.MethodPost, "/v1/connections/connect", map[string]any{"host": "down.example"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = f.do(t, http.MethodGet, "/v1/connections/sessions", nil)
	resp := decodeBody[map[string][]terminal.SessionInfo](t, w)
	assert.Empty(t, resp["sessions"])
}

func TestDisconnect(t *testing.T) {
	f := newFixture(t)
	id := f.connect(t, "mainframe.example")

	w := f.do(t, http.MethodPost, "/v1/connections/disconnect/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, f.dialer.OpenHandles())

	w = f.do(t, http.MethodPost, "/v1/connections/disconnect/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScreen(t *testing.T) {
	f := newFixture(t)
	id := f.connect(t, "mainframe.example")
	f.dialer.LastHandle().SetScreen("READY")

	w := f.do(t, http.MethodGet, "/v1/connections/screen/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeBody[map[string]any](t, w)
	assert.Equal(t, "READY", snap["text"])
	assert.Equal(t, float64(24), snap["rows"])

	w = f.do(t, http.MethodGet, "/v1/connections/screen/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInputOrder(t *testing.T) {
	f := newFixture(t)
	id := f.connect(t, "mainframe.example")

	row, col := 5, 11
	w := f.do(t, http.MethodPost, "/v1/connections/input", map[string]any{
		"session_id": id,
		"row":        row,
		"col":        col,
		"text":       "LOGON TSO",
		"key":        "enter",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, []string{
		"move_cursor(6,12)",
		"send_text(LOGON TSO)",
		"send_key(Enter)",
	}, f.dialer.LastHandle().Calls())
}

func TestInputRowWithoutCol(t *testing.T) {
	f := newFixture(t)
	id := f.connect(t, "mainframe.example")

	w := f.do(t, http.MethodPost, "/v1/connections/input", map[string]any{
		"session_id": id,
		"row":        5,
		"text":       "x",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func scriptBody(id string) map[string]any {
	return map[string]any{
		"id":   id,
		"name": "logon",
		"host": "mainframe.example",
		"steps": []map[string]any{
			{"id": "s1", "action": "send_text", "text": "LOGON TSO"},
			{"id": "s2", "action": "send_key", "key": "enter"},
		},
	}
}

func TestScriptCRUD(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/v1/automation/scripts", scriptBody("logon"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/v1/automation/scripts", scriptBody("logon"))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodGet, "/v1/automation/scripts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[map[string][]script.Summary](t, w)
	require.Len(t, list["scripts"], 1)
	assert.Equal(t, 2, list["scripts"][0].StepsCount)

	w = f.do(t, http.MethodGet, "/v1/automation/scripts/logon", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	updated := scriptBody("logon")
	updated["name"] = "logon v2"
	w = f.do(t, http.MethodPut, "/v1/automation/scripts/logon", updated)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, "/v1/automation/scripts/logon", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/v1/automation/scripts/logon", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateScriptMissingFields(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/v1/automation/scripts", map[string]any{"id": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExecuteAndRunHistory(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/v1/automation/scripts", scriptBody("logon"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodPost, "/v1/automation/execute/logon", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	run := decodeBody[script.Run](t, w)
	assert.Equal(t, script.RunCompleted, run.Status)
	// connect bookkeeping plus the two steps.
	require.Len(t, run.Log, 3)
	assert.Equal(t, "connect", run.Log[0].StepID)

	// The run-created session stays registered for inspection.
	w = f.do(t, http.MethodGet, "/v1/connections/sessions", nil)
	sessions := decodeBody[map[string][]terminal.SessionInfo](t, w)
	require.Len(t, sessions["sessions"], 1)
	assert.Equal(t, run.SessionID, sessions["sessions"][0].ID)

	w = f.do(t, http.MethodGet, "/v1/automation/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	runs := decodeBody[map[string][]history.RunSummary](t, w)
	require.Len(t, runs["runs"], 1)
	assert.Equal(t, run.ID, runs["runs"][0].ID)

	w = f.do(t, http.MethodGet, "/v1/automation/runs/"+run.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	saved := decodeBody[script.Run](t, w)
	assert.Equal(t, run.Status, saved.Status)
	assert.Len(t, saved.Log, 3)

	w = f.do(t, http.MethodGet, "/v1/automation/runs/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExecuteUnknownScript(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/v1/automation/execute/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExecuteConnectFailure(t *testing.T) {
	f := newFixture(t)
	f.dialer.DialErr = errors.New("host unreachable")

	w := f.do(t, http.MethodPost, "/v1/automation/scripts", scriptBody("logon"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodPost, "/v1/automation/execute/logon", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestWatchUnknownSession(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/v1/watch/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWatchStreamsNDJSON(t *testing.T) {
	f := newFixture(t)
	id := f.connect(t, "mainframe.example")
	f.dialer.LastHandle().SetScreen("READY")

	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/watch/"+id, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)

	var event map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &event))
	assert.Equal(t, "screen_update", event["type"])
	data, ok := event["data"].(map[string]any)
	require.True(t, ok, "event: %s", line)
	assert.Equal(t, "READY", data["text"])
}

func TestCORSHeaders(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/v1/connections/connect", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w = httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
