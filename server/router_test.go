package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webgame/entity"
	"webgame/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndInfo(t *testing.T) {
	s, _ := newTestScheduler(t, Options{})
	s.world.Add(entity.NewStationary("rock", entity.Vec(0, 0)))
	r := NewRouter(s)

	w := serve(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = serve(r, http.MethodGet, "/admin/info", "")
	require.Equal(t, http.StatusOK, w.Code)
	var info Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "testgame", info.GameName)
	assert.Equal(t, 1, info.Entities)
}

func TestAdminLog(t *testing.T) {
	t.Cleanup(func() {
		logger.SetIOLog(false)
		logger.SetDataLog(false)
	})
	s, _ := newTestScheduler(t, Options{})
	r := NewRouter(s)

	w := serve(r, http.MethodPost, "/admin/log", `{"io":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"io":true,"data":false}`, w.Body.String())

	w = serve(r, http.MethodPost, "/admin/log", `{"data":true}`)
	assert.JSONEq(t, `{"io":true,"data":true}`, w.Body.String())

	w = serve(r, http.MethodGet, "/admin/log", "")
	assert.JSONEq(t, `{"io":true,"data":true}`, w.Body.String())

	w = serve(r, http.MethodPost, "/admin/log", `{"io":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestScheduler(t, Options{})
	tickOnce(s, 1)
	r := NewRouter(s)
	serve(r, http.MethodGet, "/healthz", "")

	w := serve(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "webgame_ticks_total 1")
	assert.Contains(t, body, "webgame_http_request_duration_seconds")
	assert.Contains(t, body, "go_goroutines")
}

func TestWSRejectedWhileShuttingDown(t *testing.T) {
	s, _ := newTestScheduler(t, Options{})
	require.NoError(t, s.Shutdown(context.Background()))
	w := serve(NewRouter(s), http.MethodGet, "/ws", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func readJSON(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(waitFor)))
	var m map[string]any
	require.NoError(t, ws.ReadJSON(&m))
	return m
}

func TestWebsocketSession(t *testing.T) {
	s, _ := newTestScheduler(t, Options{TickDuration: 100 * time.Millisecond})
	srv := httptest.NewServer(NewRouter(s))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(map[string]any{"order": "authentication", "player_name": "alice"}))
	game := readJSON(t, ws)
	assert.Equal(t, "state/game", orderOf(game))
	player := readJSON(t, ws)
	assert.Equal(t, "state/player", orderOf(player))
	id := idOf(player["id"])
	assert.Equal(t, "state/entities", orderOf(readJSON(t, ws)))
	require.True(t, s.IsPlayerConnected("alice"))

	require.NoError(t, ws.WriteJSON(map[string]any{"order": "action", "suborder": "change_speed", "speed": 1}))
	require.Eventually(t, func() bool {
		tickOnce(s, 1)
		e, ok := worldEntity(s, id)
		return ok && e.(*entity.Player).Speed() == 1
	}, waitFor, 20*time.Millisecond)

	var moved map[string]any
	for moved == nil {
		m := readJSON(t, ws)
		require.Equal(t, "state/player", orderOf(m))
		if m["speed"] == 1.0 {
			moved = m
		}
	}
	pos := moved["pos"].(map[string]any)
	assert.Less(t, pos["y"].(float64), 0.0)

	require.NoError(t, ws.WriteJSON(map[string]any{"order": "dance"}))
	for {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(waitFor)))
		_, _, err = ws.ReadMessage()
		if err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseProtocolError), "got %v", err)
	require.Eventually(t, func() bool { return !s.IsPlayerConnected("alice") }, waitFor, pollEvery)
}
