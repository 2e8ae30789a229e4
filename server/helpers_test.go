package server

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"webgame/entity"
	"webgame/store"
)

type frame struct {
	data []byte
	err  error
}

// fakeTransport 内存中的消息套接字
type fakeTransport struct {
	reads    chan frame
	gate     chan struct{} // 非空时每次 WriteMessage 需要取得一个令牌
	writing  chan struct{} // 每次 WriteMessage 开始时通知
	autoAck  bool          // 收到关闭帧后模拟对端确认
	closedCh chan struct{}
	once     sync.Once

	mu       sync.Mutex
	written  [][]byte
	controls []int
}

func newFakeTransport(autoAck bool) *fakeTransport {
	return &fakeTransport{
		reads:    make(chan frame, 64),
		writing:  make(chan struct{}, 64),
		autoAck:  autoAck,
		closedCh: make(chan struct{}),
	}
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	select {
	case fr := <-f.reads:
		if fr.err != nil {
			return 0, nil, fr.err
		}
		return websocket.TextMessage, fr.data, nil
	case <-f.closedCh:
		return 0, nil, net.ErrClosed
	}
}

func (f *fakeTransport) WriteMessage(messageType int, data []byte) error {
	select {
	case f.writing <- struct{}{}:
	default:
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-f.closedCh:
			return net.ErrClosed
		}
	}
	select {
	case <-f.closedCh:
		return net.ErrClosed
	default:
	}
	f.mu.Lock()
	f.written = append(f.written, append([]byte(nil), data...))
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) WriteControl(messageType int, data []byte, deadline time.Time) error {
	code := websocket.CloseNoStatusReceived
	if len(data) >= 2 {
		code = int(binary.BigEndian.Uint16(data))
	}
	f.mu.Lock()
	f.controls = append(f.controls, code)
	f.mu.Unlock()
	if f.autoAck {
		f.reads <- frame{err: &websocket.CloseError{Code: code}}
	}
	return nil
}

func (f *fakeTransport) SetReadLimit(limit int64)           {}
func (f *fakeTransport) SetWriteDeadline(t time.Time) error { return nil }

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closedCh) })
	return nil
}

func (f *fakeTransport) send(msg string) { f.reads <- frame{data: []byte(msg)} }

func (f *fakeTransport) messages() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.written))
	for _, w := range f.written {
		var m map[string]any
		if err := json.Unmarshal(w, &m); err != nil {
			m = map[string]any{"raw": string(w)}
		}
		out = append(out, m)
	}
	return out
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	f.written = nil
	f.mu.Unlock()
}

func (f *fakeTransport) closeCodes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.controls...)
}

const waitFor = 2 * time.Second
const pollEvery = 5 * time.Millisecond

func newTestScheduler(t *testing.T, opts Options) (*Scheduler, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	require.NoError(t, st.Start(context.Background()))
	if opts.GameName == "" {
		opts.GameName = "testgame"
	}
	if opts.Conn.CloseTimeout == 0 {
		opts.Conn.CloseTimeout = time.Second
	}
	s := NewScheduler(st, NewMetrics(), opts)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s, st
}

// connect 接入一个使用 fakeTransport 的连接
func connect(t *testing.T, s *Scheduler) (*Conn, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport(true)
	return connectWith(t, s, ft), ft
}

func connectWith(t *testing.T, s *Scheduler, ft *fakeTransport) *Conn {
	t.Helper()
	c := s.Accept("10.0.0.1:5000")
	require.NotNil(t, c)
	c.Start(func() (Transport, error) { return ft, nil })
	require.Equal(t, StateAuthenticating, c.State())
	t.Cleanup(func() { ft.Close() })
	return c
}

// settle 等待 ft 收到 n 条消息后清空记录
func settle(t *testing.T, ft *fakeTransport, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(ft.messages()) == n }, waitFor, pollEvery)
	ft.reset()
}

// login 认证并等待注册完成
func login(t *testing.T, s *Scheduler, name string) (*Conn, *fakeTransport, entity.ID) {
	t.Helper()
	c, ft := connect(t, s)
	ft.send(`{"order":"authentication","player_name":"` + name + `"}`)
	require.Eventually(t, c.IsReady, waitFor, pollEvery)
	require.Eventually(t, func() bool { return len(ft.messages()) >= 3 }, waitFor, pollEvery)
	id, ok := c.PlayerID()
	require.True(t, ok)
	return c, ft, id
}

// tickOnce 在锁内执行一次 tick
func tickOnce(s *Scheduler, nbTicks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick(nbTicks)
}

func orderOf(m map[string]any) string {
	o, _ := m["order"].(string)
	so, _ := m["suborder"].(string)
	return o + "/" + so
}

func idOf(v any) entity.ID {
	f, _ := v.(float64)
	return entity.ID(f)
}
