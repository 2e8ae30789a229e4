package server

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"webgame/entity"
	"webgame/logger"
)

// State 连接状态。取值有序：Tick 与认证依赖大小比较
type State int32

const (
	StateNone State = iota
	StateReady
	StateHandshaking
	StateAuthenticating
	StateLoadingPlayer
	StateReading
	StateWriting
	StateToBeClosed
	StateClosing
	StateClosed
)

var stateNames = [...]string{
	"none", "ready", "handshaking", "authenticating", "loading_player",
	"reading", "writing", "to_be_closed", "closing", "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int32(s))
	}
	return stateNames[s]
}

// Transport 连接使用的消息套接字；*websocket.Conn 满足该接口
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Lobby 认证通过的连接交给它查重并加载玩家
type Lobby interface {
	Authenticate(c *Conn, name string) error
}

// ConnOptions 连接参数
type ConnOptions struct {
	ReadLimit    int64
	WriteTimeout time.Duration
	CloseTimeout time.Duration
}

func (o ConnOptions) withDefaults() ConnOptions {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 1 << 20
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.CloseTimeout <= 0 {
		o.CloseTimeout = 10 * time.Second
	}
	return o
}

// Conn 一个客户端连接的状态机。
// mu 串行化该连接的所有处理函数（读回调、写完成、关闭、注册），不同连接互不阻塞。
// 锁顺序：Scheduler.mu -> Conn.mu -> Conn.patchMu；持有 mu 时不得回调 Scheduler。
type Conn struct {
	id      string
	addr    string
	lobby   Lobby
	opts    ConnOptions
	metrics *Metrics

	mu         sync.Mutex
	ws         Transport
	state      State
	afterWrite State // 写完成后要回到的状态（loading_player 或 reading）
	outbox     [][]byte
	closeCode  int
	closeTimer *time.Timer
	name       string
	playerID   entity.ID
	bound      bool
	err        error

	wake     chan struct{}
	done     chan struct{}
	doneOnce sync.Once

	patchMu sync.Mutex
	patches []Patch
}

// NewConn 新连接处于 ready 状态，调用 Start 完成握手
func NewConn(addr string, lobby Lobby, opts ConnOptions, metrics *Metrics) *Conn {
	c := &Conn{
		id:      uuid.NewString(),
		addr:    addr,
		lobby:   lobby,
		opts:    opts.withDefaults(),
		metrics: metrics,
		state:   StateReady,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	c.logf("CONNECTED id=%s", c.id)
	return c
}

func (c *Conn) logf(format string, args ...any) {
	logger.Log.Infof("%s "+format, append([]any{c.addr}, args...)...)
}

func (c *Conn) ID() string   { return c.id }
func (c *Conn) Addr() string { return c.addr }

// Done 连接进入 closed 后关闭
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err 导致连接关闭的第一个错误；正常关闭为 nil
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Name 认证后的玩家名
func (c *Conn) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// PlayerID 已绑定的玩家实体 ID
func (c *Conn) PlayerID() (entity.ID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID, c.bound
}

// phase 写进行中时返回写完成后的状态
func (c *Conn) phase() State {
	if c.state == StateWriting {
		return c.afterWrite
	}
	return c.state
}

// IsReady 已注册且未在关闭
func (c *Conn) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase() == StateReading
}

// holdsName 该连接是否以 name 在线（authenticating < state < closing）
func (c *Conn) holdsName(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state > StateAuthenticating && c.state < StateClosing && c.name == name
}

// Start 执行握手；成功后开始读并进入 authenticating
func (c *Conn) Start(handshake func() (Transport, error)) {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return
	}
	c.state = StateHandshaking
	c.mu.Unlock()

	ws, err := handshake()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.logf("HANDSHAKE ERROR: %v", err)
		c.fail(fmt.Errorf("%w: handshake: %v", ErrNetwork, err))
		c.setClosed()
		return
	}
	if c.state != StateHandshaking {
		// 握手期间被关闭
		ws.Close()
		c.setClosed()
		return
	}
	c.ws = ws
	ws.SetReadLimit(c.opts.ReadLimit)
	c.state = StateAuthenticating
	go c.readLoop(ws)
	go c.writeLoop()
	c.logf("HANDSHAKED")
}

// Write 入队一条消息；写严格串行，同一时刻只有一个在途
func (c *Conn) Write(msg []byte) {
	c.mu.Lock()
	if c.state >= StateClosing {
		c.mu.Unlock()
		return
	}
	c.outbox = append(c.outbox, msg)
	c.mu.Unlock()
	c.kick()
}

func (c *Conn) kick() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Close 正常关闭；写在途时推迟到写完成
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doClose(websocket.CloseNormalClosure)
}

// closeWith 因错误关闭
func (c *Conn) closeWith(code int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail(err)
	c.doClose(code)
}

// abort 直接关闭底层传输，读协程随后进入 closed
func (c *Conn) abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws != nil && c.state != StateClosed {
		c.logf("ABORT")
		c.ws.Close()
	}
}

func (c *Conn) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// doClose 调用方持有 mu
func (c *Conn) doClose(code int) {
	switch c.state {
	case StateClosing, StateClosed:
		c.logf("WARNING: trying to close but connection is already %s", c.state)
		return
	case StateWriting:
		c.logf("CLOSE: pending write, closing after it completes")
		c.state = StateToBeClosed
		c.closeCode = code
		return
	case StateToBeClosed:
		return
	}
	if c.ws == nil {
		c.setClosed()
		return
	}

	c.logf("CLOSING code=%d", code)
	c.state = StateClosing
	c.closeCode = code
	// 对端在超时内没有确认关闭则强制关闭底层连接
	c.closeTimer = time.AfterFunc(c.opts.CloseTimeout, c.forceClose)
	ws := c.ws
	deadline := time.Now().Add(c.opts.WriteTimeout)
	go func() {
		msg := websocket.FormatCloseMessage(code, "")
		if err := ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			c.logf("CLOSE: cannot send close frame: %v", err)
		}
	}()
}

func (c *Conn) forceClose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateClosed {
		c.logf("CLOSE NOT ACKNOWLEDGED, closing transport")
		c.ws.Close()
	}
}

// setClosed 调用方持有 mu
func (c *Conn) setClosed() {
	c.state = StateClosed
	c.outbox = nil
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *Conn) readLoop(ws Transport) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.onReadError(ws, err)
			return
		}
		c.onRead(data)
	}
}

func (c *Conn) onReadError(ws Transport, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateClosing:
		if c.closeTimer != nil && c.closeTimer.Stop() {
			c.logf("ON CLOSE: graceful close")
		} else {
			c.logf("ON CLOSE: forced close")
		}
	case StateClosed:
	default:
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.logf("READ: session closed by peer")
		} else {
			c.logf("READ ERROR: %v", err)
			c.fail(fmt.Errorf("%w: read: %v", ErrNetwork, err))
		}
	}
	ws.Close()
	c.setClosed()
}

func (c *Conn) onRead(data []byte) {
	c.mu.Lock()
	phase := c.phase()
	switch phase {
	case StateToBeClosed, StateClosing, StateClosed:
		c.logf("READ: connection is closing, dropping %d bytes", len(data))
		c.mu.Unlock()
		return
	case StateLoadingPlayer:
		c.logf("READ ERROR: not supposed to receive data while loading player")
		c.fail(fmt.Errorf("%w: data received while loading player", ErrProtocol))
		c.doClose(websocket.CloseProtocolError)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if logger.IOLog() {
		if logger.DataLog() {
			c.logf("READ %d BYTES: %s", len(data), data)
		} else {
			c.logf("READ %d BYTES", len(data))
		}
	}
	c.interpret(phase, data)
}

// interpret 解析报文。认证在 mu 之外调用 Lobby，避免与 Scheduler 的锁顺序冲突
func (c *Conn) interpret(phase State, data []byte) {
	msg, err := parseClientMessage(data)
	if err == nil {
		if phase == StateAuthenticating {
			var name string
			if name, err = msg.authName(); err == nil {
				err = c.lobby.Authenticate(c, name)
			}
		} else if *msg.Order == "action" {
			var p Patch
			if p, err = msg.actionPatch(); err == nil {
				c.PushPatch(p)
			}
		} else {
			err = fmt.Errorf("%w: unknown order %q", ErrProtocol, *msg.Order)
		}
	}
	if err == nil {
		return
	}

	c.logf("INTERPRET ERROR: %v", err)
	code, reason := websocket.CloseProtocolError, "protocol"
	if errors.Is(err, ErrAuth) {
		code, reason = websocket.ClosePolicyViolation, "auth"
	}
	if c.metrics != nil {
		c.metrics.Rejects.WithLabelValues(reason).Inc()
	}
	c.closeWith(code, err)
}

// beginLoading 认证通过：记录玩家名并进入 loading_player。由 Scheduler 在其锁内调用
func (c *Conn) beginLoading(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAuthenticating {
		return false
	}
	c.name = name
	c.state = StateLoadingPlayer
	c.logf("LOADING PLAYER %s", name)
	return true
}

// bind 绑定玩家实体并进入 reading；是恢复正常读的唯一路径
func (c *Conn) bind(id entity.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase() != StateLoadingPlayer {
		return false
	}
	c.playerID, c.bound = id, true
	if c.state == StateWriting {
		c.afterWrite = StateReading
	} else {
		c.state = StateReading
	}
	c.logf("PLAYER LOADED id=%d", id)
	return true
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.wake:
		case <-c.done:
			return
		}
		for c.writeNext() {
		}
	}
}

// writeNext 写出队首消息；没有可写的消息或状态不允许写时返回 false
func (c *Conn) writeNext() bool {
	c.mu.Lock()
	if (c.state != StateLoadingPlayer && c.state != StateReading) || len(c.outbox) == 0 {
		c.mu.Unlock()
		return false
	}
	msg := c.outbox[0]
	c.afterWrite = c.state
	c.state = StateWriting
	ws := c.ws
	c.mu.Unlock()

	ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	err := ws.WriteMessage(websocket.TextMessage, msg)
	return c.onWrite(msg, err)
}

func (c *Conn) onWrite(msg []byte, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.outbox) > 0 {
		c.outbox[0] = nil
		c.outbox = c.outbox[1:]
	}

	if err != nil {
		c.logf("WRITE ERROR: %v", err)
		if c.state == StateWriting || c.state == StateToBeClosed {
			c.fail(fmt.Errorf("%w: write: %v", ErrNetwork, err))
			c.state = StateClosing
			c.ws.Close()
		}
		return false
	}

	if logger.IOLog() {
		if logger.DataLog() {
			c.logf("ON WRITE: %d WRITTEN: %s", len(msg), msg)
		} else {
			c.logf("ON WRITE: %d WRITTEN", len(msg))
		}
	}

	switch c.state {
	case StateToBeClosed:
		c.logf("ON WRITE: connection should be closed, closing it")
		c.state = c.afterWrite
		c.doClose(c.closeCode)
		return false
	case StateWriting:
		c.state = c.afterWrite
		return true
	}
	return false
}

// PushPatch 入队玩家操作；这是连接影响模拟的唯一通道
func (c *Conn) PushPatch(p Patch) {
	c.patchMu.Lock()
	c.patches = append(c.patches, p)
	c.patchMu.Unlock()
}

// DrainPatches 取出全部待应用的补丁（FIFO）
func (c *Conn) DrainPatches() []Patch {
	c.patchMu.Lock()
	defer c.patchMu.Unlock()
	out := c.patches
	c.patches = nil
	return out
}
