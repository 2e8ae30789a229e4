package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"webgame/logger"
)

const (
	writeTimeout = 5 * time.Second
	closeWait    = 2 * time.Second
)

var errGone = errors.New("connection closed by server")

// stats 全部机器人共享的计数
type stats struct {
	connected atomic.Int64
	failed    atomic.Int64
	sent      atomic.Int64
	received  atomic.Int64
}

// bot 一个玩家连接。写只在所属 worker 中进行，读在单独的协程
type bot struct {
	name    string
	ws      *websocket.Conn
	stats   *stats
	ready   chan struct{} // 收到第一条玩家状态后关闭
	done    chan struct{} // 读协程退出后关闭
	moving  bool
	onReady sync.Once
}

// dial 连接并发送认证报文
func dial(ctx context.Context, url, name string, st *stats) (*bot, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	b := &bot{
		name:  name,
		ws:    ws,
		stats: st,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
	if err := b.send(map[string]any{"order": "authentication", "player_name": name}); err != nil {
		ws.Close()
		return nil, err
	}
	go b.readLoop()
	return b, nil
}

func (b *bot) send(msg any) error {
	b.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := b.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("%s: write: %w", b.name, err)
	}
	b.stats.sent.Add(1)
	return nil
}

func (b *bot) readLoop() {
	defer close(b.done)
	for {
		var msg struct {
			Order    string `json:"order"`
			Suborder string `json:"suborder"`
		}
		if err := b.ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Log.Infof("%s: read: %v", b.name, err)
			}
			return
		}
		b.stats.received.Add(1)
		if msg.Order == "state" && msg.Suborder == "player" {
			b.onReady.Do(func() { close(b.ready) })
		}
	}
}

// step 注册完成前什么都不发（加载期间发数据会被断开）；之后先设置速度，再随机改变方向
func (b *bot) step(rnd *rand.Rand, speed float64) error {
	select {
	case <-b.done:
		return fmt.Errorf("%s: %w", b.name, errGone)
	default:
	}
	select {
	case <-b.ready:
	default:
		return nil
	}
	if !b.moving {
		if err := b.send(map[string]any{"order": "action", "suborder": "change_speed", "speed": speed}); err != nil {
			return err
		}
		b.moving = true
	}
	dir := map[string]float64{"x": rnd.Float64()*2 - 1, "y": rnd.Float64()*2 - 1}
	return b.send(map[string]any{"order": "action", "suborder": "change_dir", "dir": dir})
}

// close 发送关闭帧，等待服务器确认后断开
func (b *bot) close() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := b.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout)); err == nil {
		select {
		case <-b.done:
		case <-time.After(closeWait):
		}
	}
	b.ws.Close()
}
