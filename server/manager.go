package server

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"webgame/entity"
	"webgame/logger"
)

// 连接表管理：接入、认证查重、断开清理与关闭

// Accept 为新接入的套接字创建连接并加入连接表；服务关闭中返回 nil
func (s *Scheduler) Accept(addr string) *Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return nil
	}
	c := NewConn(addr, s, s.opts.Conn, s.metrics)
	s.conns = append(s.conns, c)
	s.metrics.Connections.Set(float64(len(s.conns)))
	logger.Log.Infof("SERVER ACCEPT: new connection from %s", addr)
	return c
}

// Authenticate 检查玩家名未在线后，把连接切到 loading_player 并开始加载玩家。
// 查重与状态切换在同一临界区内完成，同名的并发认证只有一个会成功。
func (s *Scheduler) Authenticate(c *Conn, name string) error {
	if name == "" {
		return fmt.Errorf("%w: invalid player name", ErrAuth)
	}
	s.mu.Lock()
	for _, other := range s.conns {
		if other != c && other.holdsName(name) {
			s.mu.Unlock()
			return fmt.Errorf("%w: player %s already connected", ErrAuth, name)
		}
	}
	ok := c.beginLoading(name)
	s.mu.Unlock()
	if ok {
		s.loadPlayer(c, name)
	}
	return nil
}

// IsPlayerConnected 是否有在线连接使用该玩家名
func (s *Scheduler) IsPlayerConnected(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		if c.holdsName(name) {
			return true
		}
	}
	return false
}

// removeClosed 从连接表与世界中移除正在关闭或已关闭的连接及其玩家，返回被移除的实体 ID。
// 同一玩家已在新连接上重新注册时，实体归新连接所有，保留在世界中。调用方持有 mu。
func (s *Scheduler) removeClosed() []entity.ID {
	// 状态只读一次，两轮判断基于同一快照
	closed := make([]bool, len(s.conns))
	claimed := make(map[entity.ID]bool)
	for i, c := range s.conns {
		closed[i] = c.State() > StateToBeClosed
		if id, ok := c.PlayerID(); ok && !closed[i] {
			claimed[id] = true
		}
	}

	var removed []entity.ID
	kept := s.conns[:0]
	for i, c := range s.conns {
		if !closed[i] {
			kept = append(kept, c)
			continue
		}
		if id, ok := c.PlayerID(); ok {
			if claimed[id] {
				logger.Log.Infof("GAME LOOP: id %d is owned by a newer connection, keeping it", id)
			} else if _, inWorld := s.world[id]; inWorld {
				delete(s.world, id)
				removed = append(removed, id)
				logger.Log.Infof("GAME LOOP: removing id %d from entities", id)
			}
		}
		logger.Log.Infof("GAME LOOP: removing conn %s from connections", c.Addr())
	}
	for i := len(kept); i < len(s.conns); i++ {
		s.conns[i] = nil
	}
	s.conns = kept
	s.metrics.Connections.Set(float64(len(s.conns)))
	return removed
}

// Shutdown 停止 tick 循环，关闭所有连接并等待其结束，最后停止存储。
// ctx 到期时仍未结束的连接被强制断开。
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return nil
	}
	logger.Log.Infof("SHUTDOWN: stopping game loop")
	s.stopping = true
	if s.timer != nil {
		s.timer.Stop()
	}
	conns := s.conns
	s.conns = nil
	for _, c := range conns {
		logger.Log.Infof("SHUTDOWN: closing connection %s", c.Addr())
		c.Close()
	}
	s.world = make(entity.Entities)
	s.metrics.Connections.Set(0)
	s.metrics.Entities.Set(0)
	s.mu.Unlock()

	var err error
	for _, c := range conns {
		select {
		case <-c.Done():
		case <-ctx.Done():
			err = multierr.Append(err, fmt.Errorf("connection %s: %w", c.Addr(), ctx.Err()))
			c.abort()
		}
	}

	logger.Log.Infof("SHUTDOWN: stopping persistence")
	return multierr.Append(err, s.store.Stop())
}
