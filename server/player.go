package server

import (
	"webgame/entity"
	"webgame/logger"
)

// 玩家注册：先按名字查存储，不存在则用 PlayerFactory 创建并持久化，再绑定到连接

func (s *Scheduler) loadPlayer(c *Conn, name string) {
	s.store.AsyncCheckPlayer(name, func(exists bool, id entity.ID, err error) {
		if err != nil {
			logger.Log.Errorf("SERVER: cannot look up player %s: %v", name, err)
			c.Close()
			return
		}
		if !exists {
			s.createPlayer(c, name)
			return
		}
		s.store.AsyncGetPlayer(id, func(found bool, e entity.Entity, err error) {
			if err != nil || !found {
				logger.Log.Errorf("SERVER: player name %s exists but not its data (%v), closing connection", name, err)
				c.Close()
				return
			}
			p, ok := e.(entity.Controllable)
			if !ok || !entity.IsPlayer(e) {
				logger.Log.Errorf("SERVER: stored player %s has kind %s, closing connection", name, e.Type())
				c.Close()
				return
			}
			s.RegisterPlayer(c, p)
		})
	})
}

func (s *Scheduler) createPlayer(c *Conn, name string) {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		c.Close()
		return
	}
	p := s.opts.NewPlayer(s.world)
	s.mu.Unlock()

	if p == nil || !entity.IsPlayer(p) {
		logger.Log.Errorf("SERVER: player factory returned a non-player entity for %s", name)
		c.Close()
		return
	}
	s.store.AsyncAddPlayer(name, p, func(err error) {
		if err != nil {
			logger.Log.Errorf("SERVER: cannot persist new player %s: %v", name, err)
			c.Close()
			return
		}
		s.RegisterPlayer(c, p)
	})
}

// RegisterPlayer 绑定连接与玩家实体，依次发送游戏信息、玩家状态、完整世界，
// 再把新玩家广播给其他就绪连接，最后加入世界
func (s *Scheduler) RegisterPlayer(c *Conn, p entity.Controllable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		c.Close()
		return
	}
	if !c.bind(p.ID()) {
		logger.Log.Warnf("SERVER: conn %s left loading_player before player %d was registered", c.Addr(), p.ID())
		return
	}

	c.Write(gameInfoMsg(s.opts.GameName, s.opts.TickDuration.Seconds()))
	c.Write(playerStateMsg(p))
	world := s.world
	if _, stale := world[p.ID()]; stale {
		// 旧连接尚未被 tick 清理，世界里还留着该玩家
		world = world.Clone()
		delete(world, p.ID())
	}
	c.Write(entitiesMsg(world))

	var announce []byte
	for _, other := range s.conns {
		if other == c || !other.IsReady() {
			continue
		}
		if announce == nil {
			announce = entitiesMsg(entity.Entities{p.ID(): p})
		}
		other.Write(announce)
	}

	s.world.Add(p)
	s.metrics.Entities.Set(float64(len(s.world)))
	logger.Log.Infof("SERVER: player %s registered as %d", c.Name(), p.ID())
}
