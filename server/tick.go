package server

import (
	"time"

	"webgame/entity"
	"webgame/logger"
)

// StartGame 启动 tick 循环：第一次在下一个整秒（delta 为 0），之后每 TickDuration 一次
func (s *Scheduler) StartGame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopping = false
	now := s.now()
	s.wake = ceilSecond(now)
	s.schedule(now, true)
	logger.Log.Infof("STARTUP: first game cycle in %s with tick duration of %s", s.wake.Sub(now), s.opts.TickDuration)
}

func ceilSecond(t time.Time) time.Time {
	c := t.Truncate(time.Second)
	if c.Before(t) {
		c = c.Add(time.Second)
	}
	return c
}

// dueTicks 预定在 wake 的回调于 now 执行：返回本次覆盖的边界数（wake 本身算一个，至少 1）
// 与 now 之后的下一个边界
func dueTicks(wake, now time.Time, tick time.Duration) (time.Time, int) {
	n := 1
	next := wake.Add(tick)
	for !next.After(now) {
		next = next.Add(tick)
		n++
	}
	return next, n
}

// schedule 调用方持有 mu
func (s *Scheduler) schedule(now time.Time, first bool) {
	s.timer = time.AfterFunc(s.wake.Sub(now), func() { s.cycle(first) })
}

// cycle 定时器回调：先数出错过的边界，用 N × TickDuration 执行一次 tick，再安排下一次
func (s *Scheduler) cycle(first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		logger.Log.Infof("GAME LOOP: stopped")
		return
	}

	wake, n := dueTicks(s.wake, s.now(), s.opts.TickDuration)
	s.wake = wake
	if first {
		n = 0
	} else if n > 1 {
		logger.Log.Warnf("GAME LOOP: late by %d tick(s)", n-1)
	}

	s.tick(n)
	s.schedule(s.now(), false)
}

// tick 一次模拟步，delta = nbTicks × TickDuration。
// 阶段依次为：清理断开的连接、应用补丁、模拟、触发保存、广播。调用方持有 mu。
func (s *Scheduler) tick(nbTicks int) {
	start := time.Now()
	s.tickSeq++
	delta := (s.opts.TickDuration * time.Duration(nbTicks)).Seconds()

	removed := s.removeClosed()
	bound := s.boundConns()
	s.applyPatches(bound)
	changed := s.simulate(delta, bound)
	s.save()
	s.broadcast(removed, changed)

	s.metrics.Entities.Set(float64(len(s.world)))
	s.metrics.AddTick(time.Since(start), nbTicks)
}

// boundConns 已绑定玩家的连接，按玩家 ID 索引
func (s *Scheduler) boundConns() map[entity.ID]*Conn {
	out := make(map[entity.ID]*Conn, len(s.conns))
	for _, c := range s.conns {
		if id, ok := c.PlayerID(); ok {
			out[id] = c
		}
	}
	return out
}

// applyPatches 按提交顺序应用每个就绪连接的补丁；坏补丁记录后跳过
func (s *Scheduler) applyPatches(bound map[entity.ID]*Conn) {
	for id, c := range bound {
		if !c.IsReady() {
			continue
		}
		patches := c.DrainPatches()
		if len(patches) == 0 {
			continue
		}
		p, ok := s.world[id].(entity.Controllable)
		if !ok {
			logger.Log.Errorf("GAME LOOP: conn %s bound to %d which is not a controllable entity", c.Addr(), id)
			continue
		}
		for _, patch := range patches {
			if err := applyPatch(p, patch); err != nil {
				logger.Log.Warnf("GAME LOOP: patch skipped, conn %s entity %d: %v", c.Addr(), id, err)
				s.metrics.Patches.WithLabelValues("skipped").Inc()
				continue
			}
			s.metrics.Patches.WithLabelValues("applied").Inc()
		}
	}
}

// simulate 更新所有存活实体（所属连接未就绪的玩家除外），返回发生变化的实体
func (s *Scheduler) simulate(delta float64, bound map[entity.ID]*Conn) entity.Entities {
	alive := make(entity.Entities, len(s.world))
	for id, e := range s.world {
		if entity.IsPlayer(e) {
			if c, ok := bound[id]; !ok || !c.IsReady() {
				continue
			}
		}
		alive[id] = e
	}

	changed := make(entity.Entities)
	for _, e := range alive.Sorted() {
		if e.Update(delta, entity.NewEnv(alive, e.ID())) {
			changed.Add(e)
		}
	}
	return changed
}

// save 保存整个世界，不等待完成
func (s *Scheduler) save() {
	s.store.AsyncSave(s.world, func(err error) {
		if err != nil {
			logger.Log.Warnf("GAME LOOP: save failed: %v", err)
			s.metrics.Saves.WithLabelValues("failed").Inc()
			return
		}
		s.metrics.Saves.WithLabelValues("ok").Inc()
	})
}

// broadcast 依次发送：移除消息、变化实体（去掉接收者自己）、接收者自己的玩家状态
func (s *Scheduler) broadcast(removed []entity.ID, changed entity.Entities) {
	ready := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		if c.IsReady() {
			ready = append(ready, c)
		}
	}

	if len(removed) > 0 {
		msg := removeEntitiesMsg(removed)
		for _, c := range ready {
			c.Write(msg)
		}
	}

	if len(changed) > 0 {
		msg := entitiesMsg(changed)
		for _, c := range ready {
			id, _ := c.PlayerID()
			if _, own := changed[id]; !own {
				c.Write(msg)
				continue
			}
			if len(changed) > 1 {
				others := changed.Clone()
				delete(others, id)
				c.Write(entitiesMsg(others))
			}
		}
	}

	for _, c := range ready {
		id, _ := c.PlayerID()
		if p, ok := s.world[id]; ok {
			c.Write(playerStateMsg(p))
		}
	}
}
