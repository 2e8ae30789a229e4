package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"webgame/entity"
	"webgame/logger"
	"webgame/store"
)

// PlayerFactory 为首次登录的玩家名创建实体。在 Scheduler 锁内调用，可以向 world 加入其他实体。
// 返回值必须是玩家类型（entity.IsPlayer）。
type PlayerFactory func(world entity.Entities) entity.Controllable

// DefaultPlayerFactory 原点处的静止玩家
func DefaultPlayerFactory(world entity.Entities) entity.Controllable {
	return entity.NewPlayer("player")
}

// Options Scheduler 参数
type Options struct {
	GameName     string
	TickDuration time.Duration
	Conn         ConnOptions
	NewPlayer    PlayerFactory
}

// Scheduler 权威世界：持有实体集合与连接表，按固定 tick 推进、广播并持久化。
// mu 是唯一的临界区，世界与连接表只在其内修改。
type Scheduler struct {
	opts    Options
	store   store.Store
	metrics *Metrics
	now     func() time.Time

	mu       sync.Mutex
	world    entity.Entities
	conns    []*Conn
	stopping bool
	timer    *time.Timer
	wake     time.Time
	tickSeq  uint64
}

func NewScheduler(st store.Store, metrics *Metrics, opts Options) *Scheduler {
	if opts.TickDuration <= 0 {
		opts.TickDuration = 100 * time.Millisecond
	}
	if opts.GameName == "" {
		opts.GameName = "webgame"
	}
	if opts.NewPlayer == nil {
		opts.NewPlayer = DefaultPlayerFactory
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Scheduler{
		opts:    opts,
		store:   st,
		metrics: metrics,
		now:     time.Now,
		world:   make(entity.Entities),
	}
}

func (s *Scheduler) Metrics() *Metrics { return s.metrics }

// StartPersistence 连接存储并加载全部非玩家实体；失败即启动失败
func (s *Scheduler) StartPersistence(ctx context.Context) error {
	logger.Log.Infof("STARTUP: loading world")
	if err := s.store.Start(ctx); err != nil {
		return fmt.Errorf("start persistence: %w", err)
	}
	world, err := s.store.LoadAllNPEs(ctx)
	if err != nil {
		return fmt.Errorf("load world: %w", err)
	}

	var stationary, npcs int
	for _, e := range world {
		switch e.(type) {
		case *entity.Stationary:
			stationary++
		case *entity.NPC:
			npcs++
		}
	}
	s.mu.Lock()
	s.world = world
	s.metrics.Entities.Set(float64(len(world)))
	s.mu.Unlock()
	logger.Log.Infof("STARTUP: loaded %d stationary entities, %d character entities, %d total", stationary, npcs, len(world))
	return nil
}

// Info 运行状态快照
type Info struct {
	GameName     string  `json:"game_name"`
	TickDuration float64 `json:"tick_duration"`
	Tick         uint64  `json:"tick"`
	Connections  int     `json:"connections"`
	Ready        int     `json:"ready"`
	Entities     int     `json:"entities"`
	IOLog        bool    `json:"io_log"`
	DataLog      bool    `json:"data_log"`
}

func (s *Scheduler) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	ready := 0
	for _, c := range s.conns {
		if c.IsReady() {
			ready++
		}
	}
	return Info{
		GameName:     s.opts.GameName,
		TickDuration: s.opts.TickDuration.Seconds(),
		Tick:         s.tickSeq,
		Connections:  len(s.conns),
		Ready:        ready,
		Entities:     len(s.world),
		IOLog:        logger.IOLog(),
		DataLog:      logger.DataLog(),
	}
}
