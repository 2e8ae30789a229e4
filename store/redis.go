package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/go-redis/redis/v8"

	"webgame/entity"
	"webgame/logger"
)

// RedisOptions Redis 连接参数；DB 即命名空间
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore 基于 Redis 的存储。多键写入使用 MULTI/EXEC，
// 所有异步请求经同一个队列，保证不会在连接上交错
type RedisStore struct {
	opts   RedisOptions
	ctx    context.Context
	client *redis.Client
	queue  *taskQueue
	once   sync.Once
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(opts RedisOptions) *RedisStore {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	return &RedisStore{opts: opts, ctx: context.Background(), queue: newTaskQueue()}
}

func (s *RedisStore) Start(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:     s.opts.Addr,
		Password: s.opts.Password,
		DB:       s.opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("%w: redis %s db %d: %w", ErrStartup, s.opts.Addr, s.opts.DB, err)
	}
	s.client = client
	s.queue.start()
	logger.Log.Infof("redis store connected to %s, db %d", s.opts.Addr, s.opts.DB)
	return nil
}

// Stop 等待在途请求完成后断开；可重复调用
func (s *RedisStore) Stop() error {
	var err error
	s.once.Do(func() {
		s.queue.stop()
		if s.client != nil {
			err = s.client.Close()
			logger.Log.Infof("redis store disconnected from %s", s.opts.Addr)
		}
	})
	return err
}

// Pending 排队中的请求数
func (s *RedisStore) Pending() int { return s.queue.pending() }

func (s *RedisStore) submit(task func(), fail func(error)) {
	if !s.queue.push(task) {
		go fail(opErr("submit", errStopped))
	}
}

func (s *RedisStore) AsyncSave(es entity.Entities, done func(err error)) {
	records, err := encode(es)
	s.submit(func() {
		if err != nil {
			done(err)
			return
		}
		if len(records) == 0 {
			done(nil)
			return
		}
		_, err := s.client.TxPipelined(s.ctx, func(p redis.Pipeliner) error {
			for _, r := range records {
				p.Set(s.ctx, r.key, r.value, 0)
			}
			return nil
		})
		done(opErr("save", err))
	}, done)
}

func (s *RedisStore) LoadAllNPEs(ctx context.Context) (entity.Entities, error) {
	if s.client == nil {
		return nil, opErr("load npes", errNotStarted)
	}
	var keys []string
	iter := s.client.Scan(ctx, 0, npePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, opErr("scan", err)
	}

	out := make(entity.Entities, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	cmds, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			p.Get(ctx, k)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, opErr("load npes", err)
	}
	for i, cmd := range cmds {
		text, err := cmd.(*redis.StringCmd).Result()
		if errors.Is(err, redis.Nil) {
			continue // 扫描后被删除
		}
		if err != nil {
			return nil, opErr("get "+keys[i], err)
		}
		e, err := entity.Unmarshal([]byte(text))
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", keys[i], err)
		}
		out.Add(e)
	}
	return out, nil
}

func (s *RedisStore) AsyncCheckPlayer(name string, done func(exists bool, id entity.ID, err error)) {
	s.submit(func() {
		raw, err := s.client.Get(s.ctx, nameKey(name)).Result()
		if errors.Is(err, redis.Nil) {
			done(false, 0, nil)
			return
		}
		if err != nil {
			done(false, 0, opErr("check player", err))
			return
		}
		id, err := parseID(raw)
		done(err == nil, id, err)
	}, func(err error) { done(false, 0, err) })
}

func (s *RedisStore) AsyncGetPlayer(id entity.ID, done func(found bool, p entity.Entity, err error)) {
	s.submit(func() {
		text, err := s.client.Get(s.ctx, playerKey(id)).Result()
		if errors.Is(err, redis.Nil) {
			done(false, nil, nil)
			return
		}
		if err != nil {
			done(false, nil, opErr("get player", err))
			return
		}
		p, err := entity.Unmarshal([]byte(text))
		if err != nil {
			done(false, nil, fmt.Errorf("load %s: %w", playerKey(id), err))
			return
		}
		done(true, p, nil)
	}, func(err error) { done(false, nil, err) })
}

func (s *RedisStore) AsyncAddPlayer(name string, p entity.Entity, done func(err error)) {
	text, err := entity.Marshal(p)
	s.submit(func() {
		if err != nil {
			done(err)
			return
		}
		_, err := s.client.TxPipelined(s.ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(s.ctx, KeyOf(p), string(text), 0)
			pipe.Set(s.ctx, nameKey(name), strconv.FormatUint(uint64(p.ID()), 10), 0)
			return nil
		})
		done(opErr("add player", err))
	}, done)
}

func (s *RedisStore) RemoveAll(ctx context.Context) error {
	if s.client == nil {
		return opErr("flushdb", errNotStarted)
	}
	if err := s.client.FlushDB(ctx).Err(); err != nil {
		return opErr("flushdb", err)
	}
	logger.Log.Infof("redis store db %d flushed", s.opts.DB)
	return nil
}
