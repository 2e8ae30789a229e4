// Package store 世界的持久化端口：异步、按键存取实体
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"webgame/entity"
)

var (
	// ErrStartup 存储在启动时不可用，服务不应继续启动
	ErrStartup = errors.New("store startup failed")
	// ErrOperation 单次存储操作失败，调用方决定是否致命
	ErrOperation = errors.New("store operation failed")
)

// Store 持久化端口。
// 除 LoadAllNPEs 与 RemoveAll 外所有操作都是非阻塞的，结果通过回调返回；
// 回调按提交顺序在存储自己的 goroutine 上执行，同一时刻只有一个请求在途。
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// AsyncSave 写入（覆盖）全部给定实体；调用时即完成序列化，之后修改实体不影响本次写入
	AsyncSave(es entity.Entities, done func(err error))
	// LoadAllNPEs 阻塞读取全部非玩家实体，仅用于启动
	LoadAllNPEs(ctx context.Context) (entity.Entities, error)
	AsyncCheckPlayer(name string, done func(exists bool, id entity.ID, err error))
	AsyncGetPlayer(id entity.ID, done func(found bool, p entity.Entity, err error))
	// AsyncAddPlayer 原子地写入新玩家与 名字->ID 映射
	AsyncAddPlayer(name string, p entity.Entity, done func(err error))
	// RemoveAll 清空整个命名空间
	RemoveAll(ctx context.Context) error
}

const (
	npePrefix    = "npe:"
	playerPrefix = "player:"
	namePrefix   = "playername:"
)

func npeKey(id entity.ID) string    { return npePrefix + strconv.FormatUint(uint64(id), 10) }
func playerKey(id entity.ID) string { return playerPrefix + strconv.FormatUint(uint64(id), 10) }
func nameKey(name string) string    { return namePrefix + name }

// KeyOf 实体的存储键：玩家与非玩家使用不同前缀
func KeyOf(e entity.Entity) string {
	if entity.IsPlayer(e) {
		return playerKey(e.ID())
	}
	return npeKey(e.ID())
}

type record struct {
	key   string
	value string
}

// encode 按 ID 顺序序列化
func encode(es entity.Entities) ([]record, error) {
	out := make([]record, 0, len(es))
	for _, e := range es.Sorted() {
		text, err := entity.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encode entity %d: %w", e.ID(), err)
		}
		out = append(out, record{key: KeyOf(e), value: string(text)})
	}
	return out, nil
}

func parseID(raw string) (entity.ID, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: bad player id %q", ErrOperation, raw)
	}
	return entity.ID(id), nil
}

func opErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrOperation, op, err)
}

var (
	errStopped    = errors.New("store stopped")
	errNotStarted = errors.New("store not started")
)

// Open 根据类型创建存储，kind 为 "redis" 或 "memory"
func Open(kind string, opts RedisOptions) (Store, error) {
	switch kind {
	case "", "redis":
		return NewRedisStore(opts), nil
	case "memory":
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("%w: unknown store kind %q", ErrStartup, kind)
}
