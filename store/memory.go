package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"webgame/entity"
)

// MemoryStore 进程内存储，键布局与 RedisStore 相同，用于测试与无 Redis 的单机运行
type MemoryStore struct {
	mu    sync.Mutex
	data  map[string]string
	queue *taskQueue
	once  sync.Once
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string), queue: newTaskQueue()}
}

func (s *MemoryStore) Start(ctx context.Context) error {
	s.queue.start()
	return nil
}

func (s *MemoryStore) Stop() error {
	s.once.Do(s.queue.stop)
	return nil
}

// Keys 当前全部键（排序后）
func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get 读取原始值
func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Set 写入原始值
func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
}

func (s *MemoryStore) submit(task func(), fail func(error)) {
	if !s.queue.push(task) {
		go fail(opErr("submit", errStopped))
	}
}

func (s *MemoryStore) put(records ...record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.data[r.key] = r.value
	}
}

func (s *MemoryStore) AsyncSave(es entity.Entities, done func(err error)) {
	records, err := encode(es)
	s.submit(func() {
		if err == nil {
			s.put(records...)
		}
		done(err)
	}, done)
}

func (s *MemoryStore) LoadAllNPEs(ctx context.Context) (entity.Entities, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(entity.Entities)
	for k, v := range s.data {
		if !strings.HasPrefix(k, npePrefix) {
			continue
		}
		e, err := entity.Unmarshal([]byte(v))
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", k, err)
		}
		out.Add(e)
	}
	return out, nil
}

func (s *MemoryStore) AsyncCheckPlayer(name string, done func(exists bool, id entity.ID, err error)) {
	s.submit(func() {
		raw, ok := s.Get(nameKey(name))
		if !ok {
			done(false, 0, nil)
			return
		}
		id, err := parseID(raw)
		done(err == nil, id, err)
	}, func(err error) { done(false, 0, err) })
}

func (s *MemoryStore) AsyncGetPlayer(id entity.ID, done func(found bool, p entity.Entity, err error)) {
	s.submit(func() {
		text, ok := s.Get(playerKey(id))
		if !ok {
			done(false, nil, nil)
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

func (s *MemoryStore) AsyncAddPlayer(name string, p entity.Entity, done func(err error)) {
	text, err := entity.Marshal(p)
	s.submit(func() {
		if err == nil {
			s.put(
				record{key: KeyOf(p), value: string(text)},
				record{key: nameKey(name), value: strconv.FormatUint(uint64(p.ID()), 10)},
			)
		}
		done(err)
	}, done)
}

func (s *MemoryStore) RemoveAll(ctx context.Context) error {
	s.mu.Lock()
	s.data = make(map[string]string)
	s.mu.Unlock()
	return nil
}
