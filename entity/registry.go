package entity

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// 进程级类型注册表：类型标签 -> 构造函数。各具体类型在 init 中注册。
var registry = struct {
	sync.RWMutex
	entities  map[string]func() Entity
	behaviors map[string]func() Behavior
}{
	entities:  make(map[string]func() Entity),
	behaviors: make(map[string]func() Behavior),
}

// RegisterEntity 注册实体类型；重复注册会 panic
func RegisterEntity(kind string, factory func() Entity) {
	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.entities[kind]; dup {
		panic(fmt.Sprintf("entity: kind %q registered twice", kind))
	}
	registry.entities[kind] = factory
}

// RegisterBehavior 注册行为类型；重复注册会 panic
func RegisterBehavior(kind string, factory func() Behavior) {
	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.behaviors[kind]; dup {
		panic(fmt.Sprintf("entity: behavior %q registered twice", kind))
	}
	registry.behaviors[kind] = factory
}

func kindOf(d Doc, where string) (string, error) {
	if d == nil {
		return "", docErr(where, "not an object")
	}
	return stringField(d, "type", where)
}

// LoadEntity 按 "type" 标签分派到已注册的实体类型
func LoadEntity(d Doc) (Entity, error) {
	kind, err := kindOf(d, "load entity")
	if err != nil {
		return nil, err
	}
	registry.RLock()
	factory, ok := registry.entities[kind]
	registry.RUnlock()
	if !ok {
		return nil, docErr("load entity", "%q type not registered", kind)
	}
	e := factory()
	if err := e.Load(d); err != nil {
		return nil, err
	}
	return e, nil
}

// LoadBehavior 按 "type" 标签分派到已注册的行为类型
func LoadBehavior(d Doc) (Behavior, error) {
	kind, err := kindOf(d, "load behavior")
	if err != nil {
		return nil, err
	}
	registry.RLock()
	factory, ok := registry.behaviors[kind]
	registry.RUnlock()
	if !ok {
		return nil, docErr("load behavior", "%q type not registered", kind)
	}
	b := factory()
	if err := b.Load(d); err != nil {
		return nil, err
	}
	return b, nil
}

// Marshal 实体保存为 JSON 文本
func Marshal(e Entity) ([]byte, error) {
	return json.Marshal(e.Save())
}

// Unmarshal 从 JSON 文本加载实体
func Unmarshal(data []byte) (Entity, error) {
	d, err := DecodeDoc(data)
	if err != nil {
		return nil, err
	}
	return LoadEntity(d)
}

// Equal 结构相等：两者保存出的文档完全一致
func Equal(a, b Entity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return reflect.DeepEqual(a.Save(), b.Save())
}
