package entity

// Env 行为/实体更新时看到的只读世界视图：全部存活实体，但不包含自身
type Env struct {
	all  Entities
	self ID
}

// NewEnv 构造 self 的视图；每次 update 单独构造，不持久化
func NewEnv(all Entities, self ID) *Env {
	return &Env{all: all, self: self}
}

// Len 其他实体数量
func (e *Env) Len() int {
	if _, ok := e.all[e.self]; ok {
		return len(e.all) - 1
	}
	return len(e.all)
}

// Get 按 ID 查找其他实体；自身永远找不到
func (e *Env) Get(id ID) (Entity, bool) {
	if id == e.self {
		return nil, false
	}
	o, ok := e.all[id]
	return o, ok
}

// Each 遍历其他实体
func (e *Env) Each(fn func(Entity)) {
	for id, o := range e.all {
		if id == e.self {
			continue
		}
		fn(o)
	}
}

// Others 返回其他实体的副本
func (e *Env) Others() Entities {
	out := make(Entities, e.Len())
	e.Each(func(o Entity) { out[o.ID()] = o })
	return out
}
