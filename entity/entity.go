package entity

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

// ID 实体唯一标识：进程内随机分配且不复用
type ID uint64

// maxID 保证 ID 在 JSON 数字（浏览器端 double）中精确表示
const maxID = 1<<53 - 1

// epsilon 小于该值的方向模长或速度视为“静止”
const epsilon = 1e-9

var issued = struct {
	sync.Mutex
	ids map[ID]struct{}
}{ids: make(map[ID]struct{})}

// NewID 分配一个尚未使用的随机 ID
func NewID() ID {
	issued.Lock()
	defer issued.Unlock()
	for {
		id := ID(rand.Int63n(maxID) + 1)
		if _, used := issued.ids[id]; !used {
			issued.ids[id] = struct{}{}
			return id
		}
	}
}

// reserveID 记录从存储加载的 ID，避免新分配与之冲突
func reserveID(id ID) {
	issued.Lock()
	issued.ids[id] = struct{}{}
	issued.Unlock()
}

// Entity 世界中的模拟对象
type Entity interface {
	ID() ID
	Type() string
	// Update 推进 delta 时间，返回状态是否发生变化
	Update(delta float64, env *Env) bool
	// Save / Load 结构化保存与加载（带类型标签的嵌套文档）
	Save() Doc
	Load(d Doc) error
	// State 向状态消息写入本实体的字段
	State(d Doc)
}

// Locator 拥有位置的实体
type Locator interface {
	Pos() Vector
}

// Base 所有实体的公共部分：ID 与类型标签
type Base struct {
	id  ID
	typ string
}

// NewBase 以新 ID 创建
func NewBase(typ string) Base {
	return Base{id: NewID(), typ: typ}
}

func (b *Base) ID() ID       { return b.id }
func (b *Base) Type() string { return b.typ }

// Update 基础实体没有行为
func (b *Base) Update(delta float64, env *Env) bool { return false }

func (b *Base) Save() Doc {
	return Doc{"id": uint64(b.id), "type": b.typ}
}

func (b *Base) Load(d Doc) error {
	const where = "entity"
	raw, err := field(d, "id", where)
	if err != nil {
		return err
	}
	id, ok := toUint(raw)
	if !ok || id == 0 {
		return docErr(where, "\"id\" is not a positive integer")
	}
	typ, err := stringField(d, "type", where)
	if err != nil {
		return err
	}
	b.id, b.typ = ID(id), typ
	reserveID(b.id)
	return nil
}

func (b *Base) State(d Doc) {
	d["id"] = uint64(b.id)
	d["type"] = b.typ
}

// Located 带位置的实体
type Located struct {
	Base
	pos Vector
}

// NewLocated 返回值类型，供具体实体内嵌
func NewLocated(typ string, pos Vector) Located {
	return Located{Base: NewBase(typ), pos: pos}
}

func (l *Located) Pos() Vector       { return l.pos }
func (l *Located) SetPos(pos Vector) { l.pos = pos }

func (l *Located) Save() Doc {
	return Doc{"entity": l.Base.Save(), "pos": l.pos.Save()}
}

func (l *Located) Load(d Doc) error {
	const where = "located_entity"
	base, err := objectField(d, "entity", where)
	if err != nil {
		return err
	}
	if err := l.Base.Load(base); err != nil {
		return err
	}
	raw, err := field(d, "pos", where)
	if err != nil {
		return err
	}
	l.pos, err = LoadVector(raw, where+".pos")
	return err
}

func (l *Located) State(d Doc) {
	l.Base.State(d)
	d["pos"] = l.pos
}

// Mobile 可移动实体：方向、当前速度（限制在 [0, maxSpeed]）与最大速度
type Mobile struct {
	Located
	dir      Vector
	speed    float64
	maxSpeed float64
}

// NewMobile 返回值类型，供具体实体内嵌
func NewMobile(typ string, pos, dir Vector, speed, maxSpeed float64) Mobile {
	m := Mobile{Located: NewLocated(typ, pos), dir: dir, maxSpeed: math.Max(maxSpeed, 0)}
	m.SetSpeed(speed)
	return m
}

func (m *Mobile) Dir() Vector       { return m.dir }
func (m *Mobile) SetDir(dir Vector) { m.dir = dir }
func (m *Mobile) Speed() float64    { return m.speed }
func (m *Mobile) MaxSpeed() float64 { return m.maxSpeed }

// SetSpeed 速度总是被限制在 [0, maxSpeed]
func (m *Mobile) SetSpeed(speed float64) {
	m.speed = math.Min(math.Max(speed, 0), m.maxSpeed)
}

func (m *Mobile) SetMaxSpeed(maxSpeed float64) {
	m.maxSpeed = math.Max(maxSpeed, 0)
	m.SetSpeed(m.speed)
}

// Update 方向与速度都非零时归一化方向并积分位置。
// 位置或方向的逐位比较决定是否变化，静止实体永远返回 false。
func (m *Mobile) Update(delta float64, env *Env) bool {
	prevPos, prevDir := m.pos, m.dir
	norm := m.dir.Norm()
	if math.Abs(norm) > epsilon && math.Abs(m.speed) > epsilon {
		m.dir = Vector{X: m.dir.X / norm, Y: m.dir.Y / norm}
		m.pos = m.pos.Add(m.dir.Scale(m.speed * delta))
	}
	return prevPos != m.pos || prevDir != m.dir
}

func (m *Mobile) Save() Doc {
	return Doc{
		"located_entity": m.Located.Save(),
		"dir":            m.dir.Save(),
		"speed":          m.speed,
		"max_speed":      m.maxSpeed,
	}
}

func (m *Mobile) Load(d Doc) error {
	const where = "mobile_entity"
	located, err := objectField(d, "located_entity", where)
	if err != nil {
		return err
	}
	if err := m.Located.Load(located); err != nil {
		return err
	}
	raw, err := field(d, "dir", where)
	if err != nil {
		return err
	}
	if m.dir, err = LoadVector(raw, where+".dir"); err != nil {
		return err
	}
	speed, err := numberField(d, "speed", where)
	if err != nil {
		return err
	}
	maxSpeed, err := numberField(d, "max_speed", where)
	if err != nil {
		return err
	}
	m.maxSpeed = math.Max(maxSpeed, 0)
	m.SetSpeed(speed)
	return nil
}

func (m *Mobile) State(d Doc) {
	m.Located.State(d)
	d["dir"] = m.dir
	d["speed"] = m.speed
	d["max_speed"] = m.maxSpeed
}

// Entities 以 ID 为键的实体集合
type Entities map[ID]Entity

// Add 加入实体并返回它
func (es Entities) Add(e Entity) Entity {
	es[e.ID()] = e
	return e
}

// Clone 浅拷贝集合（实体本身共享）
func (es Entities) Clone() Entities {
	out := make(Entities, len(es))
	for id, e := range es {
		out[id] = e
	}
	return out
}

// Sorted 按 ID 升序返回，便于生成稳定的消息
func (es Entities) Sorted() []Entity {
	out := make([]Entity, 0, len(es))
	for _, e := range es {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
