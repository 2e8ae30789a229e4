package entity

import "sort"

// Slot 一条带优先级的行为；数字越小越先执行、优先级越高
type Slot struct {
	Priority int
	Behavior Behavior
}

// NPC 由行为驱动的非玩家实体
type NPC struct {
	Mobile
	behaviors []Slot // 按 Priority 稳定有序，可重复
}

// NewNPC 创建 NPC，slots 中同优先级的行为保持给定顺序
func NewNPC(typ string, pos, dir Vector, speed, maxSpeed float64, slots ...Slot) *NPC {
	n := &NPC{Mobile: NewMobile(typ, pos, dir, speed, maxSpeed)}
	for _, s := range slots {
		n.AddBehavior(s.Priority, s.Behavior)
	}
	return n
}

// AddBehavior 插入到同优先级已有行为之后
func (n *NPC) AddBehavior(priority int, b Behavior) {
	i := sort.Search(len(n.behaviors), func(i int) bool { return n.behaviors[i].Priority > priority })
	n.behaviors = append(n.behaviors, Slot{})
	copy(n.behaviors[i+1:], n.behaviors[i:])
	n.behaviors[i] = Slot{Priority: priority, Behavior: b}
}

// Behaviors 返回行为列表的副本
func (n *NPC) Behaviors() []Slot {
	return append([]Slot(nil), n.behaviors...)
}

// Update 先做优先级解析，再做运动积分
func (n *NPC) Update(delta float64, env *Env) bool {
	prevPos, prevDir := n.pos, n.dir
	n.resolve(delta, env)
	changed := prevPos != n.pos || prevDir != n.dir
	return n.Mobile.Update(delta, env) || changed
}

// resolve 按优先级升序执行行为。一层只有在所有更高优先级层都 resolved 时才会执行；
// 同一层的行为总是全部执行。
func (n *NPC) resolve(delta float64, env *Env) {
	if len(n.behaviors) == 0 {
		return
	}
	resolved := true
	current := n.behaviors[0].Priority
	for _, s := range n.behaviors {
		if s.Priority != current && !resolved {
			break
		}
		current = s.Priority
		s.Behavior.Update(n, delta, env)
		resolved = s.Behavior.Resolved()
	}
}

func (n *NPC) Save() Doc {
	behaviors := make([]any, 0, len(n.behaviors))
	for _, s := range n.behaviors {
		behaviors = append(behaviors, []any{s.Priority, s.Behavior.Save()})
	}
	return Doc{
		"type":          "npc",
		"mobile_entity": n.Mobile.Save(),
		"behaviors":     behaviors,
	}
}

func (n *NPC) Load(d Doc) error {
	const where = "npc"
	mobile, err := objectField(d, "mobile_entity", where)
	if err != nil {
		return err
	}
	if err := n.Mobile.Load(mobile); err != nil {
		return err
	}
	list, err := arrayField(d, "behaviors", where)
	if err != nil {
		return err
	}
	n.behaviors = nil
	for i, raw := range list {
		pair, ok := raw.([]any)
		if !ok || len(pair) != 2 {
			return docErr(where, "behavior #%d is not a [priority, behavior] pair", i)
		}
		priority, ok := toInt(pair[0])
		if !ok {
			return docErr(where, "behavior #%d priority is not an integer", i)
		}
		bd, err := asObject(pair[1], where+".behaviors")
		if err != nil {
			return err
		}
		b, err := LoadBehavior(bd)
		if err != nil {
			return err
		}
		n.AddBehavior(int(priority), b)
	}
	return nil
}

func init() {
	RegisterEntity("npc", func() Entity { return &NPC{} })
}
