package entity

import (
	"strings"

	"webgame/logger"
)

// Behavior 挂在 NPC 上的逐 tick 策略。
// Resolved 是优先级解析唯一读取的信号：false 表示仍需行动，低优先级层本 tick 被跳过。
type Behavior interface {
	Update(self *NPC, delta float64, env *Env)
	Resolved() bool
	Save() Doc
	Load(d Doc) error
}

// BehaviorBase 行为公共部分，供具体行为内嵌
type BehaviorBase struct {
	resolved bool
}

func (b *BehaviorBase) Resolved() bool         { return b.resolved }
func (b *BehaviorBase) SetResolved(value bool) { b.resolved = value }

func (b *BehaviorBase) Save() Doc {
	return Doc{"resolved": b.resolved}
}

func (b *BehaviorBase) Load(d Doc) error {
	resolved, err := boolField(d, "resolved", "behavior")
	if err != nil {
		return err
	}
	b.resolved = resolved
	return nil
}

func loadBehaviorBase(b *BehaviorBase, d Doc, where string) error {
	base, err := objectField(d, "behavior", where)
	if err != nil {
		return err
	}
	return b.Load(base)
}

// compass 八个罗盘方向（正交与对角）
var compass = [8]Vector{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

// walkaroundPeriod 每隔多久换一次方向
const walkaroundPeriod = 0.5

// Walkaround 随机游走：每 0.5 时间单位随机换一个罗盘方向，总是 resolved
type Walkaround struct {
	BehaviorBase
	t float64
}

func NewWalkaround() *Walkaround { return &Walkaround{} }

// Elapsed 距上次换向累计的时间
func (w *Walkaround) Elapsed() float64 { return w.t }

func (w *Walkaround) Update(self *NPC, delta float64, env *Env) {
	w.resolved = true
	w.t += delta
	if w.t >= walkaroundPeriod {
		self.SetDir(compass[randIndex(len(compass))])
		w.t = 0
	}
}

func (w *Walkaround) Save() Doc {
	return Doc{"type": "walkaround", "behavior": w.BehaviorBase.Save(), "t": w.t}
}

func (w *Walkaround) Load(d Doc) error {
	const where = "walkaround"
	if err := loadBehaviorBase(&w.BehaviorBase, d, where); err != nil {
		return err
	}
	t, err := numberField(d, "t", where)
	if err != nil {
		return err
	}
	w.t = t
	return nil
}

// AreaType 区域形状
type AreaType string

const AreaSquare AreaType = "square"

// AreaLimit 把 NPC 限制在 center±radius 的区域内：出界时全速返回中心并报告 unresolved
type AreaLimit struct {
	BehaviorBase
	area   AreaType
	radius float64
	center Vector
}

func NewAreaLimit(area AreaType, radius float64, center Vector) *AreaLimit {
	return &AreaLimit{area: area, radius: radius, center: center}
}

func (a *AreaLimit) Update(self *NPC, delta float64, env *Env) {
	if a.area != AreaSquare {
		logger.Log.Warnf("arealimit: unexpected area type %q on entity %d", a.area, self.ID())
		a.resolved = true
		return
	}
	pos := self.Pos()
	outside := pos.X > a.center.X+a.radius || pos.X < a.center.X-a.radius ||
		pos.Y > a.center.Y+a.radius || pos.Y < a.center.Y-a.radius
	if outside {
		self.SetSpeed(self.MaxSpeed())
		self.SetDir(a.center.Sub(pos))
	}
	a.resolved = !outside
}

func (a *AreaLimit) Save() Doc {
	return Doc{
		"type":      "arealimit",
		"behavior":  a.BehaviorBase.Save(),
		"area_type": string(a.area),
		"radius":    a.radius,
		"center":    a.center.Save(),
	}
}

func (a *AreaLimit) Load(d Doc) error {
	const where = "arealimit"
	if err := loadBehaviorBase(&a.BehaviorBase, d, where); err != nil {
		return err
	}
	area, err := stringField(d, "area_type", where)
	if err != nil {
		return err
	}
	radius, err := numberField(d, "radius", where)
	if err != nil {
		return err
	}
	raw, err := field(d, "center", where)
	if err != nil {
		return err
	}
	center, err := LoadVector(raw, where+".center")
	if err != nil {
		return err
	}
	a.area, a.radius, a.center = AreaType(area), radius, center
	return nil
}

// contactDistance 与目标距离不超过该值时停下
const contactDistance = 0.15

// AttackOnSight 追击半径内最近的异类实体（忽略同类与 "object" 类）
type AttackOnSight struct {
	BehaviorBase
	radius float64
}

func NewAttackOnSight(radius float64) *AttackOnSight {
	return &AttackOnSight{radius: radius}
}

func (a *AttackOnSight) Update(self *NPC, delta float64, env *Env) {
	var (
		target   Locator
		bestDist float64
	)
	pos := self.Pos()
	env.Each(func(o Entity) {
		if o.Type() == self.Type() || strings.Contains(o.Type(), "object") {
			return
		}
		loc, ok := o.(Locator)
		if !ok {
			return
		}
		dist := pos.Distance(loc.Pos())
		if dist > a.radius || (target != nil && dist >= bestDist) {
			return
		}
		target, bestDist = loc, dist
	})

	if target != nil {
		if bestDist <= contactDistance {
			self.SetSpeed(0)
		} else {
			self.SetSpeed(self.MaxSpeed())
		}
		self.SetDir(target.Pos().Sub(pos))
	}
	a.resolved = target == nil
}

func (a *AttackOnSight) Save() Doc {
	return Doc{"type": "attack_on_sight", "behavior": a.BehaviorBase.Save(), "radius": a.radius}
}

func (a *AttackOnSight) Load(d Doc) error {
	const where = "attack_on_sight"
	if err := loadBehaviorBase(&a.BehaviorBase, d, where); err != nil {
		return err
	}
	radius, err := numberField(d, "radius", where)
	if err != nil {
		return err
	}
	a.radius = radius
	return nil
}

// Stop 无条件停下
type Stop struct {
	BehaviorBase
}

func NewStop() *Stop { return &Stop{} }

func (s *Stop) Update(self *NPC, delta float64, env *Env) {
	self.SetSpeed(0)
	s.resolved = true
}

func (s *Stop) Save() Doc {
	return Doc{"type": "stop", "behavior": s.BehaviorBase.Save()}
}

func (s *Stop) Load(d Doc) error {
	return loadBehaviorBase(&s.BehaviorBase, d, "stop")
}

func init() {
	RegisterBehavior("walkaround", func() Behavior { return &Walkaround{} })
	RegisterBehavior("arealimit", func() Behavior { return &AreaLimit{} })
	RegisterBehavior("attack_on_sight", func() Behavior { return &AttackOnSight{} })
	RegisterBehavior("stop", func() Behavior { return &Stop{} })
}
