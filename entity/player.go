package entity

// Controllable 玩家可通过补丁操控的实体
type Controllable interface {
	Entity
	SetSpeed(speed float64)
	SetDir(dir Vector)
	MoveTo(target Vector)
	Stop()
}

// Player 由客户端操控的实体。与连接一一对应（ID 相同），本身不持有连接。
type Player struct {
	Mobile
	target   Vector
	movingTo bool
}

// NewPlayer 新玩家：原点、朝向 (0,-1)、静止、最大速度 1
func NewPlayer(typ string) *Player {
	return &Player{Mobile: NewMobile(typ, Vector{}, Vector{X: 0, Y: -1}, 0, 1)}
}

func (p *Player) isPlayer() {}

// IsPlayer 判断实体是否为玩家（含内嵌 Player 的自定义类型）
func IsPlayer(e Entity) bool {
	_, ok := e.(interface{ isPlayer() })
	return ok
}

func (p *Player) Target() Vector   { return p.target }
func (p *Player) IsMovingTo() bool { return p.movingTo }

// MoveTo 朝目标移动；当前速度为 0 时忽略
func (p *Player) MoveTo(target Vector) {
	if p.speed == 0 {
		return
	}
	p.target = target
	p.dir = target.Sub(p.pos)
	p.movingTo = true
}

// Stop 取消朝目标移动（不改变速度）
func (p *Player) Stop() {
	p.movingTo = false
}

// Update 运动积分后检查是否到达或越过目标：越过时吸附到目标并停下
func (p *Player) Update(delta float64, env *Env) bool {
	prevDir := p.dir
	changed := p.Mobile.Update(delta, env)
	if !p.movingTo {
		return changed
	}
	if p.speed == 0 {
		p.movingTo = false
		return changed
	}
	toTarget := p.target.Sub(p.pos)
	if p.pos == p.target || toTarget.Dot(prevDir) <= 0 {
		p.pos = p.target
		p.speed = 0
		p.movingTo = false
		return true
	}
	return changed
}

func (p *Player) Save() Doc {
	return Doc{
		"type":          "player",
		"mobile_entity": p.Mobile.Save(),
		"target_pos":    p.target.Save(),
		"moving_to":     p.movingTo,
	}
}

func (p *Player) Load(d Doc) error {
	const where = "player"
	mobile, err := objectField(d, "mobile_entity", where)
	if err != nil {
		return err
	}
	if err := p.Mobile.Load(mobile); err != nil {
		return err
	}
	raw, err := field(d, "target_pos", where)
	if err != nil {
		return err
	}
	if p.target, err = LoadVector(raw, where+".target_pos"); err != nil {
		return err
	}
	p.movingTo, err = boolField(d, "moving_to", where)
	return err
}

func (p *Player) State(d Doc) {
	p.Mobile.State(d)
	d["moving_to"] = p.movingTo
	if p.movingTo {
		d["target_pos"] = p.target
	}
}

func init() {
	RegisterEntity("player", func() Entity { return &Player{} })
}
