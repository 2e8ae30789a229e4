package entity

// Stationary 静止的场景物体，update 永远无变化
type Stationary struct {
	Located
}

func NewStationary(typ string, pos Vector) *Stationary {
	return &Stationary{Located: NewLocated(typ, pos)}
}

func (s *Stationary) Update(delta float64, env *Env) bool { return false }

func (s *Stationary) Save() Doc {
	return Doc{"type": "stationary_entity", "located_entity": s.Located.Save()}
}

func (s *Stationary) Load(d Doc) error {
	located, err := objectField(d, "located_entity", "stationary_entity")
	if err != nil {
		return err
	}
	return s.Located.Load(located)
}

func init() {
	RegisterEntity("stationary_entity", func() Entity { return &Stationary{} })
}
