package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMobileUpdateIntegratesPosition(t *testing.T) {
	m := NewMobile("mob", Vec(0, 0), Vec(0, 1), 0.5, 1)

	assert.True(t, m.Update(1, nil))
	assert.Equal(t, Vec(0, 0.5), m.Pos())

	assert.True(t, m.Update(0.5, nil))
	assert.Equal(t, Vec(0, 0.75), m.Pos())
}

func TestMobileUpdateNormalizesDirection(t *testing.T) {
	m := NewMobile("mob", Vec(0, 0), Vec(3, 4), 1, 1)
	require.True(t, m.Update(1, nil))
	assert.InDelta(t, 1, m.Dir().Norm(), 1e-12)
	assert.InDelta(t, 0.6, m.Pos().X, 1e-12)
	assert.InDelta(t, 0.8, m.Pos().Y, 1e-12)
}

func TestZeroSpeedNeverMoves(t *testing.T) {
	for _, delta := range []float64{0, 0.1, 1, 1e6} {
		m := NewMobile("mob", Vec(2, 3), Vec(1, 1), 0, 1)
		assert.False(t, m.Update(delta, nil), "delta=%v", delta)
		assert.Equal(t, Vec(2, 3), m.Pos())
		assert.Equal(t, Vec(1, 1), m.Dir())
	}
	still := NewMobile("mob", Vec(2, 3), Vec(0, 0), 1, 1)
	assert.False(t, still.Update(5, nil))
	assert.Equal(t, Vec(2, 3), still.Pos())
}

func TestSpeedIsClamped(t *testing.T) {
	m := NewMobile("mob", Vec(0, 0), Vec(1, 0), 5, 2)
	assert.Equal(t, 2.0, m.Speed())
	m.SetSpeed(-1)
	assert.Equal(t, 0.0, m.Speed())
	m.SetSpeed(1.5)
	m.SetMaxSpeed(1)
	assert.Equal(t, 1.0, m.Speed())
}

func TestPlayerMoveToArrives(t *testing.T) {
	p := NewPlayer("player")
	p.SetSpeed(1)
	p.MoveTo(Vec(5, 0))
	require.True(t, p.IsMovingTo())

	assert.True(t, p.Update(2.5, nil))
	assert.Equal(t, Vec(2.5, 0), p.Pos())
	assert.True(t, p.IsMovingTo())

	assert.True(t, p.Update(10, nil))
	assert.Equal(t, Vec(5, 0), p.Pos())
	assert.False(t, p.IsMovingTo())
	assert.Equal(t, 0.0, p.Speed())

	p.MoveTo(Vec(5, 0))
	assert.False(t, p.IsMovingTo())
}

func TestPlayerMoveToHaltedExternally(t *testing.T) {
	p := NewPlayer("player")
	p.SetSpeed(1)
	p.MoveTo(Vec(5, 0))
	p.Update(1, nil)
	p.SetSpeed(0)

	assert.False(t, p.Update(1, nil))
	assert.False(t, p.IsMovingTo())
	assert.Equal(t, Vec(1, 0), p.Pos())
}

func TestPlayerStopCancelsTarget(t *testing.T) {
	p := NewPlayer("player")
	p.SetSpeed(1)
	p.MoveTo(Vec(0, 3))
	p.Stop()
	p.Update(10, nil)
	assert.Equal(t, Vec(0, 10), p.Pos())
	assert.Equal(t, 1.0, p.Speed())
}

func TestIsPlayer(t *testing.T) {
	assert.True(t, IsPlayer(NewPlayer("player")))
	assert.False(t, IsPlayer(NewNPC("npc", Vec(0, 0), Vec(0, 0), 0, 1)))
	assert.False(t, IsPlayer(NewStationary("object1", Vec(0, 0))))
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[ID]struct{})
	for i := 0; i < 5000; i++ {
		id := NewID()
		require.NotZero(t, id)
		require.LessOrEqual(t, uint64(id), uint64(maxID))
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestEnvExcludesSelf(t *testing.T) {
	a := NewStationary("object1", Vec(0, 0))
	b := NewStationary("object1", Vec(1, 0))
	all := Entities{}
	all.Add(a)
	all.Add(b)

	env := NewEnv(all, a.ID())
	assert.Equal(t, 1, env.Len())
	_, ok := env.Get(a.ID())
	assert.False(t, ok)
	_, ok = env.Get(b.ID())
	assert.True(t, ok)
	assert.Len(t, env.Others(), 1)
}
