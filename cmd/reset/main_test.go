package main

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webgame/entity"
	"webgame/store"
)

func TestSeedWorld(t *testing.T) {
	world := seed()
	require.Len(t, world, 2+gridSize*gridSize)

	counts := map[string]int{}
	for _, e := range world {
		counts[e.Type()]++
	}
	assert.Equal(t, map[string]int{"npc_ally_1": 1, "npc_enemy_1": 1, "object1": 100}, counts)

	for _, e := range world {
		if e.Type() != "npc_enemy_1" {
			continue
		}
		slots := e.(*entity.NPC).Behaviors()
		require.Len(t, slots, 3)
		assert.IsType(t, &entity.AttackOnSight{}, slots[1].Behavior)
		assert.Equal(t, 20, slots[2].Priority)
	}
}

func TestResetReplacesNamespace(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("npe:1", "stale"))
	require.NoError(t, mr.Set("playername:old", "1"))

	require.NoError(t, reset(context.Background(), store.NewRedisStore(store.RedisOptions{Addr: mr.Addr()})))

	assert.False(t, mr.Exists("npe:1"))
	assert.False(t, mr.Exists("playername:old"))
	assert.Len(t, mr.Keys(), 2+gridSize*gridSize)

	st := store.NewRedisStore(store.RedisOptions{Addr: mr.Addr()})
	require.NoError(t, st.Start(context.Background()))
	defer st.Stop()
	loaded, err := st.LoadAllNPEs(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded, 2+gridSize*gridSize)
}
