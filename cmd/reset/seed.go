package main

import "webgame/entity"

// gridSize 场景物件网格边长
const gridSize = 10

// seed 演示世界：一个友方 NPC、一个敌方 NPC，以及以原点为中心的 10×10 物件网格
func seed() entity.Entities {
	world := entity.Entities{}

	world.Add(entity.NewNPC("npc_ally_1", entity.Vec(0.5, 0.5), entity.Vec(0, 0), 0.2, 0.2,
		entity.Slot{Priority: 0, Behavior: entity.NewAreaLimit(entity.AreaSquare, 0.5, entity.Vec(0.5, 0.5))},
		entity.Slot{Priority: 10, Behavior: entity.NewWalkaround()},
	))

	world.Add(entity.NewNPC("npc_enemy_1", entity.Vec(-0.5, -0.5), entity.Vec(0, 0), 0.4, 0.4,
		entity.Slot{Priority: 0, Behavior: entity.NewAreaLimit(entity.AreaSquare, 0.5, entity.Vec(-0.5, -0.5))},
		entity.Slot{Priority: 10, Behavior: entity.NewAttackOnSight(0.7)},
		entity.Slot{Priority: 20, Behavior: entity.NewStop()},
	))

	for i := 0; i < gridSize; i++ {
		for j := 0; j < gridSize; j++ {
			pos := entity.Vec(float64(i)-gridSize/2, float64(j)-gridSize/2)
			world.Add(entity.NewStationary("object1", pos))
		}
	}
	return world
}
