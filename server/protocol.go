package server

import (
	"encoding/json"

	"webgame/entity"
)

// 出站报文。字段顺序不重要，客户端按 order/suborder 分派。

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// 只序列化本包构造的 map/基本类型，不会失败
		panic(err)
	}
	return b
}

func entityState(e entity.Entity) entity.Doc {
	d := entity.Doc{}
	e.State(d)
	return d
}

// gameInfoMsg 注册时发送一次
func gameInfoMsg(name string, tickSeconds float64) []byte {
	return mustJSON(map[string]any{
		"order":         "state",
		"suborder":      "game",
		"tick_duration": tickSeconds,
		"game_name":     name,
	})
}

// playerStateMsg 每 tick 发送给玩家自己的连接
func playerStateMsg(p entity.Entity) []byte {
	d := entityState(p)
	d["order"] = "state"
	d["suborder"] = "player"
	return mustJSON(d)
}

// entitiesMsg 实体状态列表，按 ID 排序
func entitiesMsg(es entity.Entities) []byte {
	data := make([]entity.Doc, 0, len(es))
	for _, e := range es.Sorted() {
		data = append(data, entityState(e))
	}
	return mustJSON(map[string]any{
		"order":    "state",
		"suborder": "entities",
		"data":     data,
	})
}

// removeEntitiesMsg 实体移除
func removeEntitiesMsg(ids []entity.ID) []byte {
	return mustJSON(map[string]any{
		"order":    "remove",
		"suborder": "entities",
		"ids":      ids,
	})
}
