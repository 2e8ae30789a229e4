package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webgame/entity"
)

func TestActionPatch(t *testing.T) {
	cases := []struct {
		msg  string
		want Patch
	}{
		{`{"order":"action","suborder":"change_speed","speed":0.25}`, Patch{Kind: PatchSpeed, Value: 0.25}},
		{`{"order":"action","suborder":"change_dir","dir":{"x":0,"y":1}}`, Patch{Kind: PatchDir, Value: entity.Vec(0, 1)}},
		{`{"order":"action","suborder":"move_to","target_pos":{"x":-2,"y":3.5}}`, Patch{Kind: PatchTarget, Value: entity.Vec(-2, 3.5)}},
	}
	for _, tc := range cases {
		msg, err := parseClientMessage([]byte(tc.msg))
		require.NoError(t, err)
		got, err := msg.actionPatch()
		require.NoError(t, err, tc.msg)
		assert.Equal(t, tc.want, got)
	}
}

func TestActionPatchErrors(t *testing.T) {
	cases := map[string]string{
		"no suborder":    `{"order":"action"}`,
		"unknown action": `{"order":"action","suborder":"jump"}`,
		"no speed":       `{"order":"action","suborder":"change_speed"}`,
		"no dir":         `{"order":"action","suborder":"change_dir"}`,
		"partial dir":    `{"order":"action","suborder":"change_dir","dir":{"x":1}}`,
		"no target":      `{"order":"action","suborder":"move_to","target_pos":null}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			msg, err := parseClientMessage([]byte(raw))
			require.NoError(t, err)
			_, err = msg.actionPatch()
			assert.ErrorIs(t, err, ErrProtocol)
		})
	}
}

func TestParseClientMessageErrors(t *testing.T) {
	for _, raw := range []string{``, `[]`, `{"order":1}`, `{"suborder":"x"}`} {
		_, err := parseClientMessage([]byte(raw))
		assert.ErrorIs(t, err, ErrProtocol, raw)
	}
}

func TestAuthName(t *testing.T) {
	msg, err := parseClientMessage([]byte(`{"order":"authentication","player_name":"alice"}`))
	require.NoError(t, err)
	name, err := msg.authName()
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	msg, err = parseClientMessage([]byte(`{"order":"hello","player_name":"alice"}`))
	require.NoError(t, err)
	_, err = msg.authName()
	assert.ErrorIs(t, err, ErrAuth)
}

func TestApplyPatch(t *testing.T) {
	p := entity.NewPlayer("player")

	require.NoError(t, applyPatch(p, Patch{Kind: PatchSpeed, Value: 5.0}))
	assert.Equal(t, 1.0, p.Speed(), "speed is clamped to max speed")

	require.NoError(t, applyPatch(p, Patch{Kind: PatchTarget, Value: entity.Vec(3, 0)}))
	assert.True(t, p.IsMovingTo())
	assert.Equal(t, entity.Vec(3, 0), p.Target())

	require.NoError(t, applyPatch(p, Patch{Kind: PatchDir, Value: entity.Vec(0, 1)}))
	assert.False(t, p.IsMovingTo(), "changing direction cancels move_to")
	assert.Equal(t, entity.Vec(0, 1), p.Dir())

	assert.Error(t, applyPatch(p, Patch{Kind: PatchSpeed, Value: "fast"}))
	assert.Error(t, applyPatch(p, Patch{Kind: PatchDir, Value: 1.0}))
	assert.Error(t, applyPatch(p, Patch{Kind: PatchTarget, Value: nil}))
	assert.Error(t, applyPatch(p, Patch{Kind: "teleport"}))
	assert.Equal(t, 1.0, p.Speed())
}

func TestOutgoingMessages(t *testing.T) {
	var game map[string]any
	require.NoError(t, json.Unmarshal(gameInfoMsg("arena", 0.1), &game))
	assert.Equal(t, map[string]any{
		"order": "state", "suborder": "game", "tick_duration": 0.1, "game_name": "arena",
	}, game)

	p := entity.NewPlayer("player")
	var player map[string]any
	require.NoError(t, json.Unmarshal(playerStateMsg(p), &player))
	assert.Equal(t, "state/player", orderOf(player))
	assert.Equal(t, p.ID(), idOf(player["id"]))
	assert.Equal(t, map[string]any{"x": 0.0, "y": -1.0}, player["dir"])
	assert.Equal(t, false, player["moving_to"])

	a := entity.NewStationary("rock", entity.Vec(1, 1))
	b := entity.NewStationary("rock", entity.Vec(2, 2))
	var list map[string]any
	require.NoError(t, json.Unmarshal(entitiesMsg(entity.Entities{a.ID(): a, b.ID(): b}), &list))
	data := list["data"].([]any)
	require.Len(t, data, 2)
	first, second := idOf(data[0].(map[string]any)["id"]), idOf(data[1].(map[string]any)["id"])
	assert.Less(t, first, second, "entities are sorted by id")

	var empty map[string]any
	require.NoError(t, json.Unmarshal(entitiesMsg(entity.Entities{}), &empty))
	assert.Equal(t, []any{}, empty["data"])

	var removed map[string]any
	require.NoError(t, json.Unmarshal(removeEntitiesMsg([]entity.ID{4, 9}), &removed))
	assert.Equal(t, "remove/entities", orderOf(removed))
	assert.Equal(t, []any{4.0, 9.0}, removed["ids"])
}
