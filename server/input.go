package server

import (
	"encoding/json"
	"fmt"

	"webgame/entity"
)

// PatchKind 玩家操作的种类
type PatchKind string

const (
	PatchSpeed  PatchKind = "speed"      // Value: float64
	PatchDir    PatchKind = "dir"        // Value: entity.Vector
	PatchTarget PatchKind = "target_pos" // Value: entity.Vector
)

// Patch 客户端操作（意图），由连接入队，在下一次 Tick 中应用到玩家实体
type Patch struct {
	Kind  PatchKind
	Value any
}

// clientMessage 入站报文
// 示例：{"order":"action","suborder":"change_speed","speed":0.5}
type clientMessage struct {
	Order      *string     `json:"order"`
	Suborder   *string     `json:"suborder"`
	PlayerName *string     `json:"player_name"`
	Speed      *float64    `json:"speed"`
	Dir        *wireVector `json:"dir"`
	TargetPos  *wireVector `json:"target_pos"`
}

// wireVector 两个分量都必须出现
type wireVector struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func (v *wireVector) vector(field string) (entity.Vector, error) {
	if v == nil || v.X == nil || v.Y == nil {
		return entity.Vector{}, fmt.Errorf("%w: %q must be an {x, y} object", ErrProtocol, field)
	}
	return entity.Vec(*v.X, *v.Y), nil
}

func parseClientMessage(data []byte) (*clientMessage, error) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if msg.Order == nil {
		return nil, fmt.Errorf("%w: missing order", ErrProtocol)
	}
	return &msg, nil
}

// authName 认证报文中的玩家名
func (m *clientMessage) authName() (string, error) {
	if *m.Order != "authentication" {
		return "", fmt.Errorf("%w: expected authentication, got order %q", ErrAuth, *m.Order)
	}
	if m.PlayerName == nil || *m.PlayerName == "" {
		return "", fmt.Errorf("%w: invalid player name", ErrAuth)
	}
	return *m.PlayerName, nil
}

// actionPatch 把 action 报文转换为补丁
func (m *clientMessage) actionPatch() (Patch, error) {
	if m.Suborder == nil {
		return Patch{}, fmt.Errorf("%w: action without suborder", ErrProtocol)
	}
	switch *m.Suborder {
	case "change_speed":
		if m.Speed == nil {
			return Patch{}, fmt.Errorf("%w: change_speed without speed", ErrProtocol)
		}
		return Patch{Kind: PatchSpeed, Value: *m.Speed}, nil
	case "change_dir":
		dir, err := m.Dir.vector("dir")
		if err != nil {
			return Patch{}, err
		}
		return Patch{Kind: PatchDir, Value: dir}, nil
	case "move_to":
		target, err := m.TargetPos.vector("target_pos")
		if err != nil {
			return Patch{}, err
		}
		return Patch{Kind: PatchTarget, Value: target}, nil
	}
	return Patch{}, fmt.Errorf("%w: unknown action %q", ErrProtocol, *m.Suborder)
}

// applyPatch 在 tick 临界区内把补丁应用到玩家实体
func applyPatch(p entity.Controllable, patch Patch) error {
	switch patch.Kind {
	case PatchSpeed:
		speed, ok := patch.Value.(float64)
		if !ok {
			return fmt.Errorf("speed patch carries %T", patch.Value)
		}
		p.SetSpeed(speed)
	case PatchDir:
		dir, ok := patch.Value.(entity.Vector)
		if !ok {
			return fmt.Errorf("dir patch carries %T", patch.Value)
		}
		p.SetDir(dir)
		p.Stop()
	case PatchTarget:
		target, ok := patch.Value.(entity.Vector)
		if !ok {
			return fmt.Errorf("target_pos patch carries %T", patch.Value)
		}
		p.MoveTo(target)
	default:
		return fmt.Errorf("unknown patch kind %q", patch.Kind)
	}
	return nil
}
