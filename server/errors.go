package server

import "errors"

var (
	// ErrProtocol 报文格式错误或未知指令，只影响当前连接
	ErrProtocol = errors.New("protocol error")
	// ErrAuth 玩家名为空或已在线
	ErrAuth = errors.New("authentication rejected")
	// ErrNetwork 传输层读写失败
	ErrNetwork = errors.New("network error")
)
