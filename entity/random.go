package entity

import "math/rand"

// randIndex 在 [0, n) 中均匀随机选择，测试中可替换
var randIndex = func(n int) int { return rand.Intn(n) }
