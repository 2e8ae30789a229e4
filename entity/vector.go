package entity

import (
	"fmt"
	"math"
)

// Vector 二维向量（位置、方向）
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec 简写构造
func Vec(x, y float64) Vector { return Vector{X: x, Y: y} }

func (v Vector) Add(o Vector) Vector       { return Vector{X: v.X + o.X, Y: v.Y + o.Y} }
func (v Vector) Sub(o Vector) Vector       { return Vector{X: v.X - o.X, Y: v.Y - o.Y} }
func (v Vector) Scale(k float64) Vector    { return Vector{X: v.X * k, Y: v.Y * k} }
func (v Vector) Dot(o Vector) float64      { return v.X*o.X + v.Y*o.Y }
func (v Vector) Norm() float64             { return math.Hypot(v.X, v.Y) }
func (v Vector) Distance(o Vector) float64 { return v.Sub(o).Norm() }

// Normalized 返回单位向量；零向量原样返回
func (v Vector) Normalized() Vector {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return Vector{X: v.X / n, Y: v.Y / n}
}

func (v Vector) String() string { return fmt.Sprintf("(%g,%g)", v.X, v.Y) }

// Save 结构化保存 {"x","y"}
func (v Vector) Save() Doc {
	return Doc{"x": v.X, "y": v.Y}
}

// LoadVector 从文档读取向量，缺字段或类型不符时报错
func LoadVector(raw any, where string) (Vector, error) {
	d, err := asObject(raw, where)
	if err != nil {
		return Vector{}, err
	}
	x, err := numberField(d, "x", where)
	if err != nil {
		return Vector{}, err
	}
	y, err := numberField(d, "y", where)
	if err != nil {
		return Vector{}, err
	}
	return Vector{X: x, Y: y}, nil
}
