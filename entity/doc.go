package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Doc 结构化文档：实体与行为的保存/加载格式，序列化为 JSON 文本
type Doc = map[string]any

// ErrSerialization 所有文档解析错误都可用 errors.Is 匹配
var ErrSerialization = errors.New("serialization error")

// DocError 描述出错的位置与原因
type DocError struct {
	Where string
	Msg   string
}

func (e *DocError) Error() string { return e.Where + ": " + e.Msg }

func (e *DocError) Unwrap() error { return ErrSerialization }

func docErr(where, format string, args ...any) error {
	return &DocError{Where: where, Msg: fmt.Sprintf(format, args...)}
}

// DecodeDoc 把 JSON 文本解析为文档；数字保留为 json.Number 以免 ID 丢精度
func DecodeDoc(data []byte) (Doc, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &DocError{Where: "document", Msg: err.Error()}
	}
	return asObject(raw, "document")
}

func asObject(raw any, where string) (Doc, error) {
	d, ok := raw.(map[string]any)
	if !ok {
		return nil, docErr(where, "not an object")
	}
	return d, nil
}

func field(d Doc, key, where string) (any, error) {
	v, ok := d[key]
	if !ok {
		return nil, docErr(where, "missing %q field", key)
	}
	return v, nil
}

func objectField(d Doc, key, where string) (Doc, error) {
	v, err := field(d, key, where)
	if err != nil {
		return nil, err
	}
	return asObject(v, where+"."+key)
}

func arrayField(d Doc, key, where string) ([]any, error) {
	v, err := field(d, key, where)
	if err != nil {
		return nil, err
	}
	a, ok := v.([]any)
	if !ok {
		return nil, docErr(where, "%q is not an array", key)
	}
	return a, nil
}

func stringField(d Doc, key, where string) (string, error) {
	v, err := field(d, key, where)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", docErr(where, "%q is not a string", key)
	}
	return s, nil
}

func boolField(d Doc, key, where string) (bool, error) {
	v, err := field(d, key, where)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, docErr(where, "%q is not a boolean", key)
	}
	return b, nil
}

func numberField(d Doc, key, where string) (float64, error) {
	v, err := field(d, key, where)
	if err != nil {
		return 0, err
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, docErr(where, "%q is not a number", key)
	}
	return f, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// toInt 只接受整数值（不接受 1.5 之类）
func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := strconv.ParseInt(string(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}

func toUint(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case json.Number:
		u, err := strconv.ParseUint(string(n), 10, 64)
		return u, err == nil
	}
	i, ok := toInt(v)
	if !ok || i < 0 {
		return 0, false
	}
	return uint64(i), true
}
