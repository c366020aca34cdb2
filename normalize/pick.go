package normalize

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Decode 解析 JSON, 数字保留为 json.Number 以免丢失精度
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Lookup 按点分路径取值, 如 "Result.Sites.Site"
// 数组使用下标, 如 "data.viewer.zones.0"
func Lookup(doc any, path string) (any, bool) {
	cur := doc
	for _, key := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[key]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Pick 依次尝试候选路径, 返回第一个存在且非 null 的值
// 空字符串视为缺失
func Pick(doc any, paths ...string) any {
	for _, p := range paths {
		v, ok := Lookup(doc, p)
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && s == "" {
			continue
		}
		return v
	}
	return nil
}

// String 候选路径中第一个值的字符串形式, 缺失时为 ""
func String(doc any, paths ...string) string {
	return toString(Pick(doc, paths...))
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Float64 候选路径中第一个数值, 缺失或无法解析时为 0
func Float64(doc any, paths ...string) float64 {
	return toFloat(Pick(doc, paths...))
}

func toFloat(v any) float64 {
	var f float64
	switch t := v.(type) {
	case json.Number:
		f, _ = t.Float64()
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(t), 64)
	case bool:
		if t {
			f = 1
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Int64 候选路径中第一个整数, 小数部分截断
func Int64(doc any, paths ...string) int64 {
	return toInt(Pick(doc, paths...))
}

func toInt(v any) int64 {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	if s, ok := v.(string); ok {
		if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return i
		}
	}
	f := toFloat(v)
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

// Count 非负整数, 用于流量和请求数等计数
func Count(doc any, paths ...string) int64 {
	if n := Int64(doc, paths...); n > 0 {
		return n
	}
	return 0
}

// Slice 候选路径中第一个数组
// 与 Pick 不同, 类型不是数组的值会被跳过, 以兼容 Sites 与 Sites.Site 两种结构
func Slice(doc any, paths ...string) []any {
	for _, p := range paths {
		v, ok := Lookup(doc, p)
		if !ok {
			continue
		}
		if arr, isArr := v.([]any); isArr {
			return arr
		}
	}
	return nil
}

// Map 候选路径中第一个对象
func Map(doc any, paths ...string) map[string]any {
	for _, p := range paths {
		v, ok := Lookup(doc, p)
		if !ok {
			continue
		}
		if m, isMap := v.(map[string]any); isMap {
			return m
		}
	}
	return nil
}

// Strings 字符串数组, 也接受逗号分隔的字符串
func Strings(doc any, paths ...string) []string {
	result := []string{}
	switch t := Pick(doc, paths...).(type) {
	case []any:
		for _, item := range t {
			if s := toString(item); s != "" {
				result = append(result, s)
			}
		}
	case string:
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				result = append(result, s)
			}
		}
	}
	return result
}
