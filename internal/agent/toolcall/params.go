// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package toolcall 定义工具调用的数据模型：调用、序列、结果与变更记录。
package toolcall

import (
	"encoding/json"
	"math"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Params 保留插入顺序的参数表；序列化后键顺序与写入顺序一致。
// 零值与 nil 均可安全读取。
type Params struct {
	om *orderedmap.OrderedMap[string, any]
}

// NewParams 按 key, value, key, value ... 顺序构造参数表；奇数个参数时忽略最后一个
func NewParams(kv ...any) *Params {
	p := &Params{om: orderedmap.New[string, any]()}
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		p.om.Set(k, kv[i+1])
	}
	return p
}

// FromMap 由普通 map 构造；map 无序，键按 JSON 编码的字典序写入
func FromMap(m map[string]any) *Params {
	p := NewParams()
	if len(m) == 0 {
		return p
	}
	raw, err := json.Marshal(m)
	if err != nil {
		for k, v := range m {
			p.Set(k, v)
		}
		return p
	}
	_ = p.UnmarshalJSON(raw)
	return p
}

func (p *Params) ensure() {
	if p.om == nil {
		p.om = orderedmap.New[string, any]()
	}
}

// Set 写入参数；已存在的键保持原位置
func (p *Params) Set(key string, value any) {
	p.ensure()
	p.om.Set(key, value)
}

// Get 读取参数
func (p *Params) Get(key string) (any, bool) {
	if p == nil || p.om == nil {
		return nil, false
	}
	return p.om.Get(key)
}

// Has 是否存在该键
func (p *Params) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Delete 删除参数
func (p *Params) Delete(key string) {
	if p == nil || p.om == nil {
		return
	}
	p.om.Delete(key)
}

// Len 参数个数
func (p *Params) Len() int {
	if p == nil || p.om == nil {
		return 0
	}
	return p.om.Len()
}

// Keys 按插入顺序返回所有键
func (p *Params) Keys() []string {
	if p == nil || p.om == nil {
		return nil
	}
	keys := make([]string, 0, p.om.Len())
	for pair := p.om.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Clone 深拷贝；嵌套的 Params、map 与切片逐层复制，标量保留原始类型
func (p *Params) Clone() *Params {
	out := NewParams()
	if p == nil || p.om == nil {
		return out
	}
	for pair := p.om.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, cloneValue(pair.Value))
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case *Params:
		return t.Clone()
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = cloneValue(val)
		}
		return m
	case []any:
		l := make([]any, len(t))
		for i := range t {
			l[i] = cloneValue(t[i])
		}
		return l
	case []*Params:
		l := make([]*Params, len(t))
		for i := range t {
			l[i] = t[i].Clone()
		}
		return l
	case []map[string]any:
		l := make([]map[string]any, len(t))
		for i := range t {
			l[i], _ = cloneValue(t[i]).(map[string]any)
		}
		return l
	case []string:
		return append([]string(nil), t...)
	case []int:
		return append([]int(nil), t...)
	case []float64:
		return append([]float64(nil), t...)
	}
	return v
}

// ToMap 转为普通 map（丢失顺序）
func (p *Params) ToMap() map[string]any {
	m := make(map[string]any, p.Len())
	if p == nil || p.om == nil {
		return m
	}
	for pair := p.om.Oldest(); pair != nil; pair = pair.Next() {
		if nested, ok := pair.Value.(*Params); ok {
			m[pair.Key] = nested.ToMap()
			continue
		}
		m[pair.Key] = pair.Value
	}
	return m
}

// String 读取字符串参数
func (p *Params) String(key string) (string, bool) {
	v, ok := p.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// StringOr 读取字符串参数，缺失或类型不符时返回 def
func (p *Params) StringOr(key, def string) string {
	if s, ok := p.String(key); ok && s != "" {
		return s
	}
	return def
}

// Float 读取数值参数；只接受数值类型，字符串视为非数值
func (p *Params) Float(key string) (float64, bool) {
	v, ok := p.Get(key)
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// Int 读取整数参数（浮点数向零截断）
func (p *Params) Int(key string) (int, bool) {
	f, ok := p.Float(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// IntOr 读取整数参数，缺失时返回 def
func (p *Params) IntOr(key string, def int) int {
	if n, ok := p.Int(key); ok {
		return n
	}
	return def
}

// Bool 读取布尔参数
func (p *Params) Bool(key string) (bool, bool) {
	v, ok := p.Get(key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// List 读取数组参数
func (p *Params) List(key string) ([]any, bool) {
	v, ok := p.Get(key)
	if !ok {
		return nil, false
	}
	switch l := v.(type) {
	case []any:
		return l, true
	case []*Params:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out, true
	}
	return nil, false
}

// AsParams 将嵌套对象（*Params 或 map）视为 Params
func AsParams(v any) (*Params, bool) {
	switch t := v.(type) {
	case *Params:
		return t, t != nil
	case map[string]any:
		return FromMap(t), true
	}
	return nil, false
}

// ToFloat 数值类型转 float64；NaN 与 Inf 视为非数值
func ToFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint8:
		f = float64(n)
	case json.Number:
		parsed, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// MarshalJSON 按插入顺序输出对象
func (p *Params) MarshalJSON() ([]byte, error) {
	if p == nil || p.om == nil {
		return []byte("{}"), nil
	}
	return p.om.MarshalJSON()
}

// UnmarshalJSON 解析对象并保留键顺序；嵌套对象解析为 map[string]any
func (p *Params) UnmarshalJSON(data []byte) error {
	om := orderedmap.New[string, any]()
	if string(data) == "null" {
		p.om = om
		return nil
	}
	if err := om.UnmarshalJSON(data); err != nil {
		return err
	}
	p.om = om
	return nil
}
