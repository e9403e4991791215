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

package toolcall

import (
	"context"
	"fmt"
)

// 调用来源，用于执行轨迹
const (
	OriginPlanned      = "planned"
	OriginPrerequisite = "prerequisite"
	OriginRecovery     = "recovery"
)

// Call 单次工具调用；JSON 形态为 {"tool","params","reasoning"}
type Call struct {
	Name      string  `json:"tool"`
	Params    *Params `json:"params"`
	Reasoning string  `json:"reasoning,omitempty"`
	Origin    string  `json:"-"` // 空表示 planned
}

// NewCall 构造调用，kv 同 NewParams
func NewCall(name string, kv ...any) Call {
	return Call{Name: name, Params: NewParams(kv...)}
}

// WithParam 返回设置了某参数的副本，原调用不变
func (c Call) WithParam(key string, value any) Call {
	out := c.Clone()
	out.Params.Set(key, value)
	return out
}

// Clone 深拷贝
func (c Call) Clone() Call {
	return Call{Name: c.Name, Params: c.Params.Clone(), Reasoning: c.Reasoning, Origin: c.Origin}
}

// OriginOrPlanned 返回调用来源，未标记时为 planned
func (c Call) OriginOrPlanned() string {
	if c.Origin == "" {
		return OriginPlanned
	}
	return c.Origin
}

func (c Call) String() string {
	raw, _ := c.Params.MarshalJSON()
	return fmt.Sprintf("%s%s", c.Name, raw)
}

// Sequence 有序的调用列表
type Sequence []Call

// Names 返回每步的工具名
func (s Sequence) Names() []string {
	names := make([]string, len(s))
	for i := range s {
		names[i] = s[i].Name
	}
	return names
}

// Clone 深拷贝
func (s Sequence) Clone() Sequence {
	out := make(Sequence, len(s))
	for i := range s {
		out[i] = s[i].Clone()
	}
	return out
}

// Result 单次工具调用结果
type Result struct {
	Name      string            `json:"tool"`
	Input     *Params           `json:"input"`
	Output    string            `json:"output"`
	Success   bool              `json:"success"`
	Changes   []ChangeOperation `json:"change_operations,omitempty"`
	PreviewID string            `json:"preview_id,omitempty"`
}

// Failure 构造失败结果，Output 为错误文本
func Failure(call Call, msg string) Result {
	return Result{Name: call.Name, Input: call.Params, Output: msg, Success: false}
}

// Runner 按名称分派工具调用；失败以 Result.Success=false 表达而非 error
type Runner interface {
	RunTool(ctx context.Context, call Call) Result
}

// RunnerFunc 函数适配 Runner
type RunnerFunc func(ctx context.Context, call Call) Result

// RunTool 实现 Runner
func (f RunnerFunc) RunTool(ctx context.Context, call Call) Result {
	return f(ctx, call)
}
