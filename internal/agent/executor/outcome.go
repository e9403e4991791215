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
package executor

import (
	"arrange-orchestrator/internal/agent/recovery"
	"arrange-orchestrator/internal/agent/toolcall"
)

// State 执行器状态
type State string

const (
	StateIdle          State = "idle"
	StateExecuting     State = "executing"
	StateSucceeded     State = "succeeded"
	StateFailed        State = "failed"
	StateCircuitBroken State = "circuit_broken"
	StateCancelled     State = "cancelled"
)

// 结果摘要
const (
	SummarySucceeded = "All tools executed successfully"
	SummaryEmpty     = "empty sequence"
	SummaryCancelled = "Execution cancelled"
)

// TraceEntry 单步执行轨迹
type TraceEntry struct {
	Index      int    `json:"index"`
	Tool       string `json:"tool"`
	Origin     string `json:"origin"`
	Success    bool   `json:"success"`
	Sanitized  bool   `json:"sanitized,omitempty"`
	Output     string `json:"output,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Failure 单次失败及策略结论
type Failure struct {
	Index  int           `json:"index"`
	Tool   string        `json:"tool"`
	Error  string        `json:"error"`
	Kind   recovery.Kind `json:"kind"`
	Action string        `json:"action"`
}

// Outcome 一次序列执行的结果
type Outcome struct {
	State      State             `json:"state"`
	Success    bool              `json:"success"`
	Summary    string            `json:"summary"`
	FailedStep int               `json:"failed_step,omitempty"` // 从 1 开始
	FailedTool string            `json:"failed_tool,omitempty"`
	Error      string            `json:"error,omitempty"`
	ErrorKind  recovery.Kind     `json:"error_kind,omitempty"`
	Results    []toolcall.Result `json:"results"`
	Trace      []TraceEntry      `json:"trace"`
	Failures   []Failure         `json:"failures,omitempty"`
	DurationMs int64             `json:"duration_ms"`
}

// Terminal 是否为终态
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCircuitBroken, StateCancelled:
		return true
	}
	return false
}
