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
// Package planner 把自然语言目标转为工具调用序列。
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"arrange-orchestrator/internal/agent/toolcall"
)

// 规划失败时返回给调用方的固定文本
const (
	ErrorOrchestrationFailed = "AI orchestration failed"
	MessageCheckAPIKey       = "Unable to process request with AI system. Check API key configuration."
)

// Request 规划输入
type Request struct {
	Goal        string          // 用户原话
	Context     any             // 序列化后的执行上下文
	ToolsJSON   []byte          // 工具描述（JSON 数组）
	Instruments []string        // 可用乐器插件
	Role        string          // 当前角色
	History     []PriorExchange // 最近的对话
}

// PriorExchange 一轮对话
type PriorExchange struct {
	Role    string
	Content string
}

// Response 规划结果；Error 非空表示规划失败
type Response struct {
	Error           string            `json:"error,omitempty"`
	Message         string            `json:"message,omitempty"`
	ToolSequence    toolcall.Sequence `json:"tool_sequence"`
	Analysis        map[string]any    `json:"analysis,omitempty"`
	ExpectedOutcome string            `json:"expected_outcome,omitempty"`
	AIGenerated     bool              `json:"ai_generated"`
}

// Failed 规划是否失败
func (r *Response) Failed() bool {
	return r == nil || r.Error != ""
}

// MusicalStyle analysis.musical_style，作为会话的 current_goal
func (r *Response) MusicalStyle() string {
	if r == nil || r.Analysis == nil {
		return ""
	}
	s, _ := r.Analysis["musical_style"].(string)
	return s
}

// Planner 规划器
type Planner interface {
	Name() string
	// Plan 只在 ctx 取消时返回 error；规划失败体现在 Response.Error
	Plan(ctx context.Context, req Request) (*Response, error)
}

func failure() *Response {
	return &Response{Error: ErrorOrchestrationFailed, Message: MessageCheckAPIKey}
}

// planStep orchestration_plan 中的一步
type planStep struct {
	Step      int              `json:"step"`
	Tool      string           `json:"tool"`
	Params    *toolcall.Params `json:"params"`
	Reasoning string           `json:"reasoning"`
}

type rawPlan struct {
	Analysis          map[string]any     `json:"analysis"`
	OrchestrationPlan []planStep         `json:"orchestration_plan"`
	ToolSequence      *toolcall.Sequence `json:"tool_sequence"`
	ExpectedOutcome   string             `json:"expected_outcome"`
}

// ParseReply 解析模型回复：优先 orchestration_plan，其次裸 tool_sequence
func ParseReply(reply string) (*Response, error) {
	reply = extractJSON(reply)
	var raw rawPlan
	if err := json.Unmarshal([]byte(reply), &raw); err != nil {
		return nil, fmt.Errorf("解析规划输出 JSON 失败: %w", err)
	}
	resp := &Response{
		Analysis:        raw.Analysis,
		ExpectedOutcome: raw.ExpectedOutcome,
		AIGenerated:     true,
	}
	switch {
	case raw.OrchestrationPlan != nil:
		resp.ToolSequence = make(toolcall.Sequence, 0, len(raw.OrchestrationPlan))
		for _, st := range raw.OrchestrationPlan {
			if st.Tool == "" {
				continue
			}
			params := st.Params
			if params == nil {
				params = toolcall.NewParams()
			}
			resp.ToolSequence = append(resp.ToolSequence, toolcall.Call{Name: st.Tool, Params: params, Reasoning: st.Reasoning})
		}
	case raw.ToolSequence != nil:
		resp.ToolSequence = *raw.ToolSequence
	default:
		return nil, fmt.Errorf("规划输出缺少 orchestration_plan 或 tool_sequence")
	}
	for i := range resp.ToolSequence {
		if resp.ToolSequence[i].Params == nil {
			resp.ToolSequence[i].Params = toolcall.NewParams()
		}
	}
	return resp, nil
}

// extractJSON 从回复中提取 JSON（可能被 markdown 包裹）
func extractJSON(reply string) string {
	reply = strings.TrimSpace(reply)
	if idx := strings.Index(reply, "{"); idx >= 0 {
		if end := strings.LastIndex(reply, "}"); end > idx {
			reply = reply[idx : end+1]
		}
	}
	return reply
}
