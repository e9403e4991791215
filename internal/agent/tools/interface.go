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
package tools

import (
	"context"

	"arrange-orchestrator/internal/agent/capability"
	"arrange-orchestrator/internal/agent/toolcall"
	"arrange-orchestrator/internal/project"
)

// Output 工具执行结果；Message 为给用户与规划器看的文本
type Output struct {
	Message   string                     `json:"message"`
	Changes   []toolcall.ChangeOperation `json:"change_operations,omitempty"`
	PreviewID string                     `json:"preview_id,omitempty"`
}

// Tool 作用于编曲的工具；返回 error 表示工具失败，错误文本即失败信息
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]any
	Execute(ctx context.Context, proj *project.Project, params *toolcall.Params) (Output, error)
}

// ToolWithCapability 声明了能力图条目的工具
type ToolWithCapability interface {
	Tool
	Capability() capability.Capability
}
