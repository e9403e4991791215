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
	"fmt"

	"arrange-orchestrator/internal/agent/toolcall"
	"arrange-orchestrator/internal/project"
)

// Runner 把调用分派到注册表中的工具，作用于同一个编曲
type Runner struct {
	registry *Registry
	project  *project.Project
}

// NewRunner 创建分派器
func NewRunner(registry *Registry, proj *project.Project) *Runner {
	return &Runner{registry: registry, project: proj}
}

// Project 分派器作用的编曲
func (r *Runner) Project() *project.Project {
	return r.project
}

// RunTool 实现 toolcall.Runner
func (r *Runner) RunTool(ctx context.Context, call toolcall.Call) toolcall.Result {
	t, ok := r.registry.Get(call.Name)
	if !ok {
		return toolcall.Failure(call, fmt.Sprintf("Unknown tool: %s", call.Name))
	}
	if err := ctx.Err(); err != nil {
		return toolcall.Failure(call, err.Error())
	}
	params := call.Params
	if params == nil {
		params = toolcall.NewParams()
	}
	out, err := t.Execute(ctx, r.project, params)
	if err != nil {
		return toolcall.Failure(call, err.Error())
	}
	return toolcall.Result{
		Name:      call.Name,
		Input:     params,
		Output:    out.Message,
		Success:   true,
		Changes:   out.Changes,
		PreviewID: out.PreviewID,
	}
}
