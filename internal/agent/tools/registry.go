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
	"encoding/json"
	"sort"
	"sync"

	"arrange-orchestrator/internal/agent/capability"
)

// Registry 工具注册表
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// NewBuiltinRegistry 创建并注册全部内置工具
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	RegisterBuiltin(r)
	return r
}

// Register 注册工具，同名覆盖
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get 按名称获取
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List 按名称排序返回所有工具
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// Capabilities 声明了能力的工具的能力条目
func (r *Registry) Capabilities() []capability.Capability {
	var out []capability.Capability
	for _, t := range r.List() {
		if ct, ok := t.(ToolWithCapability); ok {
			out = append(out, ct.Capability())
		}
	}
	return out
}

// ToolSchemaForLLM 供规划器提示词使用的工具描述
type ToolSchemaForLLM struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Schemas 按名称排序的工具描述
func (r *Registry) Schemas() []ToolSchemaForLLM {
	list := r.List()
	out := make([]ToolSchemaForLLM, 0, len(list))
	for _, t := range list {
		out = append(out, ToolSchemaForLLM{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return out
}

// SchemasForLLM 序列化后的工具描述
func (r *Registry) SchemasForLLM() ([]byte, error) {
	return json.Marshal(r.Schemas())
}
