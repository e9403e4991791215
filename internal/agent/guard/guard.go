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
// Package guard 在工具调用前校验参数，并把越界参数修正到合法范围。
package guard

import (
	"sync"

	"arrange-orchestrator/internal/agent/toolcall"
)

// Rule 单个工具的参数规则；Validate 与 Sanitize 必须是纯函数
type Rule struct {
	Validate func(p *toolcall.Params) bool
	Sanitize func(p *toolcall.Params) *toolcall.Params
}

// Guard 按工具名查找规则；无规则的工具视为合法
type Guard struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// New 创建带默认规则的 Guard
func New() *Guard {
	g := &Guard{rules: make(map[string]Rule)}
	for name, r := range defaultRules() {
		g.rules[name] = r
	}
	return g
}

// Register 注册或覆盖某工具的规则
func (g *Guard) Register(tool string, r Rule) {
	g.mu.Lock()
	g.rules[tool] = r
	g.mu.Unlock()
}

func (g *Guard) rule(tool string) (Rule, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rules[tool]
	return r, ok
}

// Validate 参数是否满足工具规则
func (g *Guard) Validate(params *toolcall.Params, tool string) bool {
	r, ok := g.rule(tool)
	if !ok || r.Validate == nil {
		return true
	}
	return r.Validate(params)
}

// Sanitize 返回修正后的参数副本，入参不变
func (g *Guard) Sanitize(params *toolcall.Params, tool string) *toolcall.Params {
	r, ok := g.rule(tool)
	if !ok || r.Sanitize == nil {
		return params.Clone()
	}
	return r.Sanitize(params)
}

// Check 校验失败时才修正；sanitized 表示返回值经过修正
func (g *Guard) Check(params *toolcall.Params, tool string) (out *toolcall.Params, sanitized bool) {
	if g.Validate(params, tool) {
		return params, false
	}
	return g.Sanitize(params, tool), true
}
