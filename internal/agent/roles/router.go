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
package roles

import "arrange-orchestrator/internal/runtime/session"

// Router 在会话上下文中切换角色
type Router struct{}

// NewRouter 创建 Router
func NewRouter() *Router {
	return &Router{}
}

// SwitchRole 设置角色标签与附加上下文，不会失败
func (r *Router) SwitchRole(s *session.Session, role Role, aux map[string]any) {
	s.SetRole(string(role), aux)
}

// Current 当前角色；未设置或非法时为 planning
func (r *Router) Current(s *session.Session) Role {
	role, err := Parse(s.Role())
	if err != nil {
		return Planning
	}
	return role
}

// DefaultTarget 会话当前角色的默认目标轨道
func (r *Router) DefaultTarget(s *session.Session) string {
	return DefaultTarget(r.Current(s))
}

// Route 按消息推断角色并切换，返回推断结果
func (r *Router) Route(s *session.Session, message string) Role {
	role, element := Detect(message)
	aux := map[string]any{}
	if element != "" {
		aux["element"] = element
	}
	r.SwitchRole(s, role, aux)
	return role
}
