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
package session

import (
	"slices"

	"github.com/google/uuid"

	"arrange-orchestrator/internal/agent/recovery"
)

// 常用 musicalContext 键
const (
	MusicalKeyTempo    = "current_tempo"
	MusicalKeyAnalysis = "analysis"
)

// 常用 recentActions
const (
	ActionCreatedTrack = "created_track"
	ActionWroteNotes   = "wrote_notes"
)

// RecordFailure 记录一次工具失败并返回累计错误数；errorCount 只增不减，直到 Reset
func (s *Session) RecordFailure(tool, errMsg string, kind recovery.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.errorCount++
	s.errors.Record(tool, errMsg, kind)
	return s.errorCount
}

// ErrorCount 会话累计错误数
func (s *Session) ErrorCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errorCount
}

// ErrorHistory 错误历史
func (s *Session) ErrorHistory() *recovery.ErrorHistory {
	return s.errors
}

// AddRecentAction 追加动作，超出上限时丢弃最旧的
func (s *Session) AddRecentAction(action string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.recentActions = append(s.recentActions, action)
	s.trimRecentLocked()
}

func (s *Session) trimRecentLocked() {
	if over := len(s.recentActions) - s.recentLimit; over > 0 {
		s.recentActions = append([]string(nil), s.recentActions[over:]...)
	}
}

// RecentActions 最近动作副本
func (s *Session) RecentActions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.recentActions...)
}

// SetMusical 写入 musicalContext
func (s *Session) SetMusical(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.musicalContext[key] = v
}

// Musical 读取 musicalContext
func (s *Session) Musical(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.musicalContext[key]
	return v, ok
}

// MusicalContext musicalContext 浅拷贝
func (s *Session) MusicalContext() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMap(s.musicalContext)
}

// SetGoal 设置当前目标
func (s *Session) SetGoal(goal string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.currentGoal = goal
}

// Goal 当前目标
func (s *Session) Goal() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentGoal
}

// SetProjectState 替换项目状态摘要
func (s *Session) SetProjectState(state map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.projectState = copyMap(state)
}

// ProjectState 项目状态摘要浅拷贝
func (s *Session) ProjectState() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMap(s.projectState)
}

// SetTracks 替换可用轨道集合
func (s *Session) SetTracks(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.tracks = nil
	for _, n := range names {
		if !slices.Contains(s.tracks, n) {
			s.tracks = append(s.tracks, n)
		}
	}
}

// AddTrack 加入可用轨道，已存在时忽略
func (s *Session) AddTrack(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" || slices.Contains(s.tracks, name) {
		return
	}
	s.touch()
	s.tracks = append(s.tracks, name)
}

// Tracks 可用轨道副本
func (s *Session) Tracks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.tracks...)
}

// SetInstruments 替换可用乐器集合
func (s *Session) SetInstruments(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.instruments = append([]string(nil), names...)
}

// Instruments 可用乐器副本
func (s *Session) Instruments() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.instruments...)
}

// SetRole 设置角色与附加上下文；aux 为 nil 时清空附加上下文
func (s *Session) SetRole(role string, aux map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.role = role
	s.roleContext = copyMap(aux)
}

// Role 当前角色
func (s *Session) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// RoleContext 角色附加上下文副本
func (s *Session) RoleContext() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMap(s.roleContext)
}

// Reset 生成新的上下文 ID，清零错误计数并清空最近动作与错误历史
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.contextID = uuid.New().String()
	s.errorCount = 0
	s.recentActions = nil
	s.errors.Reset()
}

// ContextView 执行上下文的只读视图，供 API 与 Planner 序列化
type ContextView struct {
	SessionID      string                 `json:"session_id"`
	ContextID      string                 `json:"context_id"`
	ProjectState   map[string]any         `json:"project_state"`
	Tracks         []string               `json:"available_tracks"`
	Instruments    []string               `json:"available_instruments"`
	RecentActions  []string               `json:"recent_actions"`
	MusicalContext map[string]any         `json:"musical_context"`
	ErrorCount     int                    `json:"error_count"`
	CurrentGoal    string                 `json:"current_goal"`
	Role           string                 `json:"role,omitempty"`
	RoleContext    map[string]any         `json:"role_context,omitempty"`
	ErrorsByTool   map[string]int         `json:"errors_by_tool"`
	RecentErrors   []recovery.ErrorRecord `json:"recent_errors"`
}

// View 返回上下文快照
func (s *Session) View() ContextView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ContextView{
		SessionID:      s.ID,
		ContextID:      s.contextID,
		ProjectState:   copyMap(s.projectState),
		Tracks:         append([]string{}, s.tracks...),
		Instruments:    append([]string{}, s.instruments...),
		RecentActions:  append([]string{}, s.recentActions...),
		MusicalContext: copyMap(s.musicalContext),
		ErrorCount:     s.errorCount,
		CurrentGoal:    s.currentGoal,
		Role:           s.role,
		RoleContext:    copyMap(s.roleContext),
		ErrorsByTool:   s.errors.PerTool(),
		RecentErrors:   s.errors.Recent(),
	}
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
