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
	"sync"
	"time"

	"github.com/google/uuid"

	"arrange-orchestrator/internal/agent/recovery"
)

// DefaultRecentActions recentActions 默认上限
const DefaultRecentActions = 20

// ToolCallRecord 单次工具调用记录
type ToolCallRecord struct {
	Tool    string         `json:"tool"`
	Input   map[string]any `json:"input,omitempty"`
	Output  string         `json:"output"`
	Success bool           `json:"success"`
	At      time.Time      `json:"at"`
}

// Session 一次编排会话：承载执行上下文与对话历史。
// ID 在会话生命周期内不变；ContextID 在 Reset 时重新生成。
type Session struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	Messages  []*Message       // 用户意图与回复
	ToolCalls []ToolCallRecord // 工具调用记录

	contextID      string
	projectState   map[string]any
	tracks         []string
	instruments    []string
	recentActions  []string
	recentLimit    int
	musicalContext map[string]any
	errorCount     int
	currentGoal    string
	role           string
	roleContext    map[string]any
	errors         *recovery.ErrorHistory

	mu sync.RWMutex
}

// New 创建新 Session（id 为空时生成）
func New(id string) *Session {
	now := time.Now()
	if id == "" {
		id = "session-" + uuid.New().String()
	}
	return &Session{
		ID:             id,
		CreatedAt:      now,
		UpdatedAt:      now,
		contextID:      uuid.New().String(),
		projectState:   make(map[string]any),
		musicalContext: make(map[string]any),
		roleContext:    make(map[string]any),
		recentLimit:    DefaultRecentActions,
		errors:         recovery.NewErrorHistory(),
	}
}

// SetRecentLimit 设置 recentActions 上限，<=0 忽略
func (s *Session) SetRecentLimit(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recentLimit = n
	s.trimRecentLocked()
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now()
}

// ContextID 当前执行上下文 ID
func (s *Session) ContextID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contextID
}

// AddMessage 追加一条对话消息
func (s *Session) AddMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.Messages = append(s.Messages, &Message{Role: role, Content: content, Timestamp: s.UpdatedAt})
}

// AddObservation 追加一次工具调用观察
func (s *Session) AddObservation(tool string, input map[string]any, output string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.ToolCalls = append(s.ToolCalls, ToolCallRecord{
		Tool:    tool,
		Input:   input,
		Output:  output,
		Success: success,
		At:      s.UpdatedAt,
	})
}

// CopyMessages 返回 Messages 的副本（供 Planner 等只读使用）
func (s *Session) CopyMessages() []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.Messages) == 0 {
		return nil
	}
	out := make([]*Message, len(s.Messages))
	for i, m := range s.Messages {
		out[i] = &Message{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp}
	}
	return out
}

// CopyToolCalls 返回 ToolCalls 的副本
func (s *Session) CopyToolCalls() []ToolCallRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.ToolCalls) == 0 {
		return nil
	}
	out := make([]ToolCallRecord, len(s.ToolCalls))
	copy(out, s.ToolCalls)
	return out
}
