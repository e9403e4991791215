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
	"context"

	"arrange-orchestrator/pkg/errors"
)

// SessionManager 管理 Session 生命周期
type SessionManager interface {
	Create(ctx context.Context) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	GetOrCreate(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Reset(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Session, error)
}

// Manager 基于 SessionStore 的实现
type Manager struct {
	store       SessionStore
	recentLimit int
}

// NewManager 创建 SessionManager；recentLimit<=0 使用默认值
func NewManager(store SessionStore, recentLimit int) *Manager {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentActions
	}
	return &Manager{store: store, recentLimit: recentLimit}
}

func (m *Manager) newSession(id string) *Session {
	s := New(id)
	s.SetRecentLimit(m.recentLimit)
	return s
}

// Create 创建新 Session
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	s := m.newSession("")
	if err := m.store.Put(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Get 按 ID 获取 Session，不存在时返回 errors.ErrNotFound
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "session %s", id)
	}
	return s, nil
}

// GetOrCreate 若 id 为空则 Create，否则 Get；not found 时以该 id 新建
func (m *Manager) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return m.Create(ctx)
	}
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s != nil {
		return s, nil
	}
	s = m.newSession(id)
	if err := m.store.Put(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Save 持久化 Session
func (m *Manager) Save(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	return m.store.Put(ctx, s)
}

// Reset 重置会话执行上下文
func (m *Manager) Reset(ctx context.Context, id string) (*Session, error) {
	s, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Reset()
	return s, m.store.Put(ctx, s)
}

// Delete 删除会话
func (m *Manager) Delete(ctx context.Context, id string) error {
	if _, err := m.Get(ctx, id); err != nil {
		return err
	}
	return m.store.Delete(ctx, id)
}

// List 列出所有会话
func (m *Manager) List(ctx context.Context) ([]*Session, error) {
	return m.store.List(ctx)
}
