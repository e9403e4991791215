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
package snapshot

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"arrange-orchestrator/internal/agent/toolcall"
	"arrange-orchestrator/pkg/errors"
	"arrange-orchestrator/pkg/log"
	"arrange-orchestrator/pkg/metrics"
)

// DefaultMaxSnapshots 每会话默认保留的快照数
const DefaultMaxSnapshots = 64

// Options Store 配置
type Options struct {
	MaxSnapshots int       // LRU 容量，<=0 使用默认
	Persister    Persister // 可选，写穿持久化
	Logger       *log.Logger
}

// Store 单个会话的快照存储
type Store struct {
	sessionID string
	model     ProjectModel
	persister Persister
	logger    *log.Logger

	mu      sync.Mutex
	cache   *lru.Cache[string, *ProjectSnapshot]
	current string
	seq     uint64
}

// NewStore 创建快照存储
func NewStore(sessionID string, model ProjectModel, opts Options) (*Store, error) {
	size := opts.MaxSnapshots
	if size <= 0 {
		size = DefaultMaxSnapshots
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	s := &Store{
		sessionID: sessionID,
		model:     model,
		persister: opts.Persister,
		logger:    logger,
	}
	cache, err := lru.NewWithEvict[string, *ProjectSnapshot](size, func(id string, _ *ProjectSnapshot) {
		metrics.SnapshotEvictTotal.Inc()
		s.logger.Debug("快照被淘汰", "session_id", sessionID, "snapshot_id", id)
	})
	if err != nil {
		return nil, err
	}
	s.cache = cache
	return s, nil
}

// HashState 对 {session_state, track_list} 的规范 JSON 求 SHA-256
func HashState(st State) string {
	return toolcall.ContentHash(map[string]any{
		"session_state": st.SessionState,
		"track_list":    st.TrackList,
	})
}

// Capture 捕获当前项目状态；两次捕获之间无变更时哈希相同、ID 不同
func (s *Store) Capture(ctx context.Context, label string) (*ProjectSnapshot, error) {
	st, err := s.model.CaptureState()
	if err != nil {
		return nil, errors.Wrap(err, "capture project state")
	}
	s.mu.Lock()
	s.seq++
	snap := &ProjectSnapshot{
		ID:           "snap-" + uuid.New().String(),
		Label:        label,
		SessionID:    s.sessionID,
		TimestampMs:  time.Now().UnixMilli(),
		SessionState: st.SessionState,
		TrackList:    st.TrackList,
		ContentHash:  HashState(st),
		Payload:      st.Payload,
		seq:          s.seq,
	}
	stored := snap.clone()
	stored.seq = snap.seq
	s.cache.Add(snap.ID, stored)
	s.mu.Unlock()

	metrics.SnapshotOpsTotal.WithLabelValues("capture").Inc()
	if s.persister != nil {
		if err := s.persister.Save(ctx, snap); err != nil {
			s.logger.Warn("快照持久化失败", "snapshot_id", snap.ID, "error", err)
		}
	}
	return snap, nil
}

// Get 按 ID 获取；本地没有时回退到持久化层
func (s *Store) Get(ctx context.Context, id string) (*ProjectSnapshot, error) {
	s.mu.Lock()
	snap, ok := s.cache.Get(id)
	s.mu.Unlock()
	if ok {
		return snap.clone(), nil
	}
	if s.persister != nil {
		loaded, err := s.persister.Load(ctx, s.sessionID, id)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrUnavailable, "load snapshot %s: %v", id, err)
		}
		if loaded != nil {
			return loaded, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "snapshot %s", id)
}

// List 返回驻留快照摘要，最新的在前
func (s *Store) List(ctx context.Context) []Summary {
	s.mu.Lock()
	snaps := s.cache.Values()
	current := s.current
	s.mu.Unlock()
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].seq > snaps[j].seq })
	out := make([]Summary, len(snaps))
	for i, snap := range snaps {
		out[i] = Summary{
			ID:          snap.ID,
			Label:       snap.Label,
			TimestampMs: snap.TimestampMs,
			ContentHash: snap.ContentHash,
			Tracks:      len(snap.TrackList),
			Current:     snap.ID == current,
		}
	}
	return out
}

// Len 驻留快照数
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

// Current 当前指针（最近一次回滚的目标），未回滚过时为空
func (s *Store) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Diff 比较两个快照
func (s *Store) Diff(ctx context.Context, fromID, toID string) (*Delta, error) {
	from, err := s.Get(ctx, fromID)
	if err != nil {
		return nil, err
	}
	to, err := s.Get(ctx, toID)
	if err != nil {
		return nil, err
	}
	metrics.SnapshotOpsTotal.WithLabelValues("diff").Inc()
	return Compare(from, to), nil
}

// Revert 把当前指针指向快照并通知项目模型整体覆盖；失败时指针恢复原值
func (s *Store) Revert(ctx context.Context, id string) error {
	snap, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	prev := s.current
	s.current = id
	s.mu.Unlock()

	if err := s.model.RestoreState(snap.Payload); err != nil {
		s.mu.Lock()
		s.current = prev
		s.mu.Unlock()
		return errors.Wrapf(err, "revert to %s", id)
	}
	metrics.SnapshotOpsTotal.WithLabelValues("revert").Inc()
	s.logger.Info("已回滚到快照", "session_id", s.sessionID, "snapshot_id", id)
	return nil
}
