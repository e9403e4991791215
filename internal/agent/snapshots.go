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
package agent

import (
	"context"

	"arrange-orchestrator/internal/runtime/snapshot"
)

// CaptureSnapshot 捕获当前编曲；序列执行中拒绝
func (o *Orchestrator) CaptureSnapshot(ctx context.Context, sessionID, label string) (*snapshot.ProjectSnapshot, error) {
	_, ws, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := busy(ws); err != nil {
		return nil, err
	}
	return ws.snapshots.Capture(ctx, label)
}

// ListSnapshots 快照摘要，最新的在前
func (o *Orchestrator) ListSnapshots(ctx context.Context, sessionID string) ([]snapshot.Summary, error) {
	_, ws, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ws.snapshots.List(ctx), nil
}

// GetSnapshot 按 ID 获取快照
func (o *Orchestrator) GetSnapshot(ctx context.Context, sessionID, id string) (*snapshot.ProjectSnapshot, error) {
	_, ws, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ws.snapshots.Get(ctx, id)
}

// DiffSnapshots 比较两个快照
func (o *Orchestrator) DiffSnapshots(ctx context.Context, sessionID, from, to string) (*snapshot.Delta, error) {
	_, ws, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ws.snapshots.Diff(ctx, from, to)
}

// RevertSnapshot 回滚到快照；序列执行中拒绝
func (o *Orchestrator) RevertSnapshot(ctx context.Context, sessionID, id string) error {
	sess, ws, err := o.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := busy(ws); err != nil {
		return err
	}
	if err := ws.snapshots.Revert(ctx, id); err != nil {
		return err
	}
	refreshContext(sess, ws.project)
	return o.sessions.Save(ctx, sess)
}

// CurrentSnapshot 最近一次回滚的目标
func (o *Orchestrator) CurrentSnapshot(ctx context.Context, sessionID string) (string, error) {
	_, ws, err := o.load(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return ws.snapshots.Current(), nil
}
