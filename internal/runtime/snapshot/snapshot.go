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
// Package snapshot 按内容寻址的项目快照：捕获、差异比较与回滚。
package snapshot

import (
	"encoding/json"
)

// State 项目模型导出的可快照状态
type State struct {
	SessionState map[string]any   `json:"session_state"`
	TrackList    []map[string]any `json:"track_list"`
	Payload      json.RawMessage  `json:"payload"` // 回滚时原样交还给项目模型
}

// ProjectModel 项目模型协作者：捕获当前状态，并按负载整体覆盖
type ProjectModel interface {
	CaptureState() (State, error)
	RestoreState(payload json.RawMessage) error
}

// ProjectSnapshot 不可变快照，只通过 ID 引用
type ProjectSnapshot struct {
	ID           string           `json:"id"`
	Label        string           `json:"label,omitempty"`
	SessionID    string           `json:"session_id"`
	TimestampMs  int64            `json:"timestamp_ms"`
	SessionState map[string]any   `json:"session_state"`
	TrackList    []map[string]any `json:"track_list"`
	ContentHash  string           `json:"content_hash"`
	Payload      json.RawMessage  `json:"payload,omitempty"`

	seq uint64
}

// Summary 列表展示用的精简信息
type Summary struct {
	ID          string `json:"id"`
	Label       string `json:"label,omitempty"`
	TimestampMs int64  `json:"timestamp_ms"`
	ContentHash string `json:"content_hash"`
	Tracks      int    `json:"tracks"`
	Current     bool   `json:"current"`
}

// clone 深拷贝，保证存储中的快照不被调用方修改
func (s *ProjectSnapshot) clone() *ProjectSnapshot {
	out := *s
	out.SessionState = cloneMap(s.SessionState)
	out.TrackList = make([]map[string]any, len(s.TrackList))
	for i, t := range s.TrackList {
		out.TrackList[i] = cloneMap(t)
	}
	out.Payload = append(json.RawMessage(nil), s.Payload...)
	return &out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out
	}
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return out
}
