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
package recovery

import (
	"sync"
	"time"
)

// MaxRecentErrors 保留的最近错误条数
const MaxRecentErrors = 10

// ErrorRecord 单条错误
type ErrorRecord struct {
	Tool  string    `json:"tool"`
	Error string    `json:"error"`
	Kind  Kind      `json:"kind"`
	At    time.Time `json:"at"`
}

// ErrorHistory 按工具计数并保留最近 10 条错误
type ErrorHistory struct {
	mu      sync.Mutex
	perTool map[string]int
	recent  []ErrorRecord
}

// NewErrorHistory 创建空历史
func NewErrorHistory() *ErrorHistory {
	return &ErrorHistory{perTool: make(map[string]int)}
}

// Record 记录一次错误，超过上限时淘汰最旧的一条
func (h *ErrorHistory) Record(tool, err string, kind Kind) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.perTool[tool]++
	h.recent = append(h.recent, ErrorRecord{Tool: tool, Error: err, Kind: kind, At: time.Now()})
	if over := len(h.recent) - MaxRecentErrors; over > 0 {
		h.recent = append([]ErrorRecord(nil), h.recent[over:]...)
	}
}

// Count 某工具累计错误数
func (h *ErrorHistory) Count(tool string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.perTool[tool]
}

// PerTool 各工具错误计数副本
func (h *ErrorHistory) PerTool() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]int, len(h.perTool))
	for k, v := range h.perTool {
		out[k] = v
	}
	return out
}

// Recent 最近错误副本，旧的在前
func (h *ErrorHistory) Recent() []ErrorRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ErrorRecord(nil), h.recent...)
}

// Reset 清空
func (h *ErrorHistory) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.perTool = make(map[string]int)
	h.recent = nil
}
