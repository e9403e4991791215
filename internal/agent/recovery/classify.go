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
// Package recovery 对工具错误分类，给出恢复调用，并决定继续、失败或熔断。
package recovery

import (
	"strings"

	"arrange-orchestrator/internal/agent/toolcall"
)

// Kind 错误类别
type Kind string

const (
	KindValidation   Kind = "ValidationError"
	KindExecution    Kind = "ExecutionError"
	KindTimeout      Kind = "TimeoutError"
	KindPathological Kind = "PathologicalLoopError"
	KindBreaker      Kind = "CircuitBreakerTripped"
)

// RecoveryTrackName 找不到轨道时创建的替代轨道
const RecoveryTrackName = "Recovery Track"

// TimeoutMessage 单步超时时合成的错误文本
const TimeoutMessage = "execution timeout"

// recoverablePatterns 小写子串匹配即视为可恢复
var recoverablePatterns = []string{
	"track not found",
	"clip not found",
	"invalid parameter",
	"out of range",
}

// Classification 分类结果
type Classification struct {
	Recoverable bool `json:"recoverable"`
	Kind        Kind `json:"kind"`
}

// Classify 按错误文本分类
func Classify(err string) Classification {
	lower := strings.ToLower(err)
	c := Classification{Kind: KindExecution}
	switch {
	case strings.Contains(lower, TimeoutMessage), strings.Contains(lower, "timeout"):
		c.Kind = KindTimeout
	case strings.Contains(lower, "invalid"), strings.Contains(lower, "out of range"):
		c.Kind = KindValidation
	}
	for _, p := range recoverablePatterns {
		if strings.Contains(lower, p) {
			c.Recoverable = true
			break
		}
	}
	return c
}

// Recoverable Classify 的简写
func Recoverable(err string) bool {
	return Classify(err).Recoverable
}

// Recovery 恢复建议：在失败步骤之前插入 Calls；RetargetTrack 非空时失败步骤改用该轨道重试
type Recovery struct {
	Calls         toolcall.Sequence `json:"calls"`
	RetargetTrack string            `json:"retarget_track,omitempty"`
}

// Empty 是否没有可插入的恢复调用
func (r Recovery) Empty() bool {
	return len(r.Calls) == 0
}

// SuggestRecovery 固定查表给出恢复调用；多个模式同时命中时按表顺序依次追加
func SuggestRecovery(err string) Recovery {
	lower := strings.ToLower(err)
	var r Recovery
	if strings.Contains(lower, "track not found") {
		c := toolcall.NewCall("create_track", "type", "instrument", "name", RecoveryTrackName)
		c.Origin = toolcall.OriginRecovery
		c.Reasoning = "recover from missing track"
		r.Calls = append(r.Calls, c)
		r.RetargetTrack = RecoveryTrackName
	}
	if strings.Contains(lower, "invalid parameter") {
		c := toolcall.NewCall("read_project")
		c.Origin = toolcall.OriginRecovery
		c.Reasoning = "refresh project state"
		r.Calls = append(r.Calls, c)
	}
	return r
}
