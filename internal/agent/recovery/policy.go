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

import "strings"

// Action 策略决定的下一步
type Action int

const (
	ActionFail Action = iota
	ActionRecover
	ActionCircuitBreak
	ActionAbort
)

func (a Action) String() string {
	switch a {
	case ActionRecover:
		return "recover"
	case ActionCircuitBreak:
		return "circuit_break"
	case ActionAbort:
		return "abort"
	}
	return "fail"
}

// Signature 病态重复签名：同一工具反复出现同类错误
type Signature struct {
	Tool      string
	Substring string
}

// Policy 熔断与恢复阈值
type Policy struct {
	BreakerThreshold  int // errorCount 超过该值即熔断
	RecoveryThreshold int // errorCount 不超过该值才尝试恢复
	Signatures        []Signature
	MaxRepeats        int // 同一签名在一次执行中出现次数达到该值即中止
}

// DefaultPolicy 默认阈值：超过 5 次熔断，3 次以内恢复
func DefaultPolicy() Policy {
	return Policy{
		BreakerThreshold:  5,
		RecoveryThreshold: 3,
		MaxRepeats:        2,
		Signatures: []Signature{
			{Tool: "create_midi_clip", Substring: "track not found"},
			{Tool: "write_notes", Substring: "track not found"},
		},
	}
}

// Match 返回错误命中的病态签名键
func (p Policy) Match(tool, err string) (string, bool) {
	lower := strings.ToLower(err)
	for _, s := range p.Signatures {
		if s.Tool == tool && strings.Contains(lower, s.Substring) {
			return s.Tool + "|" + s.Substring, true
		}
	}
	return "", false
}

// Verdict 策略结果
type Verdict struct {
	Action   Action
	Kind     Kind
	Recovery Recovery
}

// Evaluate 依次判断：熔断、病态重复、可恢复、失败。
// errorCount 为记录本次错误后的会话累计值；repeats 为本签名在本次执行中出现的次数（含本次）。
func (p Policy) Evaluate(errorCount int, tool, err string, repeats int) Verdict {
	cls := Classify(err)
	if errorCount > p.BreakerThreshold {
		return Verdict{Action: ActionCircuitBreak, Kind: KindBreaker}
	}
	maxRepeats := p.MaxRepeats
	if maxRepeats <= 0 {
		maxRepeats = 2
	}
	if _, ok := p.Match(tool, err); ok && repeats >= maxRepeats {
		return Verdict{Action: ActionAbort, Kind: KindPathological}
	}
	if cls.Recoverable && errorCount <= p.RecoveryThreshold {
		if rec := SuggestRecovery(err); !rec.Empty() {
			return Verdict{Action: ActionRecover, Kind: cls.Kind, Recovery: rec}
		}
	}
	return Verdict{Action: ActionFail, Kind: cls.Kind}
}
