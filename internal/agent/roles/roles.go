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
// Package roles 维护会话的工作角色，并为无序列的直接操作给出默认目标轨道。
package roles

import (
	"fmt"
	"strings"
)

// Role 工作角色（封闭集合）
type Role string

const (
	Planning    Role = "planning"
	Composing   Role = "composing"
	SoundDesign Role = "sound-design"
	Rhythm      Role = "rhythm"
	MixAssist   Role = "mix-assist"
	Critique    Role = "critique"
)

// All 全部角色
var All = []Role{Planning, Composing, SoundDesign, Rhythm, MixAssist, Critique}

// Parse 解析角色名，大小写与下划线不敏感
func Parse(s string) (Role, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for _, r := range All {
		if string(r) == norm {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// defaultTargets 直接操作时各角色的默认轨道
var defaultTargets = map[Role]string{
	Rhythm:      "Drums",
	Composing:   "Melody",
	SoundDesign: "Lead",
	MixAssist:   "Master",
}

// FallbackTarget 未匹配角色时的默认轨道
const FallbackTarget = "Drums"

// DefaultTarget 返回角色的默认目标轨道
func DefaultTarget(r Role) string {
	if t, ok := defaultTargets[r]; ok {
		return t
	}
	return FallbackTarget
}

// keywordRoles 关键词到角色，按顺序匹配
var keywordRoles = []struct {
	role     Role
	keywords []string
}{
	{MixAssist, []string{"mix", "eq", "compress", "reverb", "level", "master"}},
	{Rhythm, []string{"drum", "groove", "beat", "kick", "snare", "hi-hat", "hihat", "percussion", "rhythm"}},
	{SoundDesign, []string{"sound design", "synth", "patch", "texture", "timbre", "pad"}},
	{Composing, []string{"melody", "chord", "harmony", "bassline", "progression", "lead"}},
	{Critique, []string{"feedback", "critique", "review", "what do you think"}},
}

// Detect 根据消息关键词推断角色，无命中时为 planning；element 为命中的关键词
func Detect(message string) (role Role, element string) {
	lower := strings.ToLower(message)
	for _, kr := range keywordRoles {
		for _, kw := range kr.keywords {
			if strings.Contains(lower, kw) {
				return kr.role, kw
			}
		}
	}
	return Planning, ""
}
