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
package planner

import (
	"context"
	"strings"

	"arrange-orchestrator/internal/agent/toolcall"
	"arrange-orchestrator/internal/project"
)

// DefaultGenreBPM 未识别风格时的速度
const DefaultGenreBPM = 120

// genreTemplates 常见风格的典型速度
var genreTemplates = map[string]int{
	"house":         126,
	"techno":        130,
	"trance":        135,
	"drum_and_bass": 174,
	"dubstep":       140,
	"trap":          140,
	"uk_garage":     130,
}

// genreAliases 目标文本中的写法到规范风格名，按顺序匹配
var genreAliases = []struct {
	alias string
	genre string
}{
	{"drum and bass", "drum_and_bass"},
	{"drum & bass", "drum_and_bass"},
	{"drum_and_bass", "drum_and_bass"},
	{"dnb", "drum_and_bass"},
	{"uk garage", "uk_garage"},
	{"uk_garage", "uk_garage"},
	{"garage", "uk_garage"},
	{"dubstep", "dubstep"},
	{"techno", "techno"},
	{"trance", "trance"},
	{"house", "house"},
	{"trap", "trap"},
}

// BPMForGenre 风格的典型速度；名称大小写与空格不敏感
func BPMForGenre(genre string) int {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(genre)), " ", "_")
	if bpm, ok := genreTemplates[key]; ok {
		return bpm
	}
	return DefaultGenreBPM
}

// DetectGenre 从目标文本识别风格，未识别返回空
func DetectGenre(goal string) string {
	lower := strings.ToLower(goal)
	for _, a := range genreAliases {
		if strings.Contains(lower, a.alias) {
			return a.genre
		}
	}
	return ""
}

// RulePlanner 不依赖模型的基础规划器：设置速度并写一个底鼓/军鼓小节
type RulePlanner struct{}

// NewRulePlanner 创建规则规划器
func NewRulePlanner() *RulePlanner {
	return &RulePlanner{}
}

// Name 实现 Planner
func (p *RulePlanner) Name() string { return "rule" }

// Plan 实现 Planner
func (p *RulePlanner) Plan(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	genre := DetectGenre(req.Goal)
	bpm := BPMForGenre(genre)
	style := genre
	if style == "" {
		style = "basic"
	}
	return &Response{
		ToolSequence: BasicSequence(bpm),
		Analysis: map[string]any{
			"musical_style": style,
			"tempo":         bpm,
		},
		ExpectedOutcome: "A drum track with a one-bar kick and snare pattern",
		AIGenerated:     false,
	}, nil
}

// BasicSequence 基础序列：速度、Drums 轨道、一个小节的片段与底鼓/军鼓
func BasicSequence(bpm int) toolcall.Sequence {
	notes := []any{
		toolcall.NewParams("start_ticks", 0, "key", 36, "velocity", 100, "length_ticks", 96),
		toolcall.NewParams("start_ticks", 384, "key", 38, "velocity", 100, "length_ticks", 96),
	}
	return toolcall.Sequence{
		toolcall.NewCall("set_tempo", "bpm", bpm),
		toolcall.NewCall("create_track", "type", "instrument", "name", "Drums", "instrument", "kicker"),
		toolcall.NewCall("create_midi_clip", "track_name", "Drums", "start_ticks", 0, "length_ticks", project.TicksPerBar),
		toolcall.NewCall("write_notes", "track_name", "Drums", "clip_index", 0, "notes", notes),
	}
}
