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
package capability

import "arrange-orchestrator/internal/agent/toolcall"

// DefaultCapabilities 内置五个核心工具的能力声明
func DefaultCapabilities() []Capability {
	return []Capability{
		{Name: "set_tempo", Effects: []string{"project_tempo"}, Complexity: 1, EstimatedCost: 0.1},
		{Name: "create_track", Effects: []string{"new_track"}, Complexity: 2, EstimatedCost: 0.3},
		{Name: "create_midi_clip", Requires: []string{"track_exists"}, Effects: []string{"new_clip"}, Complexity: 3, EstimatedCost: 0.2, DependsOn: []string{"create_track"}},
		{Name: "write_notes", Requires: []string{"clip_exists"}, Effects: []string{"notes_written"}, Complexity: 4, EstimatedCost: 0.4, DependsOn: []string{"create_midi_clip"}},
		{Name: "add_effect", Requires: []string{"track_exists"}, Effects: []string{"effect_added"}, Complexity: 3, EstimatedCost: 0.3, DependsOn: []string{"create_track"}},
	}
}

// DefaultCritical 关键工具
var DefaultCritical = []string{"set_tempo", "create_track", "create_midi_clip"}

// DefaultGraph 注册默认能力并标记关键工具
func DefaultGraph() *Graph {
	g := NewGraph()
	for _, c := range DefaultCapabilities() {
		g.Register(c)
	}
	g.MarkCritical(DefaultCritical...)
	return g
}

const defaultClipTicks = 192

// DefaultPrerequisite 由目标调用的轨道名推导前置调用参数
func DefaultPrerequisite(tool string, forCall toolcall.Call) toolcall.Call {
	track := targetTrack(forCall)
	switch tool {
	case "create_track":
		return toolcall.NewCall("create_track", "type", "instrument", "name", track)
	case "create_midi_clip":
		return toolcall.NewCall("create_midi_clip", "track_name", track, "start_ticks", 0, "length_ticks", defaultClipTicks)
	}
	return toolcall.NewCall(tool)
}

func targetTrack(c toolcall.Call) string {
	if track := TrackScope(c); track != "" {
		return track
	}
	return "Track 1"
}

// TrackScope 调用作用的轨道名；create_track 取 name，未指明时返回空串
func TrackScope(c toolcall.Call) string {
	for _, k := range []string{"track_name", "track"} {
		if s, ok := c.Params.String(k); ok && s != "" {
			return s
		}
	}
	if c.Name == "create_track" {
		if s, ok := c.Params.String("name"); ok && s != "" {
			return s
		}
	}
	return ""
}
