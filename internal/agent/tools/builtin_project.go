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
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"arrange-orchestrator/internal/agent/capability"
	"arrange-orchestrator/internal/agent/toolcall"
	"arrange-orchestrator/internal/project"
)

// DefaultSectionBars 段落默认长度（小节）
const DefaultSectionBars = 4

type trackBrief struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Muted bool   `json:"muted"`
	Solo  bool   `json:"solo"`
}

type projectBrief struct {
	Name          string       `json:"name"`
	Tempo         float64      `json:"tempo"`
	TimeSignature string       `json:"time_signature"`
	MasterVolume  float64      `json:"master_volume"`
	Tracks        []trackBrief `json:"tracks"`
}

func newReadProject() Tool {
	return newTool("read_project",
		"Read the current project: name, tempo, time signature, master volume and tracks.",
		objectSchema(nil, map[string]any{}),
		&capability.Capability{Complexity: 1, EstimatedCost: 0.05},
		func(ctx context.Context, proj *project.Project, _ *toolcall.Params) (Output, error) {
			s := proj.State()
			brief := projectBrief{
				Name:          s.Name,
				Tempo:         s.Tempo,
				TimeSignature: s.TimeSignature(),
				MasterVolume:  s.MasterVolume,
				Tracks:        make([]trackBrief, 0, len(s.Tracks)),
			}
			for _, t := range s.Tracks {
				brief.Tracks = append(brief.Tracks, trackBrief{Name: t.Name, Type: t.Type, Muted: t.Muted, Solo: t.Solo})
			}
			raw, err := json.Marshal(brief)
			if err != nil {
				return Output{}, err
			}
			return Output{Message: string(raw)}, nil
		})
}

func newSetTempo() Tool {
	return newTool("set_tempo",
		"Set the project tempo in BPM (60-200).",
		objectSchema([]string{"bpm"}, map[string]any{"bpm": prop("number", "tempo in beats per minute")}),
		nil,
		func(ctx context.Context, proj *project.Project, p *toolcall.Params) (Output, error) {
			bpm, ok := p.Float("bpm")
			if !ok {
				return Output{}, fmt.Errorf("Invalid parameter: bpm must be a number")
			}
			var old float64
			err := proj.UpdateContext(ctx, func(s *project.State) error {
				old = s.Tempo
				s.Tempo = bpm
				return nil
			})
			if err != nil {
				return Output{}, err
			}
			change := toolcall.NewChange(toolcall.ChangeUpdate, "project.tempo",
				map[string]any{"tempo": bpm}, map[string]any{"tempo": old})
			return Output{
				Message: fmt.Sprintf("Tempo set to %v BPM", bpm),
				Changes: []toolcall.ChangeOperation{change},
			}, nil
		})
}

func newSetTimeSignature() Tool {
	return newTool("set_time_signature",
		"Set the project time signature.",
		objectSchema([]string{"numerator", "denominator"}, map[string]any{
			"numerator":   prop("integer", "beats per bar"),
			"denominator": prop("integer", "beat unit: 1, 2, 4, 8, 16 or 32"),
		}),
		&capability.Capability{Effects: []string{"time_signature_set"}, Complexity: 1, EstimatedCost: 0.1},
		func(ctx context.Context, proj *project.Project, p *toolcall.Params) (Output, error) {
			num, ok1 := p.Int("numerator")
			den, ok2 := p.Int("denominator")
			if !ok1 || !ok2 || num < 1 || den < 1 {
				return Output{}, fmt.Errorf("Invalid parameter: numerator and denominator are required")
			}
			var oldNum, oldDen int
			_ = proj.UpdateContext(ctx, func(s *project.State) error {
				oldNum, oldDen = s.TimeSigNum, s.TimeSigDen
				s.TimeSigNum, s.TimeSigDen = num, den
				return nil
			})
			change := toolcall.NewChange(toolcall.ChangeUpdate, "project.time_signature",
				map[string]any{"numerator": num, "denominator": den},
				map[string]any{"numerator": oldNum, "denominator": oldDen})
			return Output{
				Message: fmt.Sprintf("Time signature set to %d/%d", num, den),
				Changes: []toolcall.ChangeOperation{change},
			}, nil
		})
}

func newCreateSection() Tool {
	return newTool("create_section",
		"Register a named section (intro, drop, ...) on the timeline.",
		objectSchema([]string{"name"}, map[string]any{
			"name":         prop("string", "section name"),
			"start_ticks":  prop("integer", "section start in ticks, default 0"),
			"length_ticks": prop("integer", "section length in ticks, default 4 bars"),
		}),
		&capability.Capability{Effects: []string{"section_exists"}, Complexity: 1, EstimatedCost: 0.1},
		func(ctx context.Context, proj *project.Project, p *toolcall.Params) (Output, error) {
			name := strings.TrimSpace(p.StringOr("name", ""))
			start := p.IntOr("start_ticks", 0)
			length := p.IntOr("length_ticks", DefaultSectionBars*project.TicksPerBar)
			if name == "" || length <= 0 || start < 0 {
				return Output{}, fmt.Errorf("Invalid name or length")
			}
			sec := project.Section{Name: name, StartTicks: start, LengthTicks: length}
			var (
				prev    project.Section
				existed bool
			)
			_ = proj.UpdateContext(ctx, func(s *project.State) error {
				if i, ok := s.FindSection(name); ok {
					prev, existed = s.Sections[i], true
					s.Sections[i] = sec
					return nil
				}
				s.Sections = append(s.Sections, sec)
				return nil
			})
			changes := map[string]any{"name": name, "start_ticks": start, "length_ticks": length}
			var change toolcall.ChangeOperation
			if existed {
				change = toolcall.NewChange(toolcall.ChangeUpdate, "section:"+name, changes,
					map[string]any{"start_ticks": prev.StartTicks, "length_ticks": prev.LengthTicks})
			} else {
				change = toolcall.NewChange(toolcall.ChangeCreate, "section:"+name, changes,
					map[string]any{"action": "delete_section", "name": name})
			}
			return Output{
				Message: fmt.Sprintf("Section '%s' registered at %d len %d", name, start, length),
				Changes: []toolcall.ChangeOperation{change},
			}, nil
		})
}
