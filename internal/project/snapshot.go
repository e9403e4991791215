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
package project

import (
	"encoding/json"
	"fmt"

	"arrange-orchestrator/internal/runtime/snapshot"
)

// CaptureState 实现 snapshot.ProjectModel
func (p *Project) CaptureState() (snapshot.State, error) {
	s := p.State()
	payload, err := json.Marshal(s)
	if err != nil {
		return snapshot.State{}, fmt.Errorf("序列化项目状态失败: %w", err)
	}
	sections := make([]any, len(s.Sections))
	for i, sec := range s.Sections {
		sections[i] = map[string]any{"name": sec.Name, "start_ticks": sec.StartTicks, "length_ticks": sec.LengthTicks}
	}
	tracks := make([]map[string]any, len(s.Tracks))
	for i, t := range s.Tracks {
		clips := make([]any, len(t.Clips))
		for j, c := range t.Clips {
			notes := make([]any, len(c.Notes))
			for k, n := range c.Notes {
				notes[k] = map[string]any{"key": n.Key, "velocity": n.Velocity, "start_ticks": n.StartTicks, "length_ticks": n.LengthTicks}
			}
			clips[j] = map[string]any{"start_ticks": c.StartTicks, "length_ticks": c.LengthTicks, "notes": notes}
		}
		effects := make([]any, len(t.Effects))
		for j, e := range t.Effects {
			effects[j] = e
		}
		tracks[i] = map[string]any{
			"name":       t.Name,
			"type":       t.Type,
			"instrument": t.Instrument,
			"muted":      t.Muted,
			"solo":       t.Solo,
			"volume":     t.Volume,
			"pan":        t.Pan,
			"clips":      clips,
			"effects":    effects,
		}
	}
	return snapshot.State{
		SessionState: map[string]any{
			"name":           s.Name,
			"tempo":          s.Tempo,
			"time_signature": s.TimeSignature(),
			"master_volume":  s.MasterVolume,
			"sections":       sections,
		},
		TrackList: tracks,
		Payload:   payload,
	}, nil
}

// RestoreState 实现 snapshot.ProjectModel：按快照负载整体覆盖
func (p *Project) RestoreState(payload json.RawMessage) error {
	var s State
	if err := json.Unmarshal(payload, &s); err != nil {
		return fmt.Errorf("解析快照负载失败: %w", err)
	}
	p.Restore(s)
	return nil
}
