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
	"fmt"
	"sort"

	"arrange-orchestrator/internal/agent/capability"
	"arrange-orchestrator/internal/agent/guard"
	"arrange-orchestrator/internal/agent/toolcall"
	"arrange-orchestrator/internal/project"
)

// 音符缺省值
const (
	defaultNoteKey      = 60
	defaultNoteVelocity = 100
	defaultNoteLength   = project.TicksPerBar / 4
)

// quantizeGrids 量化网格到每小节分段数
var quantizeGrids = map[string]int{"1/4": 4, "1/8": 8, "1/16": 16, "1/32": 32}

const defaultGrid = "1/16"

func newCreateMIDIClip() Tool {
	return newTool("create_midi_clip",
		"Create an empty MIDI clip on an instrument track.",
		objectSchema([]string{"track_name"}, map[string]any{
			"track_name":   prop("string", "instrument track"),
			"start_ticks":  prop("integer", "clip start, default 0"),
			"length_ticks": prop("integer", fmt.Sprintf("clip length, default %d (one bar)", project.TicksPerBar)),
		}),
		nil,
		func(ctx context.Context, proj *project.Project, p *toolcall.Params) (Output, error) {
			name := trackParam(p)
			start := p.IntOr("start_ticks", 0)
			length := p.IntOr("length_ticks", project.TicksPerBar)
			if start < 0 || length < 1 {
				return Output{}, fmt.Errorf("Invalid parameter: start_ticks must be >= 0 and length_ticks >= 1")
			}
			var index int
			err := proj.UpdateContext(ctx, func(s *project.State) error {
				t, err := instrumentTrack(s, name)
				if err != nil {
					return err
				}
				index = len(t.Clips)
				t.Clips = append(t.Clips, project.Clip{StartTicks: start, LengthTicks: length, Notes: []project.Note{}})
				return nil
			})
			if err != nil {
				return Output{}, err
			}
			change := toolcall.NewChange(toolcall.ChangeCreate, clipTarget(name, index),
				map[string]any{"start_ticks": start, "length_ticks": length},
				map[string]any{"action": "delete_clip", "track": name, "clip_index": index})
			return Output{
				Message: fmt.Sprintf("MIDI clip created at %d len %d", start, length),
				Changes: []toolcall.ChangeOperation{change},
			}, nil
		})
}

func newWriteNotes() Tool {
	return newTool("write_notes",
		"Write MIDI notes into a clip. Writing to clip 0 of a track without clips creates it.",
		objectSchema([]string{"track_name", "notes"}, map[string]any{
			"track_name": prop("string", "instrument track"),
			"clip_index": prop("integer", "clip index, default 0"),
			"notes": map[string]any{
				"type":        "array",
				"description": "notes: {key 0-127, velocity 1-127, start_ticks, length_ticks}",
				"items":       map[string]any{"type": "object"},
			},
		}),
		nil,
		func(ctx context.Context, proj *project.Project, p *toolcall.Params) (Output, error) {
			name := trackParam(p)
			idx := p.IntOr("clip_index", 0)
			notes, err := parseNotes(p)
			if err != nil {
				return Output{}, err
			}
			var (
				created   bool
				prevCount int
			)
			err = proj.UpdateContext(ctx, func(s *project.State) error {
				t, ok := s.FindTrack(name)
				if !ok || t.Type != project.TrackInstrument {
					return fmt.Errorf("Instrument track not found: %q", name)
				}
				if idx == 0 && len(t.Clips) == 0 {
					t.Clips = append(t.Clips, project.Clip{StartTicks: 0, LengthTicks: project.TicksPerBar, Notes: []project.Note{}})
					created = true
				}
				if idx < 0 || idx >= len(t.Clips) {
					return fmt.Errorf("Clip index out of range")
				}
				prevCount = len(t.Clips[idx].Notes)
				t.Clips[idx].Notes = append(t.Clips[idx].Notes, notes...)
				return nil
			})
			if err != nil {
				return Output{}, err
			}
			var changes []toolcall.ChangeOperation
			if created {
				changes = append(changes, toolcall.NewChange(toolcall.ChangeCreate, clipTarget(name, 0),
					map[string]any{"start_ticks": 0, "length_ticks": project.TicksPerBar},
					map[string]any{"action": "delete_clip", "track": name, "clip_index": 0}))
			}
			changes = append(changes, toolcall.NewChange(toolcall.ChangeUpdate, clipTarget(name, idx),
				map[string]any{"notes_added": notesToMaps(notes)},
				map[string]any{"action": "truncate_notes", "note_count": prevCount}))
			return Output{
				Message: fmt.Sprintf("%d notes written", len(notes)),
				Changes: changes,
			}, nil
		})
}

func newMoveClip() Tool {
	return newTool("move_clip",
		"Move a clip to a new start position.",
		objectSchema([]string{"track_name", "clip_index", "start_ticks"}, map[string]any{
			"track_name":  prop("string", "track holding the clip"),
			"clip_index":  prop("integer", "clip index"),
			"start_ticks": prop("integer", "new start in ticks"),
		}),
		&capability.Capability{Requires: []string{"clip_exists"}, Effects: []string{"clip_moved"}, Complexity: 2, EstimatedCost: 0.1, DependsOn: []string{"create_midi_clip"}},
		func(ctx context.Context, proj *project.Project, p *toolcall.Params) (Output, error) {
			name := trackParam(p)
			idx := p.IntOr("clip_index", 0)
			start := p.IntOr("start_ticks", 0)
			if start < 0 {
				return Output{}, fmt.Errorf("Invalid parameter: start_ticks must be >= 0")
			}
			var old int
			err := proj.UpdateContext(ctx, func(s *project.State) error {
				c, err := findClip(s, name, idx)
				if err != nil {
					return err
				}
				old = c.StartTicks
				c.StartTicks = start
				return nil
			})
			if err != nil {
				return Output{}, err
			}
			change := toolcall.NewChange(toolcall.ChangeUpdate, clipTarget(name, idx),
				map[string]any{"start_ticks": start}, map[string]any{"start_ticks": old})
			return Output{
				Message: fmt.Sprintf("Clip moved to %d", start),
				Changes: []toolcall.ChangeOperation{change},
			}, nil
		})
}

func newDuplicateClip() Tool {
	return newTool("duplicate_clip",
		"Duplicate a clip, placing copies end to end after it.",
		objectSchema([]string{"track_name", "clip_index"}, map[string]any{
			"track_name": prop("string", "track holding the clip"),
			"clip_index": prop("integer", "clip to duplicate"),
			"times":      prop("integer", "number of copies, default 1"),
		}),
		&capability.Capability{Requires: []string{"clip_exists"}, Effects: []string{"new_clip"}, Complexity: 2, EstimatedCost: 0.2, DependsOn: []string{"create_midi_clip"}},
		func(ctx context.Context, proj *project.Project, p *toolcall.Params) (Output, error) {
			name := trackParam(p)
			idx := p.IntOr("clip_index", 0)
			times := max(1, p.IntOr("times", 1))
			var changes []toolcall.ChangeOperation
			err := proj.UpdateContext(ctx, func(s *project.State) error {
				c, err := findClip(s, name, idx)
				if err != nil {
					return err
				}
				src := *c
				t, _ := s.FindTrack(name)
				for k := 1; k <= times; k++ {
					cp := project.Clip{
						StartTicks:  src.StartTicks + src.LengthTicks*k,
						LengthTicks: src.LengthTicks,
						Notes:       append([]project.Note(nil), src.Notes...),
					}
					t.Clips = append(t.Clips, cp)
					at := len(t.Clips) - 1
					changes = append(changes, toolcall.NewChange(toolcall.ChangeCreate, clipTarget(name, at),
						map[string]any{"source_index": idx, "start_ticks": cp.StartTicks, "length_ticks": cp.LengthTicks},
						map[string]any{"action": "delete_clip", "track": name, "clip_index": at}))
				}
				return nil
			})
			if err != nil {
				return Output{}, err
			}
			return Output{
				Message: fmt.Sprintf("Duplicated clip %d times", times),
				Changes: changes,
			}, nil
		})
}

func newQuantizeNotes() Tool {
	return newTool("quantize_notes",
		"Snap note positions and lengths in a clip to a grid (1/4, 1/8, 1/16, 1/32).",
		objectSchema([]string{"track_name"}, map[string]any{
			"track_name": prop("string", "track holding the clip"),
			"clip_index": prop("integer", "clip index, default 0"),
			"grid":       prop("string", "grid, default 1/16"),
		}),
		&capability.Capability{Requires: []string{"clip_exists"}, Effects: []string{"notes_quantized"}, Complexity: 2, EstimatedCost: 0.1, DependsOn: []string{"create_midi_clip"}},
		func(ctx context.Context, proj *project.Project, p *toolcall.Params) (Output, error) {
			name := trackParam(p)
			idx := p.IntOr("clip_index", 0)
			grid := p.StringOr("grid", defaultGrid)
			divider, ok := quantizeGrids[grid]
			if !ok {
				return Output{}, fmt.Errorf("Invalid parameter: grid '%s' (valid: 1/4, 1/8, 1/16, 1/32)", grid)
			}
			q := project.TicksPerBar / divider
			var before []project.Note
			err := proj.UpdateContext(ctx, func(s *project.State) error {
				c, err := findClip(s, name, idx)
				if err != nil {
					return err
				}
				before = append([]project.Note(nil), c.Notes...)
				for i := range c.Notes {
					c.Notes[i].StartTicks = roundTo(c.Notes[i].StartTicks, q)
					c.Notes[i].LengthTicks = max(q, roundTo(c.Notes[i].LengthTicks, q))
				}
				return nil
			})
			if err != nil {
				return Output{}, err
			}
			change := toolcall.NewChange(toolcall.ChangeUpdate, clipTarget(name, idx),
				map[string]any{"grid": grid, "grid_ticks": q},
				map[string]any{"notes": notesToMaps(before)})
			return Output{
				Message: fmt.Sprintf("Quantized notes to %s", grid),
				Changes: []toolcall.ChangeOperation{change},
			}, nil
		})
}

func instrumentTrack(s *project.State, name string) (*project.Track, error) {
	t, ok := s.FindTrack(name)
	if !ok {
		return nil, trackNotFound(s, name)
	}
	if t.Type != project.TrackInstrument {
		return nil, fmt.Errorf("Invalid parameter: track '%s' is not an instrument track", name)
	}
	return t, nil
}

func findClip(s *project.State, track string, idx int) (*project.Clip, error) {
	t, ok := s.FindTrack(track)
	if !ok {
		return nil, trackNotFound(s, track)
	}
	if idx < 0 || idx >= len(t.Clips) {
		return nil, fmt.Errorf("Clip index out of range")
	}
	return &t.Clips[idx], nil
}

// parseNotes 读取 notes 数组并补缺省值，结果按起始位置排序
func parseNotes(p *toolcall.Params) ([]project.Note, error) {
	raw, ok := p.List("notes")
	if !ok {
		return nil, fmt.Errorf("Invalid parameter: notes must be an array")
	}
	notes := make([]project.Note, 0, len(raw))
	for i, r := range raw {
		np, ok := toolcall.AsParams(r)
		if !ok {
			return nil, fmt.Errorf("Invalid parameter: note %d is not an object", i)
		}
		// 落盘前再截断一次，直接调用工具时不经过参数守卫
		notes = append(notes, project.Note{
			Key:         min(max(np.IntOr("key", defaultNoteKey), guard.MinKey), guard.MaxKey),
			Velocity:    min(max(np.IntOr("velocity", defaultNoteVelocity), guard.MinVelocity), guard.MaxVelocity),
			StartTicks:  max(np.IntOr("start_ticks", 0), 0),
			LengthTicks: max(np.IntOr("length_ticks", defaultNoteLength), 1),
		})
	}
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].StartTicks < notes[j].StartTicks })
	return notes, nil
}

func notesToMaps(notes []project.Note) []map[string]any {
	out := make([]map[string]any, len(notes))
	for i, n := range notes {
		out[i] = map[string]any{
			"key":          n.Key,
			"velocity":     n.Velocity,
			"start_ticks":  n.StartTicks,
			"length_ticks": n.LengthTicks,
		}
	}
	return out
}

func roundTo(v, q int) int {
	if q <= 0 {
		return v
	}
	return ((v + q/2) / q) * q
}

// GridNames 支持的量化网格
func GridNames() []string {
	names := make([]string, 0, len(quantizeGrids))
	for g := range quantizeGrids {
		names = append(names, g)
	}
	sort.Slice(names, func(i, j int) bool { return quantizeGrids[names[i]] < quantizeGrids[names[j]] })
	return names
}

