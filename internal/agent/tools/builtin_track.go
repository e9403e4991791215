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
	"strings"

	"arrange-orchestrator/internal/agent/capability"
	"arrange-orchestrator/internal/agent/toolcall"
	"arrange-orchestrator/internal/project"
)

// DefaultInstrument 未指定乐器时加载的插件
const DefaultInstrument = "tripleoscillator"

func newCreateTrack() Tool {
	return newTool("create_track",
		"Create a new track. type is 'instrument' (default) or 'sample'.",
		objectSchema([]string{"name"}, map[string]any{
			"type":       prop("string", "instrument or sample"),
			"name":       prop("string", "track name"),
			"instrument": prop("string", "instrument plugin, instrument tracks only"),
		}),
		nil,
		func(ctx context.Context, proj *project.Project, p *toolcall.Params) (Output, error) {
			typ := strings.ToLower(p.StringOr("type", project.TrackInstrument))
			if typ != project.TrackInstrument && typ != project.TrackSample {
				return Output{}, fmt.Errorf("Unknown track type '%s'. Valid types: 'instrument', 'sample'", typ)
			}
			name := strings.TrimSpace(p.StringOr("name", ""))
			instrument := p.StringOr("instrument", "")
			if typ == project.TrackInstrument && instrument == "" {
				instrument = DefaultInstrument
			}
			if typ == project.TrackSample {
				instrument = ""
			}
			exists := false
			_ = proj.UpdateContext(ctx, func(s *project.State) error {
				if name == "" {
					name = fmt.Sprintf("Track %d", len(s.Tracks)+1)
				}
				if _, ok := s.FindTrack(name); ok {
					exists = true
					return nil
				}
				s.Tracks = append(s.Tracks, project.Track{
					Name:       name,
					Type:       typ,
					Instrument: instrument,
					Volume:     100,
					Clips:      []project.Clip{},
					Effects:    []string{},
				})
				return nil
			})
			if exists {
				return Output{Message: fmt.Sprintf("Track '%s' already exists", name)}, nil
			}
			change := toolcall.NewChange(toolcall.ChangeCreate, trackTarget(name),
				map[string]any{"type": typ, "name": name, "instrument": instrument},
				map[string]any{"action": "delete_track", "name": name})
			return Output{
				Message: fmt.Sprintf("Created %s track '%s'", typ, name),
				Changes: []toolcall.ChangeOperation{change},
			}, nil
		})
}

func newModifyTrack() Tool {
	return newTool("modify_track",
		"Mute, unmute, solo or rename a track.",
		objectSchema([]string{"track_name", "action"}, map[string]any{
			"track_name": prop("string", "track to modify"),
			"action":     prop("string", "mute, unmute, solo or rename"),
			"new_name":   prop("string", "new name for rename"),
		}),
		&capability.Capability{Requires: []string{"track_exists"}, Effects: []string{"track_modified"}, Complexity: 1, EstimatedCost: 0.1, DependsOn: []string{"create_track"}},
		func(ctx context.Context, proj *project.Project, p *toolcall.Params) (Output, error) {
			name := trackParam(p)
			action := strings.ToLower(p.StringOr("action", ""))
			var (
				msg      string
				changes  map[string]any
				rollback map[string]any
			)
			err := proj.UpdateContext(ctx, func(s *project.State) error {
				t, ok := s.FindTrack(name)
				if !ok {
					return fmt.Errorf("Track '%s' not found", name)
				}
				switch action {
				case "mute", "unmute":
					rollback = map[string]any{"muted": t.Muted}
					t.Muted = action == "mute"
					changes = map[string]any{"muted": t.Muted}
					msg = fmt.Sprintf("Track '%s' %sd", name, action)
				case "solo":
					rollback = map[string]any{"solo": t.Solo}
					t.Solo = true
					changes = map[string]any{"solo": true}
					msg = fmt.Sprintf("Track '%s' soloed", name)
				case "rename":
					newName := strings.TrimSpace(p.StringOr("new_name", ""))
					if newName == "" {
						return fmt.Errorf("Invalid parameter: new_name is required for rename")
					}
					if _, taken := s.FindTrack(newName); taken {
						return fmt.Errorf("Track '%s' already exists", newName)
					}
					rollback = map[string]any{"name": name}
					t.Name = newName
					changes = map[string]any{"name": newName}
					msg = fmt.Sprintf("Track renamed to '%s'", newName)
				default:
					return fmt.Errorf("Unknown action: %s", action)
				}
				return nil
			})
			if err != nil {
				return Output{}, err
			}
			return Output{
				Message: msg,
				Changes: []toolcall.ChangeOperation{toolcall.NewChange(toolcall.ChangeUpdate, trackTarget(name), changes, rollback)},
			}, nil
		})
}

func newMixerControl() Tool {
	return newTool("mixer_control",
		"Set a mixer parameter on a track: mute, solo, volume (0-200) or pan (-100..100).",
		objectSchema([]string{"track_name", "parameter", "value"}, map[string]any{
			"track_name": prop("string", "track to adjust"),
			"parameter":  prop("string", "mute, solo, volume or pan"),
			"value":      map[string]any{"description": "boolean for mute/solo, number for volume/pan"},
		}),
		&capability.Capability{Requires: []string{"track_exists"}, Effects: []string{"mix_adjusted"}, Complexity: 1, EstimatedCost: 0.1, DependsOn: []string{"create_track"}},
		func(ctx context.Context, proj *project.Project, p *toolcall.Params) (Output, error) {
			name := trackParam(p)
			param := strings.ToLower(p.StringOr("parameter", ""))
			var (
				msg      string
				changes  map[string]any
				rollback map[string]any
			)
			err := proj.UpdateContext(ctx, func(s *project.State) error {
				t, ok := s.FindTrack(name)
				if !ok {
					return trackNotFound(s, name)
				}
				switch param {
				case "mute":
					on := boolValue(p, "value", true)
					rollback = map[string]any{"muted": t.Muted}
					t.Muted = on
					changes = map[string]any{"muted": on}
					if on {
						msg = fmt.Sprintf("%s muted", name)
					} else {
						msg = fmt.Sprintf("%s unmuted", name)
					}
				case "solo":
					on := boolValue(p, "value", true)
					rollback = map[string]any{"solo": t.Solo}
					t.Solo = on
					changes = map[string]any{"solo": on}
					if on {
						msg = fmt.Sprintf("%s soloed", name)
					} else {
						msg = fmt.Sprintf("%s unsoloed", name)
					}
				case "volume":
					v, ok := p.Float("value")
					if !ok {
						return fmt.Errorf("Invalid parameter: volume must be a number")
					}
					v = clampFloat(v, 0, 200)
					rollback = map[string]any{"volume": t.Volume}
					t.Volume = v
					changes = map[string]any{"volume": v}
					msg = fmt.Sprintf("%s volume %v", name, v)
				case "pan":
					v, ok := p.Float("value")
					if !ok {
						return fmt.Errorf("Invalid parameter: pan must be a number")
					}
					v = clampFloat(v, -100, 100)
					rollback = map[string]any{"pan": t.Pan}
					t.Pan = v
					changes = map[string]any{"pan": v}
					msg = fmt.Sprintf("%s pan %v", name, v)
				default:
					return fmt.Errorf("Unsupported parameter or track type")
				}
				return nil
			})
			if err != nil {
				return Output{}, err
			}
			return Output{
				Message: msg,
				Changes: []toolcall.ChangeOperation{toolcall.NewChange(toolcall.ChangeUpdate, trackTarget(name), changes, rollback)},
			}, nil
		})
}

func newAddEffect() Tool {
	return newTool("add_effect",
		"Add an effect plugin to a track's effect chain.",
		objectSchema([]string{"track_name", "effect_name"}, map[string]any{
			"track_name":  prop("string", "target track"),
			"effect_name": prop("string", "effect: "+strings.Join(project.Effects, ", ")),
		}),
		nil,
		func(ctx context.Context, proj *project.Project, p *toolcall.Params) (Output, error) {
			raw := strings.TrimSpace(p.StringOr("effect_name", ""))
			if raw == "" {
				return Output{}, fmt.Errorf("Missing effect_name")
			}
			effect, ok := project.KnownEffect(raw)
			if !ok {
				return Output{}, fmt.Errorf("Invalid parameter: unknown effect '%s' (available: %s)", raw, strings.Join(project.Effects, ", "))
			}
			name := trackParam(p)
			var index int
			err := proj.UpdateContext(ctx, func(s *project.State) error {
				t, ok := s.FindTrack(name)
				if !ok {
					return trackNotFound(s, name)
				}
				index = len(t.Effects)
				t.Effects = append(t.Effects, effect)
				return nil
			})
			if err != nil {
				return Output{}, err
			}
			change := toolcall.NewChange(toolcall.ChangeCreate, fmt.Sprintf("track:%s/effect:%d", name, index),
				map[string]any{"effect": effect},
				map[string]any{"action": "remove_effect", "track": name, "index": index})
			return Output{
				Message: fmt.Sprintf("Effect '%s' added", effect),
				Changes: []toolcall.ChangeOperation{change},
			}, nil
		})
}

// boolValue 兼容布尔与 "true"/"on" 等字符串
func boolValue(p *toolcall.Params, key string, def bool) bool {
	if b, ok := p.Bool(key); ok {
		return b
	}
	if s, ok := p.String(key); ok {
		switch strings.ToLower(s) {
		case "true", "on", "yes", "1":
			return true
		case "false", "off", "no", "0":
			return false
		}
	}
	if f, ok := p.Float(key); ok {
		return f != 0
	}
	return def
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
