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
package guard

import "arrange-orchestrator/internal/agent/toolcall"

// 取值范围
const (
	MinBPM          = 60.0
	MaxBPM          = 200.0
	DefaultBPM      = 120.0
	MinKey          = 0
	MaxKey          = 127
	DefaultKey      = 60
	MinVelocity     = 1
	MaxVelocity     = 127
	DefaultVelocity = 100
	DefaultLength   = 96
	DefaultClipLen  = 192
	MaxNumerator    = 32
)

var validDenominators = map[int]bool{1: true, 2: true, 4: true, 8: true, 16: true, 32: true}

func defaultRules() map[string]Rule {
	return map[string]Rule{
		"set_tempo":          {Validate: validateTempo, Sanitize: sanitizeTempo},
		"write_notes":        {Validate: validateNotes, Sanitize: sanitizeNotes},
		"set_time_signature": {Validate: validateTimeSig, Sanitize: sanitizeTimeSig},
		"create_midi_clip":   {Validate: validateClip, Sanitize: sanitizeClip},
		"move_clip":          {Validate: validateMove, Sanitize: sanitizeMove},
	}
}

func validateTempo(p *toolcall.Params) bool {
	bpm, ok := p.Float("bpm")
	return ok && bpm >= MinBPM && bpm <= MaxBPM
}

// sanitizeTempo 非数值取 120，再截断到 [60,200]；范围内的值原样保留
func sanitizeTempo(p *toolcall.Params) *toolcall.Params {
	out := p.Clone()
	bpm, ok := p.Float("bpm")
	if !ok {
		out.Set("bpm", DefaultBPM)
		return out
	}
	switch {
	case bpm < MinBPM:
		out.Set("bpm", MinBPM)
	case bpm > MaxBPM:
		out.Set("bpm", MaxBPM)
	}
	return out
}

func validateNotes(p *toolcall.Params) bool {
	notes, ok := p.List("notes")
	if !ok {
		return false
	}
	for _, raw := range notes {
		note, ok := toolcall.AsParams(raw)
		if !ok {
			return false
		}
		key, ok := numberOr(note, "key", -1)
		if !ok || key < MinKey || key > MaxKey {
			return false
		}
		vel, ok := numberOr(note, "velocity", DefaultVelocity)
		if !ok || vel < MinVelocity || vel > MaxVelocity {
			return false
		}
		start, ok := numberOr(note, "start_ticks", 0)
		if !ok || start < 0 {
			return false
		}
		length, ok := numberOr(note, "length_ticks", DefaultLength)
		if !ok || length < 1 {
			return false
		}
	}
	return true
}

// sanitizeNotes 每个音符输出 key, velocity, start_ticks, length_ticks 四个字段；非对象的条目丢弃
func sanitizeNotes(p *toolcall.Params) *toolcall.Params {
	out := p.Clone()
	raw, _ := p.List("notes")
	notes := make([]any, 0, len(raw))
	for _, r := range raw {
		note, ok := toolcall.AsParams(r)
		if !ok {
			continue
		}
		notes = append(notes, SanitizeNote(note))
	}
	out.Set("notes", notes)
	return out
}

// SanitizeNote 修正单个音符
func SanitizeNote(note *toolcall.Params) *toolcall.Params {
	key := intOr(note, "key", DefaultKey)
	vel := intOr(note, "velocity", DefaultVelocity)
	start := intOr(note, "start_ticks", 0)
	length := intOr(note, "length_ticks", DefaultLength)
	return toolcall.NewParams(
		"key", clamp(key, MinKey, MaxKey),
		"velocity", clamp(vel, MinVelocity, MaxVelocity),
		"start_ticks", max(0, start),
		"length_ticks", max(1, length),
	)
}

func validateTimeSig(p *toolcall.Params) bool {
	num, ok := p.Int("numerator")
	if !ok || num < 1 || num > MaxNumerator {
		return false
	}
	den, ok := p.Int("denominator")
	return ok && validDenominators[den]
}

func sanitizeTimeSig(p *toolcall.Params) *toolcall.Params {
	out := p.Clone()
	if num, ok := p.Int("numerator"); !ok || num < 1 || num > MaxNumerator {
		out.Set("numerator", 4)
	}
	if den, ok := p.Int("denominator"); !ok || !validDenominators[den] {
		out.Set("denominator", 4)
	}
	return out
}

// validateClip 缺省字段由工具自行补默认值，此处只拒绝越界值
func validateClip(p *toolcall.Params) bool {
	if v, present := p.Get("start_ticks"); present {
		n, ok := toolcall.ToFloat(v)
		if !ok || n < 0 {
			return false
		}
	}
	if v, present := p.Get("length_ticks"); present {
		n, ok := toolcall.ToFloat(v)
		if !ok || n < 1 {
			return false
		}
	}
	return true
}

func sanitizeClip(p *toolcall.Params) *toolcall.Params {
	out := p.Clone()
	if v, present := p.Get("start_ticks"); present {
		if n, ok := toolcall.ToFloat(v); !ok {
			out.Set("start_ticks", 0)
		} else if n < 0 {
			out.Set("start_ticks", 0)
		}
	}
	if v, present := p.Get("length_ticks"); present {
		if n, ok := toolcall.ToFloat(v); !ok || n < 1 {
			out.Set("length_ticks", DefaultClipLen)
		}
	}
	return out
}

func validateMove(p *toolcall.Params) bool {
	n, ok := p.Float("start_ticks")
	return ok && n >= 0
}

func sanitizeMove(p *toolcall.Params) *toolcall.Params {
	out := p.Clone()
	n, ok := p.Int("start_ticks")
	if !ok {
		n = 0
	}
	out.Set("start_ticks", max(0, n))
	return out
}

// numberOr 缺省返回 def；存在但非数值时 ok=false
func numberOr(p *toolcall.Params, key string, def int) (int, bool) {
	v, present := p.Get(key)
	if !present {
		return def, true
	}
	f, ok := toolcall.ToFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// intOr 缺省或非数值均返回 def
func intOr(p *toolcall.Params, key string, def int) int {
	if n, ok := p.Int(key); ok {
		return n
	}
	return def
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
