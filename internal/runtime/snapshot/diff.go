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
package snapshot

import (
	"encoding/json"
	"sort"
)

// FieldChange 单个字段的前后值
type FieldChange struct {
	Field  string `json:"field"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

// TrackChange 同名轨道的字段变化
type TrackChange struct {
	Name   string        `json:"name"`
	Fields []FieldChange `json:"fields"`
}

// Delta 两个快照之间的差异
type Delta struct {
	From           string        `json:"from"`
	To             string        `json:"to"`
	Identical      bool          `json:"identical"`
	SessionChanges []FieldChange `json:"session_changes"`
	TracksAdded    []string      `json:"tracks_added"`
	TracksRemoved  []string      `json:"tracks_removed"`
	TracksChanged  []TrackChange `json:"tracks_changed"`
}

// Compare 逐字段比较 SessionState，按轨道名比较 TrackList
func Compare(from, to *ProjectSnapshot) *Delta {
	d := &Delta{
		From:           from.ID,
		To:             to.ID,
		SessionChanges: diffFields(from.SessionState, to.SessionState),
		TracksAdded:    []string{},
		TracksRemoved:  []string{},
		TracksChanged:  []TrackChange{},
	}
	before := tracksByName(from.TrackList)
	after := tracksByName(to.TrackList)
	for name, t := range after {
		prev, ok := before[name]
		if !ok {
			d.TracksAdded = append(d.TracksAdded, name)
			continue
		}
		if fields := diffFields(prev, t); len(fields) > 0 {
			d.TracksChanged = append(d.TracksChanged, TrackChange{Name: name, Fields: fields})
		}
	}
	for name := range before {
		if _, ok := after[name]; !ok {
			d.TracksRemoved = append(d.TracksRemoved, name)
		}
	}
	sort.Strings(d.TracksAdded)
	sort.Strings(d.TracksRemoved)
	sort.Slice(d.TracksChanged, func(i, j int) bool { return d.TracksChanged[i].Name < d.TracksChanged[j].Name })
	d.Identical = from.ContentHash == to.ContentHash ||
		(len(d.SessionChanges) == 0 && len(d.TracksAdded) == 0 && len(d.TracksRemoved) == 0 && len(d.TracksChanged) == 0)
	return d
}

// diffFields 返回两张表中值不同的键（字典序），缺失的一侧为 nil
func diffFields(before, after map[string]any) []FieldChange {
	keys := make(map[string]struct{}, len(before)+len(after))
	for k := range before {
		keys[k] = struct{}{}
	}
	for k := range after {
		keys[k] = struct{}{}
	}
	out := make([]FieldChange, 0)
	for k := range keys {
		b, a := before[k], after[k]
		if !jsonEqual(b, a) {
			out = append(out, FieldChange{Field: k, Before: b, After: a})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func tracksByName(list []map[string]any) map[string]map[string]any {
	out := make(map[string]map[string]any, len(list))
	for _, t := range list {
		name, _ := t["name"].(string)
		if _, dup := out[name]; dup {
			continue
		}
		out[name] = t
	}
	return out
}

func jsonEqual(a, b interface{}) bool {
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return string(ja) == string(jb)
}
