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

package toolcall

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams_PreservesOrder(t *testing.T) {
	p := NewParams("type", "instrument", "name", "Drums", "instrument", "kicker")
	assert.Equal(t, []string{"type", "name", "instrument"}, p.Keys())

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"instrument","name":"Drums","instrument":"kicker"}`, string(raw))

	var back Params
	require.NoError(t, json.Unmarshal([]byte(`{"z":1,"a":2,"m":3}`), &back))
	assert.Equal(t, []string{"z", "a", "m"}, back.Keys())
}

func TestParams_NilSafe(t *testing.T) {
	var p *Params
	_, ok := p.Get("x")
	assert.False(t, ok)
	assert.Equal(t, 0, p.Len())
	assert.Nil(t, p.Keys())
	raw, err := p.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(raw))
	assert.Equal(t, 0, p.Clone().Len())
}

func TestParams_Accessors(t *testing.T) {
	p := NewParams("bpm", 128.0, "name", "Lead", "flag", true, "count", 3, "text", "12")
	f, ok := p.Float("bpm")
	require.True(t, ok)
	assert.Equal(t, 128.0, f)
	n, ok := p.Int("count")
	require.True(t, ok)
	assert.Equal(t, 3, n)
	_, ok = p.Float("text")
	assert.False(t, ok, "strings are not numeric")
	assert.Equal(t, "Lead", p.StringOr("name", "x"))
	assert.Equal(t, "x", p.StringOr("missing", "x"))
	assert.Equal(t, 7, p.IntOr("missing", 7))
	b, ok := p.Bool("flag")
	assert.True(t, ok && b)
}

func TestParams_CloneIsIndependent(t *testing.T) {
	p := NewParams("a", 1)
	c := p.Clone()
	c.Set("a", 2)
	c.Set("b", 3)
	v, _ := p.Int("a")
	assert.Equal(t, 1, v)
	assert.False(t, p.Has("b"))
}

func TestParams_CloneKeepsTypesAndDeepCopies(t *testing.T) {
	note := map[string]any{"key": 60, "velocity": 100}
	p := NewParams("bpm", 126, "ratio", 0.5, "notes", []any{note}, "opts", NewParams("loop", true))
	c := p.Clone()

	v, _ := c.Get("bpm")
	assert.Equal(t, 126, v)
	v, _ = c.Get("ratio")
	assert.Equal(t, 0.5, v)
	assert.Equal(t, p.Keys(), c.Keys())

	notes, ok := c.List("notes")
	require.True(t, ok)
	cloned, ok := notes[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 60, cloned["key"])
	cloned["key"] = 72
	assert.Equal(t, 60, note["key"], "nested map must not be shared")

	opts, _ := c.Get("opts")
	nested, ok := opts.(*Params)
	require.True(t, ok)
	nested.Set("loop", false)
	orig, _ := p.Get("opts")
	loop, _ := orig.(*Params).Bool("loop")
	assert.True(t, loop)
}

func TestParams_ListAndNested(t *testing.T) {
	var p Params
	require.NoError(t, json.Unmarshal([]byte(`{"notes":[{"key":60,"velocity":90}]}`), &p))
	notes, ok := p.List("notes")
	require.True(t, ok)
	require.Len(t, notes, 1)
	note, ok := AsParams(notes[0])
	require.True(t, ok)
	k, _ := note.Int("key")
	assert.Equal(t, 60, k)
}

func TestCall_JSONShape(t *testing.T) {
	c := NewCall("set_tempo", "bpm", 120)
	c.Reasoning = "house groove"
	raw, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tool":"set_tempo","params":{"bpm":120},"reasoning":"house groove"}`, string(raw))

	var back Call
	require.NoError(t, json.Unmarshal([]byte(`{"tool":"read_project"}`), &back))
	assert.Equal(t, "read_project", back.Name)
	assert.Equal(t, 0, back.Params.Len())
}

func TestCall_WithParamCopies(t *testing.T) {
	c := NewCall("write_notes", "track_name", "Missing")
	d := c.WithParam("track_name", "Recovery Track")
	assert.Equal(t, "Missing", c.Params.StringOr("track_name", ""))
	assert.Equal(t, "Recovery Track", d.Params.StringOr("track_name", ""))
	assert.Equal(t, `write_notes{"track_name":"Recovery Track"}`, d.String())
}

func TestChange_ContentHashStable(t *testing.T) {
	a := NewChange(ChangeUpdate, "project.tempo", map[string]any{"tempo": 128.0}, map[string]any{"tempo": 120.0})
	b := NewChange(ChangeUpdate, "project.tempo", map[string]any{"tempo": 128.0}, map[string]any{"tempo": 90.0})
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.ContentHash, b.ContentHash, "rollback data is not part of the content")
	assert.Len(t, a.ContentHash, 64)

	c := NewChange(ChangeCreate, "track:Drums", nil, nil)
	assert.NotNil(t, c.Rollback)
	assert.NotEqual(t, a.ContentHash, c.ContentHash)
}

func TestSequence_Names(t *testing.T) {
	seq := Sequence{NewCall("create_track"), NewCall("create_midi_clip")}
	assert.Equal(t, []string{"create_track", "create_midi_clip"}, seq.Names())
	cl := seq.Clone()
	cl[0].Params.Set("name", "x")
	assert.False(t, seq[0].Params.Has("name"))
}
