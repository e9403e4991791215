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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arrange-orchestrator/internal/agent/toolcall"
)

func seq(names ...string) toolcall.Sequence {
	out := make(toolcall.Sequence, len(names))
	for i, n := range names {
		out[i] = toolcall.NewCall(n, "track_name", "Bass")
	}
	return out
}

func TestDefaultGraph_Compatibility(t *testing.T) {
	g := DefaultGraph()
	assert.True(t, g.AreCompatible("create_track", "create_midi_clip"))
	assert.True(t, g.AreCompatible("create_track", "add_effect"))
	assert.True(t, g.AreCompatible("create_midi_clip", "write_notes"))
	assert.False(t, g.AreCompatible("write_notes", "create_track"))
	assert.False(t, g.AreCompatible("set_tempo", "write_notes"))
	assert.False(t, g.AreCompatible("unknown", "write_notes"))
	assert.Equal(t, []string{"add_effect", "create_midi_clip"}, g.Compatible("create_track"))
}

func TestDefaultGraph_Dependencies(t *testing.T) {
	g := DefaultGraph()
	assert.Equal(t, []string{"create_midi_clip"}, g.DependenciesOf("write_notes"))
	assert.Nil(t, g.DependenciesOf("set_tempo"))
	assert.Nil(t, g.DependenciesOf("missing"))
	assert.True(t, g.IsCritical("create_midi_clip"))
	assert.False(t, g.IsCritical("write_notes"))
	assert.Len(t, g.List(), 5)
	assert.Equal(t, "set_tempo", g.List()[0].Name)
}

func TestValidate(t *testing.T) {
	g := DefaultGraph()
	assert.True(t, g.ValidateToolSequence(seq("create_track", "create_midi_clip", "write_notes")))
	assert.True(t, g.ValidateToolSequence(seq("set_tempo")))
	assert.True(t, g.ValidateToolSequence(nil))

	err := g.Validate(seq("set_tempo", "write_notes"))
	require.Error(t, err)
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Index)
	assert.Equal(t, "write_notes", pe.Tool)
	assert.Equal(t, []string{"clip_exists"}, pe.Missing)

	// 项目已有轨道时可直接建 clip
	assert.NoError(t, g.Validate(seq("create_midi_clip", "write_notes"), "track_exists", ScopedTag("track_exists", "Bass")))
	assert.NoError(t, g.Validate(seq("add_effect"), ScopedTag("track_exists", "Bass")))
	// 其他轨道存在不代表 Bass 存在
	assert.Error(t, g.Validate(seq("add_effect"), "track_exists", ScopedTag("track_exists", "Drums")))
	// 未指明轨道的调用按全局标签判断
	assert.NoError(t, g.Validate(toolcall.Sequence{toolcall.NewCall("add_effect")}, "new_track"))
}

func TestValidate_UnknownToolIsFree(t *testing.T) {
	g := DefaultGraph()
	assert.True(t, g.ValidateToolSequence(seq("read_project", "quantize_notes")))
}

func TestOptimize_InsertsPrerequisites(t *testing.T) {
	g := DefaultGraph()
	out := g.OptimizeToolExecution(seq("set_tempo", "write_notes"))
	require.Equal(t, []string{"set_tempo", "create_track", "create_midi_clip", "write_notes"}, out.Names())
	assert.Equal(t, toolcall.OriginPrerequisite, out[1].Origin)
	assert.Equal(t, "Bass", out[1].Params.StringOr("name", ""))
	assert.Equal(t, "Bass", out[2].Params.StringOr("track_name", ""))
	assert.True(t, g.ValidateToolSequence(out))
}

func TestOptimize_Idempotent(t *testing.T) {
	g := DefaultGraph()
	once := g.OptimizeToolExecution(seq("add_effect", "write_notes", "write_notes"))
	twice := g.OptimizeToolExecution(once)
	assert.Equal(t, once.Names(), twice.Names())
	assert.Equal(t, []string{"create_track", "add_effect", "create_midi_clip", "write_notes", "write_notes"}, once.Names())
}

func TestOptimize_RespectsInitialState(t *testing.T) {
	g := DefaultGraph()
	out := g.OptimizeToolExecution(seq("write_notes"), "track_exists", "clip_exists",
		ScopedTag("track_exists", "Bass"), ScopedTag("clip_exists", "Bass"))
	assert.Equal(t, []string{"write_notes"}, out.Names())
}

func TestOptimize_TargetTrackMissing(t *testing.T) {
	g := DefaultGraph()
	// Drums 已有 clip，写入 Bass 仍需先建 Bass 轨道与 clip
	initial := []string{"track_exists", "clip_exists", ScopedTag("track_exists", "Drums"), ScopedTag("clip_exists", "Drums")}
	out := g.OptimizeToolExecution(seq("write_notes"), initial...)
	require.Equal(t, []string{"create_track", "create_midi_clip", "write_notes"}, out.Names())
	assert.Equal(t, "Bass", out[0].Params.StringOr("name", ""))
	assert.Equal(t, "Bass", out[1].Params.StringOr("track_name", ""))
	assert.NoError(t, g.Validate(out, initial...))
	assert.Equal(t, out.Names(), g.OptimizeToolExecution(out, initial...).Names())

	// 轨道已在但没有 clip 时只补 clip
	out = g.OptimizeToolExecution(seq("write_notes"), append(initial, ScopedTag("track_exists", "Bass"))...)
	assert.Equal(t, []string{"create_midi_clip", "write_notes"}, out.Names())
}

func TestEstimateCost(t *testing.T) {
	g := DefaultGraph()
	assert.InDelta(t, 1.0, g.EstimateCost(seq("set_tempo", "create_track", "create_midi_clip", "write_notes")), 1e-9)
	assert.Equal(t, 0.0, g.EstimateCost(seq("read_project")))
}

func TestDeclareAndCustomBuilder(t *testing.T) {
	g := DefaultGraph()
	g.Declare("set_tempo", "create_track")
	assert.True(t, g.AreCompatible("set_tempo", "create_track"))

	g.SetPrerequisiteBuilder(func(tool string, forCall toolcall.Call) toolcall.Call {
		return toolcall.NewCall(tool, "name", "Custom")
	})
	out := g.OptimizeToolExecution(toolcall.Sequence{toolcall.NewCall("add_effect")})
	require.Len(t, out, 2)
	assert.Equal(t, "Custom", out[0].Params.StringOr("name", ""))
}
