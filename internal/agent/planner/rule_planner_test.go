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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBPMForGenre(t *testing.T) {
	cases := map[string]int{
		"house":         126,
		"Techno":        130,
		"trance":        135,
		"drum and bass": 174,
		"dubstep":       140,
		"trap":          140,
		"UK Garage":     130,
		"polka":         120,
		"":              120,
	}
	for genre, want := range cases {
		assert.Equal(t, want, BPMForGenre(genre), genre)
	}
}

func TestDetectGenre(t *testing.T) {
	assert.Equal(t, "drum_and_bass", DetectGenre("Give me some Drum and Bass"))
	assert.Equal(t, "uk_garage", DetectGenre("a 2-step uk garage groove"))
	assert.Equal(t, "house", DetectGenre("deep house please"))
	assert.Equal(t, "", DetectGenre("something nice"))
}

func TestRulePlanner_Plan(t *testing.T) {
	p := NewRulePlanner()
	resp, err := p.Plan(context.Background(), Request{Goal: "techno loop"})
	require.NoError(t, err)
	require.False(t, resp.Failed())
	assert.False(t, resp.AIGenerated)
	assert.Equal(t, []string{"set_tempo", "create_track", "create_midi_clip", "write_notes"}, resp.ToolSequence.Names())
	bpm, ok := resp.ToolSequence[0].Params.Int("bpm")
	require.True(t, ok)
	assert.Equal(t, 130, bpm)
	assert.Equal(t, "techno", resp.MusicalStyle())

	notes, ok := resp.ToolSequence[3].Params.List("notes")
	require.True(t, ok)
	require.Len(t, notes, 2)
}
