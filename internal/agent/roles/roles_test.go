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
package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arrange-orchestrator/internal/runtime/session"
)

func TestParse(t *testing.T) {
	r, err := Parse("Sound_Design")
	require.NoError(t, err)
	assert.Equal(t, SoundDesign, r)
	r, err = Parse(" rhythm ")
	require.NoError(t, err)
	assert.Equal(t, Rhythm, r)
	_, err = Parse("drummer")
	assert.Error(t, err)
}

func TestDefaultTarget(t *testing.T) {
	assert.Equal(t, "Drums", DefaultTarget(Rhythm))
	assert.Equal(t, "Melody", DefaultTarget(Composing))
	assert.Equal(t, "Lead", DefaultTarget(SoundDesign))
	assert.Equal(t, "Master", DefaultTarget(MixAssist))
	assert.Equal(t, "Drums", DefaultTarget(Planning))
	assert.Equal(t, "Drums", DefaultTarget(Critique))
}

func TestDetect(t *testing.T) {
	cases := map[string]Role{
		"add a four on the floor kick":     Rhythm,
		"write a melody over these chords": Composing,
		"make the synth brighter":          SoundDesign,
		"compress the vocals":              MixAssist,
		"what do you think of this?":       Critique,
		"make a house track at 126":        Planning,
	}
	for msg, want := range cases {
		got, _ := Detect(msg)
		assert.Equal(t, want, got, msg)
	}
	_, element := Detect("tighten the groove")
	assert.Equal(t, "groove", element)
}

func TestRouter(t *testing.T) {
	s := session.New("s1")
	r := NewRouter()
	assert.Equal(t, Planning, r.Current(s))
	assert.Equal(t, "Drums", r.DefaultTarget(s))

	r.SwitchRole(s, Composing, map[string]any{"element": "chords"})
	assert.Equal(t, "Melody", r.DefaultTarget(s))
	assert.Equal(t, "chords", s.RoleContext()["element"])

	got := r.Route(s, "punchier snare please")
	assert.Equal(t, Rhythm, got)
	assert.Equal(t, "rhythm", s.Role())
	assert.Equal(t, "snare", s.RoleContext()["element"])
}
