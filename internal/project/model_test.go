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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	p := New("")
	s := p.State()
	assert.Equal(t, "untitled", s.Name)
	assert.Equal(t, 120.0, s.Tempo)
	assert.Equal(t, "4/4", s.TimeSignature())
	assert.Empty(t, p.Tags())
}

func TestUpdate_AtomicOnError(t *testing.T) {
	p := New("demo")
	err := p.Update(func(s *State) error {
		s.Tempo = 140
		s.Tracks = append(s.Tracks, Track{Name: "Drums", Type: TrackInstrument})
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 120.0, p.State().Tempo)
	assert.Empty(t, p.State().Tracks)

	require.NoError(t, p.Update(func(s *State) error {
		s.Tracks = append(s.Tracks, Track{Name: "Drums", Type: TrackInstrument, Clips: []Clip{{LengthTicks: TicksPerBar}}})
		return nil
	}))
	assert.Equal(t, []string{"track_exists", "clip_exists", "track_exists@Drums", "clip_exists@Drums"}, p.Tags())

	require.NoError(t, p.Update(func(s *State) error {
		s.Tracks = append(s.Tracks, Track{Name: "Bass", Type: TrackInstrument})
		return nil
	}))
	tags := p.Tags()
	assert.Contains(t, tags, "track_exists@Bass")
	assert.NotContains(t, tags, "clip_exists@Bass")
}

func TestUpdateContext_DropsCancelledCommit(t *testing.T) {
	p := New("demo")
	ctx, cancel := context.WithCancel(context.Background())
	err := p.UpdateContext(ctx, func(s *State) error {
		s.Tempo = 150
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 120.0, p.State().Tempo)

	err = p.UpdateContext(ctx, func(s *State) error {
		t.Fatal("fn must not run on a cancelled context")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, p.UpdateContext(context.Background(), func(s *State) error {
		s.Tempo = 140
		return nil
	}))
	assert.Equal(t, 140.0, p.State().Tempo)
}

func TestState_CloneIsDeep(t *testing.T) {
	p := New("demo")
	require.NoError(t, p.Update(func(s *State) error {
		s.Tracks = append(s.Tracks, Track{Name: "Bass", Clips: []Clip{{Notes: []Note{{Key: 40}}}}, Effects: []string{"EQ"}})
		return nil
	}))
	s := p.State()
	s.Tracks[0].Clips[0].Notes[0].Key = 99
	s.Tracks[0].Effects[0] = "Reverb"
	again := p.State()
	assert.Equal(t, 40, again.Tracks[0].Clips[0].Notes[0].Key)
	assert.Equal(t, "EQ", again.Tracks[0].Effects[0])
}

func TestCaptureAndRestore(t *testing.T) {
	p := New("demo")
	require.NoError(t, p.Update(func(s *State) error {
		s.Tempo = 128
		s.Tracks = append(s.Tracks, Track{Name: "Lead", Type: TrackInstrument, Clips: []Clip{{LengthTicks: 192, Notes: []Note{{Key: 60, Velocity: 100, LengthTicks: 96}}}}})
		return nil
	}))
	st, err := p.CaptureState()
	require.NoError(t, err)
	assert.Equal(t, 128.0, st.SessionState["tempo"])
	require.Len(t, st.TrackList, 1)
	assert.Equal(t, "Lead", st.TrackList[0]["name"])

	require.NoError(t, p.Update(func(s *State) error {
		s.Tempo = 90
		s.Tracks = nil
		return nil
	}))
	require.NoError(t, p.RestoreState(st.Payload))
	s := p.State()
	assert.Equal(t, 128.0, s.Tempo)
	require.Len(t, s.Tracks, 1)
	assert.Equal(t, 60, s.Tracks[0].Clips[0].Notes[0].Key)

	assert.Error(t, p.RestoreState([]byte("{not json")))
}

func TestSummaryAndCatalogue(t *testing.T) {
	p := New("demo")
	sum := p.Summary()
	assert.Equal(t, "4/4", sum["time_signature"])
	assert.Equal(t, 0, sum["track_count"])

	name, ok := KnownEffect("reverb")
	assert.True(t, ok)
	assert.Equal(t, "Reverb", name)
	_, ok = KnownEffect("Chorus Deluxe")
	assert.False(t, ok)
}
