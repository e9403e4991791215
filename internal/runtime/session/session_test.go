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
package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arrange-orchestrator/internal/agent/recovery"
	"arrange-orchestrator/pkg/errors"
)

func TestNew(t *testing.T) {
	s := New("sid1")
	if s == nil || s.ID != "sid1" {
		t.Errorf("New: %+v", s)
	}
	if s.ContextID() == "" {
		t.Error("context id should be generated")
	}
	s2 := New("")
	if s2.ID == "" {
		t.Error("empty id should generate id")
	}
}

func TestSession_AddMessage_CopyMessages(t *testing.T) {
	s := New("s1")
	s.AddMessage("user", "make a house beat")
	s.AddMessage("assistant", "All tools executed successfully")
	msgs := s.CopyMessages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "make a house beat" {
		t.Errorf("first message: %+v", msgs[0])
	}
	llmMsgs := MessagesToLLM(msgs)
	if len(llmMsgs) != 2 || llmMsgs[1].Role != "assistant" {
		t.Errorf("MessagesToLLM: %+v", llmMsgs)
	}
}

func TestSession_AddObservation_CopyToolCalls(t *testing.T) {
	s := New("s1")
	s.AddObservation("set_tempo", map[string]any{"bpm": 128}, "Tempo set to 128 BPM", true)
	calls := s.CopyToolCalls()
	if len(calls) != 1 || calls[0].Tool != "set_tempo" || !calls[0].Success {
		t.Errorf("CopyToolCalls: %+v", calls)
	}
}

func TestSession_ErrorCountMonotonicUntilReset(t *testing.T) {
	s := New("s1")
	prev := 0
	for i := 0; i < 12; i++ {
		n := s.RecordFailure("write_notes", fmt.Sprintf("boom %d", i), recovery.KindExecution)
		assert.Equal(t, prev+1, n)
		prev = n
	}
	assert.Equal(t, 12, s.ErrorCount())
	v := s.View()
	assert.Len(t, v.RecentErrors, recovery.MaxRecentErrors)
	assert.Equal(t, 12, v.ErrorsByTool["write_notes"])

	oldCtx := s.ContextID()
	s.AddRecentAction(ActionCreatedTrack)
	s.Reset()
	assert.Equal(t, 0, s.ErrorCount())
	assert.Empty(t, s.RecentActions())
	assert.Empty(t, s.ErrorHistory().Recent())
	assert.NotEqual(t, oldCtx, s.ContextID())
	assert.Equal(t, "s1", s.ID)
}

func TestSession_RecentActionsBounded(t *testing.T) {
	s := New("s1")
	s.SetRecentLimit(3)
	for _, a := range []string{"a", "b", "c", "d", "e"} {
		s.AddRecentAction(a)
	}
	assert.Equal(t, []string{"c", "d", "e"}, s.RecentActions())
}

func TestSession_ContextFields(t *testing.T) {
	s := New("s1")
	s.SetMusical(MusicalKeyTempo, 128.0)
	v, ok := s.Musical(MusicalKeyTempo)
	require.True(t, ok)
	assert.Equal(t, 128.0, v)

	s.SetTracks([]string{"Drums", "Bass", "Drums"})
	s.AddTrack("Lead")
	s.AddTrack("Bass")
	assert.Equal(t, []string{"Drums", "Bass", "Lead"}, s.Tracks())

	s.SetInstruments([]string{"kicker", "bassline"})
	assert.Equal(t, []string{"kicker", "bassline"}, s.Instruments())

	s.SetGoal("house")
	s.SetRole("rhythm", map[string]any{"element": "kick"})
	view := s.View()
	assert.Equal(t, "house", view.CurrentGoal)
	assert.Equal(t, "rhythm", view.Role)
	assert.Equal(t, "kick", view.RoleContext["element"])

	// 视图是副本
	view.MusicalContext["x"] = 1
	_, ok = s.Musical("x")
	assert.False(t, ok)
}

func TestManager(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), 5)

	s, err := m.Create(ctx)
	require.NoError(t, err)
	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = m.Get(ctx, "missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	named, err := m.GetOrCreate(ctx, "named")
	require.NoError(t, err)
	assert.Equal(t, "named", named.ID)

	named.RecordFailure("x", "y", recovery.KindExecution)
	reset, err := m.Reset(ctx, "named")
	require.NoError(t, err)
	assert.Equal(t, 0, reset.ErrorCount())

	list, err := m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, m.Delete(ctx, "named"))
	assert.Error(t, m.Delete(ctx, "named"))
}
