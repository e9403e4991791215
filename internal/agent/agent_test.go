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
package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arrange-orchestrator/internal/agent/executor"
	"arrange-orchestrator/internal/agent/planner"
	"arrange-orchestrator/internal/agent/roles"
	"arrange-orchestrator/internal/agent/toolcall"
	"arrange-orchestrator/internal/agent/tools"
	"arrange-orchestrator/internal/project"
	"arrange-orchestrator/internal/runtime/session"
	"arrange-orchestrator/pkg/errors"
)

// stubPlanner 返回固定结果并记录请求
type stubPlanner struct {
	resp *planner.Response
	last planner.Request
}

func (p *stubPlanner) Name() string { return "stub" }

func (p *stubPlanner) Plan(ctx context.Context, req planner.Request) (*planner.Response, error) {
	p.last = req
	return p.resp, nil
}

// blockTool 阻塞直到 ctx 结束
type blockTool struct{ started chan struct{} }

func (b *blockTool) Name() string           { return "block" }
func (b *blockTool) Description() string    { return "blocks until cancelled" }
func (b *blockTool) Schema() map[string]any { return map[string]any{"type": "object"} }
func (b *blockTool) Execute(ctx context.Context, _ *project.Project, _ *toolcall.Params) (tools.Output, error) {
	close(b.started)
	<-ctx.Done()
	return tools.Output{}, ctx.Err()
}

func newOrchestrator(t *testing.T, pl planner.Planner, extra ...tools.Tool) *Orchestrator {
	t.Helper()
	reg := tools.NewBuiltinRegistry()
	for _, tool := range extra {
		reg.Register(tool)
	}
	return New(session.NewManager(session.NewMemoryStore(), 0), reg, pl, Options{})
}

func TestProcessIntent_RulePlanner(t *testing.T) {
	o := newOrchestrator(t, planner.NewRulePlanner())
	ctx := context.Background()
	sess, err := o.CreateSession(ctx)
	require.NoError(t, err)

	res, err := o.ProcessIntent(ctx, sess.ID, "make a house beat")
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, executor.SummarySucceeded, res.Message)
	assert.Equal(t, roles.Rhythm, res.Role)
	assert.Equal(t, []string{"set_tempo", "create_track", "create_midi_clip", "write_notes"}, res.Sequence.Names())
	require.NotEmpty(t, res.BeforeSnapshot)
	require.NotEmpty(t, res.AfterSnapshot)
	assert.NotEqual(t, res.BeforeSnapshot, res.AfterSnapshot)

	proj, err := o.Project(ctx, sess.ID)
	require.NoError(t, err)
	state := proj.State()
	drums, ok := state.FindTrack("Drums")
	require.True(t, ok)
	require.Len(t, drums.Clips, 1)
	assert.Len(t, drums.Clips[0].Notes, 2)

	view, err := o.Context(ctx, sess.ID)
	require.NoError(t, err)
	assert.Contains(t, view.Tracks, "Drums")
	assert.Equal(t, "house", view.CurrentGoal)

	delta, err := o.DiffSnapshots(ctx, sess.ID, res.BeforeSnapshot, res.AfterSnapshot)
	require.NoError(t, err)
	assert.False(t, delta.Identical)
	assert.Equal(t, []string{"Drums"}, delta.TracksAdded)
}

func TestProcessIntent_PlannerFailure(t *testing.T) {
	pl := &stubPlanner{resp: &planner.Response{Error: planner.ErrorOrchestrationFailed, Message: planner.MessageCheckAPIKey}}
	o := newOrchestrator(t, pl)
	ctx := context.Background()
	sess, err := o.CreateSession(ctx)
	require.NoError(t, err)

	res, err := o.ProcessIntent(ctx, sess.ID, "add a bassline")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, planner.ErrorOrchestrationFailed, res.Error)
	assert.Equal(t, planner.MessageCheckAPIKey, res.Message)
	assert.Nil(t, res.Outcome)
	assert.Equal(t, "composing", pl.last.Role)
	assert.NotEmpty(t, pl.last.ToolsJSON)
}

func TestProcessIntent_EmptySequence(t *testing.T) {
	pl := &stubPlanner{resp: &planner.Response{Analysis: map[string]any{"musical_style": "ambient"}}}
	o := newOrchestrator(t, pl)
	ctx := context.Background()
	sess, err := o.CreateSession(ctx)
	require.NoError(t, err)

	res, err := o.ProcessIntent(ctx, sess.ID, "something calm")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, MessageEmptySequence, res.Error)
}

func TestProcessIntent_InsertsPrerequisites(t *testing.T) {
	pl := &stubPlanner{resp: &planner.Response{ToolSequence: toolcall.Sequence{
		toolcall.NewCall("write_notes", "track_name", "Keys", "notes", []any{
			map[string]any{"start_ticks": 0, "key": 60},
		}),
	}}}
	o := newOrchestrator(t, pl)
	ctx := context.Background()
	sess, err := o.CreateSession(ctx)
	require.NoError(t, err)

	res, err := o.ProcessIntent(ctx, sess.ID, "play a C")
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	names := res.Sequence.Names()
	assert.Equal(t, "write_notes", names[len(names)-1])
	assert.Contains(t, names, "create_track")
	assert.Contains(t, names, "create_midi_clip")
}

func TestProcessIntent_PrerequisitesFollowTargetTrack(t *testing.T) {
	pl := &stubPlanner{resp: &planner.Response{ToolSequence: toolcall.Sequence{
		toolcall.NewCall("write_notes", "track_name", "Bass", "notes", []any{
			map[string]any{"start_ticks": 0, "key": 36},
		}),
	}}}
	o := newOrchestrator(t, pl)
	ctx := context.Background()
	sess, err := o.CreateSession(ctx)
	require.NoError(t, err)

	setup := toolcall.Sequence{
		toolcall.NewCall("create_track", "type", "instrument", "name", "Drums"),
		toolcall.NewCall("create_midi_clip", "track_name", "Drums"),
	}
	out, err := o.ExecuteSequence(ctx, sess.ID, setup, false)
	require.NoError(t, err)
	require.True(t, out.Success, out.Error)

	res, err := o.ProcessIntent(ctx, sess.ID, "add a bass line")
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"create_track", "create_midi_clip", "write_notes"}, res.Sequence.Names())

	proj, _ := o.Project(ctx, sess.ID)
	state := proj.State()
	bass, ok := state.FindTrack("Bass")
	require.True(t, ok)
	require.Len(t, bass.Clips, 1)
	assert.Len(t, bass.Clips[0].Notes, 1)
	assert.Equal(t, []string{"Drums", "Bass"}, state.TrackNames())
}

func TestWriteNotesDirect_CreatesRoleTarget(t *testing.T) {
	o := newOrchestrator(t, planner.NewRulePlanner())
	ctx := context.Background()
	sess, err := o.CreateSession(ctx)
	require.NoError(t, err)
	require.NoError(t, o.SwitchRole(ctx, sess.ID, "composing", nil))

	notes := []any{map[string]any{"start_ticks": 0, "key": 64, "velocity": 90, "length_ticks": 48}}
	out, err := o.WriteNotesDirect(ctx, sess.ID, notes, 0)
	require.NoError(t, err)
	require.True(t, out.Success, out.Error)

	proj, _ := o.Project(ctx, sess.ID)
	state := proj.State()
	melody, ok := state.FindTrack("Melody")
	require.True(t, ok)
	require.Len(t, melody.Clips, 1)
	assert.Len(t, melody.Clips[0].Notes, 1)

	// 轨道已存在时不再创建
	out, err = o.WriteNotesDirect(ctx, sess.ID, notes, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"write_notes"}, traceTools(out))
}

func TestSwitchRole_Invalid(t *testing.T) {
	o := newOrchestrator(t, planner.NewRulePlanner())
	ctx := context.Background()
	sess, err := o.CreateSession(ctx)
	require.NoError(t, err)
	err = o.SwitchRole(ctx, sess.ID, "conductor", nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidArg))
}

func TestSnapshots_BusyAndRevert(t *testing.T) {
	block := &blockTool{started: make(chan struct{})}
	o := newOrchestrator(t, planner.NewRulePlanner(), block)
	ctx := context.Background()
	sess, err := o.CreateSession(ctx)
	require.NoError(t, err)

	empty, err := o.CaptureSnapshot(ctx, sess.ID, "empty")
	require.NoError(t, err)
	_, err = o.ProcessIntent(ctx, sess.ID, "techno drums")
	require.NoError(t, err)

	done := make(chan *executor.Outcome, 1)
	go func() {
		out, _ := o.ExecuteSequence(ctx, sess.ID, toolcall.Sequence{toolcall.NewCall("block")}, false)
		done <- out
	}()
	<-block.started

	_, err = o.CaptureSnapshot(ctx, sess.ID, "while busy")
	assert.True(t, errors.Is(err, errors.ErrBusy))
	err = o.RevertSnapshot(ctx, sess.ID, empty.ID)
	assert.True(t, errors.Is(err, errors.ErrBusy))
	_, err = o.ProcessIntent(ctx, sess.ID, "more drums")
	assert.True(t, errors.Is(err, errors.ErrBusy))

	cancelled, err := o.Cancel(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)
	select {
	case out := <-done:
		assert.Equal(t, executor.StateCancelled, out.State)
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not stop the sequence")
	}

	require.NoError(t, o.RevertSnapshot(ctx, sess.ID, empty.ID))
	proj, _ := o.Project(ctx, sess.ID)
	assert.Empty(t, proj.State().Tracks)
	view, _ := o.Context(ctx, sess.ID)
	assert.Empty(t, view.Tracks)
	current, _ := o.CurrentSnapshot(ctx, sess.ID)
	assert.Equal(t, empty.ID, current)
}

func TestSessionLifecycle(t *testing.T) {
	o := newOrchestrator(t, planner.NewRulePlanner())
	ctx := context.Background()
	sess, err := o.CreateSession(ctx)
	require.NoError(t, err)
	before := sess.ContextID()

	reset, err := o.ResetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.NotEqual(t, before, reset.ContextID())

	require.NoError(t, o.DeleteSession(ctx, sess.ID))
	_, err = o.Session(ctx, sess.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	_, err = o.ProcessIntent(ctx, sess.ID, "beat")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func traceTools(out *executor.Outcome) []string {
	names := make([]string, 0, len(out.Trace))
	for _, e := range out.Trace {
		names = append(names, e.Tool)
	}
	return names
}
