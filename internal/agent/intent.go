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

	"arrange-orchestrator/internal/agent/executor"
	"arrange-orchestrator/internal/agent/planner"
	"arrange-orchestrator/internal/agent/roles"
	"arrange-orchestrator/internal/agent/toolcall"
	"arrange-orchestrator/internal/project"
	"arrange-orchestrator/internal/runtime/session"
)

// IntentResult 一次意图处理的结果
type IntentResult struct {
	SessionID       string            `json:"session_id"`
	Success         bool              `json:"success"`
	Message         string            `json:"message"`
	Error           string            `json:"error,omitempty"`
	Role            roles.Role        `json:"role"`
	Analysis        map[string]any    `json:"analysis,omitempty"`
	ExpectedOutcome string            `json:"expected_outcome,omitempty"`
	AIGenerated     bool              `json:"ai_generated"`
	Sequence        toolcall.Sequence `json:"tool_sequence,omitempty"`
	Outcome         *executor.Outcome `json:"outcome,omitempty"`
	BeforeSnapshot  string            `json:"before_snapshot,omitempty"`
	AfterSnapshot   string            `json:"after_snapshot,omitempty"`
}

// ProcessIntent 处理一条自然语言意图：刷新上下文、识别角色、快照、规划、优化校验、执行、再快照
func (o *Orchestrator) ProcessIntent(ctx context.Context, sessionID, message string) (*IntentResult, error) {
	sess, ws, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := busy(ws); err != nil {
		return nil, err
	}
	logger := o.logger.With("session_id", sess.ID)

	refreshContext(sess, ws.project)
	role := o.router.Route(sess, message)
	res := &IntentResult{SessionID: sess.ID, Role: role}

	if snap, err := ws.snapshots.Capture(ctx, "before: "+message); err != nil {
		logger.Warn("执行前快照失败", "error", err)
	} else {
		res.BeforeSnapshot = snap.ID
	}

	history := recentHistory(sess)
	sess.AddMessage("user", message)

	toolsJSON, err := o.registry.SchemasForLLM()
	if err != nil {
		return nil, err
	}
	plan, err := o.planner.Plan(ctx, planner.Request{
		Goal:        message,
		Context:     sess.View(),
		ToolsJSON:   toolsJSON,
		Instruments: project.Instruments,
		Role:        string(role),
		History:     history,
	})
	if err != nil {
		return nil, err
	}
	if plan.Failed() {
		res.Error = plan.Error
		res.Message = plan.Message
		sess.AddMessage("assistant", plan.Message)
		logger.Warn("规划失败", "planner", o.planner.Name(), "error", plan.Error)
		return res, o.sessions.Save(ctx, sess)
	}

	res.Analysis = plan.Analysis
	res.ExpectedOutcome = plan.ExpectedOutcome
	res.AIGenerated = plan.AIGenerated
	if plan.Analysis != nil {
		sess.SetMusical(session.MusicalKeyAnalysis, plan.Analysis)
	}
	if style := plan.MusicalStyle(); style != "" {
		sess.SetGoal(style)
	}

	if len(plan.ToolSequence) == 0 {
		res.Error = MessageEmptySequence
		res.Message = MessageEmptySequence
		sess.AddMessage("assistant", MessageEmptySequence)
		return res, o.sessions.Save(ctx, sess)
	}

	tags := ws.project.Tags()
	seq := o.graph.OptimizeToolExecution(plan.ToolSequence, tags...)
	res.Sequence = seq
	if err := o.graph.Validate(seq, tags...); err != nil {
		res.Error = err.Error()
		res.Message = "Tool sequence failed capability validation: " + err.Error()
		sess.AddMessage("assistant", res.Message)
		return res, o.sessions.Save(ctx, sess)
	}
	logger.Info("开始执行规划序列", "planner", o.planner.Name(), "sequence", describe(seq))

	outcome, err := ws.executor.Execute(ctx, sess, seq)
	if err != nil {
		return nil, err
	}
	res.Outcome = outcome
	res.Success = outcome.Success
	res.Message = outcome.Summary
	if !outcome.Success {
		res.Error = outcome.Error
	}

	refreshContext(sess, ws.project)
	if snap, err := ws.snapshots.Capture(context.WithoutCancel(ctx), "after: "+message); err != nil {
		logger.Warn("执行后快照失败", "error", err)
	} else {
		res.AfterSnapshot = snap.ID
	}
	sess.AddMessage("assistant", outcome.Summary)
	return res, o.sessions.Save(ctx, sess)
}

// ExecuteSequence 直接执行调用序列；optimize 为 true 时先按能力图补齐前置调用
func (o *Orchestrator) ExecuteSequence(ctx context.Context, sessionID string, seq toolcall.Sequence, optimize bool) (*executor.Outcome, error) {
	sess, ws, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	refreshContext(sess, ws.project)
	if optimize {
		seq = o.graph.OptimizeToolExecution(seq, ws.project.Tags()...)
	}
	outcome, err := ws.executor.Execute(ctx, sess, seq)
	if err != nil {
		return nil, err
	}
	refreshContext(sess, ws.project)
	return outcome, o.sessions.Save(ctx, sess)
}

// WriteNotesDirect 不经规划，把音符写到当前角色的默认目标轨道；轨道不存在时先创建
func (o *Orchestrator) WriteNotesDirect(ctx context.Context, sessionID string, notes []any, clipIndex int) (*executor.Outcome, error) {
	sess, ws, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	target := o.router.DefaultTarget(sess)
	var seq toolcall.Sequence
	state := ws.project.State()
	if _, ok := state.FindTrack(target); !ok {
		c := toolcall.NewCall("create_track", "type", "instrument", "name", target)
		c.Origin = toolcall.OriginPrerequisite
		seq = append(seq, c)
	}
	seq = append(seq, toolcall.NewCall("write_notes", "track_name", target, "clip_index", clipIndex, "notes", notes))
	return o.ExecuteSequence(ctx, sessionID, seq, false)
}

func recentHistory(sess *session.Session) []planner.PriorExchange {
	msgs := sess.CopyMessages()
	if len(msgs) > historyWindow {
		msgs = msgs[len(msgs)-historyWindow:]
	}
	out := make([]planner.PriorExchange, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, planner.PriorExchange{Role: m.Role, Content: m.Content})
	}
	return out
}
