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
// Package agent 编排入口：意图 -> 规划 -> 能力图优化 -> 顺序执行，并维护每个会话的项目与快照。
package agent

import (
	"context"
	"fmt"
	"sync"

	"arrange-orchestrator/internal/agent/capability"
	"arrange-orchestrator/internal/agent/executor"
	"arrange-orchestrator/internal/agent/planner"
	"arrange-orchestrator/internal/agent/roles"
	"arrange-orchestrator/internal/agent/toolcall"
	"arrange-orchestrator/internal/agent/tools"
	"arrange-orchestrator/internal/project"
	"arrange-orchestrator/internal/runtime/session"
	"arrange-orchestrator/internal/runtime/snapshot"
	"arrange-orchestrator/pkg/errors"
	"arrange-orchestrator/pkg/log"
	"arrange-orchestrator/pkg/metrics"
)

// 意图处理的失败文本
const (
	MessageEmptySequence = "AI generated empty tool sequence"
	historyWindow        = 6
)

// Options Orchestrator 配置
type Options struct {
	Executor     executor.Options
	MaxSnapshots int
	Persister    snapshot.Persister
	Logger       *log.Logger
}

// workspace 单个会话独占的编曲、执行器与快照存储
type workspace struct {
	project   *project.Project
	runner    *tools.Runner
	executor  *executor.Executor
	snapshots *snapshot.Store
}

// Orchestrator 编排器
type Orchestrator struct {
	sessions *session.Manager
	registry *tools.Registry
	graph    *capability.Graph
	planner  planner.Planner
	router   *roles.Router
	opts     Options
	logger   *log.Logger

	mu         sync.Mutex
	workspaces map[string]*workspace
}

// New 创建编排器；registry 中声明了能力的工具会并入默认能力图
func New(sessions *session.Manager, registry *tools.Registry, pl planner.Planner, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	if opts.Executor.Logger == nil {
		opts.Executor.Logger = logger
	}
	graph := capability.DefaultGraph()
	for _, c := range registry.Capabilities() {
		if _, exists := graph.Get(c.Name); !exists {
			graph.Register(c)
		}
	}
	return &Orchestrator{
		sessions:   sessions,
		registry:   registry,
		graph:      graph,
		planner:    pl,
		router:     roles.NewRouter(),
		opts:       opts,
		logger:     logger,
		workspaces: make(map[string]*workspace),
	}
}

// Registry 工具注册表
func (o *Orchestrator) Registry() *tools.Registry { return o.registry }

// Graph 能力图
func (o *Orchestrator) Graph() *capability.Graph { return o.graph }

// Planner 当前规划器
func (o *Orchestrator) Planner() planner.Planner { return o.planner }

func (o *Orchestrator) workspaceFor(sessionID string) (*workspace, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ws, ok := o.workspaces[sessionID]; ok {
		return ws, nil
	}
	proj := project.New("session-" + sessionID)
	runner := tools.NewRunner(o.registry, proj)
	store, err := snapshot.NewStore(sessionID, proj, snapshot.Options{
		MaxSnapshots: o.opts.MaxSnapshots,
		Persister:    o.opts.Persister,
		Logger:       o.logger,
	})
	if err != nil {
		return nil, err
	}
	ws := &workspace{
		project:   proj,
		runner:    runner,
		executor:  executor.New(runner, o.opts.Executor),
		snapshots: store,
	}
	o.workspaces[sessionID] = ws
	return ws, nil
}

// load 取会话及其工作区
func (o *Orchestrator) load(ctx context.Context, sessionID string) (*session.Session, *workspace, error) {
	sess, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	ws, err := o.workspaceFor(sess.ID)
	if err != nil {
		return nil, nil, err
	}
	return sess, ws, nil
}

// CreateSession 新建会话并初始化上下文
func (o *Orchestrator) CreateSession(ctx context.Context) (*session.Session, error) {
	sess, err := o.sessions.Create(ctx)
	if err != nil {
		return nil, err
	}
	ws, err := o.workspaceFor(sess.ID)
	if err != nil {
		return nil, err
	}
	refreshContext(sess, ws.project)
	metrics.ActiveSessions.Inc()
	o.logger.Info("会话已创建", "session_id", sess.ID)
	return sess, nil
}

// Session 获取会话
func (o *Orchestrator) Session(ctx context.Context, sessionID string) (*session.Session, error) {
	return o.sessions.Get(ctx, sessionID)
}

// ListSessions 列出会话
func (o *Orchestrator) ListSessions(ctx context.Context) ([]*session.Session, error) {
	return o.sessions.List(ctx)
}

// ResetSession 重置执行上下文：新的上下文 ID，错误计数清零
func (o *Orchestrator) ResetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	sess, ws, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if ws.executor.Running() {
		return nil, errors.Wrap(errors.ErrBusy, "sequence executing")
	}
	if sess, err = o.sessions.Reset(ctx, sess.ID); err != nil {
		return nil, err
	}
	refreshContext(sess, ws.project)
	return sess, nil
}

// DeleteSession 删除会话，正在执行的序列会被取消
func (o *Orchestrator) DeleteSession(ctx context.Context, sessionID string) error {
	if err := o.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	o.mu.Lock()
	ws, ok := o.workspaces[sessionID]
	delete(o.workspaces, sessionID)
	o.mu.Unlock()
	if ok {
		ws.executor.Cancel()
	}
	metrics.ActiveSessions.Dec()
	return nil
}

// Project 会话的编曲
func (o *Orchestrator) Project(ctx context.Context, sessionID string) (*project.Project, error) {
	_, ws, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ws.project, nil
}

// Context 执行上下文视图（先刷新项目状态）
func (o *Orchestrator) Context(ctx context.Context, sessionID string) (session.ContextView, error) {
	sess, ws, err := o.load(ctx, sessionID)
	if err != nil {
		return session.ContextView{}, err
	}
	refreshContext(sess, ws.project)
	return sess.View(), nil
}

// SwitchRole 切换会话角色
func (o *Orchestrator) SwitchRole(ctx context.Context, sessionID, role string, aux map[string]any) error {
	r, err := roles.Parse(role)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidArg, "%v", err)
	}
	sess, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	o.router.SwitchRole(sess, r, aux)
	return o.sessions.Save(ctx, sess)
}

// Status 执行器状态与当前步骤
func (o *Orchestrator) Status(ctx context.Context, sessionID string) (executor.State, int, error) {
	_, ws, err := o.load(ctx, sessionID)
	if err != nil {
		return "", 0, err
	}
	state, step := ws.executor.State()
	return state, step, nil
}

// Cancel 取消会话中正在执行的序列
func (o *Orchestrator) Cancel(ctx context.Context, sessionID string) (bool, error) {
	_, ws, err := o.load(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return ws.executor.Cancel(), nil
}

// refreshContext 用编曲当前状态刷新执行上下文
func refreshContext(sess *session.Session, proj *project.Project) {
	state := proj.State()
	sess.SetProjectState(proj.Summary())
	sess.SetTracks(state.TrackNames())
	sess.SetInstruments(project.Instruments)
	if _, ok := sess.Musical(session.MusicalKeyTempo); !ok {
		sess.SetMusical(session.MusicalKeyTempo, state.Tempo)
	}
}

func busy(ws *workspace) error {
	if ws.executor.Running() {
		return errors.Wrap(errors.ErrBusy, "sequence executing")
	}
	return nil
}

func describe(seq toolcall.Sequence) string {
	return fmt.Sprintf("%d steps %v", len(seq), seq.Names())
}
