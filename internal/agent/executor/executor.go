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
// Package executor 顺序执行工具序列：参数守卫、限流、单步超时、失败恢复与熔断。
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"arrange-orchestrator/internal/agent/guard"
	"arrange-orchestrator/internal/agent/recovery"
	"arrange-orchestrator/internal/agent/toolcall"
	"arrange-orchestrator/internal/runtime/session"
	"arrange-orchestrator/pkg/config"
	"arrange-orchestrator/pkg/errors"
	"arrange-orchestrator/pkg/log"
	"arrange-orchestrator/pkg/metrics"
	"arrange-orchestrator/pkg/tracing"
)

// Options 执行器配置
type Options struct {
	StepTimeout time.Duration // 单步超时，<=0 默认 30s
	StepDelay   time.Duration // 步骤间延迟，<0 视为 0
	Policy      recovery.Policy
	Guard       *guard.Guard
	Limiter     *ToolRateLimiter
	Logger      *log.Logger
}

// OptionsFromConfig 由 executor 与 rate_limits 配置段构造
func OptionsFromConfig(cfg *config.Config) Options {
	policy := recovery.DefaultPolicy()
	if cfg.Executor.BreakerThreshold > 0 {
		policy.BreakerThreshold = cfg.Executor.BreakerThreshold
	}
	if cfg.Executor.RecoveryThreshold > 0 {
		policy.RecoveryThreshold = cfg.Executor.RecoveryThreshold
	}
	return Options{
		StepTimeout: config.ParseDuration(cfg.Executor.StepTimeout, config.DefaultStepTimeout),
		StepDelay:   config.ParseDuration(cfg.Executor.StepDelay, config.DefaultStepDelay),
		Policy:      policy,
		Guard:       guard.New(),
		Limiter:     NewToolRateLimiterFromConfig(cfg.RateLimits),
	}
}

// Executor 单个会话的序列执行器；同一时刻至多一个序列在执行
type Executor struct {
	runner toolcall.Runner
	opts   Options
	logger *log.Logger

	mu      sync.Mutex
	state   State
	step    int
	cancel  context.CancelFunc
	running bool
}

// New 创建执行器
func New(runner toolcall.Runner, opts Options) *Executor {
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = config.DefaultStepTimeout
	}
	if opts.StepDelay < 0 {
		opts.StepDelay = 0
	}
	if opts.Policy.BreakerThreshold <= 0 {
		opts.Policy = recovery.DefaultPolicy()
	}
	if opts.Guard == nil {
		opts.Guard = guard.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &Executor{runner: runner, opts: opts, logger: logger, state: StateIdle}
}

// State 当前状态与正在执行的步骤下标
func (e *Executor) State() (State, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.step
}

// Running 是否有序列正在执行
func (e *Executor) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Cancel 取消正在执行的序列；没有执行中的序列时返回 false
func (e *Executor) Cancel() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || e.cancel == nil {
		return false
	}
	e.cancel()
	return true
}

func (e *Executor) begin(ctx context.Context) (context.Context, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil, errors.Wrap(errors.ErrBusy, "sequence already executing")
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.running = true
	e.cancel = cancel
	e.state = StateExecuting
	e.step = 0
	return runCtx, nil
}

func (e *Executor) finish() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
	e.running = false
	e.cancel = nil
	e.state = StateIdle
	e.step = 0
}

func (e *Executor) setStep(i int) {
	e.mu.Lock()
	e.step = i
	e.mu.Unlock()
}

// Execute 顺序执行 seq；仅在已有序列执行中时返回 ErrBusy，其余失败体现在 Outcome 中
func (e *Executor) Execute(ctx context.Context, sess *session.Session, seq toolcall.Sequence) (*Outcome, error) {
	runCtx, err := e.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer e.finish()

	start := time.Now()
	runCtx, span := tracing.StartSequenceSpan(runCtx, sess.ID, len(seq))
	defer span.End()

	out := e.run(runCtx, sess, seq.Clone())
	out.DurationMs = time.Since(start).Milliseconds()
	out.Success = out.State == StateSucceeded

	metrics.SequenceTotal.WithLabelValues(string(out.State)).Inc()
	metrics.SequenceDuration.WithLabelValues(string(out.State)).Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("sequence.state", string(out.State)))
	if !out.Success {
		span.SetStatus(codes.Error, out.Summary)
	}
	e.logger.Info("序列执行结束",
		"session_id", sess.ID,
		"state", out.State,
		"steps", len(out.Trace),
		"failures", len(out.Failures),
		"duration_ms", out.DurationMs,
	)
	return out, nil
}

func (e *Executor) run(ctx context.Context, sess *session.Session, seq toolcall.Sequence) *Outcome {
	out := &Outcome{Results: []toolcall.Result{}, Trace: []TraceEntry{}}
	if len(seq) == 0 {
		out.State = StateFailed
		out.Summary = SummaryEmpty
		out.Error = SummaryEmpty
		return out
	}
	repeats := make(map[string]int)

	for i := 0; i < len(seq); {
		if ctx.Err() != nil {
			return cancelled(out)
		}
		e.setStep(i)
		call := seq[i]

		params, sanitized := e.opts.Guard.Check(call.Params, call.Name)
		if sanitized {
			e.logger.Warn("参数已修正", "tool", call.Name, "index", i, "kind", recovery.KindValidation)
			call.Params = params
			seq[i] = call
		}

		res, timedOut, dur, cancelledRun := e.dispatch(ctx, call, i)
		if cancelledRun {
			return cancelled(out)
		}
		out.Results = append(out.Results, res)
		out.Trace = append(out.Trace, TraceEntry{
			Index:      i,
			Tool:       call.Name,
			Origin:     call.OriginOrPlanned(),
			Success:    res.Success,
			Sanitized:  sanitized,
			Output:     res.Output,
			DurationMs: dur.Milliseconds(),
		})
		sess.AddObservation(call.Name, call.Params.ToMap(), res.Output, res.Success)

		if res.Success {
			mergeContext(sess, call)
			if i == len(seq)-1 {
				out.State = StateSucceeded
				out.Summary = SummarySucceeded
				return out
			}
			if !e.delay(ctx) {
				return cancelled(out)
			}
			i++
			continue
		}

		msg := res.Output
		if timedOut {
			msg = recovery.TimeoutMessage
		}
		cls := recovery.Classify(msg)
		count := sess.RecordFailure(call.Name, msg, cls.Kind)
		reps := 0
		if key, ok := e.opts.Policy.Match(call.Name, msg); ok {
			repeats[key]++
			reps = repeats[key]
		}
		verdict := e.opts.Policy.Evaluate(count, call.Name, msg, reps)
		metrics.StepFailTotal.WithLabelValues(call.Name, string(verdict.Kind)).Inc()
		out.Failures = append(out.Failures, Failure{
			Index:  i,
			Tool:   call.Name,
			Error:  msg,
			Kind:   verdict.Kind,
			Action: verdict.Action.String(),
		})
		e.logger.Warn("工具执行失败",
			"session_id", sess.ID,
			"tool", call.Name,
			"index", i,
			"error", msg,
			"error_count", count,
			"action", verdict.Action.String(),
		)

		switch verdict.Action {
		case recovery.ActionRecover:
			metrics.RecoveryTotal.WithLabelValues(call.Name).Inc()
			seq = insertRecovery(seq, i, verdict.Recovery)
			continue
		case recovery.ActionCircuitBreak:
			metrics.BreakerTripTotal.Inc()
			out.State = StateCircuitBroken
			out.Summary = fmt.Sprintf("Execution stopped due to excessive errors. Last error: %s", msg)
		default:
			out.State = StateFailed
			// 步骤号从 1 开始，与 FailedStep 一致
			out.Summary = fmt.Sprintf("Failed at step %d (%s): %s", i+1, call.Name, msg)
		}
		out.FailedStep = i + 1
		out.FailedTool = call.Name
		out.Error = msg
		out.ErrorKind = verdict.Kind
		return out
	}
	out.State = StateSucceeded
	out.Summary = SummarySucceeded
	return out
}

type dispatchResult struct {
	res toolcall.Result
}

// dispatch 在单步超时内执行调用；返回 (结果, 是否超时, 耗时, 是否被取消)
func (e *Executor) dispatch(ctx context.Context, call toolcall.Call, index int) (toolcall.Result, bool, time.Duration, bool) {
	ctx, span := tracing.StartStepSpan(ctx, call.Name, index, call.OriginOrPlanned())
	defer span.End()

	if e.opts.Limiter != nil {
		if err := e.opts.Limiter.Wait(ctx, call.Name); err != nil {
			return toolcall.Result{}, false, 0, true
		}
		defer e.opts.Limiter.Release(call.Name)
	}

	start := time.Now()
	stepCtx, cancel := context.WithTimeout(ctx, e.opts.StepTimeout)
	defer cancel()

	done := make(chan dispatchResult, 1)
	go func() {
		done <- dispatchResult{res: e.runner.RunTool(stepCtx, call)}
	}()

	select {
	case r := <-done:
		dur := time.Since(start)
		metrics.StepDuration.WithLabelValues(call.Name).Observe(dur.Seconds())
		if ctx.Err() != nil {
			return r.res, false, dur, true
		}
		if !r.res.Success && stepCtx.Err() == context.DeadlineExceeded {
			span.SetStatus(codes.Error, recovery.TimeoutMessage)
			return toolcall.Failure(call, recovery.TimeoutMessage), true, dur, false
		}
		if !r.res.Success {
			span.SetStatus(codes.Error, r.res.Output)
		}
		return r.res, false, dur, false
	case <-stepCtx.Done():
		dur := time.Since(start)
		if ctx.Err() != nil {
			return toolcall.Result{}, false, dur, true
		}
		span.SetStatus(codes.Error, recovery.TimeoutMessage)
		return toolcall.Failure(call, recovery.TimeoutMessage), true, dur, false
	}
}

// delay 步骤间等待，可被取消
func (e *Executor) delay(ctx context.Context) bool {
	if e.opts.StepDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(e.opts.StepDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func cancelled(out *Outcome) *Outcome {
	out.State = StateCancelled
	out.Summary = SummaryCancelled
	return out
}

// mergeContext 成功的调用回写执行上下文
func mergeContext(sess *session.Session, call toolcall.Call) {
	switch call.Name {
	case "set_tempo":
		if bpm, ok := call.Params.Float("bpm"); ok {
			sess.SetMusical(session.MusicalKeyTempo, bpm)
		}
	case "create_track":
		sess.AddRecentAction(session.ActionCreatedTrack)
		if name := call.Params.StringOr("name", ""); name != "" {
			sess.AddTrack(name)
		}
	case "write_notes":
		sess.AddRecentAction(session.ActionWroteNotes)
	}
}

// insertRecovery 在 i 之前插入恢复调用，并按需把第 i 步改指向替代轨道
func insertRecovery(seq toolcall.Sequence, i int, rec recovery.Recovery) toolcall.Sequence {
	failed := seq[i]
	if rec.RetargetTrack != "" {
		failed = retarget(failed, rec.RetargetTrack)
	}
	calls := rec.Calls.Clone()
	for j := range calls {
		calls[j].Origin = toolcall.OriginRecovery
	}
	out := make(toolcall.Sequence, 0, len(seq)+len(calls))
	out = append(out, seq[:i]...)
	out = append(out, calls...)
	out = append(out, failed)
	out = append(out, seq[i+1:]...)
	return out
}

func retarget(c toolcall.Call, track string) toolcall.Call {
	out := c.Clone()
	switch {
	case out.Params.Has("track"):
		out.Params.Set("track", track)
		if out.Params.Has("track_name") {
			out.Params.Set("track_name", track)
		}
	case out.Name == "create_track":
		out.Params.Set("name", track)
	default:
		out.Params.Set("track_name", track)
	}
	return out
}
