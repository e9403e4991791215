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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"

	"arrange-orchestrator/internal/model/llm"
	"arrange-orchestrator/pkg/config"
	"arrange-orchestrator/pkg/log"
	"arrange-orchestrator/pkg/metrics"
	"arrange-orchestrator/pkg/tracing"
)

// DefaultMaxRetries 默认尝试次数
const DefaultMaxRetries = 3

// LLMPlanner 基于 OpenAI 兼容对话接口的规划器
type LLMPlanner struct {
	client     llm.Client
	maxRetries int
	backoff    time.Duration
	logger     *log.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// LLMOptions LLMPlanner 配置
type LLMOptions struct {
	MaxRetries int
	Backoff    time.Duration
	Logger     *log.Logger
}

// NewLLMPlanner 创建规划器；client 为 nil 时每次规划都返回失败
func NewLLMPlanner(client llm.Client, opts LLMOptions) *LLMPlanner {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &LLMPlanner{
		client:     client,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		logger:     logger,
		sleep:      sleepCtx,
	}
}

// Name 实现 Planner
func (p *LLMPlanner) Name() string { return "llm" }

// Plan 实现 Planner：第 n 次失败后等待 n*backoff 再重试
func (p *LLMPlanner) Plan(ctx context.Context, req Request) (*Response, error) {
	if p.client == nil {
		metrics.PlannerRequestTotal.WithLabelValues(p.Name(), "error").Inc()
		return failure(), nil
	}
	messages := p.buildMessages(req)
	opts := llm.GenerateOptions{MaxTokens: 4096, Temperature: 0.3, JSONMode: true}

	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		resp, err := p.attempt(ctx, messages, opts, attempt)
		if err == nil {
			metrics.PlannerRequestTotal.WithLabelValues(p.Name(), "ok").Inc()
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Warn("规划请求失败", "attempt", attempt, "max_retries", p.maxRetries, "error", err)
		if attempt == p.maxRetries {
			break
		}
		metrics.PlannerRequestTotal.WithLabelValues(p.Name(), "retry").Inc()
		if err := p.sleep(ctx, time.Duration(attempt)*p.backoff); err != nil {
			return nil, err
		}
	}
	metrics.PlannerRequestTotal.WithLabelValues(p.Name(), "error").Inc()
	return failure(), nil
}

func (p *LLMPlanner) attempt(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions, attempt int) (*Response, error) {
	ctx, span := tracing.StartPlannerSpan(ctx, p.Name(), attempt)
	defer span.End()
	reply, err := p.client.ChatWithContext(ctx, messages, opts)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("planner LLM 调用失败: %w", err)
	}
	resp, err := ParseReply(reply)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return resp, nil
}

const systemPrompt = `You are an AI music producer with complete access to a multi-track arrangement.
Your task is to orchestrate the creation of music using the available tools.
Timing is in ticks: 192 ticks per bar in 4/4, 48 ticks per beat.

AVAILABLE TOOLS (JSON):
%s

AVAILABLE INSTRUMENTS:
%s

Respond with a single JSON object only:
{
  "analysis": {"musical_style": "...", "tempo": 120, "key": "...", "mood": "...", "complexity": "..."},
  "orchestration_plan": [
    {"step": 1, "tool": "exact_tool_name", "params": {"param_name": "value"}, "reasoning": "why"}
  ],
  "expected_outcome": "description of what will be created"
}
Use exact tool names and create tracks before writing clips or notes on them.`

func (p *LLMPlanner) buildMessages(req Request) []llm.Message {
	toolsDesc := string(req.ToolsJSON)
	if toolsDesc == "" {
		toolsDesc = "[]"
	}
	instruments := strings.Join(req.Instruments, ", ")
	if instruments == "" {
		instruments = "(none)"
	}
	messages := []llm.Message{{Role: "system", Content: fmt.Sprintf(systemPrompt, toolsDesc, instruments)}}
	for _, h := range req.History {
		messages = append(messages, llm.Message{Role: h.Role, Content: h.Content})
	}
	var b strings.Builder
	b.WriteString("USER REQUEST: \"")
	b.WriteString(req.Goal)
	b.WriteString("\"\n")
	if req.Role != "" {
		b.WriteString("CURRENT ROLE: ")
		b.WriteString(req.Role)
		b.WriteString("\n")
	}
	if req.Context != nil {
		if raw, err := json.Marshal(req.Context); err == nil {
			b.WriteString("EXECUTION CONTEXT: ")
			b.Write(raw)
			b.WriteString("\n")
		}
	}
	messages = append(messages, llm.Message{Role: "user", Content: b.String()})
	return messages
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// New 按 planner 配置创建规划器：type=rule 使用规则规划器，否则使用 LLM
func New(cfg config.PlannerConfig, logger *log.Logger) (Planner, error) {
	switch cfg.Type {
	case "rule":
		return NewRulePlanner(), nil
	case "", "llm", "openai", "qwen":
	default:
		return nil, fmt.Errorf("不支持的 planner 类型: %s", cfg.Type)
	}
	opts := LLMOptions{
		MaxRetries: cfg.MaxRetries,
		Backoff:    config.ParseDuration(cfg.Backoff, config.DefaultBackoff),
		Logger:     logger,
	}
	if cfg.APIKey == "" {
		// 缺少 key 时照常启动，规划请求返回配置提示
		if logger != nil {
			logger.Warn("未配置 planner api_key，意图请求将返回失败")
		}
		return NewLLMPlanner(nil, opts), nil
	}
	provider := cfg.Type
	if provider == "llm" {
		provider = "openai"
	}
	client, err := llm.NewClient(provider, cfg.Model, cfg.APIKey, cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if oc, ok := client.(*llm.OpenAIClient); ok && cfg.Timeout != "" {
		oc.SetTimeout(config.ParseDuration(cfg.Timeout, 60*time.Second))
	}
	if cfg.RequestsPerMinute > 0 || cfg.MaxConcurrent > 0 {
		limiter := llm.NewRateLimiter(llm.LimitConfig{
			RequestsPerMinute: float64(cfg.RequestsPerMinute),
			MaxConcurrent:     cfg.MaxConcurrent,
		})
		client = llm.NewRateLimitedClient(client, limiter)
	}
	return NewLLMPlanner(client, opts), nil
}
