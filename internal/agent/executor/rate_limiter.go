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
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"arrange-orchestrator/pkg/config"
	"arrange-orchestrator/pkg/metrics"
)

// ToolLimitConfig 单个 Tool 的限流配置
type ToolLimitConfig struct {
	QPS           float64 `mapstructure:"qps"`            // 每秒调用数限制
	MaxConcurrent int     `mapstructure:"max_concurrent"` // 最大并发数
	Burst         int     `mapstructure:"burst"`          // 令牌桶容量（可选，默认为 QPS）
}

// ToolRateLimiter Tool 级别的限流器，支持 QPS 与并发控制
type ToolRateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*toolLimiter // toolName -> limiter
	defaults *ToolLimitConfig        // 未配置工具使用的默认值，nil 表示不限流
}

type toolLimiter struct {
	rateLimiter *rate.Limiter // QPS 限流器
	semaphore   chan struct{} // 并发控制
	config      ToolLimitConfig
}

// NewToolRateLimiter 创建限流器；defaults 为 nil 时未配置的工具不限流
func NewToolRateLimiter(configs map[string]ToolLimitConfig, defaults *ToolLimitConfig) *ToolRateLimiter {
	limiter := &ToolRateLimiter{
		limiters: make(map[string]*toolLimiter),
		defaults: defaults,
	}
	for toolName, cfg := range configs {
		limiter.addToolLimiter(toolName, cfg)
	}
	return limiter
}

// NewToolRateLimiterFromConfig 由 rate_limits 配置段创建
func NewToolRateLimiterFromConfig(cfg config.RateLimitsConfig) *ToolRateLimiter {
	configs := make(map[string]ToolLimitConfig, len(cfg.Tools))
	for name, c := range cfg.Tools {
		configs[name] = ToolLimitConfig{QPS: c.QPS, MaxConcurrent: c.MaxConcurrent, Burst: c.Burst}
	}
	return NewToolRateLimiter(configs, nil)
}

func (t *ToolRateLimiter) addToolLimiter(toolName string, cfg ToolLimitConfig) *toolLimiter {
	if cfg.Burst == 0 {
		cfg.Burst = max(1, int(cfg.QPS))
	}
	limiter := &toolLimiter{config: cfg}
	if cfg.QPS > 0 {
		limiter.rateLimiter = rate.NewLimiter(rate.Limit(cfg.QPS), cfg.Burst)
	}
	if cfg.MaxConcurrent > 0 {
		limiter.semaphore = make(chan struct{}, cfg.MaxConcurrent)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.limiters[toolName]; ok {
		return existing
	}
	t.limiters[toolName] = limiter
	return limiter
}

func (t *ToolRateLimiter) get(toolName string) *toolLimiter {
	t.mu.RLock()
	limiter, exists := t.limiters[toolName]
	t.mu.RUnlock()
	if exists {
		return limiter
	}
	if t.defaults == nil {
		return nil
	}
	return t.addToolLimiter(toolName, *t.defaults)
}

// Wait 等待直到允许执行（阻塞）
func (t *ToolRateLimiter) Wait(ctx context.Context, toolName string) error {
	limiter := t.get(toolName)
	if limiter == nil {
		return nil
	}
	start := time.Now()
	defer func() {
		metrics.RateLimitWait.WithLabelValues(toolName).Observe(time.Since(start).Seconds())
	}()

	// QPS 限流
	if limiter.rateLimiter != nil {
		if err := limiter.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait failed: %w", err)
		}
	}

	// 并发限流（acquire semaphore）
	if limiter.semaphore != nil {
		select {
		case limiter.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Release 释放并发 slot（执行完成后调用）
func (t *ToolRateLimiter) Release(toolName string) {
	t.mu.RLock()
	limiter, exists := t.limiters[toolName]
	t.mu.RUnlock()

	if exists && limiter.semaphore != nil {
		select {
		case <-limiter.semaphore:
		default:
		}
	}
}

// GetStats 获取限流统计信息
func (t *ToolRateLimiter) GetStats(toolName string) map[string]interface{} {
	t.mu.RLock()
	limiter, exists := t.limiters[toolName]
	t.mu.RUnlock()

	if !exists {
		return nil
	}
	stats := map[string]interface{}{
		"qps":            limiter.config.QPS,
		"max_concurrent": limiter.config.MaxConcurrent,
	}
	if limiter.semaphore != nil {
		stats["current_concurrent"] = len(limiter.semaphore)
		stats["available_slots"] = cap(limiter.semaphore) - len(limiter.semaphore)
	}
	return stats
}
