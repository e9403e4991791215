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
package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// LimitConfig Provider 请求限流配置
type LimitConfig struct {
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"` // 每分钟请求数，<=0 不限
	MaxConcurrent     int     `mapstructure:"max_concurrent"`      // 最大并发请求数，<=0 不限
}

// RateLimiter 单个 Provider 的 RPM + 并发限流
type RateLimiter struct {
	requestLimiter *rate.Limiter
	semaphore      chan struct{}
	config         LimitConfig
}

// NewRateLimiter 创建限流器
func NewRateLimiter(cfg LimitConfig) *RateLimiter {
	l := &RateLimiter{config: cfg}
	if cfg.RequestsPerMinute > 0 {
		rps := cfg.RequestsPerMinute / 60.0
		burst := int(rps * 2) // burst = 2 秒的配额
		if burst < 1 {
			burst = 1
		}
		l.requestLimiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	if cfg.MaxConcurrent > 0 {
		l.semaphore = make(chan struct{}, cfg.MaxConcurrent)
	}
	return l
}

// Wait 阻塞直到可以发起请求
func (l *RateLimiter) Wait(ctx context.Context) error {
	if l.requestLimiter != nil {
		if err := l.requestLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("request rate limit wait failed: %w", err)
		}
	}
	if l.semaphore != nil {
		select {
		case l.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Release 释放并发 slot
func (l *RateLimiter) Release() {
	if l.semaphore == nil {
		return
	}
	select {
	case <-l.semaphore:
	default:
	}
}
