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
	"time"

	"arrange-orchestrator/pkg/metrics"
)

// RateLimitedClient 包装任意 LLM Client，在真实调用前执行限流
type RateLimitedClient struct {
	inner   Client
	limiter *RateLimiter
}

// NewRateLimitedClient 创建带限流的客户端；limiter 为 nil 时退化为直接调用
func NewRateLimitedClient(inner Client, limiter *RateLimiter) *RateLimitedClient {
	return &RateLimitedClient{inner: inner, limiter: limiter}
}

// ChatWithContext 实现 Client
func (c *RateLimitedClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	if c.limiter != nil {
		start := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
		metrics.RateLimitWait.WithLabelValues("llm:" + c.inner.Provider()).Observe(time.Since(start).Seconds())
		defer c.limiter.Release()
	}
	return c.inner.ChatWithContext(ctx, messages, options)
}

// Model 返回底层 Client 的模型名称
func (c *RateLimitedClient) Model() string { return c.inner.Model() }

// Provider 返回底层 Client 的提供商名称
func (c *RateLimitedClient) Provider() string { return c.inner.Provider() }

// SetModel 代理到底层 Client
func (c *RateLimitedClient) SetModel(model string) { c.inner.SetModel(model) }

// SetAPIKey 代理到底层 Client
func (c *RateLimitedClient) SetAPIKey(apiKey string) { c.inner.SetAPIKey(apiKey) }
