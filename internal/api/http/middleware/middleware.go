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

package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/middlewares/server/recovery"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"arrange-orchestrator/pkg/config"
)

// Middleware 中间件管理器
type Middleware struct {
	cors config.CORSConfig
}

// NewMiddleware 创建中间件管理器
func NewMiddleware(cors config.CORSConfig) *Middleware {
	return &Middleware{cors: cors}
}

// CORS 跨域中间件，未启用时直接放行
func (m *Middleware) CORS() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if !m.cors.Enable {
			c.Next(ctx)
			return
		}
		origin := m.allowOrigin(string(c.GetHeader("Origin")))
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")
			c.Header("Access-Control-Max-Age", "86400")
		}
		if string(c.Method()) == consts.MethodOptions {
			c.AbortWithStatus(consts.StatusNoContent)
			return
		}
		c.Next(ctx)
	}
}

func (m *Middleware) allowOrigin(origin string) string {
	if len(m.cors.AllowOrigins) == 0 {
		return "*"
	}
	for _, o := range m.cors.AllowOrigins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// AccessLog 请求日志，经 hlog 输出
func (m *Middleware) AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)
		hlog.CtxInfof(ctx, "%s %s %d %s", c.Method(), c.Path(), c.Response.StatusCode(), time.Since(start))
	}
}

// Recovery 捕获 handler panic 并返回 500
func (m *Middleware) Recovery() app.HandlerFunc {
	return recovery.Recovery()
}
