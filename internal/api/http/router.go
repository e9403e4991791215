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

package http

import (
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/app/server"

	"arrange-orchestrator/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
}

// NewRouter 创建 HTTP 路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{handler: handler, middleware: mw}
}

// Build 创建 Hertz 实例并注册路由，opts 用于追加 tracer 等服务端选项
func (r *Router) Build(addr string, opts ...hertzconfig.Option) *server.Hertz {
	opts = append([]hertzconfig.Option{server.WithHostPorts(addr)}, opts...)
	h := server.New(opts...)
	h.Use(r.middleware.Recovery(), r.middleware.AccessLog(), r.middleware.CORS())
	r.register(h)
	return h
}

func (r *Router) register(h *server.Hertz) {
	h.GET("/metrics", r.handler.Metrics)

	api := h.Group("/api")
	api.GET("/health", r.handler.HealthCheck)
	api.GET("/tools", r.handler.ListTools)
	api.GET("/capabilities", r.handler.ListCapabilities)

	sessions := api.Group("/sessions")
	{
		sessions.POST("", r.handler.CreateSession)
		sessions.GET("", r.handler.ListSessions)
		sessions.GET("/:id", r.handler.GetSession)
		sessions.DELETE("/:id", r.handler.DeleteSession)
		sessions.POST("/:id/reset", r.handler.ResetSession)
		sessions.GET("/:id/context", r.handler.GetContext)
		sessions.GET("/:id/project", r.handler.GetProject)
		sessions.GET("/:id/status", r.handler.GetStatus)

		sessions.POST("/:id/intents", r.handler.ProcessIntent)
		sessions.POST("/:id/sequences", r.handler.ExecuteSequence)
		sessions.POST("/:id/cancel", r.handler.Cancel)
		sessions.POST("/:id/role", r.handler.SwitchRole)
		sessions.POST("/:id/notes", r.handler.WriteNotes)

		sessions.POST("/:id/snapshots", r.handler.CaptureSnapshot)
		sessions.GET("/:id/snapshots", r.handler.ListSnapshots)
		sessions.GET("/:id/snapshots/:sid", r.handler.GetSnapshot)
		sessions.POST("/:id/snapshots/:sid/revert", r.handler.RevertSnapshot)
		sessions.GET("/:id/diff", r.handler.DiffSnapshots)
	}
}
