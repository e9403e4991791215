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
	"bytes"
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"arrange-orchestrator/internal/agent"
	"arrange-orchestrator/internal/runtime/session"
	"arrange-orchestrator/pkg/errors"
	"arrange-orchestrator/pkg/metrics"
)

// Version 服务版本，构建时可通过 -ldflags 覆盖
var Version = "0.1.0"

// Handler HTTP 处理器
type Handler struct {
	orch *agent.Orchestrator
}

// NewHandler 创建 HTTP 处理器
func NewHandler(orch *agent.Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// sessionInfo 会话摘要
type sessionInfo struct {
	ID         string    `json:"session_id"`
	ContextID  string    `json:"context_id"`
	Role       string    `json:"role,omitempty"`
	ErrorCount int       `json:"error_count"`
	Messages   int       `json:"messages"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toSessionInfo(s *session.Session) sessionInfo {
	return sessionInfo{
		ID:         s.ID,
		ContextID:  s.ContextID(),
		Role:       s.Role(),
		ErrorCount: s.ErrorCount(),
		Messages:   len(s.CopyMessages()),
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

// statusOf 将哨兵错误映射为 HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return consts.StatusNotFound
	case errors.Is(err, errors.ErrInvalidArg):
		return consts.StatusBadRequest
	case errors.Is(err, errors.ErrBusy):
		return consts.StatusConflict
	case errors.Is(err, errors.ErrUnavailable):
		return consts.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return consts.StatusRequestTimeout
	}
	return consts.StatusInternalServerError
}

func writeError(ctx context.Context, c *app.RequestContext, err error) {
	status := statusOf(err)
	if status == consts.StatusInternalServerError {
		hlog.CtxErrorf(ctx, "%s %s failed: %v", c.Method(), c.Path(), err)
	}
	c.JSON(status, map[string]string{"error": err.Error()})
}

func badRequest(c *app.RequestContext, msg string) {
	c.JSON(consts.StatusBadRequest, map[string]string{"error": msg})
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	body := map[string]any{
		"status":    "ok",
		"service":   "arrange-orchestrator",
		"version":   Version,
		"timestamp": time.Now().Unix(),
	}
	if h.orch != nil {
		body["planner"] = h.orch.Planner().Name()
	}
	c.JSON(consts.StatusOK, body)
}

// Metrics Prometheus 文本格式
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// ListTools 工具描述
func (h *Handler) ListTools(ctx context.Context, c *app.RequestContext) {
	schemas := h.orch.Registry().Schemas()
	c.JSON(consts.StatusOK, map[string]any{"tools": schemas, "total": len(schemas)})
}

// ListCapabilities 能力图条目
func (h *Handler) ListCapabilities(ctx context.Context, c *app.RequestContext) {
	caps := h.orch.Graph().List()
	c.JSON(consts.StatusOK, map[string]any{"capabilities": caps, "total": len(caps)})
}
