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
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"arrange-orchestrator/internal/agent/toolcall"
)

// CreateSession POST /api/sessions
func (h *Handler) CreateSession(ctx context.Context, c *app.RequestContext) {
	s, err := h.orch.CreateSession(ctx)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, toSessionInfo(s))
}

// ListSessions GET /api/sessions
func (h *Handler) ListSessions(ctx context.Context, c *app.RequestContext) {
	list, err := h.orch.ListSessions(ctx)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	out := make([]sessionInfo, 0, len(list))
	for _, s := range list {
		out = append(out, toSessionInfo(s))
	}
	c.JSON(consts.StatusOK, map[string]any{"sessions": out, "total": len(out)})
}

// GetSession GET /api/sessions/:id
func (h *Handler) GetSession(ctx context.Context, c *app.RequestContext) {
	s, err := h.orch.Session(ctx, c.Param("id"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, toSessionInfo(s))
}

// DeleteSession DELETE /api/sessions/:id
func (h *Handler) DeleteSession(ctx context.Context, c *app.RequestContext) {
	if err := h.orch.DeleteSession(ctx, c.Param("id")); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]string{"status": "deleted"})
}

// ResetSession POST /api/sessions/:id/reset
func (h *Handler) ResetSession(ctx context.Context, c *app.RequestContext) {
	s, err := h.orch.ResetSession(ctx, c.Param("id"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, toSessionInfo(s))
}

// GetContext GET /api/sessions/:id/context
func (h *Handler) GetContext(ctx context.Context, c *app.RequestContext) {
	view, err := h.orch.Context(ctx, c.Param("id"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, view)
}

// GetProject GET /api/sessions/:id/project
func (h *Handler) GetProject(ctx context.Context, c *app.RequestContext) {
	proj, err := h.orch.Project(ctx, c.Param("id"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, proj.State())
}

// GetStatus GET /api/sessions/:id/status
func (h *Handler) GetStatus(ctx context.Context, c *app.RequestContext) {
	state, step, err := h.orch.Status(ctx, c.Param("id"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]any{"state": state, "step": step})
}

type intentRequest struct {
	Message string `json:"message"`
}

// ProcessIntent POST /api/sessions/:id/intents
func (h *Handler) ProcessIntent(ctx context.Context, c *app.RequestContext) {
	var req intentRequest
	if err := c.BindJSON(&req); err != nil || req.Message == "" {
		badRequest(c, "message is required")
		return
	}
	res, err := h.orch.ProcessIntent(ctx, c.Param("id"), req.Message)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, res)
}

type sequenceRequest struct {
	Sequence toolcall.Sequence `json:"tool_sequence"`
	Optimize bool              `json:"optimize"`
}

// ExecuteSequence POST /api/sessions/:id/sequences
func (h *Handler) ExecuteSequence(ctx context.Context, c *app.RequestContext) {
	var req sequenceRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(c, "invalid tool_sequence: "+err.Error())
		return
	}
	out, err := h.orch.ExecuteSequence(ctx, c.Param("id"), req.Sequence, req.Optimize)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, out)
}

// Cancel POST /api/sessions/:id/cancel
func (h *Handler) Cancel(ctx context.Context, c *app.RequestContext) {
	cancelled, err := h.orch.Cancel(ctx, c.Param("id"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]bool{"cancelled": cancelled})
}

type roleRequest struct {
	Role    string         `json:"role"`
	Context map[string]any `json:"context"`
}

// SwitchRole POST /api/sessions/:id/role
func (h *Handler) SwitchRole(ctx context.Context, c *app.RequestContext) {
	var req roleRequest
	if err := c.BindJSON(&req); err != nil || req.Role == "" {
		badRequest(c, "role is required")
		return
	}
	if err := h.orch.SwitchRole(ctx, c.Param("id"), req.Role, req.Context); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]string{"role": req.Role})
}

type notesRequest struct {
	Notes     []any `json:"notes"`
	ClipIndex int   `json:"clip_index"`
}

// WriteNotes POST /api/sessions/:id/notes，写到当前角色的默认轨道
func (h *Handler) WriteNotes(ctx context.Context, c *app.RequestContext) {
	var req notesRequest
	if err := c.BindJSON(&req); err != nil || len(req.Notes) == 0 {
		badRequest(c, "notes are required")
		return
	}
	out, err := h.orch.WriteNotesDirect(ctx, c.Param("id"), req.Notes, req.ClipIndex)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, out)
}
