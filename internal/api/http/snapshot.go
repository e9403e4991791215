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
)

type captureRequest struct {
	Label string `json:"label"`
}

// CaptureSnapshot POST /api/sessions/:id/snapshots；执行中返回 409
func (h *Handler) CaptureSnapshot(ctx context.Context, c *app.RequestContext) {
	var req captureRequest
	if len(c.Request.Body()) > 0 {
		if err := c.BindJSON(&req); err != nil {
			badRequest(c, "invalid body: "+err.Error())
			return
		}
	}
	if req.Label == "" {
		req.Label = "manual"
	}
	snap, err := h.orch.CaptureSnapshot(ctx, c.Param("id"), req.Label)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, snap)
}

// ListSnapshots GET /api/sessions/:id/snapshots
func (h *Handler) ListSnapshots(ctx context.Context, c *app.RequestContext) {
	list, err := h.orch.ListSnapshots(ctx, c.Param("id"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]any{"snapshots": list, "total": len(list)})
}

// GetSnapshot GET /api/sessions/:id/snapshots/:sid
func (h *Handler) GetSnapshot(ctx context.Context, c *app.RequestContext) {
	snap, err := h.orch.GetSnapshot(ctx, c.Param("id"), c.Param("sid"))
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, snap)
}

// DiffSnapshots GET /api/sessions/:id/diff?from=&to=
func (h *Handler) DiffSnapshots(ctx context.Context, c *app.RequestContext) {
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		badRequest(c, "from and to are required")
		return
	}
	delta, err := h.orch.DiffSnapshots(ctx, c.Param("id"), from, to)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, delta)
}

// RevertSnapshot POST /api/sessions/:id/snapshots/:sid/revert；执行中返回 409
func (h *Handler) RevertSnapshot(ctx context.Context, c *app.RequestContext) {
	sid := c.Param("sid")
	if err := h.orch.RevertSnapshot(ctx, c.Param("id"), sid); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]string{"status": "reverted", "snapshot_id": sid})
}
