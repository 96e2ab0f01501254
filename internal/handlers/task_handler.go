package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lore-anchor/protect/internal/app"
	"github.com/lore-anchor/protect/internal/apperr"
	"github.com/lore-anchor/protect/internal/auth"
	"github.com/lore-anchor/protect/internal/catalog"
	"github.com/lore-anchor/protect/internal/quota"
	"github.com/lore-anchor/protect/internal/queue"
	"github.com/lore-anchor/protect/internal/utils"
)

// TaskHandler implements the status/retry plane (spec §4.1, §6).
type TaskHandler struct {
	ctx *app.Context
}

func NewTaskHandler(ctx *app.Context) *TaskHandler {
	return &TaskHandler{ctx: ctx}
}

// Status implements GET /tasks/{image_id}/status.
func (h *TaskHandler) Status(c *gin.Context) {
	ownerID := auth.OwnerID(c)
	imageID := c.Param("image_id")

	img, err := h.loadOwned(c, imageID, ownerID)
	if err != nil {
		writeError(c, err)
		return
	}

	task, err := h.ctx.Repo.LatestTaskForImage(c.Request.Context(), img.ImageID)
	if err != nil {
		utils.SendInternalError(c, err)
		return
	}

	resp := gin.H{"image_id": img.ImageID, "status": img.Status}
	if task != nil {
		resp["error_log"] = task.ErrorLog
		resp["started_at"] = task.StartedAt
		resp["completed_at"] = task.CompletedAt
	}
	c.JSON(http.StatusOK, resp)
}

// Retry implements POST /tasks/{image_id}/retry (spec §4.1 "retry").
func (h *TaskHandler) Retry(c *gin.Context) {
	ownerID := auth.OwnerID(c)
	imageID := c.Param("image_id")

	img, err := h.loadOwned(c, imageID, ownerID)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := h.ctx.Quota.Allow(c.Request.Context(), ownerID, quota.TierFree, time.Now()); err != nil {
		writeError(c, err)
		return
	}

	if err := h.ctx.Repo.SetPending(c.Request.Context(), img.ImageID); err != nil {
		writeError(c, err)
		return
	}

	env := queue.Envelope{ImageID: img.ImageID, StorageKey: img.OriginalKey}
	if err := h.ctx.Queue.Push(c.Request.Context(), env); err != nil {
		utils.SendInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"image_id": img.ImageID, "status": string(catalog.StatusPending), "queued": true})
}

func (h *TaskHandler) loadOwned(c *gin.Context, imageID, ownerID string) (*catalog.Image, error) {
	img, err := h.ctx.Repo.GetImage(c.Request.Context(), imageID)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, apperr.New(apperr.NotFound, "image not found")
	}
	if img.OwnerID != ownerID {
		return nil, apperr.New(apperr.Forbidden, "image belongs to a different owner")
	}
	return img, nil
}
