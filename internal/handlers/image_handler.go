// Package handlers wires the Ingest Gateway's HTTP surface (spec §6)
// onto the Catalog, Work Queue, Object Store, and quota collaborators:
// one struct per resource, each wrapping its dependencies with methods
// bound as gin.HandlerFunc.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lore-anchor/protect/internal/app"
	"github.com/lore-anchor/protect/internal/apperr"
	"github.com/lore-anchor/protect/internal/auth"
	"github.com/lore-anchor/protect/internal/catalog"
	"github.com/lore-anchor/protect/internal/queue"
	"github.com/lore-anchor/protect/internal/quota"
	"github.com/lore-anchor/protect/internal/utils"
	"github.com/lore-anchor/protect/internal/validate"
)

// ImageHandler implements upload/list/get/delete/track_download (spec §4.1).
type ImageHandler struct {
	ctx *app.Context
}

func NewImageHandler(ctx *app.Context) *ImageHandler {
	return &ImageHandler{ctx: ctx}
}

// Upload implements POST /images/upload (spec §4.1 "upload").
func (h *ImageHandler) Upload(c *gin.Context) {
	ownerID := auth.OwnerID(c)

	// The billing/subscription state machine is an out-of-scope external
	// collaborator (spec §1); every owner is treated as free tier absent
	// one, so the monthly cap always applies.
	if err := h.ctx.Quota.Allow(c.Request.Context(), ownerID, quota.TierFree, time.Now()); err != nil {
		writeError(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "missing multipart file", err)
		return
	}
	if fileHeader.Size > h.ctx.Config.MaxUploadBytes {
		writeError(c, apperr.New(apperr.InvalidInput, "too_large"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		utils.SendInternalError(c, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		utils.SendInternalError(c, err)
		return
	}

	declaredMIME := fileHeader.Header.Get("Content-Type")
	ext, err := validate.Upload(data, declaredMIME)
	if err != nil {
		writeError(c, err)
		return
	}

	imageID := uuid.NewString()
	originalKey := fmt.Sprintf("raw/%s/%s.%s", ownerID, uuid.NewString(), ext)

	if err := h.ctx.Store.PutObject(c.Request.Context(), originalKey, data, declaredMIME); err != nil {
		utils.SendInternalError(c, err)
		return
	}

	img := &catalog.Image{
		ImageID:     imageID,
		OwnerID:     ownerID,
		OriginalKey: originalKey,
	}
	if err := h.ctx.Repo.CreateImage(c.Request.Context(), img); err != nil {
		// Object Store write already landed; an orphan blob is acceptable
		// and will be reaped by the store's own lifecycle (spec §4.1
		// "compensation on partial failure").
		utils.SendInternalError(c, err)
		return
	}

	env := queue.Envelope{ImageID: imageID, StorageKey: originalKey}
	if err := h.ctx.Queue.Push(c.Request.Context(), env); err != nil {
		// Both writes landed but enqueue failed: mark the image failed
		// rather than leave it pending with nothing to process it
		// (spec §4.1 "the gateway never leaves an Image in pending
		// without an enqueued envelope").
		_ = h.ctx.Repo.UpdateStatus(c.Request.Context(), imageID, catalog.StatusFailed)
		utils.SendInternalError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"image_id": imageID, "status": string(catalog.StatusPending)})
}

// List implements GET /images/ (spec §4.1 "list").
func (h *ImageHandler) List(c *gin.Context) {
	ownerID := auth.OwnerID(c)
	page, pageSize := utils.GetPagination(c)

	images, total, err := h.ctx.Repo.ListImagesByOwner(c.Request.Context(), ownerID, page, pageSize)
	if err != nil {
		utils.SendInternalError(c, err)
		return
	}

	hasMore := page*pageSize < total
	c.JSON(http.StatusOK, gin.H{
		"images":    images,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"has_more":  hasMore,
	})
}

// Get implements GET /images/{image_id} (spec §4.1 "get").
func (h *ImageHandler) Get(c *gin.Context) {
	ownerID := auth.OwnerID(c)
	imageID := c.Param("image_id")

	img, err := h.loadOwned(c, imageID, ownerID)
	if err != nil {
		writeError(c, err)
		return
	}

	view := gin.H{
		"image_id":       img.ImageID,
		"owner_id":       img.OwnerID,
		"status":         img.Status,
		"watermark_id":   img.WatermarkID,
		"download_count": img.DownloadCount,
		"created_at":     img.CreatedAt,
		"updated_at":     img.UpdatedAt,
	}

	// Supplemented feature (spec §4.5): the signed manifest is
	// restored on the read path when the image has completed.
	if img.Status == catalog.StatusCompleted {
		view["provenance_manifest"] = img.ProvenanceManifest
	}

	if img.ProtectedKey != nil {
		url, err := h.ctx.Store.PresignGet(c.Request.Context(), *img.ProtectedKey)
		if err != nil {
			utils.SendInternalError(c, err)
			return
		}
		view["protected_url"] = url
	}

	c.JSON(http.StatusOK, view)
}

// Delete implements DELETE /images/{image_id} (spec §4.1 "delete").
func (h *ImageHandler) Delete(c *gin.Context) {
	ownerID := auth.OwnerID(c)
	imageID := c.Param("image_id")

	img, err := h.loadOwned(c, imageID, ownerID)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := h.ctx.Repo.DeleteImage(c.Request.Context(), img.ImageID); err != nil {
		utils.SendInternalError(c, err)
		return
	}

	// Best-effort blob cleanup; never raises if it fails (spec §4.1).
	if img.OriginalKey != "" {
		_ = h.ctx.Store.DeleteObject(c.Request.Context(), img.OriginalKey)
	}
	if img.ProtectedKey != nil {
		_ = h.ctx.Store.DeleteObject(c.Request.Context(), *img.ProtectedKey)
	}

	c.JSON(http.StatusOK, gin.H{"image_id": img.ImageID, "deleted": true})
}

// TrackDownload implements POST /images/{image_id}/downloaded (spec §4.1
// "track_download"). Scope is owner-only (spec §9 Open Question).
func (h *ImageHandler) TrackDownload(c *gin.Context) {
	ownerID := auth.OwnerID(c)
	imageID := c.Param("image_id")

	img, err := h.loadOwned(c, imageID, ownerID)
	if err != nil {
		writeError(c, err)
		return
	}

	count, err := h.ctx.Repo.IncrementDownloadCount(c.Request.Context(), img.ImageID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"image_id": img.ImageID, "download_count": count})
}

// loadOwned fetches an image and enforces the owner_id match (spec §4.1
// "get": NotFound if absent, Forbidden if owner mismatches).
func (h *ImageHandler) loadOwned(c *gin.Context, imageID, ownerID string) (*catalog.Image, error) {
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

// writeError maps the apperr taxonomy onto the HTTP surface (spec §6/§7).
func writeError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		utils.SendInternalError(c, err)
		return
	}

	switch appErr.Kind {
	case apperr.NotFound:
		utils.SendError(c, http.StatusNotFound, appErr.Msg, nil)
	case apperr.Forbidden:
		utils.SendError(c, http.StatusForbidden, appErr.Msg, nil)
	case apperr.Unauthenticated:
		utils.SendError(c, http.StatusUnauthorized, appErr.Msg, nil)
	case apperr.InvalidInput:
		status := http.StatusBadRequest
		switch appErr.Msg {
		case "too_large":
			status = http.StatusRequestEntityTooLarge
		case "unsupported_type", "content_mismatch":
			status = http.StatusUnsupportedMediaType
		}
		utils.SendError(c, status, appErr.Msg, nil)
	case apperr.QuotaExceeded:
		utils.SendError(c, http.StatusTooManyRequests, appErr.Msg, nil)
	case apperr.RateLimited:
		utils.SendError(c, http.StatusTooManyRequests, appErr.Msg, nil)
	case apperr.Conflict:
		utils.SendError(c, http.StatusConflict, appErr.Msg, nil)
	case apperr.UnprocessableEntity:
		utils.SendError(c, http.StatusUnprocessableEntity, appErr.Msg, nil)
	default:
		// Detail is suppressed from the client (spec §7 "a single
		// non-leaking error string"); the cause is still recorded on the
		// gin context for the observability middleware to log.
		c.Error(appErr)
		utils.SendError(c, http.StatusInternalServerError, "internal error", nil)
	}
}
