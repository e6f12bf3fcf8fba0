package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"sellhub/storage/internal/models"
	"sellhub/storage/internal/repository"
	"sellhub/storage/internal/service"
	"sellhub/storage/internal/storage"
)

type uploadResponse struct {
	PhotoID           string     `json:"photo_id"`
	Tier              string     `json:"tier"`
	FileSizeBytes     int64      `json:"file_size_bytes"`
	CompressedBytes   int64      `json:"compressed_size_bytes"`
	CompressionRatio  float64    `json:"compression_ratio"`
	ScheduledDeletion *time.Time `json:"scheduled_deletion"`
	CDNURL            *string    `json:"cdn_url"`
}

func (h HandlerSet) UploadPhoto(c *gin.Context) {
	userID := c.PostForm("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id_required"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_file"})
		return
	}

	var draftID *string
	if v := c.PostForm("draft_id"); v != "" {
		draftID = &v
	}

	photo, err := h.orch.Upload(c.Request.Context(), service.UploadInput{
		UserID:      userID,
		DraftID:     draftID,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidFile):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrStorageWriteFailed):
			h.log.Error().Err(err).Str("user_id", userID).Msg("upload write failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage_unavailable"})
		default:
			h.log.Error().Err(err).Str("user_id", userID).Msg("upload failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload_failed"})
		}
		return
	}

	c.JSON(http.StatusOK, uploadResponse{
		PhotoID:           photo.ID,
		Tier:              string(photo.Tier),
		FileSizeBytes:     photo.FileSizeBytes,
		CompressedBytes:   photo.CompressedBytes,
		CompressionRatio:  photo.CompressionRatio(),
		ScheduledDeletion: photo.ScheduledDeletion,
		CDNURL:            photo.CDNURL,
	})
}

type publishRequest struct {
	PhotoIDs []string `json:"photo_ids" binding:"required"`
}

func (h HandlerSet) PublishDraft(c *gin.Context) {
	draftID := c.Param("draftId")

	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.PhotoIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo_ids_required"})
		return
	}

	result := h.orch.MarkDraftPublished(c.Request.Context(), draftID, req.PhotoIDs)

	c.JSON(http.StatusOK, gin.H{
		"updated_count": result.Updated,
		"failed":        append([]string{}, result.Failed...),
	})
}

func (h HandlerSet) PhotoURL(c *gin.Context) {
	url, err := h.orch.PhotoURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrPhotoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "photo_not_found"})
			return
		}
		if errors.Is(err, storage.ErrBackendUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage_unavailable"})
			return
		}
		h.log.Error().Err(err).Str("photo_id", c.Param("id")).Msg("url resolution failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "url_resolution_failed"})
		return
	}

	if url == "" {
		c.JSON(http.StatusOK, gin.H{"url": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

type photoResponse struct {
	PhotoID           string     `json:"photo_id"`
	UserID            string     `json:"user_id"`
	DraftID           *string    `json:"draft_id"`
	Tier              string     `json:"tier"`
	FileSizeBytes     int64      `json:"file_size_bytes"`
	CompressedBytes   int64      `json:"compressed_size_bytes"`
	ContentType       string     `json:"content_type"`
	CDNURL            *string    `json:"cdn_url"`
	UploadDate        time.Time  `json:"upload_date"`
	LastAccessDate    time.Time  `json:"last_access_date"`
	ScheduledDeletion *time.Time `json:"scheduled_deletion"`
	Published         bool       `json:"published_to_vinted"`
	PublishedDate     *time.Time `json:"published_date"`
	AccessCount       int64      `json:"access_count"`
}

func toPhotoResponse(photo models.Photo) photoResponse {
	// storage_path stays internal; everything else is safe to expose.
	return photoResponse{
		PhotoID:           photo.ID,
		UserID:            photo.UserID,
		DraftID:           photo.DraftID,
		Tier:              string(photo.Tier),
		FileSizeBytes:     photo.FileSizeBytes,
		CompressedBytes:   photo.CompressedBytes,
		ContentType:       photo.ContentType,
		CDNURL:            photo.CDNURL,
		UploadDate:        photo.UploadDate,
		LastAccessDate:    photo.LastAccessDate,
		ScheduledDeletion: photo.ScheduledDeletion,
		Published:         photo.Published,
		PublishedDate:     photo.PublishedDate,
		AccessCount:       photo.AccessCount,
	}
}

func (h HandlerSet) PhotoMetadata(c *gin.Context) {
	photo, err := h.orch.Metadata(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrPhotoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "photo_not_found"})
			return
		}
		h.log.Error().Err(err).Str("photo_id", c.Param("id")).Msg("metadata read failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "metadata_read_failed"})
		return
	}

	c.JSON(http.StatusOK, toPhotoResponse(photo))
}

func (h HandlerSet) DeletePhoto(c *gin.Context) {
	if err := h.orch.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, storage.ErrBackendUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage_unavailable"})
			return
		}
		h.log.Error().Err(err).Str("photo_id", c.Param("id")).Msg("delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		return
	}

	// Idempotent: already-absent photos report success too.
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "photo deleted"})
}

func (h HandlerSet) ListPhotos(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId_required"})
		return
	}

	limit := 50
	offset := 0
	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if page := c.Query("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 1 {
			offset = (v - 1) * limit
		}
	}

	photos, err := h.orch.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("list photos failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}

	items := make([]photoResponse, 0, len(photos))
	for _, photo := range photos {
		items = append(items, toPhotoResponse(photo))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
