package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pampapro/internal/service"
)

// UploadHandler recibe archivos genéricos de usuarios autenticados.
type UploadHandler struct {
	logger *zap.Logger
	svc    *service.UploadService
}

func NewUploadHandler(logger *zap.Logger, svc *service.UploadService) *UploadHandler {
	return &UploadHandler{
		logger: logger,
		svc:    svc,
	}
}

// Upload maneja POST /upload.
func (h *UploadHandler) Upload(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if header.Size > service.MaxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file too large, max %dMB", service.MaxUploadSize/1024/1024)})
		return
	}
	f, err := header.Open()
	if err != nil {
		h.logger.Warn("open uploaded file failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, service.MaxUploadSize+1))
	if err != nil {
		h.logger.Warn("read uploaded file failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}

	up, err := h.svc.Upload(c.Request.Context(), service.UploadInput{
		UserID:       claims.UserID,
		Kind:         c.PostForm("tipo"),
		OriginalName: header.Filename,
		Data:         data,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFileRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		case errors.Is(err, service.ErrFileTooLarge):
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file too large, max %dMB", service.MaxUploadSize/1024/1024)})
		case errors.Is(err, service.ErrFileTypeNotAllowed):
			c.JSON(http.StatusBadRequest, gin.H{"error": "file type not allowed"})
		default:
			h.logger.Error("upload failed", zap.String("user_id", claims.UserID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not upload file"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"url":      up.URL,
		"fileName": up.FileName,
		"fileType": up.FileType,
		"fileSize": up.FileSize,
		"uploadId": up.ID,
	})
}
