package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pampapro/internal/domain"
	"pampapro/internal/service"
)

// Campos del formulario multipart de verificación.
const (
	fieldUserID        = "userId"
	fieldDocumentFront = "documentoFrontal"
	fieldDocumentBack  = "documentoReverso"
	fieldSelfie        = "selfie"
	fieldProvider      = "provider"
)

// maxImageSize limita cada imagen del formulario de verificación.
const maxImageSize = service.MaxUploadSize

var errFieldMissing = errors.New("field missing")

// VerificationHandler expone el pipeline de verificación de identidad.
type VerificationHandler struct {
	logger *zap.Logger
	svc    *service.VerificationService
}

func NewVerificationHandler(logger *zap.Logger, svc *service.VerificationService) *VerificationHandler {
	return &VerificationHandler{
		logger: logger,
		svc:    svc,
	}
}

// Submit maneja POST /verifications.
func (h *VerificationHandler) Submit(c *gin.Context) {
	userID := strings.TrimSpace(c.PostForm(fieldUserID))
	if userID == "" {
		writeInvalidRequest(c, "userId is required")
		return
	}

	front, err := readImage(c, fieldDocumentFront)
	if err != nil {
		writeInvalidRequest(c, imageErrorMessage(fieldDocumentFront, err))
		return
	}
	selfie, err := readImage(c, fieldSelfie)
	if err != nil {
		writeInvalidRequest(c, imageErrorMessage(fieldSelfie, err))
		return
	}
	var back *service.ImageInput
	if img, err := readImage(c, fieldDocumentBack); err == nil {
		back = &img
	} else if !errors.Is(err, errFieldMissing) {
		writeInvalidRequest(c, imageErrorMessage(fieldDocumentBack, err))
		return
	}

	out, err := h.svc.Run(c.Request.Context(), service.SubmitInput{
		UserID:        userID,
		Provider:      c.PostForm(fieldProvider),
		DocumentFront: front,
		DocumentBack:  back,
		Selfie:        selfie,
	})
	if err != nil {
		apiErr := classifyError(err)
		if apiErr.status >= http.StatusInternalServerError {
			h.logger.Error("verification failed", zap.String("user_id", userID), zap.String("kind", apiErr.kind), zap.Error(err))
		} else {
			h.logger.Info("verification rejected", zap.String("user_id", userID), zap.String("kind", apiErr.kind), zap.Error(err))
		}
		writeError(c, apiErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"verificationId": out.VerificationID,
		"approved":       out.Approved,
		"similarity":     out.Similarity,
		"liveness":       out.Liveness,
		"nextStep":       out.NextStep,
	})
}

// Get maneja GET /verifications/:id. Sólo el dueño o un admin pueden verlo.
func (h *VerificationHandler) Get(c *gin.Context) {
	attempt, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeQueryError(c, err)
		return
	}
	if !canAccessUser(c, attempt.UserID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"verification": attempt})
}

// ListByUser maneja GET /users/:id/verifications.
func (h *VerificationHandler) ListByUser(c *gin.Context) {
	userID := c.Param("id")
	if !canAccessUser(c, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	attempts, err := h.svc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.writeQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verifications": attempts})
}

// Review maneja POST /verifications/:id/review (sólo admin).
func (h *VerificationHandler) Review(c *gin.Context) {
	var req struct {
		Decision string `json:"decision" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid review request", zap.Error(err))
		writeInvalidRequest(c, "invalid request")
		return
	}
	claims, _ := GetAuthClaims(c)

	attempt, err := h.svc.Review(c.Request.Context(), c.Param("id"), req.Decision, claims.UserID)
	if err != nil {
		h.writeQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verification": attempt})
}

func (h *VerificationHandler) writeQueryError(c *gin.Context, err error) {
	apiErr := classifyError(err)
	if apiErr.status >= http.StatusInternalServerError {
		h.logger.Error("verification query failed", zap.Error(err))
	}
	writeError(c, apiErr)
}

func canAccessUser(c *gin.Context, userID string) bool {
	claims, ok := GetAuthClaims(c)
	if !ok {
		return false
	}
	return claims.Role == domain.RoleAdmin || claims.UserID == userID
}

// readImage lee un archivo del formulario y detecta su tipo por contenido.
func readImage(c *gin.Context, field string) (service.ImageInput, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return service.ImageInput{}, errFieldMissing
		}
		return service.ImageInput{}, err
	}
	if header.Size > maxImageSize {
		return service.ImageInput{}, service.ErrFileTooLarge
	}
	f, err := header.Open()
	if err != nil {
		return service.ImageInput{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageSize+1))
	if err != nil {
		return service.ImageInput{}, err
	}
	if len(data) == 0 {
		return service.ImageInput{}, errFieldMissing
	}
	if len(data) > maxImageSize {
		return service.ImageInput{}, service.ErrFileTooLarge
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return service.ImageInput{}, fmt.Errorf("%w: %s", service.ErrFileTypeNotAllowed, mime.String())
	}
	return service.ImageInput{Data: data, ContentType: mime.String()}, nil
}

func imageErrorMessage(field string, err error) string {
	switch {
	case errors.Is(err, errFieldMissing):
		return field + " is required"
	case errors.Is(err, service.ErrFileTooLarge):
		return fmt.Sprintf("%s exceeds %dMB", field, maxImageSize/1024/1024)
	case errors.Is(err, service.ErrFileTypeNotAllowed):
		return field + " must be an image"
	default:
		return "invalid multipart form"
	}
}
