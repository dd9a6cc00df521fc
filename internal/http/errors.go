package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pampapro/internal/face"
	"pampapro/internal/service"
	"pampapro/internal/storage"
)

// Tipos de error expuestos en el campo "kind" de las respuestas de verificación.
const (
	kindUserNotFound        = "user_not_found"
	kindNoFaceDetected      = "no_face_detected"
	kindUnsupportedProvider = "unsupported_provider"
	kindProviderTimeout     = "provider_timeout"
	kindProviderUnavailable = "provider_unavailable"
	kindStorage             = "storage_error"
	kindRateLimited         = "rate_limited"
	kindInvalidRequest      = "invalid_request"
	kindNotFound            = "not_found"
	kindConflict            = "conflict"
	kindForbidden           = "forbidden"
	kindInternal            = "internal"
)

type apiError struct {
	status  int
	kind    string
	message string
}

// classifyError traduce errores de dominio a status HTTP.
func classifyError(err error) apiError {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return apiError{http.StatusBadRequest, kindInvalidRequest, "invalid request"}
	case errors.Is(err, service.ErrUserNotFound):
		return apiError{http.StatusNotFound, kindUserNotFound, "user not found"}
	case errors.Is(err, face.ErrNoFaceDetected):
		return apiError{http.StatusUnprocessableEntity, kindNoFaceDetected, "no face detected"}
	case errors.Is(err, face.ErrUnsupportedProvider):
		return apiError{http.StatusInternalServerError, kindUnsupportedProvider, unsupportedProviderMessage(err)}
	case errors.Is(err, face.ErrProviderTimeout):
		return apiError{http.StatusGatewayTimeout, kindProviderTimeout, "face provider timeout"}
	case errors.Is(err, face.ErrProviderUnavailable):
		return apiError{http.StatusBadGateway, kindProviderUnavailable, "face provider unavailable"}
	case errors.Is(err, storage.ErrStorage):
		return apiError{http.StatusBadGateway, kindStorage, "could not store images"}
	case errors.Is(err, service.ErrRateLimited):
		return apiError{http.StatusTooManyRequests, kindRateLimited, "too many requests"}
	case errors.Is(err, service.ErrAttemptNotFound):
		return apiError{http.StatusNotFound, kindNotFound, "verification not found"}
	case errors.Is(err, service.ErrInvalidDecision):
		return apiError{http.StatusBadRequest, kindInvalidRequest, "decision must be approved or rejected"}
	case errors.Is(err, service.ErrNotReviewable):
		return apiError{http.StatusConflict, kindConflict, "verification is not awaiting review"}
	case errors.Is(err, service.ErrReviewerNotAllowed):
		return apiError{http.StatusForbidden, kindForbidden, "forbidden"}
	default:
		return apiError{http.StatusInternalServerError, kindInternal, "verification process failed"}
	}
}

func unsupportedProviderMessage(err error) string {
	var unsupported *face.UnsupportedProviderError
	if errors.As(err, &unsupported) {
		return unsupported.Error()
	}
	return "unsupported face provider"
}

func writeError(c *gin.Context, e apiError) {
	c.JSON(e.status, gin.H{"error": e.message, "kind": e.kind})
}

func writeInvalidRequest(c *gin.Context, message string) {
	writeError(c, apiError{http.StatusBadRequest, kindInvalidRequest, message})
}
