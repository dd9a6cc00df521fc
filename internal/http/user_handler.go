package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"pampapro/internal/service"
)

// UserHandler mantiene dependencias para endpoints de usuarios.
type UserHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, userServ *service.UserService) *UserHandler {
	return &UserHandler{
		logger:   logger,
		userServ: userServ,
	}
}

type registerRequest struct {
	FirstName       string `json:"nombre" binding:"required"`
	LastName        string `json:"apellido" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Phone           string `json:"telefono"`
	Role            string `json:"rol" binding:"required,oneof=prestador contratante"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

// Register maneja POST /auth/register. No emite tokens de sesión.
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": bindingDetails(err)})
		return
	}

	user, err := h.userServ.Register(c.Request.Context(), service.RegisterInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Phone:           req.Phone,
		Role:            req.Role,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": verr.Fields})
		case errors.Is(err, service.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		default:
			h.logger.Error("register user failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register user"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":   true,
		"user":      user,
		"nextSteps": service.NextStepsFor(user.Role),
	})
}

// bindingDetails convierte errores del validador de gin en detalles por campo.
func bindingDetails(err error) []service.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []service.FieldError{{Field: "body", Message: "malformed JSON"}}
	}
	details := make([]service.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, service.FieldError{
			Field:   fe.Field(),
			Message: "failed on " + fe.Tag(),
		})
	}
	return details
}
