package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pampapro/internal/domain"
	"pampapro/internal/service"
)

const (
	authClaimsKey   = "auth_claims"
	authTokenCookie = "auth_token"
)

// UserLoader resuelve el usuario dueño de un token. El rol sale de la base, no del token.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
}

// JWTAuthMiddleware valida el token de sesión (header Bearer o cookie auth_token),
// carga el usuario y guarda sus claims en el contexto.
func JWTAuthMiddleware(verifier *service.TokenVerifier, users UserLoader, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if verifier == nil || users == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
			c.Abort()
			return
		}

		token, ok := requestToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		claims, err := verifier.ParseAccessToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, service.ErrUserNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			} else {
				logger.Error("load token user failed", zap.String("user_id", claims.UserID), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			c.Abort()
			return
		}
		claims.Email = user.Email
		claims.Role = user.Role

		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

// requestToken toma el header Authorization y, si no está, la cookie de sesión.
func requestToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header != "" {
		if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			return "", false
		}
		token := strings.TrimSpace(header[len("Bearer "):])
		return token, token != ""
	}
	if cookie, err := c.Cookie(authTokenCookie); err == nil && strings.TrimSpace(cookie) != "" {
		return strings.TrimSpace(cookie), true
	}
	return "", false
}

// RequireRole corta la request si el rol del usuario no está entre los permitidos.
// Debe ir después de JWTAuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetAuthClaims(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}
		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		c.Abort()
	}
}

// GetAuthClaims obtiene claims de JWT desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}
