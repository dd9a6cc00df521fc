package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pampapro/internal/domain"
	"pampapro/internal/service"
	"pampapro/internal/storage"
)

// RouterDeps agrupa handlers y dependencias transversales del router.
type RouterDeps struct {
	Logger        *zap.Logger
	TokenVerifier *service.TokenVerifier
	// CurrentUsers carga el usuario de cada token para conocer su rol.
	CurrentUsers  UserLoader
	Users         *UserHandler
	Verifications *VerificationHandler
	Uploads       *UploadHandler
	Health        *HealthHandler
	// UploadsDir se sirve como estático bajo /uploads; vacío si el almacenamiento es remoto.
	UploadsDir    string
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 32 << 20

	// Middlewares basicos: logging y recovery.
	r.Use(zapLoggerMiddleware(deps.Logger), gin.Recovery())

	if deps.UploadsDir != "" {
		uploads := r.Group(storage.PublicPrefix, noSniffMiddleware())
		uploads.Static("/", deps.UploadsDir)
	}

	api := r.Group("", jsonContentTypeMiddleware())
	api.GET("/health", deps.Health.Health)

	auth := api.Group("/auth")
	auth.POST("/register", deps.Users.Register)

	authRequired := JWTAuthMiddleware(deps.TokenVerifier, deps.CurrentUsers, deps.Logger)

	api.POST("/upload", authRequired, deps.Uploads.Upload)

	verifications := api.Group("/verifications")
	verifications.POST("", deps.Verifications.Submit)
	verifications.GET("/:id", authRequired, deps.Verifications.Get)
	verifications.POST("/:id/review", authRequired, RequireRole(domain.RoleAdmin), deps.Verifications.Review)

	api.GET("/users/:id/verifications", authRequired, deps.Verifications.ListByUser)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses de la API.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}

// noSniffMiddleware impide que el navegador reinterprete el tipo de los archivos servidos.
func noSniffMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Next()
	}
}
