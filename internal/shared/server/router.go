package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"articles-backend/internal/articles"
	googleauth "articles-backend/internal/auth"
	"articles-backend/internal/shared/auth"
	"articles-backend/internal/shared/config"
	"articles-backend/internal/shared/metrics"
	"articles-backend/internal/shared/server/middleware"
	"articles-backend/internal/shared/server/respond"
	"articles-backend/internal/uploads"
	"articles-backend/internal/users"
)

// RouterDeps carries the wired handlers into route registration.
type RouterDeps struct {
	Config          config.Config
	Issuer          *auth.TokenIssuer
	UsersHandler    *users.Handler
	ArticlesHandler *articles.Handler
	UploadsHandler  *uploads.Handler
	GoogleAuth      *googleauth.GoogleService
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())
	deps.UploadsHandler.RegisterServeRoute(r)

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(rateLimits()))
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})

	public := api.Group("", middleware.OptionalAuth(deps.Issuer))
	authed := api.Group("", middleware.Auth(deps.Issuer))

	deps.GoogleAuth.RegisterRoutes(api)
	deps.UsersHandler.RegisterRoutes(public, authed)
	deps.ArticlesHandler.RegisterRoutes(public, authed)
	deps.UploadsHandler.RegisterRoutes(authed)

	return r
}

// rateLimits throttles credential guessing and upload abuse; everything else
// passes through.
func rateLimits() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			"AUTH":   {Rate: 1, Burst: 10},
			"UPLOAD": {Rate: 2, Burst: 20},
		},
		GroupFor: func(c *gin.Context) string {
			path := c.FullPath()
			switch {
			case strings.HasSuffix(path, "/users/login"), strings.HasSuffix(path, "/users/register"):
				return "AUTH"
			case strings.HasSuffix(path, "/uploads/image"):
				return "UPLOAD"
			default:
				return ""
			}
		},
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
