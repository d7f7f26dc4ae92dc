package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/extrasensor/ProxyServer/internal/cache"
	"github.com/extrasensor/ProxyServer/internal/ratelimit"
	"github.com/extrasensor/ProxyServer/internal/roblox"
)

// Deps carries the shared components the routes are built from.
type Deps struct {
	Cache          *cache.Cache
	Limiter        *ratelimit.Manager
	Client         *roblox.Client
	Finder         PlayerFinder
	AllowedOrigins []string
}

// NewRouter builds the gin engine: recovery, access logging and CORS on
// everything, the rate-limit gate on the /api group only (the health check
// stays unthrottled).
func NewRouter(deps Deps) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), RequestLogger(), CORSMiddleware(deps.AllowedOrigins))

	engine.GET("/health", Health)

	api := engine.Group("/api", RateLimitMiddleware(deps.Limiter))
	api.POST("/username-to-id", NewUsersHandler(deps.Cache, deps.Client).Resolve)
	api.POST("/presence", NewPresenceHandler(deps.Cache, deps.Client).Lookup)
	api.POST("/servers", NewServersHandler(deps.Cache, deps.Client).List)
	api.POST("/find-player", NewFinderHandler(deps.Finder).Find)
	api.POST("/thumbnail", NewThumbnailsHandler(deps.Cache, deps.Client).Fetch)

	return engine
}
