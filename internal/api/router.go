package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prasenjit/go-mockserver/internal/requestlog"
)

// Router handles HTTP routing
type Router struct {
	engine  *gin.Engine
	deps    Deps
	handler *Handler
}

// NewRouter creates a new router. Admin routes live under the configured
// API prefix and everything else is served by the mock engine.
func NewRouter(d Deps) *Router {
	gin.SetMode(gin.ReleaseMode)

	r := &Router{
		engine:  gin.New(),
		deps:    d,
		handler: NewHandler(d),
	}
	// mock paths must reach the engine untouched
	r.engine.RedirectTrailingSlash = false
	r.engine.RedirectFixedPath = false

	// Setup middleware
	r.engine.Use(gin.Recovery())
	r.engine.Use(corsMiddleware())
	if r.handler.cfg.Logging.Level == "debug" {
		r.engine.Use(gin.Logger())
	}

	// Setup routes
	r.setupRoutes()

	return r
}

// setupRoutes configures all routes
func (r *Router) setupRoutes() {
	cfg := r.handler.cfg

	api := r.engine.Group(cfg.Server.APIPrefix)
	api.Use(r.deps.Metrics.Middleware())
	{
		// Mocks
		api.GET("/mocks", r.handler.ListMocks)
		api.POST("/mocks", r.handler.CreateMock)
		api.POST("/mocks/test", r.handler.TestMock)
		api.POST("/mocks/preview", r.handler.PreviewMock)
		api.POST("/mocks/import", r.handler.ImportMocks)
		api.GET("/mocks/export", r.handler.ExportMocks)
		api.GET("/mocks/placeholders", r.handler.ListPlaceholders)
		api.GET("/mocks/:id", r.handler.GetMock)
		api.PUT("/mocks/:id", r.handler.UpdateMock)
		api.DELETE("/mocks/:id", r.handler.DeleteMock)

		// Analytics
		api.GET("/analytics", r.handler.GetAnalytics)
		api.GET("/analytics/mocks/:id", r.handler.GetMockAnalytics)
		api.DELETE("/analytics", r.handler.ResetAnalytics)

		// Captured requests
		api.GET("/requests", r.handler.ListRequests)
		api.GET("/requests/:id", r.handler.GetRequest)
		api.DELETE("/requests", r.handler.ClearRequests)

		api.GET("/health", r.handler.HealthCheck)
		api.GET("/config", r.handler.GetConfig)
	}

	// WebSocket for live request capture
	wsHandler := requestlog.NewWebSocketHandler(r.deps.Requests, r.deps.Logger)
	api.GET("/requests/stream", gin.WrapH(wsHandler))

	if cfg.Metrics.Enabled && r.deps.Metrics != nil {
		r.engine.GET(cfg.Metrics.Path, gin.WrapH(r.deps.Metrics.Handler()))
	}

	mocks := r.deps.Engine.Handler()
	r.engine.NoRoute(gin.WrapH(mocks))
}

// Handler returns the http.Handler
func (r *Router) Handler() http.Handler {
	return r.engine
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH, HEAD")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
