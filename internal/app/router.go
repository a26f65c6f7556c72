package app

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agritrace.io/agritrace/internal/api/contract"
	"agritrace.io/agritrace/internal/api/handlers"
	"agritrace.io/agritrace/internal/api/middleware"
	"agritrace.io/agritrace/internal/config"
	"agritrace.io/agritrace/internal/pkg/logger"
)

// Public routes that do NOT require JWT authentication.
var publicPrefixes = []string{
	"/health/",
	"/metrics",
}

// auditPrefixes are routes that require audit:read.
var auditPrefixes = []string{
	"/api/auditoria",
}

func newRouter(cfg *config.Config, server contract.ServerInterface, jwtCfg middleware.JWTConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.ErrorHandler())
	if corsCfg, ok := buildCORSConfig(cfg); ok {
		router.Use(cors.New(corsCfg))
	}
	router.Use(jwtSkipPublic(jwtCfg))
	router.Use(rbacAuditRoutes())
	router.Use(middleware.MustOpenAPIValidator("", middleware.ValidatorOptions{
		ValidateResponses: cfg.Server.ValidateResponses,
	}))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	// zap.AtomicLevel serves GET and PUT of the current level.
	router.Any("/admin/log/level", middleware.RequirePermission(middleware.PermPlatformAdmin), gin.WrapH(logger.Level()))

	contract.RegisterHandlersWithOptions(router, server, contract.GinServerOptions{
		ErrorHandler: handlers.ParamErrorHandler,
	})
	return router
}

// buildCORSConfig returns the CORS policy, or false when no origin is
// allowed. Wildcards are dropped: the API is called with bearer tokens from
// known front ends only.
func buildCORSConfig(cfg *config.Config) (cors.Config, bool) {
	origins := make([]string, 0, len(cfg.Server.CORSAllowedOrigins))
	for _, origin := range cfg.Server.CORSAllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" || origin == "*" {
			continue
		}
		origins = append(origins, origin)
	}
	if len(origins) == 0 {
		return cors.Config{}, false
	}
	return cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}, true
}

// jwtSkipPublic returns middleware that applies JWT auth only on non-public routes.
func jwtSkipPublic(cfg middleware.JWTConfig) gin.HandlerFunc {
	jwtMw := middleware.JWTAuth(cfg)
	return func(c *gin.Context) {
		if c.Request.Method == "OPTIONS" {
			c.Next()
			return
		}
		for _, prefix := range publicPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}
		jwtMw(c)
	}
}

// rbacAuditRoutes returns middleware enforcing audit:read on audit endpoints.
func rbacAuditRoutes() gin.HandlerFunc {
	auditMw := middleware.RequirePermission(middleware.PermAuditRead)
	return func(c *gin.Context) {
		for _, prefix := range auditPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				auditMw(c)
				return
			}
		}
		c.Next()
	}
}
