package apigateway

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"speech-data-explorer/backend/internal/auth"
	"speech-data-explorer/backend/internal/jobmanagement"
	"speech-data-explorer/backend/internal/metrics"
	"speech-data-explorer/backend/internal/scoringapi"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the components the router mounts. Jobs and Health may
// be nil; the job routes are then not registered.
type Dependencies struct {
	Auth    *auth.Authenticator
	Scoring *scoringapi.Handlers
	Jobs    *jobmanagement.Handlers
	Health  Pinger
	Logger  *zap.Logger
}

// SetupRouter initializes the main Gin router for the API gateway.
// It includes public routes and authenticated routes.
func SetupRouter(deps Dependencies) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/healthz", healthHandler(deps.Health))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/login", deps.Auth.LoginHandler)
		authRoutes.POST("/logout", deps.Auth.LogoutHandler)
	}

	api := router.Group("/api/v1")
	api.Use(deps.Auth.AuthMiddleware())
	{
		deps.Scoring.RegisterRoutes(api)
		if deps.Jobs != nil {
			deps.Jobs.RegisterRoutes(api.Group("/jobs"))
		}
	}

	return router
}

func healthHandler(p Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// requestLogger logs every request and counts it by route template.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}
