// Package server assembles the HTTP router shared by the standalone server
// and the serverless entry point.
package server

import (
	"net/http"

	"github.com/arnavshah/covers-scheduler-api/pkg/handlers"
	"github.com/arnavshah/covers-scheduler-api/pkg/logging"
	"github.com/arnavshah/covers-scheduler-api/pkg/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Version is reported by the root route
const Version = "3.0.0"

// NewRouter registers every route on a fresh engine
func NewRouter(h *handlers.Handler, origins []string, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(logging.Recovery(log), logging.Middleware(log))

	corsCfg := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", logging.RequestIDHeader)
	corsCfg.ExposeHeaders = []string{logging.RequestIDHeader}
	r.Use(cors.New(corsCfg))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Covers Forecast & Staff Scheduler API",
			"version": Version,
		})
	})
	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	r.POST("/admin/login", h.Login)

	// Admin Endpoints
	admin := r.Group("/admin")
	admin.Use(h.AuthMiddleware())
	{
		admin.POST("/keys", h.GenerateKey)
		admin.GET("/keys", h.ListKeys)
		admin.PUT("/keys/:id", h.UpdateKeyLimit)
		admin.DELETE("/keys/:id", h.RevokeKey)
		admin.GET("/usage/:id", h.GetUsage)

		admin.GET("/staff", h.ListStaff)
		admin.POST("/staff", h.CreateStaff)
		admin.DELETE("/staff/:id", h.DeleteStaff)
		admin.POST("/staff/csv", h.ImportStaffCSV)
	}

	// Forecast and scheduling endpoints
	api := r.Group("/api")
	api.Use(h.APIKeyMiddleware())
	{
		api.POST("/predict", h.Predict)
		api.POST("/schedule", h.Schedule)
		api.POST("/validate", h.ValidateInput)
		api.GET("/usage", h.GetMyUsage)
	}

	r.POST("/predict", h.APIKeyMiddleware(), h.Predict)
	r.POST("/schedule", h.APIKeyMiddleware(), h.Schedule)

	return r
}
