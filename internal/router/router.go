package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"intake/internal/handler"
	"intake/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	intakeH *handler.IntakeHandler,
	healthH *handler.HealthHandler,
	allowedOrigins []string,
	log *zap.Logger,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")

	intake := v1.Group("/intake")
	intake.POST("/runs", intakeH.TriggerRun)
	intake.GET("/runs/last", intakeH.GetLastRun)
	intake.GET("/messages/:id", intakeH.GetMessage)
	intake.POST("/messages/:id/requeue", intakeH.RequeueMessage)

	return r
}
