package router

import (
	"github.com/gin-gonic/gin"

	"triagehq.app/triage/internal/http/handler"
)

func SetupRoutes(router *gin.Engine, queryHandler *handler.QueryHandler, healthHandler *handler.HealthHandler) {
	router.GET("/health", healthHandler.Health)

	v1 := router.Group("/api/v1")
	{
		queries := v1.Group("/queries")
		{
			queries.POST("", queryHandler.Create)
			queries.GET("/schema", queryHandler.Schema)
			queries.GET("/:id", queryHandler.Get)
			queries.GET("/:id/history", queryHandler.History)
			queries.POST("/:id/assign", queryHandler.AutoAssign)
			queries.POST("/:id/assign/manual", queryHandler.ManualAssign)
			queries.PATCH("/:id/status", queryHandler.UpdateStatus)
		}

		v1.POST("/escalations/sweep", queryHandler.Sweep)
	}
}
