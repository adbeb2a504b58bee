package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"triagehq.app/triage/internal/queue"
)

// BrokerHealth is the broker surface the health endpoint reads.
type BrokerHealth interface {
	Health() queue.Health
}

// HealthHandler exposes process and broker health. A Down broker still
// returns 200: ingestion works in degraded mode, and the body makes the
// degradation observable.
type HealthHandler struct {
	broker BrokerHealth
}

func NewHealthHandler(broker BrokerHealth) *HealthHandler {
	return &HealthHandler{broker: broker}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"broker": h.broker.Health().String(),
	})
}
