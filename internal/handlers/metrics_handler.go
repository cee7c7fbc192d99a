package handlers

import (
	"net/http"

	"automations/internal/metrics"

	"github.com/gin-gonic/gin"
)

// GetMetrics 输出运行计数
func GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, metrics.RunSnapshot())
}
