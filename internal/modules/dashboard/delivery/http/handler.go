package http

import (
	"net/http"

	dashboardService "anoa.com/tutorhub/internal/modules/dashboard/service"
	"anoa.com/tutorhub/pkg/response"
	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	dashboardService dashboardService.DashboardService
}

func NewDashboardHandler(dashboardService dashboardService.DashboardService) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
	}
}

func (h *DashboardHandler) GetUrgentActions(c *gin.Context) {
	snap, err := h.dashboardService.GetUrgentCounts(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}
