package http

import (
	"errors"
	"net/http"

	"anoa.com/tutorhub/internal/modules/dispatch/dto"
	"anoa.com/tutorhub/internal/modules/dispatch/service"
	notifDto "anoa.com/tutorhub/internal/modules/notification/dto"
	"anoa.com/tutorhub/pkg/apperror"
	"anoa.com/tutorhub/pkg/response"
	"github.com/gin-gonic/gin"
)

// DispatchHandler lets admins trigger and preview domain-event notifications
// without going through the message broker.
type DispatchHandler struct {
	pipeline service.Pipeline
}

func NewDispatchHandler(pipeline service.Pipeline) *DispatchHandler {
	return &DispatchHandler{pipeline: pipeline}
}

func bindEvent(c *gin.Context) (dto.Event, bool) {
	var ev dto.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		response.ResponseError(c, apperror.Validation("invalid event payload"))
		return ev, false
	}
	return ev, true
}

func (h *DispatchHandler) Deliver(c *gin.Context) {
	ev, ok := bindEvent(c)
	if !ok {
		return
	}

	n, err := h.pipeline.Deliver(c.Request.Context(), ev)
	var derr *service.DeliveryError
	if errors.As(err, &derr) {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":           apperror.KindDelivery,
			"message":         apperror.PublicMessage(err),
			"notification_id": derr.NotificationID,
		})
		return
	}
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": notifDto.ToResponse(n)})
}

func (h *DispatchHandler) Preview(c *gin.Context) {
	ev, ok := bindEvent(c)
	if !ok {
		return
	}

	doc, err := h.pipeline.Render(c.Request.Context(), ev)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": doc})
}
