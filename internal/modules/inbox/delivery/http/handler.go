package handler

import (
	"errors"
	"fmt"
	"math"
	"net/http"

	"anoa.com/tutorhub/internal/entity"
	"anoa.com/tutorhub/internal/modules/inbox/roles"
	inbox "anoa.com/tutorhub/internal/modules/inbox/service"
	notifDto "anoa.com/tutorhub/internal/modules/notification/dto"
	"anoa.com/tutorhub/pkg/apperror"
	"anoa.com/tutorhub/pkg/ratelimiter"
	"anoa.com/tutorhub/pkg/response"
	"anoa.com/tutorhub/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type InboxHandler struct {
	service inbox.InboxService
}

func NewInboxHandler(service inbox.InboxService) *InboxHandler {
	return &InboxHandler{service: service}
}

// Register mounts one role's inbox under its route prefix. Role guards are
// passed in by the caller.
func (h *InboxHandler) Register(rg *gin.RouterGroup, cfg roles.RoleConfig, guards ...gin.HandlerFunc) {
	g := rg.Group(cfg.RoutePrefix, guards...)
	g.GET("", h.List(cfg.Role))
	g.POST("", h.Create(cfg.Role))
	g.GET("/search", h.Search(cfg.Role))
	g.POST("/reply", h.Reply(cfg.Role))
	g.GET("/:id", h.Show(cfg.Role))
	g.PUT("/:id/read", h.MarkRead(cfg.Role))
	g.PUT("/:id/respond", h.Respond(cfg.Role))
}

func bindError(err error) error {
	return apperror.Validation(validator.FormatValidationError(err))
}

func paramID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid notification id")
	}
	return id, nil
}

func writeError(c *gin.Context, err error) {
	var rateLimitErr *ratelimiter.RateLimitError
	if errors.As(err, &rateLimitErr) {
		c.Header("Retry-After", fmt.Sprintf("%.0f", math.Ceil(rateLimitErr.RetryAfter.Seconds())))
	}
	response.ResponseError(c, err)
}

func (h *InboxHandler) List(role entity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := response.GetUserID(c)
		if err != nil {
			writeError(c, err)
			return
		}

		var filter notifDto.ListFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			writeError(c, bindError(err))
			return
		}

		ns, err := h.service.ListForRole(c.Request.Context(), role, userID, filter)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": notifDto.ToResponses(ns)})
	}
}

func (h *InboxHandler) Create(role entity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := response.GetUserID(c)
		if err != nil {
			writeError(c, err)
			return
		}

		var req notifDto.CreateNotificationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, bindError(err))
			return
		}

		ns, err := h.service.CreateForRole(c.Request.Context(), role, userID, req)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"data": notifDto.ToResponses(ns)})
	}
}

func (h *InboxHandler) Show(role entity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := response.GetUserID(c)
		if err != nil {
			writeError(c, err)
			return
		}
		id, err := paramID(c)
		if err != nil {
			writeError(c, err)
			return
		}

		view, err := h.service.ShowForRole(c.Request.Context(), role, id, userID)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data":      notifDto.ToResponse(view.Notification),
			"can_reply": view.CanReply,
		})
	}
}

func (h *InboxHandler) Reply(role entity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := response.GetUserID(c)
		if err != nil {
			writeError(c, err)
			return
		}

		var req notifDto.ReplyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, bindError(err))
			return
		}

		reply, err := h.service.ReplyForRole(c.Request.Context(), role, userID, req)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"data": notifDto.ToResponse(reply)})
	}
}

func (h *InboxHandler) MarkRead(role entity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := response.GetUserID(c)
		if err != nil {
			writeError(c, err)
			return
		}
		id, err := paramID(c)
		if err != nil {
			writeError(c, err)
			return
		}

		n, err := h.service.MarkReadForRole(c.Request.Context(), role, id, userID)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": notifDto.ToResponse(n)})
	}
}

func (h *InboxHandler) Respond(role entity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := response.GetUserID(c)
		if err != nil {
			writeError(c, err)
			return
		}
		id, err := paramID(c)
		if err != nil {
			writeError(c, err)
			return
		}

		var req notifDto.RespondRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, bindError(err))
			return
		}

		n, err := h.service.RespondForRole(c.Request.Context(), role, id, userID, req.Decision == string(entity.StatusAccepted))
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": notifDto.ToResponse(n)})
	}
}

func (h *InboxHandler) Search(role entity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := response.GetUserID(c)
		if err != nil {
			writeError(c, err)
			return
		}

		var query notifDto.SearchQuery
		if err := c.ShouldBindQuery(&query); err != nil {
			writeError(c, bindError(err))
			return
		}

		ns, err := h.service.SearchForRole(c.Request.Context(), role, userID, query)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": notifDto.ToResponses(ns)})
	}
}
