package notification

import (
	"net/http"
	"strconv"

	"ecopoints-ledger/pkg/errutil"
	"ecopoints-ledger/pkg/middleware"

	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc      *Service
	enforcer *casbin.Enforcer
}

func NewHandler(svc *Service, enforcer *casbin.Enforcer) *Handler {
	return &Handler{svc: svc, enforcer: enforcer}
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/v1/users/:id/notifications", h.list)

	admin := r.Group("/v1/admin", middleware.Authorize(h.enforcer))
	admin.POST("/notifications/broadcast", h.broadcast)
}

func (h *Handler) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	items, err := h.svc.List(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (h *Handler) broadcast(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid broadcast request", err))
		return
	}

	id, err := h.svc.Broadcast(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"broadcast_id": id})
}
