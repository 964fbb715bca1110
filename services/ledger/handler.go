package ledger

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
	v1 := r.Group("/v1")
	v1.POST("/ecopoints/award", middleware.Authorize(h.enforcer), h.award)

	users := v1.Group("/users/:id")
	users.GET("/ecopoints", h.summary)
	users.GET("/ecopoints/history", h.history)
	users.GET("/activities", h.activities)

	admin := v1.Group("/admin/users", middleware.Authorize(h.enforcer))
	admin.POST("", h.syncUser)
	admin.POST("/:id/deactivate", h.deactivateUser)
}

func (h *Handler) award(c *gin.Context) {
	var req AwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid award request", err))
		return
	}

	res, err := h.svc.Award(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) summary(c *gin.Context) {
	res, err := h.svc.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) history(c *gin.Context) {
	items, err := h.svc.History(c.Request.Context(), c.Param("id"), queryLimit(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (h *Handler) activities(c *gin.Context) {
	items, err := h.svc.Activities(c.Request.Context(), c.Param("id"), queryLimit(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (h *Handler) syncUser(c *gin.Context) {
	var req SyncUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid user", err))
		return
	}

	u, err := h.svc.SyncUser(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) deactivateUser(c *gin.Context) {
	if err := h.svc.DeactivateUser(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// queryLimit returns 0 for a missing or malformed limit so the store default
// applies.
func queryLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return n
}
