package leaderboard

import (
	"net/http"

	"ecopoints-ledger/pkg/db/pagination"
	"ecopoints-ledger/pkg/errutil"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/v1/leaderboard")
	g.GET("", h.page)
	g.GET("/users/:id/rank", h.rank)
}

func (h *Handler) page(c *gin.Context) {
	var q pagination.Pagination
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(errutil.BadRequest("invalid pagination", err))
		return
	}

	page, err := h.svc.GetPage(c.Request.Context(), q.Page, q.Limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) rank(c *gin.Context) {
	r, err := h.svc.GetRank(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, r)
}
