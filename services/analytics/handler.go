package analytics

import (
	"net/http"
	"strconv"
	"time"

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
	g := r.Group("/v1/admin/analytics", middleware.Authorize(h.enforcer))
	g.GET("/users/:id/stats", h.userStats)
	g.GET("/activities/daily", h.activitiesPerDay)
	g.GET("/users/daily-active", h.dailyActive)
	g.GET("/activities/top", h.top)
	g.GET("/awards/pending", h.pending)
}

func (h *Handler) userStats(c *gin.Context) {
	out, err := h.svc.UserStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) activitiesPerDay(c *gin.Context) {
	from, to, err := rangeQuery(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	out, err := h.svc.ActivitiesPerDay(c.Request.Context(), from, to)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) dailyActive(c *gin.Context) {
	from, to, err := rangeQuery(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	out, err := h.svc.DailyActiveUsers(c.Request.Context(), from, to)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) top(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	out, err := h.svc.TopActivities(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (h *Handler) pending(c *gin.Context) {
	var olderThan time.Duration
	if v := c.Query("older_than"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			_ = c.Error(errutil.BadRequest("older_than must be a positive duration such as 10m", err))
			return
		}
		olderThan = d
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	out, err := h.svc.PendingAwards(c.Request.Context(), olderThan, limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// rangeQuery accepts RFC 3339 timestamps or plain dates for from and to.
func rangeQuery(c *gin.Context) (time.Time, time.Time, error) {
	from, err := parseTime(c.Query("from"))
	if err != nil {
		return time.Time{}, time.Time{}, errutil.BadRequest("invalid from", err)
	}
	to, err := parseTime(c.Query("to"))
	if err != nil {
		return time.Time{}, time.Time{}, errutil.BadRequest("invalid to", err)
	}
	return from, to, nil
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}
