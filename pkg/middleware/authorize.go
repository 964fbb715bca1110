package middleware

import (
	"ecopoints-ledger/pkg/errutil"

	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
)

// RoleHeader carries the caller's role, set by the upstream gateway after
// authentication.
const RoleHeader = "X-User-Role"

func Authorize(e *casbin.Enforcer) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetHeader(RoleHeader)
		if role == "" {
			_ = c.Error(errutil.Unauthorized("missing role", nil))
			c.Abort()
			return
		}

		ok, err := e.Enforce(role, c.Request.URL.Path, c.Request.Method)
		if err != nil {
			_ = c.Error(errutil.Internal("authorization failed", err))
			c.Abort()
			return
		}
		if !ok {
			_ = c.Error(errutil.Forbidden("access denied", nil))
			c.Abort()
			return
		}

		c.Next()
	}
}
