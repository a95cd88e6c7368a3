package server

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
)

// OrgRateLimit spends one token of the organization's budget per view request.
func (s *Server) OrgRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		res := s.limiter.AllowOrg(c.Request.Context(), c.Param("org_id"))
		if res.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		}
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
