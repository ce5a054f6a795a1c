package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
)

// GinMiddleware records every request under its route pattern. Unmatched
// routes are grouped as "unmatched" to keep label cardinality bounded.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if m == nil {
			return
		}
		handler := c.FullPath()
		if handler == "" {
			handler = "unmatched"
		}
		m.RecordHTTPRequest(handler, c.Request.Method, c.Writer.Status(), time.Since(start).Seconds())
	}
}
