// Package requestid tags every request with a correlation identifier so log
// lines and error responses can be tied back to one call.
package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header is the wire name of the correlation ID. An inbound value is trusted
// and echoed back; otherwise a fresh one is minted.
const Header = "X-Request-ID"

const contextKey = "request_id"

// Middleware ensures the request carries an ID and mirrors it on the response.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(contextKey, id)
		c.Writer.Header().Set(Header, id)
		c.Next()
	}
}

// Value returns the request ID for the current request, or "" before the
// middleware has run.
func Value(c *gin.Context) string {
	id, _ := c.Value(contextKey).(string)
	return id
}
