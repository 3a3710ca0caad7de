package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rssmerge/security"
)

// secure adapts a security check chain into gin middleware. Rejections are
// answered with the JSON envelope and abort the handler chain.
func (s *Server) secure(check security.Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rej := check(c.Request); rej != nil {
			c.AbortWithStatusJSON(rej.Status, gin.H{
				"code":  rej.Status,
				"msg":   rej.Msg,
				"error": rej.Detail,
			})
			return
		}
		c.Next()
	}
}

// requestLogger logs each request with its client identity and duration.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"client_ip", security.ClientIP(c.Request),
			"duration", time.Since(start),
		)
	}
}

// recovery converts panics into the generic 500 envelope. The stack is
// logged; no internal detail reaches the caller.
func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err any) {
		s.log.Error("panic recovered", "err", err, "path", c.Request.URL.Path)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"code":  http.StatusInternalServerError,
			"msg":   "internal server error",
			"error": "an unexpected error occurred",
		})
	})
}
