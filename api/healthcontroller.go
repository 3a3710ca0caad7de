package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleHealth reports service liveness.
// GET /health
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":      http.StatusOK,
		"msg":       "service running",
		"timestamp": s.now().Format("2006-01-02 15:04:05"),
	})
}

// handleIndex describes the service capabilities and endpoints.
// GET /
func (s *Server) handleIndex(c *gin.Context) {
	cfg := s.config()

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"msg":     "rss merge service",
		"version": "1.0.0",
		"security": gin.H{
			"api_key_required":     cfg.Security.APIKeyRequired,
			"rate_limit_enabled":   cfg.Security.RateLimitEnabled,
			"ip_whitelist_enabled": cfg.Security.IPWhitelistEnabled,
		},
		"endpoints": gin.H{
			"generate": gin.H{
				"url":         "/generate",
				"method":      "GET",
				"description": "aggregate recent records and write the snapshot",
				"auth":        "api key required",
			},
			"download": gin.H{
				"url":         "/files/{name}",
				"method":      "GET",
				"description": "download a stored snapshot",
				"auth":        "no api key",
			},
			"health": gin.H{
				"url":         "/health",
				"method":      "GET",
				"description": "health check",
				"auth":        "none",
			},
		},
		"usage": gin.H{
			"api_key_header": "X-API-Key: <key>",
			"api_key_param":  "?api_key=<key>",
		},
	})
}
