package api

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// handleDownload streams a stored snapshot file.
// GET /files/:name
func (s *Server) handleDownload(c *gin.Context) {
	name := c.Param("name")

	path, err := s.files.Path(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"msg":     "file not found",
			"fileUrl": "",
		})
		return
	}

	if _, err := os.Stat(path); err != nil {
		s.log.Warn("file download miss", "filename", name)
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"msg":     "file not found",
			"fileUrl": "",
		})
		return
	}

	c.Header("Content-Type", "application/json; charset=utf-8")
	c.File(path)
}
