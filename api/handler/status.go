package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/tabscan/scanner"
)

// Status returns a handler for GET /api/v1/status.
func Status(sc *scanner.Scanner) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, sc.Status())
	}
}
