package server

import (
	"net/http"

	"poe2openai/internal/core"

	"github.com/gin-gonic/gin"
)

// respondWithOpenAIError returns the gateway error body
func respondWithOpenAIError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

// copyResponseHeaders copies the upstream headers a streaming client needs.
func copyResponseHeaders(c *gin.Context, header http.Header) {
	for _, name := range []string{core.HeaderContentType, core.HeaderCacheControl, "X-Accel-Buffering"} {
		if value := header.Get(name); value != "" {
			c.Header(name, value)
		}
	}
}
