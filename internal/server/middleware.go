package server

import (
	"net/http"
	"strings"
	"time"

	"poe2openai/internal/core"
	"poe2openai/internal/metrics"
	"poe2openai/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ctxKeyRequestID = "request_id"
	ctxKeyModel     = "model"
)

func (s *Server) maxBodySizeMiddleware() gin.HandlerFunc {
	limit := s.config.MaxRequestSize
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(core.HeaderRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, requestID)
		c.Header(core.HeaderRequestID, requestID)
		c.Next()
	}
}

// accessLogMiddleware logs every request and feeds both the stats service and Prometheus.
func (s *Server) accessLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		duration := time.Since(start)

		s.collector.RecordHTTPRequest(route, status, duration)
		if isTrackedRoute(route) {
			if status < http.StatusBadRequest {
				metrics.RecordSuccessWithMetrics(s.metricsService, start, c.GetString(ctxKeyModel), route)
			} else {
				metrics.RecordFailureWithMetrics(s.metricsService, start, c.GetString(ctxKeyModel), route)
			}
		}

		s.logger.Info("[%s] %s %s -> %d (%s)",
			c.GetString(ctxKeyRequestID), c.Request.Method, c.Request.URL.Path, status, util.FormatDuration(duration))
	}
}

func isTrackedRoute(route string) bool {
	switch route {
	case core.PathRawModels, core.PathModels, core.PathV1Models, "/chat/completions", "/v1/chat/completions":
		return true
	}
	return false
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	allowOrigin := s.config.CORSAllowOrigin
	if allowOrigin == "" {
		allowOrigin = "*"
	}

	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, X-Request-ID")
		c.Header("Access-Control-Max-Age", core.CORSMaxAge)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// admissionMiddleware delays the request until the global gate admits it.
func (s *Server) admissionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		waited, err := s.gate.Admit(c.Request.Context(), s.config.RateLimit)
		s.collector.RecordAdmissionWait(waited)
		if err != nil {
			s.logger.Debug("[%s] client gone while waiting for admission: %v", c.GetString(ctxKeyRequestID), err)
			respondWithOpenAIError(c, http.StatusServiceUnavailable, "request cancelled while waiting for admission")
			c.Abort()
			return
		}
		if waited > time.Millisecond {
			s.logger.Debug("[%s] admission delayed request by %s", c.GetString(ctxKeyRequestID), util.FormatDuration(waited))
		}
		c.Next()
	}
}
