package server

import (
	"poe2openai/internal/core"

	"github.com/gin-gonic/gin"
)

func (s *Server) setupRoutes() {
	gin.SetMode(s.config.GinMode)
	s.router = gin.New()

	s.router.Use(gin.Recovery())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.accessLogMiddleware())
	s.router.Use(s.corsMiddleware())
	s.router.Use(s.maxBodySizeMiddleware())

	// Operational routes
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/api/stats", s.getStatsData)
	s.router.GET("/metrics", gin.WrapH(s.collector.Handler()))

	// Catalog routes
	s.router.GET(core.PathRawModels, s.rawModels)
	s.router.GET(core.PathModels, s.listModels)
	s.router.GET(core.PathV1Models, s.listModels)

	// Chat routes pass through the global admission gate
	chat := s.router.Group("/", s.admissionMiddleware())
	{
		chat.POST("/chat/completions", s.chatCompletions)
		chat.POST("/v1/chat/completions", s.chatCompletions)
	}
}
