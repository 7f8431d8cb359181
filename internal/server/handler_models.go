package server

import (
	"context"
	"net/http"
	"time"

	"poe2openai/internal/catalog"
	"poe2openai/internal/core"
	"poe2openai/internal/util"

	"github.com/gin-gonic/gin"
)

// rawModels serves the unfiltered upstream list and refreshes the cache as a side effect.
func (s *Server) rawModels(c *gin.Context) {
	start := time.Now()
	cfg := s.store.Get()

	snap, err := s.catalog.ForceRefresh(c.Request.Context(), cfg)
	if err != nil {
		s.logger.Error("[%s] raw models failed after %s: %v", c.GetString(ctxKeyRequestID), util.FormatDuration(time.Since(start)), err)
		respondWithOpenAIError(c, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("[%s] raw models: %d models in %s", c.GetString(ctxKeyRequestID), snap.Len(), util.FormatDuration(time.Since(start)))
	c.JSON(http.StatusOK, core.NewModelList(snap.Models()))
}

// listModels serves the merged catalog from cache, or the live upstream list when merging is off.
func (s *Server) listModels(c *gin.Context) {
	start := time.Now()
	cfg := s.store.Get()
	requestID := c.GetString(ctxKeyRequestID)

	if !cfg.MergeEnabled() {
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.CatalogFetchTimeout)
		defer cancel()

		models, err := s.source.Fetch(ctx, cfg)
		if err != nil {
			s.logger.Error("[%s] direct model fetch failed after %s: %v", requestID, util.FormatDuration(time.Since(start)), err)
			respondWithOpenAIError(c, http.StatusInternalServerError, "failed to fetch models from upstream: "+err.Error())
			return
		}

		s.logger.Info("[%s] direct models: %d models in %s", requestID, len(models), util.FormatDuration(time.Since(start)))
		c.JSON(http.StatusOK, core.NewModelList(models))
		return
	}

	snap, err := s.catalog.GetOrPopulate(c.Request.Context(), cfg)
	if err != nil {
		s.logger.Error("[%s] catalog cache population failed after %s: %v", requestID, util.FormatDuration(time.Since(start)), err)
		respondWithOpenAIError(c, http.StatusInternalServerError, "failed to retrieve model list to populate cache: "+err.Error())
		return
	}

	merged := catalog.MergeConfig(snap.Models(), cfg, time.Now())
	s.logger.Info("[%s] merged models: %d of %d upstream, %d custom rules, in %s",
		requestID, len(merged), snap.Len(), len(cfg.CustomModels), util.FormatDuration(time.Since(start)))
	c.JSON(http.StatusOK, core.NewModelList(merged))
}
