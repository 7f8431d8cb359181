package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"poe2openai/internal/catalog"
	"poe2openai/internal/core"
	"poe2openai/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const relayBufferSize = 32 * 1024

// chatCompletions relays an OpenAI chat request to Poe and streams the reply back unchanged.
func (s *Server) chatCompletions(c *gin.Context) {
	requestID := c.GetString(ctxKeyRequestID)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondWithOpenAIError(c, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		respondWithOpenAIError(c, http.StatusBadRequest, "failed to read request body")
		return
	}
	if !gjson.ValidBytes(body) {
		respondWithOpenAIError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	model := gjson.GetBytes(body, "model").String()
	if model == "" {
		respondWithOpenAIError(c, http.StatusBadRequest, "model is required")
		return
	}
	c.Set(ctxKeyModel, model)

	cfg := s.store.Get()
	token := util.BearerToken(c.GetHeader(core.HeaderAuthorization))
	if token == "" {
		token = cfg.APIToken
	}
	if token == "" {
		respondWithOpenAIError(c, http.StatusUnauthorized, "Poe API key required in Authorization header (Bearer)")
		return
	}

	if cfg.MergeEnabled() {
		if upstreamModel := s.upstreamModelID(c.Request.Context(), cfg, model); upstreamModel != model {
			body, err = sjson.SetBytes(body, "model", upstreamModel)
			if err != nil {
				respondWithOpenAIError(c, http.StatusInternalServerError, "failed to rewrite model")
				return
			}
			s.logger.Debug("[%s] model %s mapped back to %s", requestID, model, upstreamModel)
		}
	}

	stream := gjson.GetBytes(body, "stream").Bool()
	s.logger.Info("[%s] chat completion: model=%s stream=%v token=%s", requestID, model, stream, util.MaskToken(token))

	resp, err := s.source.ChatCompletions(c.Request.Context(), token, body, c.GetHeader(core.HeaderAccept))
	if err != nil {
		s.logger.Error("[%s] chat relay failed: %v", requestID, err)
		respondWithOpenAIError(c, http.StatusBadGateway, err.Error())
		return
	}
	defer func() { _ = resp.Body.Close() }()

	copyResponseHeaders(c, resp.Header)
	c.Status(resp.StatusCode)

	buf := make([]byte, relayBufferSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := c.Writer.Write(buf[:n]); writeErr != nil {
				s.logger.Debug("[%s] client disconnected during relay: %v", requestID, writeErr)
				return
			}
			c.Writer.Flush()
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				s.logger.Warn("[%s] upstream stream ended with error: %v", requestID, readErr)
			}
			return
		}
	}
}

// upstreamModelID maps a listed id back to the upstream model it was built from,
// using the same cached catalog the listing is served from. Ids that are not a
// rename are returned unchanged.
func (s *Server) upstreamModelID(ctx context.Context, cfg *core.ModelsConfig, model string) string {
	snap, err := s.catalog.GetOrPopulate(ctx, cfg)
	if err != nil {
		s.logger.Warn("Catalog unavailable, forwarding model %s unchanged: %v", model, err)
		return model
	}
	origin, ok := catalog.UpstreamID(snap.Models(), cfg, model)
	if !ok || origin == strings.ToLower(model) {
		return model
	}
	return origin
}
