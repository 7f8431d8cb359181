package upstream

import (
	"bytes"
	"context"
	"net/http"

	"poe2openai/internal/core"
)

// ChatCompletions forwards an OpenAI chat completion body to Poe.
// The caller owns the returned response body.
func (s *Source) ChatCompletions(ctx context.Context, token string, body []byte, accept string) (*http.Response, error) {
	const op = "chat/completions"

	if token == "" {
		return nil, core.ErrMissingCredential
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+core.PoeChatCompletionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, &core.UpstreamError{Op: op, Message: "failed to build request", Err: err}
	}
	req.Header.Set(core.HeaderAuthorization, core.AuthBearerPrefix+token)
	req.Header.Set(core.HeaderContentType, core.ContentTypeJSON)
	if accept != "" {
		req.Header.Set(core.HeaderAccept, accept)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &core.UpstreamError{Op: op, Message: "request failed: " + err.Error(), Err: err}
	}
	return resp, nil
}
