package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"poe2openai/internal/core"
	"poe2openai/internal/util"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"
)

// Mode is the catalog retrieval strategy, resolved once from models.yaml.
type Mode interface {
	Name() string
}

// TokenListing fetches {base}/v1/models with a bearer token.
type TokenListing struct {
	Token string
}

// Name implements Mode.
func (TokenListing) Name() string { return "v1" }

// LegacyListing fetches the public model list with a fixed locale.
type LegacyListing struct{}

// Name implements Mode.
func (LegacyListing) Name() string { return "legacy" }

// ResolveMode picks the retrieval strategy for cfg.
func ResolveMode(cfg *core.ModelsConfig) (Mode, error) {
	if !cfg.TokenListingRequested() {
		return LegacyListing{}, nil
	}
	if cfg.APIToken == "" {
		return nil, core.ErrMissingCredential
	}
	return TokenListing{Token: cfg.APIToken}, nil
}

// Source fetches the upstream model catalog.
type Source struct {
	client    *http.Client
	baseURL   string
	legacyURL string
	logger    core.Logger
	metrics   core.MetricsCollector
}

// NewSource creates a catalog source. Empty URLs fall back to the public Poe endpoints.
func NewSource(client *http.Client, baseURL, legacyURL string, logger core.Logger, metrics core.MetricsCollector) *Source {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = core.PoeAPIBaseURL
	}
	if legacyURL == "" {
		legacyURL = core.PoeLegacyModelsURL
	}
	if logger == nil {
		logger = &core.NopLogger{}
	}
	if metrics == nil {
		metrics = &core.NopMetrics{}
	}
	return &Source{
		client:    client,
		baseURL:   baseURL,
		legacyURL: legacyURL,
		logger:    logger,
		metrics:   metrics,
	}
}

// Fetch implements core.CatalogFetcher. Every returned id is lowercase.
func (s *Source) Fetch(ctx context.Context, cfg *core.ModelsConfig) ([]core.ModelInfo, error) {
	mode, err := ResolveMode(cfg)
	if err != nil {
		s.logger.Error("Catalog fetch aborted: %v", err)
		s.metrics.RecordCatalogFetch("v1", err, 0)
		return nil, err
	}

	start := time.Now()
	var models []core.ModelInfo
	switch m := mode.(type) {
	case TokenListing:
		s.logger.Info("Fetching model list via v1/models API")
		models, err = s.fetchTokenListing(ctx, m.Token)
	case LegacyListing:
		s.logger.Info("Fetching model list via legacy listing API")
		models, err = s.fetchLegacyListing(ctx)
	default:
		err = fmt.Errorf("unsupported catalog mode %T", mode)
	}

	duration := time.Since(start)
	s.metrics.RecordCatalogFetch(mode.Name(), err, duration)
	if err != nil {
		s.logger.Error("Catalog fetch (%s) failed after %s: %v", mode.Name(), util.FormatDuration(duration), err)
		return nil, err
	}

	s.logger.Debug("Catalog fetch (%s) returned %d models in %s", mode.Name(), len(models), util.FormatDuration(duration))
	return util.LowercaseIDs(models), nil
}

func (s *Source) fetchTokenListing(ctx context.Context, token string) ([]core.ModelInfo, error) {
	const op = "v1/models"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+core.PoeV1ModelsPath, nil)
	if err != nil {
		return nil, &core.UpstreamError{Op: op, Message: "failed to build request", Err: err}
	}
	req.Header.Set(core.HeaderAuthorization, core.AuthBearerPrefix+token)
	req.Header.Set(core.HeaderAccept, core.ContentTypeJSON)

	body, err := s.do(req, op)
	if err != nil {
		return nil, err
	}

	var list core.ModelList
	if err := sonic.Unmarshal(body, &list); err != nil {
		return nil, &core.UpstreamError{Op: op, Message: "failed to decode response", Err: err}
	}
	return list.Data, nil
}

func (s *Source) fetchLegacyListing(ctx context.Context) ([]core.ModelInfo, error) {
	const op = "legacy models"

	target, err := url.Parse(s.legacyURL)
	if err != nil {
		return nil, &core.UpstreamError{Op: op, Message: "invalid legacy models URL", Err: err}
	}
	query := target.Query()
	query.Set(core.PoeLegacyLocaleQueryKey, core.CatalogLegacyLocale)
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, &core.UpstreamError{Op: op, Message: "failed to build request", Err: err}
	}
	req.Header.Set(core.HeaderAcceptLanguage, core.CatalogLegacyLocale)
	req.Header.Set(core.HeaderAccept, core.ContentTypeJSON)

	body, err := s.do(req, op)
	if err != nil {
		return nil, err
	}
	return parseLegacyListing(body)
}

// parseLegacyListing reads the data array leniently; entries without an id are skipped.
func parseLegacyListing(body []byte) ([]core.ModelInfo, error) {
	if !gjson.ValidBytes(body) {
		return nil, &core.UpstreamError{Op: "legacy models", Message: "response is not valid JSON"}
	}
	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, &core.UpstreamError{Op: "legacy models", Message: "response has no data array"}
	}

	models := make([]core.ModelInfo, 0, len(data.Array()))
	data.ForEach(func(_, entry gjson.Result) bool {
		id := entry.Get("id").String()
		if id == "" {
			return true
		}
		model := core.ModelInfo{
			ID:      id,
			Object:  entry.Get("object").String(),
			Created: entry.Get("created").Int(),
			OwnedBy: entry.Get("owned_by").String(),
		}
		if model.Object == "" {
			model.Object = core.ModelObjectType
		}
		if model.OwnedBy == "" {
			model.OwnedBy = core.ModelOwner
		}
		models = append(models, model)
		return true
	})
	return models, nil
}

func (s *Source) do(req *http.Request, op string) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &core.UpstreamError{Op: op, Message: "request failed: " + err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, core.MaxResponseBodySize))
	if err != nil {
		return nil, &core.UpstreamError{Op: op, StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &core.UpstreamError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    extractErrorMessage(body),
		}
	}
	return body, nil
}

// extractErrorMessage prefers error.message, then error, then the truncated raw body.
func extractErrorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "error", "message"} {
			if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}
	msg := string(body)
	if len(msg) > core.MaxErrorBodyLogLength {
		msg = msg[:core.MaxErrorBodyLogLength] + "..."
	}
	if msg == "" {
		msg = "empty response body"
	}
	return msg
}
