package core

// ModelInfo represents a single model entry in the models list.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the OpenAI-compatible model list response.
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

// NewModelList wraps models into a list response. A nil slice is rendered as [].
func NewModelList(models []ModelInfo) ModelList {
	if models == nil {
		models = []ModelInfo{}
	}
	return ModelList{Object: ModelListObjectType, Data: models}
}

// ModelOverride is the per-model rule from models.yaml.
type ModelOverride struct {
	Enable  *bool  `yaml:"enable,omitempty" json:"enable,omitempty"`
	Mapping string `yaml:"mapping,omitempty" json:"mapping,omitempty"`
}

// Enabled reports whether the model stays visible. Absent means enabled.
func (o ModelOverride) Enabled() bool {
	return o.Enable == nil || *o.Enable
}

// Disabled reports whether enable was explicitly set to false.
func (o ModelOverride) Disabled() bool {
	return o.Enable != nil && !*o.Enable
}

// CustomModel is an operator-declared model appended to the catalog.
type CustomModel struct {
	ID      string `yaml:"id" json:"id"`
	Created *int64 `yaml:"created,omitempty" json:"created,omitempty"`
	OwnedBy string `yaml:"owned_by,omitempty" json:"owned_by,omitempty"`
}

// ModelsConfig holds the operator configuration loaded from models.yaml.
type ModelsConfig struct {
	Enable       *bool                    `yaml:"enable,omitempty" json:"enable,omitempty"`
	APIToken     string                   `yaml:"api_token,omitempty" json:"-"`
	UseV1API     *bool                    `yaml:"use_v1_api,omitempty" json:"use_v1_api,omitempty"`
	Models       map[string]ModelOverride `yaml:"models,omitempty" json:"models,omitempty"`
	CustomModels []CustomModel            `yaml:"custom_models,omitempty" json:"custom_models,omitempty"`
}

// MergeEnabled reports whether catalog merging is switched on. Absent means off.
func (c *ModelsConfig) MergeEnabled() bool {
	return c != nil && c.Enable != nil && *c.Enable
}

// TokenListingRequested reports whether the token-authenticated listing is configured.
func (c *ModelsConfig) TokenListingRequested() bool {
	return c != nil && c.UseV1API != nil && *c.UseV1API
}
