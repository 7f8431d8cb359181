package core

// Poe API endpoint constants
const (
	PoeAPIBaseURL           = "https://api.poe.com"
	PoeV1ModelsPath         = "/v1/models"
	PoeChatCompletionsPath  = "/v1/chat/completions"
	PoeLegacyModelsURL      = "https://poe.com/api/models"
	PoeLegacyLocaleQueryKey = "lang"
)
