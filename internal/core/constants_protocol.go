package core

// Default config constants
const (
	DefaultHost             = "0.0.0.0"
	DefaultPort             = "8080"
	DefaultGinMode          = "release"
	DefaultConfigDir        = "./"
	DefaultModelsConfigFile = "models.yaml"
	CORSMaxAge              = "86400"
)

// Content type and header constants
const (
	ContentTypeJSON      = "application/json"
	HeaderContentType    = "Content-Type"
	HeaderAuthorization  = "Authorization"
	HeaderAccept         = "Accept"
	HeaderAcceptLanguage = "Accept-Language"
	HeaderCacheControl   = "Cache-Control"
	HeaderRequestID      = "X-Request-ID"
	AuthBearerPrefix     = "Bearer "
)

// Route paths served by the catalog handlers
const (
	PathRawModels = "/api/models"
	PathModels    = "/models"
	PathV1Models  = "/v1/models"
)
