package auc

import "time"

// Config captures the runtime settings of the remote speech API.
type Config struct {
	BaseURL        string
	AppKey         string
	AccessKey      string
	ResourceID     string
	ModelName      string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	// Size limits in bytes.
	MaxFileSize         int64
	RecommendedFileSize int64
	MaxDuration         time.Duration
}

// API defaults.
const (
	DefaultBaseURL        = "https://openspeech.bytedance.com/api/v3"
	DefaultResourceID     = "volc.bigasr.auc_turbo"
	DefaultModelName      = "bigmodel"
	EndpointPath          = "/auc/bigmodel/recognize/flash"
	defaultConnectTimeout = 10 * time.Second
	defaultRequestTimeout = 120 * time.Second
	defaultMaxFileSize    = 100 << 20
	defaultRecommended    = 20 << 20
	defaultMaxDuration    = 2 * time.Hour
	statusOK              = "20000000"
)

// Response headers and request headers used by the API.
const (
	headerAppKey     = "X-Api-App-Key"
	headerAccessKey  = "X-Api-Access-Key"
	headerResourceID = "X-Api-Resource-Id"
	headerRequestID  = "X-Api-Request-Id"
	headerSequence   = "X-Api-Sequence"
	headerStatusCode = "X-Api-Status-Code"
	headerMessage    = "X-Api-Message"
	headerLogID      = "X-Tt-Logid"
)

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.ResourceID == "" {
		c.ResourceID = DefaultResourceID
	}
	if c.ModelName == "" {
		c.ModelName = DefaultModelName
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = defaultMaxFileSize
	}
	if c.RecommendedFileSize <= 0 {
		c.RecommendedFileSize = defaultRecommended
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = defaultMaxDuration
	}
	return c
}
