package infra

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultModelsLabBaseURL = "https://modelslab.com/api/v6"

	defaultTextPollInterval  = 6
	defaultImagePollInterval = 8
	defaultPollMaxAttempts   = 60
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	ModelsLabAPIKey         string
	ModelsLabBaseURL        string
	ModelsLabRequestTimeout time.Duration

	TextPollInterval     time.Duration
	TextPollMaxAttempts  int
	ImagePollInterval    time.Duration
	ImagePollMaxAttempts int
	CancelOnDisconnect   bool

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	MaxBodyBytes     int64

	CORSAllowedOrigins []string
	RateLimitPerMin    int
	DefaultLocale      string
	GeoIPDBPath        string

	TracingEnabled bool
	OTLPEndpoint   string
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. A missing ModelsLab key is not an error: the server
// starts and generation calls fail at the remote service.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:                  getEnv("APP_ENV", "development"),
		Port:                    getEnv("PORT", "4000"),
		ModelsLabAPIKey:         strings.TrimSpace(os.Getenv("MODELSLAB_API_KEY")),
		ModelsLabBaseURL:        strings.TrimRight(getEnv("MODELSLAB_BASE_URL", DefaultModelsLabBaseURL), "/"),
		ModelsLabRequestTimeout: time.Second * time.Duration(getEnvInt("MODELSLAB_REQUEST_TIMEOUT_SECONDS", 0)),
		TextPollInterval:        time.Second * time.Duration(getEnvPositiveInt("TEXT_POLL_INTERVAL_SECONDS", defaultTextPollInterval)),
		TextPollMaxAttempts:     getEnvPositiveInt("TEXT_POLL_MAX_ATTEMPTS", defaultPollMaxAttempts),
		ImagePollInterval:       time.Second * time.Duration(getEnvPositiveInt("IMAGE_POLL_INTERVAL_SECONDS", defaultImagePollInterval)),
		ImagePollMaxAttempts:    getEnvPositiveInt("IMAGE_POLL_MAX_ATTEMPTS", defaultPollMaxAttempts),
		CancelOnDisconnect:      getEnvBool("CANCEL_ON_DISCONNECT", false),
		HTTPReadTimeout:         time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 60)),
		HTTPWriteTimeout:        time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 600)),
		HTTPIdleTimeout:         time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 120)),
		MaxBodyBytes:            int64(getEnvPositiveInt("MAX_BODY_BYTES", 50<<20)),
		CORSAllowedOrigins:      splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		RateLimitPerMin:         getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		DefaultLocale:           getEnv("DEFAULT_LOCALE", "en"),
		GeoIPDBPath:             os.Getenv("GEOIP_DB_PATH"),
		TracingEnabled:          getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:            os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	return cfg, nil
}

// WriteTimeoutCovers reports whether a response that takes up to ceiling can
// still be written. A zero write timeout never cuts a response.
func (c *Config) WriteTimeoutCovers(ceiling time.Duration) bool {
	return c.HTTPWriteTimeout <= 0 || ceiling < c.HTTPWriteTimeout
}

// HasModelsLabKey reports whether a remote credential was configured.
func (c *Config) HasModelsLabKey() bool {
	return c != nil && c.ModelsLabAPIKey != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvPositiveInt(key string, fallback int) int {
	if v := getEnvInt(key, fallback); v > 0 {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
