// Package config provides configuration loading and validation for the askaround client.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the client.
type Config struct {
	Env string `koanf:"env"`

	// Backend
	APIBaseURL      string `koanf:"api_base_url"`
	APIToken        string `koanf:"api_token"`
	RequestTimeoutS int    `koanf:"request_timeout_s"`

	// Google Geocoding / Places
	MapsAPIKey string `koanf:"maps_api_key"`

	// Push notifications
	PushToken string `koanf:"push_token"`

	// Feed and query behaviour
	PageSize     int `koanf:"page_size"`
	DebounceMS   int `koanf:"debounce_ms"`
	GCTimeMS     int `koanf:"gc_time_ms"`
	QueryRetries int `koanf:"query_retries"`

	// Background jobs
	LocationPushIntervalS int `koanf:"location_push_interval_s"`

	// Cache second tier (optional)
	RedisAddr string `koanf:"redis_addr"`
	CacheTTLS int    `koanf:"cache_ttl_s"`

	// Observability
	TracingEnabled bool   `koanf:"tracing_enabled"`
	OTLPEndpoint   string `koanf:"otlp_endpoint"`
	MetricsAddr    string `koanf:"metrics_addr"`
}

// Configuration validation errors.
var (
	ErrMissingAPIBaseURL   = errors.New("ASKAROUND_API_BASE_URL is required")
	ErrInvalidAPIBaseURL   = errors.New("ASKAROUND_API_BASE_URL must be an absolute http(s) URL")
	ErrMissingMapsAPIKey   = errors.New("ASKAROUND_MAPS_API_KEY is required for geocoding")
	ErrMissingOTLPEndpoint = errors.New("ASKAROUND_OTLP_ENDPOINT is required when tracing is enabled")
	ErrInvalidInteger      = errors.New("must be a valid integer")
	ErrNotPositive         = errors.New("must be positive")
)

// Default values for non-secret configuration.
const (
	DefaultEnv                   = "development"
	DefaultPageSize              = 10
	DefaultDebounceMS            = 1000
	DefaultGCTimeMS              = 1000
	DefaultQueryRetries          = 2
	DefaultLocationPushIntervalS = 30
	DefaultRequestTimeoutS       = 15
	DefaultCacheTTLS             = 300
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	intVal := func(envKey, koanfKey string, defaultVal int) int {
		v, err := getEnvIntOrDefault(envKey, k.Int(koanfKey), defaultVal)
		if err != nil {
			loadErrs = append(loadErrs, err)
		}
		return v
	}

	tracingEnabled := k.Bool("tracing_enabled")
	if val, ok := parseBool(os.Getenv("ASKAROUND_TRACING_ENABLED")); ok {
		tracingEnabled = val
	}

	cfg := &Config{
		Env:                   getEnvOrDefaultMulti([]string{"ASKAROUND_ENV", "ENV"}, k.String("env"), DefaultEnv),
		APIBaseURL:            strings.TrimRight(getEnvOrKoanf("ASKAROUND_API_BASE_URL", k, "api_base_url"), "/"),
		APIToken:              getEnvOrKoanf("ASKAROUND_API_TOKEN", k, "api_token"),
		RequestTimeoutS:       intVal("ASKAROUND_REQUEST_TIMEOUT_S", "request_timeout_s", DefaultRequestTimeoutS),
		MapsAPIKey:            getEnvOrKoanf("ASKAROUND_MAPS_API_KEY", k, "maps_api_key"),
		PushToken:             getEnvOrKoanf("ASKAROUND_PUSH_TOKEN", k, "push_token"),
		PageSize:              intVal("ASKAROUND_PAGE_SIZE", "page_size", DefaultPageSize),
		DebounceMS:            intVal("ASKAROUND_DEBOUNCE_MS", "debounce_ms", DefaultDebounceMS),
		GCTimeMS:              intVal("ASKAROUND_GC_TIME_MS", "gc_time_ms", DefaultGCTimeMS),
		QueryRetries:          intVal("ASKAROUND_QUERY_RETRIES", "query_retries", DefaultQueryRetries),
		LocationPushIntervalS: intVal("ASKAROUND_LOCATION_PUSH_INTERVAL_S", "location_push_interval_s", DefaultLocationPushIntervalS),
		RedisAddr:             getEnvOrKoanf("ASKAROUND_REDIS_ADDR", k, "redis_addr"),
		CacheTTLS:             intVal("ASKAROUND_CACHE_TTL_S", "cache_ttl_s", DefaultCacheTTLS),
		TracingEnabled:        tracingEnabled,
		OTLPEndpoint:          getEnvOrKoanf("ASKAROUND_OTLP_ENDPOINT", k, "otlp_endpoint"),
		MetricsAddr:           getEnvOrKoanf("ASKAROUND_METRICS_ADDR", k, "metrics_addr"),
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
// A zero from the YAML file falls back to the default.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return defaultVal, fmt.Errorf("%s %w", envKey, ErrInvalidInteger)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	}
	return false, false
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid). A missing maps key
// is not an error here; see GeocodingEnabled.
func (c *Config) Validate() []error {
	var errs []error

	if c.APIBaseURL == "" {
		errs = append(errs, ErrMissingAPIBaseURL)
	} else if u, err := url.Parse(c.APIBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ErrInvalidAPIBaseURL)
	}

	positive := []struct {
		name string
		val  int
	}{
		{"page_size", c.PageSize},
		{"debounce_ms", c.DebounceMS},
		{"gc_time_ms", c.GCTimeMS},
		{"location_push_interval_s", c.LocationPushIntervalS},
		{"request_timeout_s", c.RequestTimeoutS},
		{"cache_ttl_s", c.CacheTTLS},
	}
	for _, p := range positive {
		if p.val <= 0 {
			errs = append(errs, fmt.Errorf("%s %w", p.name, ErrNotPositive))
		}
	}
	if c.QueryRetries < 0 {
		errs = append(errs, fmt.Errorf("query_retries %w", ErrNotPositive))
	}

	if c.TracingEnabled && c.OTLPEndpoint == "" {
		errs = append(errs, ErrMissingOTLPEndpoint)
	}

	return errs
}

// GeocodingEnabled reports whether a maps key is configured.
func (c *Config) GeocodingEnabled() bool { return c.MapsAPIKey != "" }

// RequireGeocoding returns ErrMissingMapsAPIKey when geocoding is unavailable.
func (c *Config) RequireGeocoding() error {
	if !c.GeocodingEnabled() {
		return ErrMissingMapsAPIKey
	}
	return nil
}

// Debounce is the viewport quiet period.
func (c *Config) Debounce() time.Duration { return time.Duration(c.DebounceMS) * time.Millisecond }

// GCTime is how long an unobserved query survives.
func (c *Config) GCTime() time.Duration { return time.Duration(c.GCTimeMS) * time.Millisecond }

// LocationPushInterval is the period of the location push job.
func (c *Config) LocationPushInterval() time.Duration {
	return time.Duration(c.LocationPushIntervalS) * time.Second
}

// RequestTimeout bounds each backend request.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutS) * time.Second
}

// CacheTTL is the expiry of entries written to the second tier.
func (c *Config) CacheTTL() time.Duration { return time.Duration(c.CacheTTLS) * time.Second }

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"env":                      c.Env,
		"api_base_url":             c.APIBaseURL,
		"api_token":                maskSecret(c.APIToken),
		"request_timeout_s":        strconv.Itoa(c.RequestTimeoutS),
		"maps_api_key":             maskSecret(c.MapsAPIKey),
		"push_token":               maskPushToken(c.PushToken),
		"page_size":                strconv.Itoa(c.PageSize),
		"debounce_ms":              strconv.Itoa(c.DebounceMS),
		"gc_time_ms":               strconv.Itoa(c.GCTimeMS),
		"query_retries":            strconv.Itoa(c.QueryRetries),
		"location_push_interval_s": strconv.Itoa(c.LocationPushIntervalS),
		"redis_addr":               maskRedisAddr(c.RedisAddr),
		"cache_ttl_s":              strconv.Itoa(c.CacheTTLS),
		"tracing_enabled":          strconv.FormatBool(c.TracingEnabled),
		"otlp_endpoint":            c.OTLPEndpoint,
		"metrics_addr":             c.MetricsAddr,
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskPushToken keeps the Expo wrapper, e.g. ExponentPushToken[****].
func maskPushToken(s string) string {
	if s == "" {
		return "<not set>"
	}
	if i := strings.IndexByte(s, '['); i > 0 && strings.HasSuffix(s, "]") {
		return s[:i] + "[****]"
	}
	return maskSecret(s)
}

// maskRedisAddr masks the password in a redis:// URL. Plain host:port
// addresses are returned unchanged.
func maskRedisAddr(s string) string {
	if s == "" {
		return "<not set>"
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.User == nil {
		return s
	}
	if _, ok := u.User.Password(); !ok {
		return s
	}
	return u.Scheme + "://" + u.User.Username() + ":****@" + u.Host + u.Path
}
