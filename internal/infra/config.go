package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	StoragePath        string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerSecond float64
	RateLimitBurst     int
	CORSAllowedOrigins []string

	JobSubmitTimeout time.Duration
	JobPollTimeout   time.Duration
	JobPollInterval  time.Duration
	JobMaxWait       time.Duration

	RenderMCPURL        string
	RenderMCPToken      string
	RenderMCPStatusPath string

	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string

	HeyGenAPIKey     string
	HeyGenBaseURL    string
	HeyGenStatusPath string

	RunwayAPIKey     string
	RunwayBaseURL    string
	RunwayAPIVersion string
	RunwayStatusPath string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// Provider credentials are optional here; providers without a key are simply not registered.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 360)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerSecond: getEnvFloat("RATE_LIMIT_PER_SECOND", 2),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 10),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		JobSubmitTimeout: getEnvDuration("JOB_SUBMIT_TIMEOUT", 30*time.Second),
		JobPollTimeout:   getEnvDuration("JOB_POLL_TIMEOUT", 10*time.Second),
		JobPollInterval:  getEnvDuration("JOB_POLL_INTERVAL", 5*time.Second),
		JobMaxWait:       getEnvDuration("JOB_MAX_WAIT", 5*time.Minute),

		RenderMCPURL:        getEnv("RENDER_MCP_URL", "https://mcp.render.com/mcp"),
		RenderMCPToken:      os.Getenv("RENDER_MCP_TOKEN"),
		RenderMCPStatusPath: getEnv("RENDER_MCP_STATUS_PATH", "/jobs/{id}"),

		ElevenLabsAPIKey:  os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsBaseURL: getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io/v1"),

		HeyGenAPIKey:     os.Getenv("HEYGEN_API_KEY"),
		HeyGenBaseURL:    getEnv("HEYGEN_BASE_URL", "https://api.heygen.com/v2"),
		HeyGenStatusPath: getEnv("HEYGEN_STATUS_PATH", "/jobs/{id}"),

		RunwayAPIKey:     os.Getenv("RUNWAYML_API_KEY"),
		RunwayBaseURL:    getEnv("RUNWAYML_BASE_URL", "https://api.runwayml.com/v1"),
		RunwayAPIVersion: getEnv("RUNWAYML_API_VERSION", "2024-09-13"),
		RunwayStatusPath: getEnv("RUNWAYML_STATUS_PATH", "/tasks/{id}"),
	}

	if cfg.JobPollInterval <= 0 {
		return nil, fmt.Errorf("JOB_POLL_INTERVAL must be positive")
	}
	if cfg.JobMaxWait < cfg.JobPollInterval {
		return nil, fmt.Errorf("JOB_MAX_WAIT (%s) must not be shorter than JOB_POLL_INTERVAL (%s)", cfg.JobMaxWait, cfg.JobPollInterval)
	}
	if cfg.JobSubmitTimeout <= 0 || cfg.JobSubmitTimeout >= cfg.JobMaxWait {
		return nil, fmt.Errorf("JOB_SUBMIT_TIMEOUT (%s) must be positive and shorter than JOB_MAX_WAIT (%s)", cfg.JobSubmitTimeout, cfg.JobMaxWait)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// getEnvDuration accepts Go duration strings ("90s", "5m") or plain seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
