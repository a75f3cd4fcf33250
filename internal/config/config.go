package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-proxy/internal/common"
)

type AppConfig struct {
	Port string `yaml:"port"`

	// Records service.
	UpstreamBaseURL string        `yaml:"upstream_base_url"`
	MaxRetries      int           `yaml:"max_retries"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay"`
	UpstreamLimit   int           `yaml:"upstream_limit"`
	UpstreamRPS     float64       `yaml:"upstream_rps"`

	// Cache.
	CacheTTL time.Duration `yaml:"cache_ttl"`
	RedisURL string        `yaml:"redis_url"`

	// Warm-up job; disabled when WarmCities is empty.
	WarmCities   []string      `yaml:"warm_cities"`
	WarmDays     int           `yaml:"warm_days"`
	WarmInterval time.Duration `yaml:"warm_interval"`

	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig mirrors the browser-facing header policy.
type CORSConfig struct {
	AllowOrigins     string `yaml:"allow_origins"`
	AllowMethods     string `yaml:"allow_methods"`
	AllowHeaders     string `yaml:"allow_headers"`
	ExposeHeaders    string `yaml:"expose_headers"`
	AllowCredentials bool   `yaml:"allow_credentials"`
	MaxAge           int    `yaml:"max_age"`
}

// Load reads configuration from an optional YAML file (CONFIG_FILE) and then
// the environment, which takes precedence. Unset values get defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func defaults() *AppConfig {
	return &AppConfig{
		Port:            "8080",
		UpstreamBaseURL: "http://servicioa:8080",
		MaxRetries:      3,
		RequestTimeout:  5 * time.Second,
		RetryBaseDelay:  time.Second,
		UpstreamLimit:   1000,
		CacheTTL:        600 * time.Second,
		WarmDays:        5,
		WarmInterval:    30 * time.Minute,
		CORS: CORSConfig{
			AllowOrigins:  "*",
			AllowMethods:  "GET,OPTIONS",
			AllowHeaders:  "*",
			ExposeHeaders: "X-Cache,X-Request-ID",
			MaxAge:        600,
		},
	}
}

func (c *AppConfig) applyEnv() error {
	c.Port = getenvDefault("PORT", c.Port)
	c.UpstreamBaseURL = getenvDefault("SERVICE_A_BASE_URL", c.UpstreamBaseURL)
	c.MaxRetries = getenvInt("MAX_RETRIES", c.MaxRetries)
	c.UpstreamLimit = getenvInt("UPSTREAM_LIMIT", c.UpstreamLimit)
	c.RedisURL = strings.TrimSpace(getenvDefault("REDIS_URL", c.RedisURL))
	c.WarmDays = getenvInt("WARM_DAYS", c.WarmDays)

	var err error
	if c.RequestTimeout, err = getenvSeconds("PER_REQ_TIMEOUT", c.RequestTimeout); err != nil {
		return err
	}
	if c.RetryBaseDelay, err = getenvSeconds("RETRY_BASE_DELAY", c.RetryBaseDelay); err != nil {
		return err
	}
	if c.CacheTTL, err = getenvSeconds("CACHE_TTL_SECONDS", c.CacheTTL); err != nil {
		return err
	}
	if c.WarmInterval, err = getenvSeconds("WARM_INTERVAL", c.WarmInterval); err != nil {
		return err
	}
	if v := os.Getenv("UPSTREAM_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid UPSTREAM_RPS: %w", err)
		}
		c.UpstreamRPS = rps
	}
	if v := os.Getenv("WARM_CITIES"); v != "" {
		c.WarmCities = splitList(v)
	}

	c.CORS.AllowOrigins = getenvDefault("ALLOW_ORIGINS", c.CORS.AllowOrigins)
	c.CORS.AllowMethods = getenvDefault("ALLOW_METHODS", c.CORS.AllowMethods)
	c.CORS.AllowHeaders = getenvDefault("ALLOW_HEADERS", c.CORS.AllowHeaders)
	c.CORS.ExposeHeaders = getenvDefault("EXPOSE_HEADERS", c.CORS.ExposeHeaders)
	c.CORS.MaxAge = getenvInt("CORS_MAX_AGE", c.CORS.MaxAge)
	if v := os.Getenv("ALLOW_CREDENTIALS"); v != "" {
		c.CORS.AllowCredentials = strings.EqualFold(v, "true")
	}
	return nil
}

func (c *AppConfig) validate() error {
	if c.MaxRetries < 1 {
		return fmt.Errorf("MAX_RETRIES must be at least 1")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must be positive")
	}
	if c.RedisURL != "" && !common.HasAny(c.RedisURL, "redis://", "rediss://", "unix://") {
		return fmt.Errorf("REDIS_URL must use redis://, rediss:// or unix:// scheme")
	}
	if c.CORS.AllowCredentials && c.CORS.AllowOrigins == "*" {
		return fmt.Errorf("ALLOW_CREDENTIALS requires explicit ALLOW_ORIGINS")
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

// getenvSeconds accepts either a Go duration ("1m30s") or a bare number of seconds ("5", "0.5").
func getenvSeconds(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
