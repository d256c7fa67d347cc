package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `json:"server"`
	Redis    RedisConfig    `json:"redis"`
	Lookup   LookupConfig   `json:"lookup"`
	Captcha  CaptchaConfig  `json:"captcha"`
	Log      LogConfig      `json:"log"`
	Security SecurityConfig `json:"security"`
	Browser  BrowserConfig  `json:"browser"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         int    `json:"port"`
	Environment  string `json:"environment"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
	IdleTimeout  int    `json:"idle_timeout"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// LookupConfig holds the PAN fetch controller configuration
type LookupConfig struct {
	BaseURL        string        `json:"base_url"`
	ElementTimeout time.Duration `json:"element_timeout"`
	PacingDelay    time.Duration `json:"pacing_delay"`
	Workers        int           `json:"workers"`
	CacheEnabled   bool          `json:"cache_enabled"`
	CacheTTL       time.Duration `json:"cache_ttl"`
	Wall           BackoffConfig `json:"wall"`
}

// BackoffConfig controls the wait-and-retry loop against the captcha wall.
// MaxAttempts of zero means retry forever.
type BackoffConfig struct {
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Factor       float64       `json:"factor"`
	MaxAttempts  int           `json:"max_attempts"`
}

// CaptchaConfig holds captcha solving configuration
type CaptchaConfig struct {
	ImageEnabled  bool   `json:"image_enabled"`
	ImageSelector string `json:"image_selector"`
	DebugDir      string `json:"debug_dir"`
	OCRLanguage   string `json:"ocr_language"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimit  RateLimitConfig `json:"rate_limit"`
	CORS       CORSConfig      `json:"cors"`
	AdminToken string          `json:"-"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute"`
	BurstSize         int           `json:"burst_size"`
	CleanupInterval   time.Duration `json:"cleanup_interval"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
}

// BrowserConfig holds browser automation configuration
type BrowserConfig struct {
	PoolSize     int           `json:"pool_size"`
	ExecPath     string        `json:"exec_path"`
	Headless     bool          `json:"headless"`
	StartTimeout time.Duration `json:"start_timeout"`
	AcquireWait  time.Duration `json:"acquire_wait"`
	WindowWidth  int           `json:"window_width"`
	WindowHeight int           `json:"window_height"`
	UserAgent    string        `json:"user_agent"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvAsInt("PORT", 8080),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 600),
			IdleTimeout:  getEnvAsInt("IDLE_TIMEOUT", 60),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			DialTimeout:  time.Duration(getEnvAsInt("REDIS_DIAL_TIMEOUT", 5)) * time.Second,
			ReadTimeout:  time.Duration(getEnvAsInt("REDIS_READ_TIMEOUT", 3)) * time.Second,
			WriteTimeout: time.Duration(getEnvAsInt("REDIS_WRITE_TIMEOUT", 3)) * time.Second,
		},
		Lookup: LookupConfig{
			BaseURL:        getEnv("PAN_BASE_URL", "https://ird.gov.np/pan-search"),
			ElementTimeout: getEnvAsDuration("PAN_ELEMENT_TIMEOUT", 5*time.Second),
			PacingDelay:    getEnvAsDuration("PAN_PACING_DELAY", time.Second),
			Workers:        getEnvAsInt("PAN_WORKERS", 1),
			CacheEnabled:   getEnvAsBool("PAN_CACHE_ENABLED", true),
			CacheTTL:       getEnvAsDuration("PAN_CACHE_TTL", time.Hour),
			Wall: BackoffConfig{
				InitialDelay: getEnvAsDuration("PAN_WALL_DELAY", 10*time.Second),
				MaxDelay:     getEnvAsDuration("PAN_WALL_MAX_DELAY", 2*time.Minute),
				Factor:       getEnvAsFloat("PAN_WALL_FACTOR", 2),
				MaxAttempts:  getEnvAsInt("PAN_WALL_MAX_ATTEMPTS", 8),
			},
		},
		Captcha: CaptchaConfig{
			ImageEnabled:  getEnvAsBool("CAPTCHA_IMAGE_ENABLED", true),
			ImageSelector: getEnv("CAPTCHA_IMAGE_SELECTOR", `img[src^="data:image"]`),
			DebugDir:      getEnv("CAPTCHA_DEBUG_DIR", ""),
			OCRLanguage:   getEnv("CAPTCHA_OCR_LANGUAGE", "eng"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 60),
				BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", 10),
				CleanupInterval:   time.Duration(getEnvAsInt("RATE_LIMIT_CLEANUP", 60)) * time.Second,
			},
			CORS: CORSConfig{
				AllowedOrigins:   getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
				AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "X-Request-ID", "X-Admin-Token"},
				AllowCredentials: false,
			},
			AdminToken: getEnv("ADMIN_TOKEN", ""),
		},
		Browser: BrowserConfig{
			PoolSize:     getEnvAsInt("BROWSER_POOL_SIZE", 1),
			ExecPath:     getEnv("BROWSER_EXEC_PATH", ""),
			Headless:     getEnvAsBool("BROWSER_HEADLESS", true),
			StartTimeout: getEnvAsDuration("BROWSER_START_TIMEOUT", 15*time.Second),
			AcquireWait:  getEnvAsDuration("BROWSER_ACQUIRE_WAIT", 10*time.Second),
			WindowWidth:  getEnvAsInt("BROWSER_WINDOW_WIDTH", 1920),
			WindowHeight: getEnvAsInt("BROWSER_WINDOW_HEIGHT", 1080),
			UserAgent:    getEnv("BROWSER_USER_AGENT", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values that would otherwise stall or break the fetch loop
func (c *Config) Validate() error {
	if c.Lookup.BaseURL == "" {
		return fmt.Errorf("PAN_BASE_URL is required")
	}
	if c.Lookup.ElementTimeout <= 0 {
		return fmt.Errorf("PAN_ELEMENT_TIMEOUT must be positive, got %v", c.Lookup.ElementTimeout)
	}
	if c.Lookup.PacingDelay < 0 {
		return fmt.Errorf("PAN_PACING_DELAY must not be negative, got %v", c.Lookup.PacingDelay)
	}
	if c.Lookup.Workers < 1 {
		return fmt.Errorf("PAN_WORKERS must be at least 1, got %d", c.Lookup.Workers)
	}
	if c.Lookup.Wall.InitialDelay <= 0 {
		return fmt.Errorf("PAN_WALL_DELAY must be positive, got %v", c.Lookup.Wall.InitialDelay)
	}
	if c.Lookup.Wall.Factor < 1 {
		return fmt.Errorf("PAN_WALL_FACTOR must be >= 1, got %v", c.Lookup.Wall.Factor)
	}
	if c.Lookup.Wall.MaxAttempts < 0 {
		return fmt.Errorf("PAN_WALL_MAX_ATTEMPTS must not be negative, got %d", c.Lookup.Wall.MaxAttempts)
	}
	if c.Browser.PoolSize < 1 {
		return fmt.Errorf("BROWSER_POOL_SIZE must be at least 1, got %d", c.Browser.PoolSize)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("10s") or plain seconds ("10")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
