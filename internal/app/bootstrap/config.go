package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration. It merges file defaults
// and environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID   string
	Environment string
	HTTPPort    int

	APIKey           string
	LockoutThreshold int
	LockoutWindow    time.Duration
	MaxRequestBytes  int64

	StoreBackend string
	DatabaseURL  string
	MaxDBConns   int32
	SeedData     bool

	RedisURL            string
	KafkaBrokers        []string
	TopicRefundApproved string
}

func (c Config) IsProduction() bool { return c.Environment == "production" }

// configFile mirrors the YAML schema used by configs/default.yaml.
type configFile struct {
	Service struct {
		ID          string `yaml:"id"`
		HTTPPort    int    `yaml:"http_port"`
		Environment string `yaml:"environment"`
	} `yaml:"service"`
	Security struct {
		APIKey               string `yaml:"api_key"`
		LockoutThreshold     int    `yaml:"lockout_threshold"`
		LockoutWindowSeconds int    `yaml:"lockout_window_seconds"`
		MaxRequestBytes      int64  `yaml:"max_request_bytes"`
	} `yaml:"security"`
	Store struct {
		Backend     string `yaml:"backend"`
		PostgresURL string `yaml:"postgres_url"`
		MaxConns    int    `yaml:"max_conns"`
		SeedData    *bool  `yaml:"seed_data"`
	} `yaml:"store"`
	Dependencies struct {
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	Events struct {
		TopicRefundApproved string `yaml:"topic_refund_approved"`
	} `yaml:"events"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:           "refund-service",
		Environment:         "development",
		HTTPPort:            8000,
		LockoutThreshold:    5,
		LockoutWindow:       60 * time.Second,
		MaxRequestBytes:     65536,
		StoreBackend:        "memory",
		MaxDBConns:          20,
		SeedData:            true,
		TopicRefundApproved: "refund.approved",
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.Environment != "" {
			cfg.Environment = f.Service.Environment
		}
		if f.Security.APIKey != "" {
			cfg.APIKey = f.Security.APIKey
		}
		if f.Security.LockoutThreshold > 0 {
			cfg.LockoutThreshold = f.Security.LockoutThreshold
		}
		if f.Security.LockoutWindowSeconds > 0 {
			cfg.LockoutWindow = time.Duration(f.Security.LockoutWindowSeconds) * time.Second
		}
		if f.Security.MaxRequestBytes > 0 {
			cfg.MaxRequestBytes = f.Security.MaxRequestBytes
		}
		if f.Store.Backend != "" {
			cfg.StoreBackend = f.Store.Backend
		}
		if f.Store.PostgresURL != "" {
			cfg.DatabaseURL = f.Store.PostgresURL
		}
		if f.Store.MaxConns > 0 {
			cfg.MaxDBConns = int32(f.Store.MaxConns)
		}
		if f.Store.SeedData != nil {
			cfg.SeedData = *f.Store.SeedData
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
		}
		if f.Events.TopicRefundApproved != "" {
			cfg.TopicRefundApproved = f.Events.TopicRefundApproved
		}
	}

	cfg.APIKey = envOrDefault("API_KEY", cfg.APIKey)
	cfg.Environment = envOrDefault("APP_ENV", cfg.Environment)
	cfg.HTTPPort = envInt("PORT", cfg.HTTPPort)
	cfg.StoreBackend = strings.ToLower(envOrDefault("STORE_BACKEND", cfg.StoreBackend))
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.SeedData = envBool("SEED_DATA", cfg.SeedData)
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.TopicRefundApproved = envOrDefault("TOPIC_REFUND_APPROVED", cfg.TopicRefundApproved)
	cfg.LockoutThreshold = envInt("LOCKOUT_THRESHOLD", cfg.LockoutThreshold)
	cfg.LockoutWindow = time.Duration(envInt("LOCKOUT_WINDOW_SECONDS", int(cfg.LockoutWindow.Seconds()))) * time.Second
	cfg.MaxRequestBytes = int64(envInt("MAX_REQUEST_BYTES", int(cfg.MaxRequestBytes)))

	if cfg.APIKey == "" {
		return Config{}, fmt.Errorf("missing API_KEY")
	}
	switch cfg.StoreBackend {
	case "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("store backend postgres requires DB_URL/POSTGRES_URL")
		}
	default:
		return Config{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
