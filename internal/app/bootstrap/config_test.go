package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("API_KEY", "env-key")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServiceID != "refund-service" || cfg.HTTPPort != 8000 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.StoreBackend != "memory" || !cfg.SeedData {
		t.Fatalf("unexpected store defaults: %+v", cfg)
	}
	if cfg.LockoutThreshold != 5 || cfg.LockoutWindow != 60*time.Second {
		t.Fatalf("unexpected lockout defaults: %+v", cfg)
	}
	if cfg.MaxRequestBytes != 65536 {
		t.Fatalf("unexpected request cap: %d", cfg.MaxRequestBytes)
	}
	if cfg.TopicRefundApproved != "refund.approved" {
		t.Fatalf("unexpected topic: %s", cfg.TopicRefundApproved)
	}
	if cfg.IsProduction() {
		t.Fatalf("development must not report production")
	}
}

func TestLoadConfigFileThenEnvPriority(t *testing.T) {
	path := writeConfigFile(t, `
service:
  id: refunds-eu
  http_port: 9000
  environment: production
security:
  api_key: file-key
  lockout_threshold: 3
store:
  backend: memory
  seed_data: false
dependencies:
  kafka_brokers:
    - broker-1:9092
`)
	t.Setenv("PORT", "9100")
	t.Setenv("KAFKA_BROKERS", "broker-a:9092,broker-b:9092")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServiceID != "refunds-eu" {
		t.Fatalf("file value not applied: %s", cfg.ServiceID)
	}
	if cfg.HTTPPort != 9100 {
		t.Fatalf("env must override file, got %d", cfg.HTTPPort)
	}
	if cfg.APIKey != "file-key" {
		t.Fatalf("unexpected api key: %s", cfg.APIKey)
	}
	if cfg.LockoutThreshold != 3 {
		t.Fatalf("unexpected threshold: %d", cfg.LockoutThreshold)
	}
	if cfg.SeedData {
		t.Fatalf("seed_data false must stick")
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "broker-a:9092" {
		t.Fatalf("env brokers must override file, got %v", cfg.KafkaBrokers)
	}
	if !cfg.IsProduction() {
		t.Fatalf("production environment must report production")
	}
}

func TestLoadConfigRequiresAPIKey(t *testing.T) {
	t.Setenv("API_KEY", "")

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing API key must fail")
	}
}

func TestLoadConfigPostgresRequiresURL(t *testing.T) {
	t.Setenv("API_KEY", "env-key")
	t.Setenv("STORE_BACKEND", "postgres")

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("postgres backend without a URL must fail")
	}

	t.Setenv("DB_URL", "postgres://localhost/refunds")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.StoreBackend != "postgres" || cfg.DatabaseURL == "" {
		t.Fatalf("unexpected store config: %+v", cfg)
	}
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	t.Setenv("API_KEY", "env-key")
	t.Setenv("STORE_BACKEND", "dynamo")

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("unknown backend must fail")
	}
}
