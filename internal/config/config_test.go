package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
app:
  name: "agendo"
  environment: "test"
database:
  path: "test.db"
api:
  enabled: true
  auth:
    enabled: true
    api_keys:
      - key: "k1"
        extra: "e1"
        name: "client"
        permissions: ["read", "write"]
  rate_limit:
    rps: 25
payment:
  enabled: true
  base_url: "https://gateway.test"
  access_token: "tok"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "agendo" {
		t.Errorf("expected app name agendo, got %s", cfg.App.Name)
	}
	if cfg.Database.Path != "test.db" {
		t.Errorf("expected database path test.db, got %s", cfg.Database.Path)
	}
	if !cfg.API.HTTP.Enabled || cfg.API.HTTP.Port != 8080 {
		t.Errorf("expected http enabled on default port, got %+v", cfg.API.HTTP)
	}
	if cfg.API.RateLimit.RPS != 25 {
		t.Errorf("expected rps 25, got %f", cfg.API.RateLimit.RPS)
	}
	if cfg.API.RateLimit.Burst != 5 {
		t.Errorf("expected default burst 5, got %d", cfg.API.RateLimit.Burst)
	}
	if cfg.Payment.TimeoutSeconds != 10 {
		t.Errorf("expected default payment timeout 10, got %d", cfg.Payment.TimeoutSeconds)
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("AGENDO_DB_PATH", "/var/lib/agendo/agendo.db")

	yamlContent := `
database:
  path: "${AGENDO_DB_PATH}"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Path != "/var/lib/agendo/agendo.db" {
		t.Errorf("expected expanded db path, got %s", cfg.Database.Path)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid minimal config",
			cfg:     Config{Database: DatabaseConfig{Path: "agendo.db"}},
			wantErr: false,
		},
		{
			name:    "missing database path",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name: "payment enabled without token",
			cfg: Config{
				Database: DatabaseConfig{Path: "agendo.db"},
				Payment:  PaymentConfig{Enabled: true, BaseURL: "https://gateway.test"},
			},
			wantErr: true,
		},
		{
			name: "auth enabled without keys",
			cfg: Config{
				Database: DatabaseConfig{Path: "agendo.db"},
				API:      APIConfig{Auth: APIAuthConfig{Enabled: true}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
