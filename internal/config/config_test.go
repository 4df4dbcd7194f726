package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/signalweave/signalweave/pkg/types/insight"
)

// validConfig returns a fully defaulted config that passes Validate.
func validConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Database.User = "sweave"
	cfg.GenAI.APIKey = "sk-test"
	return cfg
}

func TestValidate_DefaultedConfigPasses(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad server port", func(c *Config) { c.Server.Port = 0 }},
		{"bad server mode", func(c *Config) { c.Server.Mode = "prod" }},
		{"missing db user", func(c *Config) { c.Database.User = "" }},
		{"missing redis addr", func(c *Config) { c.Redis.Addr = "" }},
		{"no kafka brokers", func(c *Config) { c.Kafka.Brokers = nil }},
		{"wrong embedding dim", func(c *Config) { c.Milvus.EmbeddingDim = 768 }},
		{"missing genai key", func(c *Config) { c.GenAI.APIKey = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"unknown profile", func(c *Config) { c.Synthesis.Profile = "exhaustive" }},
		{"cluster >= dedup override", func(c *Config) { c.Synthesis.ClusterThreshold = 0.95 }},
		{"company floor override below 2", func(c *Config) { c.Synthesis.MinCompanyCount = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestResolveProfile_Overrides(t *testing.T) {
	cfg := validConfig()
	cfg.Synthesis.Profile = string(insight.ProfileGranular)
	cfg.Synthesis.DedupThreshold = 0.95
	cfg.Synthesis.ClusterThreshold = 0.85

	profile, err := cfg.ResolveProfile()
	if err != nil {
		t.Fatalf("ResolveProfile: %v", err)
	}
	if profile.Name != insight.ProfileGranular {
		t.Errorf("profile name = %s, want granular", profile.Name)
	}
	if profile.DedupThreshold != 0.95 || profile.ClusterThreshold != 0.85 {
		t.Errorf("overrides not applied: dedup=%.2f cluster=%.2f",
			profile.DedupThreshold, profile.ClusterThreshold)
	}
	// Unset overrides keep profile defaults.
	if profile.WordCountMin != 75 || profile.WordCountMax != 150 {
		t.Errorf("granular word range lost: [%d, %d]", profile.WordCountMin, profile.WordCountMax)
	}
}

func TestApplyDefaults_ExplicitValuesWin(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9999
	cfg.Synthesis.Profile = string(insight.ProfileGranular)
	ApplyDefaults(cfg)

	if cfg.Server.Port != 9999 {
		t.Errorf("explicit port overwritten: %d", cfg.Server.Port)
	}
	if cfg.Synthesis.Profile != string(insight.ProfileGranular) {
		t.Errorf("explicit profile overwritten: %s", cfg.Synthesis.Profile)
	}
	if cfg.Milvus.EmbeddingDim != insight.EmbeddingDim {
		t.Errorf("embedding dim default missing: %d", cfg.Milvus.EmbeddingDim)
	}
}

func TestLoad_FromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 8181
  mode: release
database:
  user: sweave
  password: secret
genai:
  api_key: sk-test
log:
  level: warn
synthesis:
  profile: granular
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8181 || cfg.Server.Mode != "release" {
		t.Errorf("server section not loaded: %+v", cfg.Server)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log level = %s, want warn", cfg.Log.Level)
	}
	if cfg.Synthesis.Profile != "granular" {
		t.Errorf("profile = %s, want granular", cfg.Synthesis.Profile)
	}
	// Defaults fill the rest.
	if cfg.Redis.Addr != DefaultRedisAddr {
		t.Errorf("redis default missing: %s", cfg.Redis.Addr)
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
