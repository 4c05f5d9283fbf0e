package config

import (
	"os"
	"path/filepath"
	"testing"
)

func noEnv(string) string { return "" }

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestDefaults(t *testing.T) {
	cfg, err := loadFrom(filepath.Join(t.TempDir(), "missing.yaml"), noEnv)
	if err != nil {
		t.Fatalf("loadFrom: %v", err)
	}

	if cfg.Server.Port != 4700 {
		t.Errorf("port = %d, want 4700", cfg.Server.Port)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Pipeline.TargetWordCount != 1500 || cfg.Pipeline.MaxLinksTotal != 8 || cfg.Pipeline.MaxLinksPerKeyword != 1 {
		t.Errorf("pipeline defaults = %+v", cfg.Pipeline)
	}
	if len(cfg.Site.Vocabulary) == 0 {
		t.Error("default vocabulary empty")
	}

	// With nothing configured, every integration reports unconfigured.
	if cfg.Search.Configured() || cfg.Serp.Configured() || cfg.LLM.Configured() || cfg.Images.Configured() {
		t.Errorf("unconfigured deps report configured: %+v", cfg)
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: 9100
serp:
  apiKey: serp-secret
site:
  vocabulary: [plumbing, pipe, drain]
  internalLinks:
    "drain cleaning": /services/drain-cleaning
pipeline:
  targetWordCount: 900
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := loadFrom(path, noEnv)
	if err != nil {
		t.Fatalf("loadFrom: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.Server.Port)
	}
	if !cfg.Serp.Configured() || cfg.Serp.APIKey != "serp-secret" {
		t.Errorf("serp = %+v", cfg.Serp)
	}
	// The file's base URL default survives a partial serp section.
	if cfg.Serp.BaseURL == "" {
		t.Error("serp base URL default lost")
	}
	if len(cfg.Site.Vocabulary) != 3 || cfg.Site.Vocabulary[0] != "plumbing" {
		t.Errorf("vocabulary = %v", cfg.Site.Vocabulary)
	}
	if cfg.Site.InternalLinks["drain cleaning"] != "/services/drain-cleaning" {
		t.Errorf("internal links = %v", cfg.Site.InternalLinks)
	}
	if cfg.Pipeline.TargetWordCount != 900 {
		t.Errorf("target word count = %d", cfg.Pipeline.TargetWordCount)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := loadFrom(path, envMap(map[string]string{
		"CONTENTPIPE_PORT":           "9200",
		"CONTENTPIPE_LLM_API_KEY":    "llm-secret",
		"CONTENTPIPE_VOCABULARY":     "roof, gutter , ",
		"CONTENTPIPE_PEXELS_API_KEY": "px-secret",
	}))
	if err != nil {
		t.Fatalf("loadFrom: %v", err)
	}

	if cfg.Server.Port != 9200 {
		t.Errorf("port = %d, want env override 9200", cfg.Server.Port)
	}
	if !cfg.LLM.Configured() {
		t.Error("LLM key from env not applied")
	}
	if !cfg.Images.Configured() {
		t.Error("pexels key from env not applied")
	}
	if len(cfg.Site.Vocabulary) != 2 || cfg.Site.Vocabulary[1] != "gutter" {
		t.Errorf("vocabulary = %v, want trimmed two terms", cfg.Site.Vocabulary)
	}
}

func TestInvalidPortRejected(t *testing.T) {
	_, err := loadFrom(filepath.Join(t.TempDir(), "missing.yaml"), envMap(map[string]string{
		"CONTENTPIPE_PORT": "70000",
	}))
	if err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestMalformedConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if _, err := loadFrom(path, noEnv); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestSearchConfiguredNeedsBothFields(t *testing.T) {
	c := SearchConfig{APIKey: "key"}
	if c.Configured() {
		t.Error("API key alone must not count as configured")
	}
	c.SiteURL = "https://example.com"
	if !c.Configured() {
		t.Error("key plus site URL must count as configured")
	}
}

func TestEnsureToken(t *testing.T) {
	dir := t.TempDir()

	token, err := EnsureToken(dir)
	if err != nil {
		t.Fatalf("EnsureToken: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(token))
	}

	// Stable across calls.
	again, err := EnsureToken(dir)
	if err != nil {
		t.Fatalf("EnsureToken (repeat): %v", err)
	}
	if again != token {
		t.Error("token regenerated on second call")
	}

	info, err := os.Stat(filepath.Join(dir, "api_token"))
	if err != nil {
		t.Fatalf("stat token file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token file perm = %o, want 600", perm)
	}
}
