// Package config builds the explicit configuration struct the rest of the
// application is constructed from. Every external dependency is optional;
// whether one is configured is a pure function of the loaded struct, never
// of ambient process state read at call time.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all settings. Loaded once at startup and passed into the
// orchestrator and each adapter constructor.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
	Search   SearchConfig   `yaml:"search"`
	Serp     SerpConfig     `yaml:"serp"`
	LLM      LLMConfig      `yaml:"llm"`
	Images   ImagesConfig   `yaml:"images"`
	Site     SiteConfig     `yaml:"site"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type StorageConfig struct {
	DataDir string `yaml:"dataDir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// SearchConfig points at the keyword performance source (search-analytics
// rows of clicks/impressions/ctr/position per keyword).
type SearchConfig struct {
	APIKey  string `yaml:"apiKey"`
	SiteURL string `yaml:"siteUrl"`
}

// Configured reports whether the performance source has credentials.
func (c SearchConfig) Configured() bool {
	return c.APIKey != "" && c.SiteURL != ""
}

// SerpConfig points at the SERP provider used for competitor research.
type SerpConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseUrl"`
}

func (c SerpConfig) Configured() bool {
	return c.APIKey != ""
}

// LLMConfig points at an OpenAI-compatible chat completion endpoint used
// for content generation.
type LLMConfig struct {
	APIKey    string `yaml:"apiKey"`
	BaseURL   string `yaml:"baseUrl"`
	BodyModel string `yaml:"bodyModel"`
	MetaModel string `yaml:"metaModel"`
}

func (c LLMConfig) Configured() bool {
	return c.APIKey != ""
}

// ImagesConfig holds keys for the image providers, tried in priority
// order: generation first, then stock search.
type ImagesConfig struct {
	OpenAIKey string `yaml:"openaiKey"`
	PexelsKey string `yaml:"pexelsKey"`
}

func (c ImagesConfig) Configured() bool {
	return c.OpenAIKey != "" || c.PexelsKey != ""
}

// SiteConfig describes the site the pipeline writes for: its base URL,
// the on-topic vocabulary used to filter opportunities, and the internal
// link destinations available to the link processor.
type SiteConfig struct {
	BaseURL       string            `yaml:"baseUrl"`
	Vocabulary    []string          `yaml:"vocabulary"`
	InternalLinks map[string]string `yaml:"internalLinks"`
}

// PipelineConfig tunes generation and linking.
type PipelineConfig struct {
	TargetWordCount    int    `yaml:"targetWordCount"`
	Tone               string `yaml:"tone"`
	ReadingLevel       string `yaml:"readingLevel"`
	MaxLinksTotal      int    `yaml:"maxLinksTotal"`
	MaxLinksPerKeyword int    `yaml:"maxLinksPerKeyword"`
	BatchConcurrency   int    `yaml:"batchConcurrency"`
}

func defaults() Config {
	return Config{
		Server:  ServerConfig{Port: 4700},
		Storage: StorageConfig{DataDir: defaultDataDir()},
		Log:     LogConfig{Level: "info"},
		Serp:    SerpConfig{BaseURL: "https://serpapi.com"},
		LLM: LLMConfig{
			BaseURL:   "https://openrouter.ai/api/v1",
			BodyModel: "anthropic/claude-sonnet-4",
			MetaModel: "openai/gpt-4o-mini",
		},
		Site: SiteConfig{
			BaseURL: "https://example.com",
			Vocabulary: []string{
				"roof", "roofing", "shingle", "gutter", "siding", "flashing",
				"skylight", "attic", "insulation", "metal roof", "tile roof",
			},
			InternalLinks: map[string]string{},
		},
		Pipeline: PipelineConfig{
			TargetWordCount:    1500,
			Tone:               "professional",
			ReadingLevel:       "8th grade",
			MaxLinksTotal:      8,
			MaxLinksPerKeyword: 1,
			BatchConcurrency:   3,
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "contentpipe-data"
		}
	}
	return filepath.Join(dir, "contentpipe")
}

func defaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "contentpipe", "config.yaml")
}

// Load reads configuration: defaults, then the YAML config file (path from
// CONTENTPIPE_CONFIG or the XDG default), then CONTENTPIPE_* environment
// overrides. A missing config file is not an error.
func Load() (Config, error) {
	path := os.Getenv("CONTENTPIPE_CONFIG")
	if path == "" {
		path = defaultConfigPath()
	}
	return loadFrom(path, os.Getenv)
}

func loadFrom(path string, getenv func(string) string) (Config, error) {
	cfg := defaults()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}

	applyEnvOverrides(&cfg, getenv)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return Config{}, fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	if v := getenv("CONTENTPIPE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	set(&cfg.Storage.DataDir, "CONTENTPIPE_DATA_DIR")
	set(&cfg.Log.Level, "CONTENTPIPE_LOG_LEVEL")
	set(&cfg.Search.APIKey, "CONTENTPIPE_SEARCH_API_KEY")
	set(&cfg.Search.SiteURL, "CONTENTPIPE_SEARCH_SITE_URL")
	set(&cfg.Serp.APIKey, "CONTENTPIPE_SERP_API_KEY")
	set(&cfg.Serp.BaseURL, "CONTENTPIPE_SERP_BASE_URL")
	set(&cfg.LLM.APIKey, "CONTENTPIPE_LLM_API_KEY")
	set(&cfg.LLM.BaseURL, "CONTENTPIPE_LLM_BASE_URL")
	set(&cfg.LLM.BodyModel, "CONTENTPIPE_LLM_BODY_MODEL")
	set(&cfg.LLM.MetaModel, "CONTENTPIPE_LLM_META_MODEL")
	set(&cfg.Images.OpenAIKey, "CONTENTPIPE_OPENAI_API_KEY")
	set(&cfg.Images.PexelsKey, "CONTENTPIPE_PEXELS_API_KEY")
	set(&cfg.Site.BaseURL, "CONTENTPIPE_SITE_URL")

	if v := getenv("CONTENTPIPE_VOCABULARY"); v != "" {
		parts := strings.Split(v, ",")
		vocab := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				vocab = append(vocab, p)
			}
		}
		cfg.Site.Vocabulary = vocab
	}
}
