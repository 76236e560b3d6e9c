package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/scribehook/scribehook/internal/gemini"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Webhook  WebhookConfig  `koanf:"webhook"`
	Gemini   GeminiConfig   `koanf:"gemini"`
	Airtable AirtableConfig `koanf:"airtable"`
	Fathom   FathomConfig   `koanf:"fathom"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Journal  JournalConfig  `koanf:"journal"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type WebhookConfig struct {
	// Secret is the shared signing secret, whsec_-prefixed base64.
	Secret string `koanf:"secret"`
}

type GeminiConfig struct {
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
}

type AirtableConfig struct {
	APIKey        string `koanf:"api_key"`
	BaseID        string `koanf:"base_id"`
	MeetingsTable string `koanf:"meetings_table"`
	TasksTable    string `koanf:"tasks_table"`
	BaseURL       string `koanf:"base_url"`
}

type FathomConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
}

type PipelineConfig struct {
	// WorkDir is where transcript and summary artifacts are written.
	WorkDir string `koanf:"work_dir"`
	// StageTimeoutSeconds bounds each pipeline stage.
	StageTimeoutSeconds int `koanf:"stage_timeout_seconds"`
}

type JournalConfig struct {
	Path string `koanf:"path"`
}

// legacyEnvVars maps the flat environment variables earlier deployments
// used onto koanf keys. They apply only when the key is not already set
// via config.yaml or a SCRIBEHOOK_ variable.
var legacyEnvVars = map[string]string{
	"FATHOM_WEBHOOK_SECRET":   "webhook.secret",
	"GOOGLE_GEMINI_API_KEY":   "gemini.api_key",
	"AIRTABLE_API_KEY":        "airtable.api_key",
	"AIRTABLE_BASE_ID":        "airtable.base_id",
	"AIRTABLE_MEETINGS_TABLE": "airtable.meetings_table",
	"AIRTABLE_TASKS_TABLE":    "airtable.tasks_table",
	"FATHOM_API_KEY":          "fathom.api_key",
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try to load from config.yaml file first
	if err := k.Load(file.Provider("config.yaml"), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider("SCRIBEHOOK_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "SCRIBEHOOK_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for envVar, key := range legacyEnvVars {
		if v := os.Getenv(envVar); v != "" && !k.Exists(key) {
			k.Set(key, v)
		}
	}

	// Default values
	defaults := map[string]any{
		"server.port":                    8080,
		"gemini.model":                   gemini.DefaultModel,
		"airtable.meetings_table":        "Meetings",
		"airtable.tasks_table":           "Tasks",
		"pipeline.work_dir":              filepath.Join(os.TempDir(), "scribehook"),
		"pipeline.stage_timeout_seconds": 270,
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if cfg.Journal.Path == "" {
		cfg.Journal.Path = filepath.Join(cfg.Pipeline.WorkDir, "deliveries.db")
	}

	return &cfg, nil
}
