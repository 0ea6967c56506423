package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Pipeline.CooldownDays != 7 {
		t.Fatalf("cooldown = %d, want 7", cfg.Pipeline.CooldownDays)
	}
	if cfg.Pipeline.MaxURLs != 5000 {
		t.Fatalf("max urls = %d, want 5000", cfg.Pipeline.MaxURLs)
	}
	if cfg.Pipeline.MaxFreePerDay != 24 {
		t.Fatalf("quota = %d, want 24", cfg.Pipeline.MaxFreePerDay)
	}
	if cfg.Paths.StateFile() != "pipeline/state.json" {
		t.Fatalf("state file = %s", cfg.Paths.StateFile())
	}
}

func TestFileAndEnvOverrides(t *testing.T) {
	raw := `
logging:
  level: debug
paths:
  dataDir: /var/lib/contentforge
pipeline:
  maxFreePerDay: 3
  scoreThreshold: 7.5
feeds:
  - name: marketplace-pulse
    url: https://example.org/feed.xml
    tag: Feedspot
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(configPathEnv, path)
	t.Setenv(telegramTokenEnv, "tok-from-env")
	t.Setenv(llmModelEnv, "model-from-env")

	cfg := Load()

	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %s", cfg.Logging.Level)
	}
	if cfg.Paths.TrendDB() != "/var/lib/contentforge/trend.db" {
		t.Fatalf("trend db = %s", cfg.Paths.TrendDB())
	}
	if cfg.Pipeline.MaxFreePerDay != 3 {
		t.Fatalf("quota = %d, want file override 3", cfg.Pipeline.MaxFreePerDay)
	}
	if cfg.Pipeline.ScoreThreshold != 7.5 {
		t.Fatalf("threshold = %v", cfg.Pipeline.ScoreThreshold)
	}
	// defaults untouched by partial file
	if cfg.Pipeline.CooldownDays != 7 {
		t.Fatalf("cooldown = %d, want default 7", cfg.Pipeline.CooldownDays)
	}
	if cfg.Telegram.BotToken != "tok-from-env" {
		t.Fatalf("bot token = %s", cfg.Telegram.BotToken)
	}
	if cfg.LLM.Model != "model-from-env" {
		t.Fatalf("model = %s", cfg.LLM.Model)
	}
	if len(cfg.Feeds) != 1 || cfg.Feeds[0].Tag != "Feedspot" {
		t.Fatalf("feeds = %+v", cfg.Feeds)
	}
}

func TestUnparseableFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{{{"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)

	cfg := Load()
	if cfg.Pipeline.MaxURLs != 5000 {
		t.Fatalf("expected defaults after parse failure, got %d", cfg.Pipeline.MaxURLs)
	}
}
