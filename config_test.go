package main

import (
	"log/slog"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "GCP_PROJECT_ID", "GCP_REGION", "GEMINI_MODEL", "CHUNK_SIZE", "LOAD_BATCH", "LOAD_RETRIES", "SEED_RADIUS", "WORLD_SEED", "MINE_RULE", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("got %+v, want defaults %+v", cfg, DefaultConfig())
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CHUNK_SIZE", "16")
	t.Setenv("LOAD_BATCH", "4")
	t.Setenv("WORLD_SEED", "1234")
	t.Setenv("MINE_RULE", "dist < 2 ? 0 : size")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "9090" || cfg.ChunkSize != 16 || cfg.BatchSize != 4 || cfg.Seed != 1234 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("log level = %v, want debug", cfg.LogLevel)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		env, value string
	}{
		{"CHUNK_SIZE", "abc"},
		{"CHUNK_SIZE", "1"},
		{"LOAD_BATCH", "0"},
		{"WORLD_SEED", "-1"},
		{"MINE_RULE", "size +"},
		{"LOG_LEVEL", "loud"},
	}
	for _, tc := range tests {
		t.Run(tc.env+"="+tc.value, func(t *testing.T) {
			t.Setenv(tc.env, tc.value)
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected an error for %s=%q", tc.env, tc.value)
			}
		})
	}
}
