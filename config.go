package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/bodul/minefield/minegen"
)

// Config is read once from the environment at startup.
type Config struct {
	Port      string
	ProjectID string // Gemini mine layouts are used only when set
	Region    string
	Model     string
	ChunkSize int
	BatchSize int
	Retries   int
	Radius    int
	MineRule  string
	Seed      uint64 // 0 draws a fresh seed per world
	LogLevel  slog.Level
}

// DefaultConfig matches the world package defaults.
func DefaultConfig() Config {
	return Config{
		Port:      "8080",
		Region:    defaultRegion,
		Model:     defaultModel,
		ChunkSize: 8,
		BatchSize: 10,
		Retries:   5,
		Radius:    3,
		MineRule:  minegen.DefaultRule,
		LogLevel:  slog.LevelInfo,
	}
}

// LoadConfig overlays environment variables on DefaultConfig.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	cfg.ProjectID = os.Getenv("GCP_PROJECT_ID")
	if v := os.Getenv("GCP_REGION"); v != "" {
		cfg.Region = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("MINE_RULE"); v != "" {
		cfg.MineRule = v
	}

	ints := []struct {
		env string
		dst *int
		min int
	}{
		{"CHUNK_SIZE", &cfg.ChunkSize, 2},
		{"LOAD_BATCH", &cfg.BatchSize, 1},
		{"LOAD_RETRIES", &cfg.Retries, 0},
		{"SEED_RADIUS", &cfg.Radius, 0},
	}
	for _, it := range ints {
		v := os.Getenv(it.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("parse %s: %w", it.env, err)
		}
		if n < it.min {
			return cfg, fmt.Errorf("%s must be >= %d, got %d", it.env, it.min, n)
		}
		*it.dst = n
	}

	if v := os.Getenv("WORLD_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("parse WORLD_SEED: %w", err)
		}
		cfg.Seed = seed
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(strings.ToUpper(v))); err != nil {
			return cfg, fmt.Errorf("parse LOG_LEVEL: %w", err)
		}
	}

	if _, err := minegen.CompileRule(cfg.MineRule); err != nil {
		return cfg, err
	}
	return cfg, nil
}
