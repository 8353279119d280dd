// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig_Valid(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults pass",
			mutate: func(*Config) {},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "alpha at one",
			mutate:  func(c *Config) { c.Engine.Alpha = 1 },
			wantErr: "engine.alpha",
		},
		{
			name:    "alpha at zero",
			mutate:  func(c *Config) { c.Engine.Alpha = 0 },
			wantErr: "engine.alpha",
		},
		{
			name:    "beta above one",
			mutate:  func(c *Config) { c.Engine.Beta = 1.2 },
			wantErr: "engine.beta",
		},
		{
			name:   "beta exactly one allowed",
			mutate: func(c *Config) { c.Engine.Beta = 1 },
		},
		{
			name:    "dimension zero",
			mutate:  func(c *Config) { c.Engine.Dimension = 0 },
			wantErr: "engine.dimension",
		},
		{
			name:    "history window below two",
			mutate:  func(c *Config) { c.Temporal.HistoryWindow = 1 },
			wantErr: "temporal.history_window",
		},
		{
			name:    "retention below window",
			mutate:  func(c *Config) { c.Temporal.MaxHistory = 5 },
			wantErr: "temporal.max_history",
		},
		{
			name:   "unbounded retention allowed",
			mutate: func(c *Config) { c.Temporal.MaxHistory = 0 },
		},
		{
			name:    "max_k below default_k",
			mutate:  func(c *Config) { c.Recommend.MaxK = 10 },
			wantErr: "recommend.max_k",
		},
		{
			name:    "unknown store backend",
			mutate:  func(c *Config) { c.Store.Backend = "postgres" },
			wantErr: "store.backend",
		},
		{
			name:    "badger without path",
			mutate:  func(c *Config) { c.Store.Path = "" },
			wantErr: "store.path",
		},
		{
			name:   "memory backend needs no path",
			mutate: func(c *Config) { c.Store.Backend = "memory"; c.Store.Path = "" },
		},
		{
			name: "nats enabled without url or embedded server",
			mutate: func(c *Config) {
				c.NATS.Enabled = true
				c.NATS.URL = ""
				c.NATS.EmbeddedServer = false
			},
			wantErr: "nats.url",
		},
		{
			name: "nats enabled with empty topic",
			mutate: func(c *Config) {
				c.NATS.Enabled = true
				c.NATS.Topic = ""
			},
			wantErr: "nats.topic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.Alpha != 0.2 {
		t.Errorf("Engine.Alpha = %v, want 0.2", cfg.Engine.Alpha)
	}
	if cfg.Recommend.DefaultK != 50 {
		t.Errorf("Recommend.DefaultK = %d, want 50", cfg.Recommend.DefaultK)
	}
	if cfg.Store.Backend != "badger" {
		t.Errorf("Store.Backend = %q, want badger", cfg.Store.Backend)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AFFINITY_ALPHA", "0.25")
	t.Setenv("AFFINITY_PORT", "9000")
	t.Setenv("AFFINITY_STORE_BACKEND", "memory")
	t.Setenv("AFFINITY_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.Alpha != 0.25 {
		t.Errorf("Engine.Alpha = %v, want 0.25", cfg.Engine.Alpha)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Store.Backend = %q, want memory", cfg.Store.Backend)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.API.CORSOrigins) != 2 || cfg.API.CORSOrigins[0] != want[0] || cfg.API.CORSOrigins[1] != want[1] {
		t.Errorf("API.CORSOrigins = %v, want %v", cfg.API.CORSOrigins, want)
	}
}

func TestLoad_UnknownEnvIgnored(t *testing.T) {
	t.Setenv("AFFINITY_NO_SUCH_SETTING", "whatever")
	if _, err := Load(); err != nil {
		t.Errorf("Load() with unknown env var error = %v", err)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("engine:\n  alpha: 0.15\n  beta: 0.4\nserver:\n  port: 7777\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.Alpha != 0.15 || cfg.Engine.Beta != 0.4 {
		t.Errorf("engine params = %v/%v, want 0.15/0.4", cfg.Engine.Alpha, cfg.Engine.Beta)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want 7777", cfg.Server.Port)
	}
	// File values remain subordinate to env values.
	t.Setenv("AFFINITY_PORT", "8888")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8888 {
		t.Errorf("env should override file: port = %d, want 8888", cfg.Server.Port)
	}
}

func TestLoad_InvalidEnvFailsValidation(t *testing.T) {
	t.Setenv("AFFINITY_ALPHA", "1.5")
	if _, err := Load(); err == nil {
		t.Error("Load() with alpha=1.5 should fail validation")
	}
}

func TestDefaultDurations(t *testing.T) {
	cfg := defaultConfig()
	if cfg.Recommend.CacheTTL != time.Minute {
		t.Errorf("CacheTTL = %v, want 1m", cfg.Recommend.CacheTTL)
	}
	if cfg.NATS.CloseTimeout != 30*time.Second {
		t.Errorf("CloseTimeout = %v, want 30s", cfg.NATS.CloseTimeout)
	}
}
