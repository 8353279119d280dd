// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/affinity/config.yaml",
	"/etc/affinity/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces Affinity's environment variables.
const envPrefix = "AFFINITY_"

// envMappings maps environment variable names (sans prefix, lowercased)
// to koanf config paths. Nested keys with underscores cannot be derived
// mechanically, so the mapping is explicit.
var envMappings = map[string]string{
	"host":        "server.host",
	"port":        "server.port",
	"timeout":     "server.timeout",
	"environment": "server.environment",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"dimension":           "engine.dimension",
	"alpha":               "engine.alpha",
	"beta":                "engine.beta",
	"dislikes_per_minute": "engine.dislikes_per_minute",
	"dislike_burst":       "engine.dislike_burst",

	"history_window": "temporal.history_window",
	"snapshot_every": "temporal.snapshot_every",
	"max_history":    "temporal.max_history",

	"default_k":  "recommend.default_k",
	"max_k":      "recommend.max_k",
	"cache_ttl":  "recommend.cache_ttl",
	"cache_size": "recommend.cache_size",

	"store_backend": "store.backend",
	"store_path":    "store.path",

	"nats_enabled":        "nats.enabled",
	"nats_url":            "nats.url",
	"nats_embedded":       "nats.embedded_server",
	"nats_store_dir":      "nats.store_dir",
	"nats_topic":          "nats.topic",
	"nats_poison_topic":   "nats.poison_topic",
	"nats_queue_group":    "nats.queue_group",
	"nats_durable_name":   "nats.durable_name",
	"nats_retry_count":    "nats.retry_count",
	"nats_retry_interval": "nats.retry_initial_interval",
	"nats_close_timeout":  "nats.close_timeout",

	"rate_limit_reqs":   "api.rate_limit_reqs",
	"rate_limit_window": "api.rate_limit_window",
	"cors_origins":      "api.cors_origins",
}

// Load builds the configuration from defaults, an optional YAML file,
// and AFFINITY_* environment variables (highest priority), then
// validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(key string) string {
		name := strings.ToLower(strings.TrimPrefix(key, envPrefix))
		if path, ok := envMappings[name]; ok {
			return path
		}
		// Unknown variables are ignored rather than misfiled.
		return ""
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first config file that exists, checking the
// CONFIG_PATH override before the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when supplied through environment variables.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

// processSliceFields converts comma-separated env strings to slices for
// known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}
