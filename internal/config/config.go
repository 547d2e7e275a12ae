// Package config loads the orchestration core's runtime configuration:
// Redis connection details, the internal control-plane client's
// credentials, per-provider API keys/base URLs, and the handful of
// behavioral toggles spec.md §6 recognizes. Values come from a JSON
// file (optional, stdlib encoding/json, no file format library) with
// environment variables always taking precedence, matching the
// teacher's own internal/config convention of env-overrides-file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultHistoryTTL = time.Hour

// Config holds every recognized environment option from spec.md §6
// plus the per-provider API keys the Provider Client Factory needs.
type Config struct {
	RedisURL           string            `json:"redis_url"`
	AssistantsBaseURL  string            `json:"assistants_base_url"`
	AdminAPIKey        string            `json:"admin_api_key"`
	HyperbolicBaseURL  string            `json:"hyperbolic_base_url"`
	TogetherBaseURL    string            `json:"together_base_url"`
	RedisHistoryTTL    time.Duration     `json:"-"`
	SurfaceTraceback   bool              `json:"surface_traceback"`
	TruncatorModel     string            `json:"truncator_model"`
	ProviderAPIKeys    map[string]string `json:"provider_api_keys"`
	MaxTurns           int               `json:"max_turns"`
}

// providerEnvKeys maps a provider name (as used in Assistant.Provider
// and providerfactory.Key.Provider) to the environment variable
// carrying its API key.
var providerEnvKeys = map[string]string{
	"openai":       "OPENAI_API_KEY",
	"anthropic":    "ANTHROPIC_API_KEY",
	"openrouter":   "OPENROUTER_API_KEY",
	"together":     "TOGETHER_API_KEY",
	"hyperbolic":   "HYPERBOLIC_API_KEY",
	"projectdavid": "ADMIN_API_KEY",
}

// Load builds a Config from, in increasing priority order: compiled
// defaults, an optional JSON file named by the CONFIG_FILE environment
// variable, then individual environment variable overrides.
func Load() (*Config, error) {
	cfg := &Config{
		RedisURL:        "redis://localhost:6379/0",
		RedisHistoryTTL: defaultHistoryTTL,
		TruncatorModel:  "gpt-4",
		MaxTurns:        10,
		ProviderAPIKeys: make(map[string]string),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("ASSISTANTS_BASE_URL"); v != "" {
		c.AssistantsBaseURL = v
	}
	if v := os.Getenv("ADMIN_API_KEY"); v != "" {
		c.AdminAPIKey = v
	}
	if v := os.Getenv("HYPERBOLIC_BASE_URL"); v != "" {
		c.HyperbolicBaseURL = v
	}
	if v := os.Getenv("TOGETHER_BASE_URL"); v != "" {
		c.TogetherBaseURL = v
	}
	if v := os.Getenv("REDIS_HISTORY_TTL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.RedisHistoryTTL = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("SURFACE_TRACEBACK"); v != "" {
		c.SurfaceTraceback = isTruthy(v)
	}
	if v := os.Getenv("TRUNCATOR_MODEL"); v != "" {
		c.TruncatorModel = v
	}

	for provider, envKey := range providerEnvKeys {
		if v := os.Getenv(envKey); v != "" {
			c.ProviderAPIKeys[provider] = v
		}
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Resolve implements orchestrator.CredentialResolver: it returns the
// configured API key and base URL for a provider name.
func (c *Config) Resolve(provider string) (apiKey, baseURL string, err error) {
	apiKey, ok := c.ProviderAPIKeys[provider]
	if !ok || apiKey == "" {
		return "", "", fmt.Errorf("config: no API key configured for provider %q", provider)
	}

	switch provider {
	case "hyperbolic":
		baseURL = c.HyperbolicBaseURL
	case "together":
		baseURL = c.TogetherBaseURL
	case "projectdavid":
		baseURL = c.AssistantsBaseURL
	}
	return apiKey, baseURL, nil
}
