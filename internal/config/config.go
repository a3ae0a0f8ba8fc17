// Package config loads service configuration from the environment, per
// spec §6's minimum environment surface.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds every environment-derived setting the server needs to boot.
type Config struct {
	Port string

	AnthropicAPIKey string
	FastModel       string
	SmartModel      string

	RulesDir string

	SandboxGuestWASM     string
	PreserveSandboxes    bool
	PythonBin            string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AuditDatabaseURL string
}

// Load reads configuration from the environment, applying the same
// documented defaults and required-variable checks the spec's environment
// table describes. It returns an error (rather than calling os.Exit
// itself) so callers control fail-fast behavior.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getenvDefault("PORT", "3000"),
		AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		FastModel:         os.Getenv("LLM_FAST_MODEL"),
		SmartModel:        os.Getenv("LLM_SMART_MODEL"),
		RulesDir:          getenvDefault("RULES_DIR", "./data/rules"),
		SandboxGuestWASM:  os.Getenv("HELM_SANDBOX_GUEST_WASM"),
		PreserveSandboxes: os.Getenv("DAYTONA_PRESERVE_SANDBOXES") == "true",
		PythonBin:         getenvDefault("PYTHON_BIN", "python3"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		AuditDatabaseURL:  os.Getenv("AUDIT_DATABASE_URL"),
	}

	if cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("config: ANTHROPIC_API_KEY is required")
	}

	if raw := os.Getenv("REDIS_DB"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("config: REDIS_DB must be an integer: %w", err)
		}
		cfg.RedisDB = n
	}

	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
