package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "genesis.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "GENESIS_ADDR")
	setString(&cfg.Store.Path, "GENESIS_DB")
	setString(&cfg.LLM.URL, "GENESIS_LLM_URL")
	setString(&cfg.LLM.APIKey, "GENESIS_LLM_API_KEY")
	setString(&cfg.LLM.Model, "GENESIS_LLM_MODEL")
	setDuration(&cfg.LLM.Timeout, "GENESIS_LLM_TIMEOUT")
	setInt(&cfg.LLM.DailyBudget, "GENESIS_LLM_DAILY_BUDGET")
	setString(&cfg.Notify.WebhookURL, "GENESIS_NOTIFY_WEBHOOK")
	setInt(&cfg.Executor.MaxRetries, "GENESIS_EXECUTOR_MAX_RETRIES")
	setDuration(&cfg.Executor.BackoffCap, "GENESIS_EXECUTOR_BACKOFF_CAP")
	setInt(&cfg.Executor.CompletedHistory, "GENESIS_EXECUTOR_HISTORY")
	setDuration(&cfg.Life.EventIdleSleep, "GENESIS_LIFE_EVENT_IDLE_SLEEP")
	setDuration(&cfg.Life.RoutineInterval, "GENESIS_LIFE_ROUTINE_INTERVAL")
	setDuration(&cfg.Life.GoalInterval, "GENESIS_LIFE_GOAL_INTERVAL")
	setString(&cfg.Logging.Level, "GENESIS_LOG_LEVEL")
	setString(&cfg.Logging.Format, "GENESIS_LOG_FORMAT")
	setString(&cfg.Telemetry.Endpoint, "GENESIS_OTLP_ENDPOINT")
	setString(&cfg.Telemetry.ServiceName, "GENESIS_SERVICE_NAME")
	setBool(&cfg.Telemetry.Insecure, "GENESIS_OTLP_INSECURE")
}

// validate rejects configurations the daemon cannot run with.
func validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	if cfg.LLM.DailyBudget < 0 {
		return errors.New("llm.daily_budget must not be negative")
	}
	if cfg.Executor.MaxRetries < 0 {
		return errors.New("executor.max_retries must not be negative")
	}
	if cfg.Executor.BackoffCap <= 0 {
		return errors.New("executor.backoff_cap must be positive")
	}
	if cfg.Executor.CompletedHistory <= 0 {
		return errors.New("executor.completed_history must be positive")
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", cfg.Logging.Format)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
