// Package config provides hierarchical configuration loading for Genesis.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the Genesis daemon.
type Config struct {
	Server    Server    `yaml:"server"`
	Store     Store     `yaml:"store"`
	LLM       LLM       `yaml:"llm"`
	Notify    Notify    `yaml:"notify"`
	Executor  Executor  `yaml:"executor"`
	Life      Life      `yaml:"life"`
	Logging   Logging   `yaml:"logging"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Server holds HTTP control plane configuration.
type Server struct {
	Addr string `yaml:"addr"`
}

// Store holds SQLite persistence configuration.
type Store struct {
	Path string `yaml:"path"`
}

// LLM holds the OpenAI-compatible provider configuration and the daily call
// budget shared by the executor path and the life scheduler.
type LLM struct {
	URL         string        `yaml:"url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	DailyBudget int           `yaml:"daily_budget"`
}

// Notify holds webhook notification configuration. An empty URL disables
// live delivery; results then go to the conversation log only.
type Notify struct {
	WebhookURL string `yaml:"webhook_url"`
}

// Executor holds task executor configuration.
type Executor struct {
	MaxRetries       int           `yaml:"max_retries"`
	BackoffCap       time.Duration `yaml:"backoff_cap"`
	CompletedHistory int           `yaml:"completed_history"`
}

// Life holds life scheduler loop intervals.
type Life struct {
	EventIdleSleep  time.Duration `yaml:"event_idle_sleep"`
	RoutineInterval time.Duration `yaml:"routine_interval"`
	GoalInterval    time.Duration `yaml:"goal_interval"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "text" or "json"
}

// Telemetry holds OpenTelemetry tracing configuration. Tracing is disabled
// when Endpoint is empty.
type Telemetry struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: Server{Addr: "127.0.0.1:7433"},
		Store:  Store{Path: ""}, // resolved to ~/.genesis/genesis.db by the daemon
		LLM: LLM{
			URL:         "http://127.0.0.1:4000",
			Model:       "gpt-4o-mini",
			Timeout:     60 * time.Second,
			DailyBudget: 100,
		},
		Executor: Executor{
			MaxRetries:       2,
			BackoffCap:       60 * time.Second,
			CompletedHistory: 100,
		},
		Life: Life{
			EventIdleSleep:  time.Second,
			RoutineInterval: time.Minute,
			GoalInterval:    15 * time.Minute,
		},
		Logging:   Logging{Level: "info", Format: "text"},
		Telemetry: Telemetry{ServiceName: "genesis"},
	}
}
