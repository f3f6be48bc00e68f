package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DBPath          string `envconfig:"DB_PATH" default:"plenary.db"`
	AnalyticsDBPath string `envconfig:"ANALYTICS_DB_PATH" default:"plenary-analytics.db"`

	MacroTopicsFile string `envconfig:"MACRO_TOPICS_FILE" default:"macro_topics.json"`
	TopicRulesFile  string `envconfig:"TOPIC_RULES_FILE" default:"rules.json"`
	FailuresLog     string `envconfig:"FAILURES_LOG" default:"failures.log"`

	FetchConcurrency int `envconfig:"FETCH_CONCURRENCY" default:"20"`
	AIWorkers        int `envconfig:"AI_WORKERS" default:"50"`
	TopicBatchSize   int `envconfig:"TOPIC_BATCH_SIZE" default:"20"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:""`

	EuroparlBaseURL string `envconfig:"EUROPARL_BASE_URL" default:"https://www.europarl.europa.eu"`
	MEPAPIBaseURL   string `envconfig:"MEP_API_BASE_URL" default:"https://data.europarl.europa.eu/api/v2"`

	// LocalRun gates destructive operations such as table recreation during
	// migration repair.
	LocalRun bool `envconfig:"LOCALRUN" default:"false"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if strings.TrimSpace(c.AnalyticsDBPath) == "" {
		return fmt.Errorf("ANALYTICS_DB_PATH is required")
	}
	if strings.TrimSpace(c.MacroTopicsFile) == "" {
		return fmt.Errorf("MACRO_TOPICS_FILE is required")
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be >= 1")
	}
	if c.AIWorkers < 1 {
		return fmt.Errorf("AI_WORKERS must be >= 1")
	}
	if c.TopicBatchSize < 1 {
		return fmt.Errorf("TOPIC_BATCH_SIZE must be >= 1")
	}
	if strings.TrimSpace(c.EuroparlBaseURL) == "" {
		return fmt.Errorf("EUROPARL_BASE_URL is required")
	}
	if strings.TrimSpace(c.MEPAPIBaseURL) == "" {
		return fmt.Errorf("MEP_API_BASE_URL is required")
	}
	return nil
}

// RequireLLM fails when a command that must call the LLM has no credentials.
func (c *Config) RequireLLM() error {
	if strings.TrimSpace(c.OpenAIAPIKey) == "" {
		return fmt.Errorf("OPENAI_API_KEY is required for this command")
	}
	if strings.TrimSpace(c.OpenAIModel) == "" {
		return fmt.Errorf("OPENAI_MODEL is required for this command")
	}
	return nil
}
