package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port      int              `json:"port"`
	Database  DatabaseConfig   `json:"database"`
	Scraper   ScraperConfig    `json:"scraper"`
	AI        AIConfig         `json:"ai"`
	Snapshot  SnapshotConfig   `json:"snapshot"`
	Jobs      JobsConfig       `json:"jobs"`
	CORSAllow []string         `json:"cors_allow"`
	LogConfig logger.LogConfig `json:"log_config"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type ScraperConfig struct {
	TimeoutSeconds int    `json:"timeout_seconds"`
	UserAgent      string `json:"user_agent"`
}

type AIConfig struct {
	Provider      string      `json:"provider"`
	Data          interface{} `json:"data"`
	EmbedModel    string      `json:"embed_model"`
	MaxInputChars int         `json:"max_input_chars"`
	MaxRetries    int         `json:"max_retries"`
	CacheSize     int         `json:"cache_size"`
	CacheTTLHours int         `json:"cache_ttl_hours"`
}

type SnapshotConfig struct {
	Enable bool        `json:"enable"`
	Type   string      `json:"type"`
	Data   interface{} `json:"data"`
}

type JobsConfig struct {
	EmbeddingBackfillSpec  string `json:"embedding_backfill_spec"`
	EmbeddingBackfillBatch int    `json:"embedding_backfill_batch"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Scraper.TimeoutSeconds <= 0 {
		cfg.Scraper.TimeoutSeconds = 30
	}
	if cfg.Scraper.UserAgent == "" {
		cfg.Scraper.UserAgent = "sepd/1.0 (+https://github.com/sepworks/sepd)"
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	if cfg.AI.MaxInputChars <= 0 {
		cfg.AI.MaxInputChars = 20000
	}
	if cfg.AI.MaxRetries <= 0 {
		cfg.AI.MaxRetries = 3
	}
	if cfg.AI.CacheSize <= 0 {
		cfg.AI.CacheSize = 10000
	}
	if cfg.AI.CacheTTLHours <= 0 {
		cfg.AI.CacheTTLHours = 2
	}
	if cfg.Snapshot.Enable && cfg.Snapshot.Type == "" {
		cfg.Snapshot.Type = "local"
	}
	if cfg.Jobs.EmbeddingBackfillBatch <= 0 {
		cfg.Jobs.EmbeddingBackfillBatch = 10
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	return &cfg, nil
}
