package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "file"
	}
	if cfg.Storage.SnapshotPath == "" {
		cfg.Storage.SnapshotPath = "./data/vectorbig.json"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "./data/embeddings.db"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "gemini"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "embedding-001"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.Embedding.Burst == 0 {
		cfg.Embedding.Burst = 1
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Explain.Provider == "" {
		cfg.Explain.Provider = cfg.Embedding.Provider
	}
	if cfg.Explain.Model == "" {
		cfg.Explain.Model = "gemini-1.5-pro"
	}
	if cfg.Explain.MaxTexts == 0 {
		cfg.Explain.MaxTexts = 5
	}
	if cfg.Search.MatchThreshold == 0 {
		cfg.Search.MatchThreshold = 0.1
	}
	if cfg.Search.MatchCount == 0 {
		cfg.Search.MatchCount = 200
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 20
	}
	if cfg.Search.SnippetLength == 0 {
		cfg.Search.SnippetLength = 200
	}
	if cfg.Migrate.BatchSize == 0 {
		cfg.Migrate.BatchSize = 50
	}
	if cfg.Migrate.Target == "" {
		cfg.Migrate.Target = "postgres"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 400 * time.Millisecond
	}
}
