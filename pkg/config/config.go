package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type LLMConfig struct {
	Provider       string  `yaml:"provider"` // openai or ollama
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	EmbeddingModel string  `yaml:"embedding_model"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
}

type DatabaseConfig struct {
	URL       string `yaml:"url"`
	TableName string `yaml:"table_name"`
	VectorDim int    `yaml:"vector_dim"`
	BatchSize int    `yaml:"batch_size"`
}

type IndexConfig struct {
	Backend string `yaml:"backend"` // memory or pgvector
	TopK    int    `yaml:"top_k"`
}

type ScraperConfig struct {
	SitemapURL     string   `yaml:"sitemap_url"`
	FilterPatterns []string `yaml:"filter_patterns"`
	NoisePatterns  []string `yaml:"noise_patterns"`
	RateLimit      float64  `yaml:"rate_limit"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	UserAgent      string   `yaml:"user_agent"`
}

type SplitConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	Separator    string `yaml:"separator"`
}

type ProcessorConfig struct {
	Quiz SplitConfig `yaml:"quiz"`
	Site SplitConfig `yaml:"site"`
}

type QuizConfig struct {
	Temperature      float64 `yaml:"temperature"`
	MaxContextTokens int     `yaml:"max_context_tokens"`
	WikipediaTopK    int     `yaml:"wikipedia_top_k"`
}

type SiteConfig struct {
	AnswerConcurrency int `yaml:"answer_concurrency"`
}

type ResearchConfig struct {
	MaxSteps     int    `yaml:"max_steps"`
	Instructions string `yaml:"instructions"`
	SearchLimit  int    `yaml:"search_limit"`
}

type CacheConfig struct {
	Dir string `yaml:"dir"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type LoggingConfig struct {
	File string `yaml:"file"`
}

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Database  DatabaseConfig  `yaml:"database"`
	Index     IndexConfig     `yaml:"index"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Processor ProcessorConfig `yaml:"processor"`
	Quiz      QuizConfig      `yaml:"quiz"`
	Site      SiteConfig      `yaml:"site"`
	Research  ResearchConfig  `yaml:"research"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Timeout returns the HTTP client timeout for page fetches.
func (s ScraperConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/fullstackgpt/config.yaml"),
			"/etc/fullstackgpt/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := newConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(config)
	applyDefaults(config)

	return config, nil
}

// newConfig presets the fields where zero is a valid setting, so yaml only
// replaces them when the file names them.
func newConfig() *Config {
	config := &Config{}
	config.LLM.Temperature = 0.1
	config.Quiz.Temperature = 0.1
	config.Processor.Quiz.ChunkOverlap = 100
	config.Processor.Site.ChunkOverlap = 200
	return config
}

func getDefaultConfig() (*Config, error) {
	config := newConfig()
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "openai"
	}
	if config.LLM.Model == "" {
		if config.LLM.Provider == "ollama" {
			config.LLM.Model = "mistral"
		} else {
			config.LLM.Model = "gpt-4o-mini"
		}
	}
	if config.LLM.EmbeddingModel == "" && config.LLM.Provider == "ollama" {
		config.LLM.EmbeddingModel = "nomic-embed-text:latest"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "site_chunks"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 1536
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Index.Backend == "" {
		config.Index.Backend = "memory"
	}
	if config.Index.TopK == 0 {
		config.Index.TopK = 4
	}

	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if config.Scraper.TimeoutSeconds == 0 {
		config.Scraper.TimeoutSeconds = 30
	}
	if config.Scraper.UserAgent == "" {
		config.Scraper.UserAgent = "fullstackgpt/1.0"
	}
	if len(config.Scraper.NoisePatterns) == 0 {
		config.Scraper.NoisePatterns = []string{"CloseSearch Submit Blog"}
	}

	applySplitDefaults(&config.Processor.Quiz, 600)
	applySplitDefaults(&config.Processor.Site, 1000)

	if config.Quiz.MaxContextTokens == 0 {
		config.Quiz.MaxContextTokens = 12000
	}
	if config.Quiz.WikipediaTopK == 0 {
		config.Quiz.WikipediaTopK = 5
	}

	if config.Site.AnswerConcurrency == 0 {
		config.Site.AnswerConcurrency = 1
	}

	if config.Research.MaxSteps == 0 {
		config.Research.MaxSteps = 8
	}
	if config.Research.SearchLimit == 0 {
		config.Research.SearchLimit = 3
	}

	if config.Cache.Dir == "" {
		config.Cache.Dir = "./.cache/quiz_files"
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
}

func applySplitDefaults(s *SplitConfig, size int) {
	if s.ChunkSize == 0 {
		s.ChunkSize = size
	}
	if s.Separator == "" {
		s.Separator = "\n"
	}
}

func mergeWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" && config.LLM.APIKey == "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
		if config.LLM.Provider == "" {
			config.LLM.Provider = "ollama"
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
}
