package config

import (
	"fmt"
	"net/url"
	"regexp"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// validation collects failures in check order.
type validation []ValidationError

func (v *validation) check(ok bool, field, format string, args ...any) {
	if !ok {
		*v = append(*v, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func (c *Config) Validate() []ValidationError {
	var v validation

	switch c.LLM.Provider {
	case "openai":
		v.check(c.LLM.APIKey != "", "llm.api_key", "enter a valid OpenAI API key (llm.api_key or OPENAI_API_KEY)")
	case "ollama":
		v.check(c.LLM.BaseURL != "", "llm.base_url", "Ollama base URL is required")
	default:
		v.check(false, "llm.provider", "unknown provider %q (want openai or ollama)", c.LLM.Provider)
	}
	if c.LLM.BaseURL != "" {
		v.check(validURL(c.LLM.BaseURL), "llm.base_url", "invalid base URL")
	}
	v.check(c.LLM.MaxTokens >= 1 && c.LLM.MaxTokens <= 4096, "llm.max_tokens", "max_tokens must be between 1 and 4096")
	v.check(c.LLM.Temperature >= 0 && c.LLM.Temperature <= 2, "llm.temperature", "temperature must be between 0 and 2")

	switch c.Index.Backend {
	case "memory":
	case "pgvector":
		v.check(c.Database.URL != "", "database.url", "database URL is required for the pgvector index")
	default:
		v.check(false, "index.backend", "unknown index backend %q (want memory or pgvector)", c.Index.Backend)
	}
	v.check(c.Index.TopK >= 1, "index.top_k", "top_k must be positive")

	if c.Database.URL != "" {
		_, err := url.Parse(c.Database.URL)
		v.check(err == nil, "database.url", "invalid database URL")
	}
	v.check(c.Database.VectorDim >= 1, "database.vector_dim", "vector_dim must be positive")
	v.check(c.Database.BatchSize >= 1, "database.batch_size", "batch_size must be positive")

	v.check(c.Scraper.RateLimit > 0, "scraper.rate_limit", "rate_limit must be positive")
	if c.Scraper.SitemapURL != "" {
		v.check(validURL(c.Scraper.SitemapURL), "scraper.sitemap_url", "invalid sitemap URL")
	}
	for _, pattern := range c.Scraper.FilterPatterns {
		_, err := regexp.Compile(pattern)
		v.check(err == nil, "scraper.filter_patterns", "invalid pattern %q: %v", pattern, err)
	}

	c.Processor.Quiz.validate(&v, "processor.quiz")
	c.Processor.Site.validate(&v, "processor.site")

	v.check(c.Site.AnswerConcurrency >= 1, "site.answer_concurrency", "answer_concurrency must be positive")
	v.check(c.Research.MaxSteps >= 1, "research.max_steps", "max_steps must be positive")

	return v
}

func (s SplitConfig) validate(v *validation, prefix string) {
	v.check(s.ChunkSize >= 1, prefix+".chunk_size", "chunk_size must be positive")
	v.check(s.ChunkOverlap >= 0 && s.ChunkOverlap < s.ChunkSize, prefix+".chunk_overlap",
		"chunk_overlap must be non-negative and less than chunk_size")
}
