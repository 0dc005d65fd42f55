package scraper

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/fullstackgpt/internal/models"
	"github.com/xhad/fullstackgpt/internal/types"
	"golang.org/x/time/rate"
)

type ScraperConfig struct {
	FilterPatterns []string // regular expressions, an entry is kept when any matches
	NoisePatterns  []string
	RateLimit      float64 // requests per second
	Timeout        time.Duration
	UserAgent      string
	OnProgress     func(url string)
}

// Scraper fetches pages through a shared rate limiter and strips boilerplate.
type Scraper struct {
	config  ScraperConfig
	client  *http.Client
	limiter *rate.Limiter
	filters []*regexp.Regexp
}

func NewWithConfig(config ScraperConfig) (*Scraper, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if config.UserAgent == "" {
		config.UserAgent = "fullstackgpt/1.0"
	}

	filters := make([]*regexp.Regexp, 0, len(config.FilterPatterns))
	for _, p := range config.FilterPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", p, err)
		}
		filters = append(filters, re)
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		filters: filters,
	}, nil
}

func New() *Scraper {
	s, _ := NewWithConfig(ScraperConfig{})
	return s
}

// allowed reports whether a URL passes the filter allow-list. An empty list allows everything.
func (s *Scraper) allowed(urlStr string) bool {
	if len(s.filters) == 0 {
		return true
	}
	for _, re := range s.filters {
		if re.MatchString(urlStr) {
			return true
		}
	}
	return false
}

func (s *Scraper) cleanContent(content string) string {
	content = strings.NewReplacer("\n", " ", "\u00a0", " ").Replace(content)

	for _, pattern := range s.config.NoisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}

	// Remove extra whitespace
	return strings.Join(strings.Fields(content), " ")
}

func (s *Scraper) extractContent(doc *goquery.Document) string {
	doc.Find("header").Remove()
	doc.Find("footer").Remove()
	doc.Find("script, style, noscript").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		return s.cleanContent(doc.Text())
	}
	return s.cleanContent(body.Text())
}

// get waits for the limiter, then fetches urlStr. Non-200 responses are errors.
func (s *Scraper) get(ctx context.Context, urlStr string) (*http.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, urlStr)
	}
	return resp, nil
}

// FetchPage returns the cleaned text of a single page.
func (s *Scraper) FetchPage(ctx context.Context, urlStr string) (string, error) {
	if s.config.OnProgress != nil {
		s.config.OnProgress(urlStr)
	}

	resp, err := s.get(ctx, urlStr)
	if err != nil {
		return "", &types.FetchError{URL: urlStr, Err: err}
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", &types.FetchError{URL: urlStr, Err: err}
	}

	return s.extractContent(doc), nil
}

// Extract fetches each URL in order. Failed pages are logged and left out.
func (s *Scraper) Extract(ctx context.Context, urls []string) ([]models.RawDocument, error) {
	var documents []models.RawDocument
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return documents, err
		}
		content, err := s.FetchPage(ctx, u)
		if err != nil {
			log.Printf("Error scraping URL: %v", err)
			continue
		}
		documents = append(documents, models.RawDocument{
			Content:  content,
			Metadata: models.Metadata{Origin: u},
		})
	}
	return documents, nil
}
