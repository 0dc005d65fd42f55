package scraper

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/xhad/fullstackgpt/internal/models"
	"github.com/xhad/fullstackgpt/internal/types"
)

// maxIndexDepth bounds recursion through nested sitemap indexes.
const maxIndexDepth = 3

type urlEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// Entry is one page listed by a sitemap.
type Entry struct {
	URL     string
	LastMod *time.Time
}

// SitemapLoader reads a sitemap and loads every allowed page.
type SitemapLoader struct {
	scraper *Scraper
}

func NewSitemapLoader(s *Scraper) *SitemapLoader {
	return &SitemapLoader{scraper: s}
}

var _ types.SiteLoader = (*SitemapLoader)(nil)

// Load returns one document per reachable, allowed page. An unreachable sitemap is
// a FetchError; unreachable pages are logged and skipped.
func (l *SitemapLoader) Load(ctx context.Context, sitemapURL string) ([]models.RawDocument, error) {
	entries, err := l.Entries(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	var documents []models.RawDocument
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := l.scraper.FetchPage(ctx, e.URL)
		if err != nil {
			log.Printf("Error scraping URL: %v", err)
			continue
		}
		documents = append(documents, models.RawDocument{
			Content:  content,
			Metadata: models.Metadata{Origin: e.URL, Timestamp: e.LastMod},
		})
	}

	log.Printf("Loaded %d of %d pages from %s", len(documents), len(entries), sitemapURL)
	return documents, nil
}

// Entries lists the allowed pages of a sitemap, following sitemap indexes.
func (l *SitemapLoader) Entries(ctx context.Context, sitemapURL string) ([]Entry, error) {
	seen := make(map[string]bool)
	return l.entries(ctx, sitemapURL, 0, seen)
}

func (l *SitemapLoader) entries(ctx context.Context, sitemapURL string, depth int, seen map[string]bool) ([]Entry, error) {
	if seen[sitemapURL] {
		return nil, nil
	}
	seen[sitemapURL] = true

	resp, err := l.scraper.get(ctx, sitemapURL)
	if err != nil {
		return nil, &types.FetchError{URL: sitemapURL, Err: err}
	}
	defer resp.Body.Close()

	var raw struct {
		XMLName  xml.Name
		URLs     []urlEntry `xml:"url"`
		Sitemaps []urlEntry `xml:"sitemap"`
	}
	if err := xml.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &types.FetchError{URL: sitemapURL, Err: fmt.Errorf("invalid sitemap: %w", err)}
	}

	switch raw.XMLName.Local {
	case "urlset":
		var out []Entry
		for _, u := range raw.URLs {
			loc := strings.TrimSpace(u.Loc)
			if loc == "" || !l.scraper.allowed(loc) {
				continue
			}
			out = append(out, Entry{URL: loc, LastMod: parseLastMod(u.LastMod)})
		}
		return out, nil

	case "sitemapindex":
		if depth >= maxIndexDepth {
			log.Printf("Skipping nested sitemap index %s: too deep", sitemapURL)
			return nil, nil
		}
		var out []Entry
		for _, child := range raw.Sitemaps {
			loc := strings.TrimSpace(child.Loc)
			if loc == "" {
				continue
			}
			entries, err := l.entries(ctx, loc, depth+1, seen)
			if err != nil {
				log.Printf("Error reading child sitemap: %v", err)
				continue
			}
			out = append(out, entries...)
		}
		return out, nil

	default:
		return nil, &types.FetchError{URL: sitemapURL, Err: fmt.Errorf("unexpected sitemap root <%s>", raw.XMLName.Local)}
	}
}

var lastModLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseLastMod(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range lastModLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
