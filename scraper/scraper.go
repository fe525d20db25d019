// Package scraper pulls readable text out of venue and event pages so the
// extraction rules can run over them.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

const defaultMaxTextLen = 8000

// Scraper fetches web pages and strips them down to their text.
type Scraper struct {
	httpClient *http.Client
	maxTextLen int
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		s.httpClient.Timeout = d
	}
}

// WithMaxTextLength caps the length of the returned text.
func WithMaxTextLength(n int) Option {
	return func(s *Scraper) {
		s.maxTextLen = n
	}
}

// NewScraper creates a page scraper.
func NewScraper(opts ...Option) *Scraper {
	s := &Scraper{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxTextLen: defaultMaxTextLen,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PageText fetches a page and returns its readable text content,
// truncated to the configured length.
func (s *Scraper) PageText(ctx context.Context, rawURL string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid URL: %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ShowFinder/1.0)")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > s.maxTextLen {
		text = text[:s.maxTextLen]
	}
	return text, nil
}
