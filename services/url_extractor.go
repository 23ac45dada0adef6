package services

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"docugraph-backend/models"
)

const (
	urlFetchTimeout = 30 * time.Second
	urlUserAgent    = "Mozilla/5.0 (compatible; DocuGraphBot/1.0)"
	maxFilenameLen  = 100
)

// URLExtractorService fetches a web page and reduces it to clean text plus
// metadata about the fetch.
type URLExtractorService struct {
	client      *http.Client
	maxSizeMB   int64
	maxSizeByte int64
}

func NewURLExtractorService(maxSizeMB int64) *URLExtractorService {
	return &URLExtractorService{
		client:      &http.Client{Timeout: urlFetchTimeout},
		maxSizeMB:   maxSizeMB,
		maxSizeByte: maxSizeMB * 1024 * 1024,
	}
}

// Extract downloads the page at rawURL and returns its visible text. Only
// http and https schemes are accepted; content larger than the configured
// size is rejected outright, never truncated and ingested.
func (s *URLExtractorService) Extract(rawURL string) (string, *models.URLMetadata, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", nil, fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", nil, fmt.Errorf("URL has no host")
	}

	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("User-Agent", urlUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("fetch URL: status %d", resp.StatusCode)
	}

	if resp.ContentLength > s.maxSizeByte {
		return "", nil, fmt.Errorf("content size %.1fMB exceeds the %dMB limit",
			float64(resp.ContentLength)/(1024*1024), s.maxSizeMB)
	}

	// Read one byte past the cap so an unsized (chunked) response that is
	// too large is detected rather than truncated.
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSizeByte+1))
	if err != nil {
		return "", nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) > s.maxSizeByte {
		return "", nil, fmt.Errorf("content exceeds the %dMB limit", s.maxSizeMB)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", nil, fmt.Errorf("parse HTML: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	text := normalizeWhitespace(doc.Find("body").Text())
	if text == "" {
		text = normalizeWhitespace(doc.Text())
	}

	meta := &models.URLMetadata{
		URL:              rawURL,
		Title:            strings.TrimSpace(doc.Find("title").First().Text()),
		Domain:           strings.TrimPrefix(parsed.Host, "www."),
		ContentType:      resp.Header.Get("Content-Type"),
		ContentSizeMB:    float64(len(body)) / (1024 * 1024),
		ExtractionMethod: "goquery",
	}
	return text, meta, nil
}

// normalizeWhitespace collapses rendered HTML text: lines are trimmed,
// multi-space runs split phrases, and everything joins with single spaces.
func normalizeWhitespace(text string) string {
	var phrases []string
	for _, line := range strings.Split(text, "\n") {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			phrase = strings.TrimSpace(phrase)
			if phrase != "" {
				phrases = append(phrases, phrase)
			}
		}
	}
	return strings.Join(phrases, " ")
}

// DeriveURLFilename produces the deterministic per-URL filename: the host
// and path flattened into a url_-prefixed .txt name, truncated to a bounded
// length so the same URL always maps to the same file.
func DeriveURLFilename(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("URL has no host")
	}

	domain := strings.TrimPrefix(parsed.Host, "www.")
	path := strings.Trim(parsed.Path, "/")
	path = strings.ReplaceAll(path, "/", "_")

	var name string
	if path != "" {
		name = fmt.Sprintf("url_%s_%s.txt", domain, path)
	} else {
		name = fmt.Sprintf("url_%s.txt", domain)
	}
	name = sanitizeFilename(name)

	if len(name) > maxFilenameLen {
		name = name[:maxFilenameLen] + ".txt"
	}
	return name, nil
}

func sanitizeFilename(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
