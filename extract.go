// Package linkstash implements the link-ingestion pipeline: page fetch,
// metadata extraction, and AI tag/summary enrichment.
package linkstash

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/html"

	"github.com/zombar/linkstash/metrics"
	"github.com/zombar/linkstash/models"
)

const (
	// maxPageText caps the body text sent downstream to the classifier.
	maxPageText = 3000

	// fallbackTitle is stored when the page could not be fetched at all.
	fallbackTitle = "Unable to fetch title"

	// untitled is used when the page was fetched but carries no usable title.
	untitled = "Untitled"
)

// defaultUserAgent mimics a desktop browser; some servers reject
// bot-identifying clients outright.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// ExtractorConfig contains extractor configuration.
type ExtractorConfig struct {
	FetchTimeout time.Duration
	UserAgent    string
}

// DefaultExtractorConfig returns default extractor configuration.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		FetchTimeout: 10 * time.Second,
		UserAgent:    defaultUserAgent,
	}
}

// Extractor fetches pages and extracts structured metadata from them.
type Extractor struct {
	config     ExtractorConfig
	httpClient *http.Client
}

// NewExtractor creates a new Extractor.
func NewExtractor(config ExtractorConfig) *Extractor {
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = 10 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
	}
	return &Extractor{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.FetchTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// ValidateURL reports whether raw is an absolute http(s) URL. It is the only
// pipeline stage that rejects input; everything after it degrades instead.
func ValidateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL must be http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must be absolute")
	}
	return nil
}

// Domain returns the host component of a pre-validated URL with any leading
// "www." stripped. URL parsing cannot fail here because validation already
// succeeded upstream.
func Domain(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Hostname(), "www.")
}

// ExtractMetadata fetches targetURL and extracts page metadata. It never
// returns an error: on fetch or parse failure it returns a deterministic
// fallback record and degraded=true so a save always has something to
// persist.
func (e *Extractor) ExtractMetadata(ctx context.Context, targetURL string) (*models.PageMetadata, bool) {
	start := time.Now()

	doc, err := e.fetch(ctx, targetURL)
	if err != nil {
		metrics.FetchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return fallbackMetadata(targetURL), true
	}
	metrics.FetchDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	meta := extractFromDocument(doc)
	meta.Domain = Domain(targetURL)
	return meta, false
}

// fetch retrieves and parses the page HTML.
func (e *Extractor) fetch(ctx context.Context, targetURL string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", e.config.UserAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// fallbackMetadata builds the record persisted when the page is unreachable.
// Domain is still derived from the URL.
func fallbackMetadata(targetURL string) *models.PageMetadata {
	return &models.PageMetadata{
		Title:       fallbackTitle,
		Description: "",
		Image:       nil,
		Domain:      Domain(targetURL),
		PageText:    "",
	}
}

// extractFromDocument walks the parsed document once per concern and applies
// the extraction precedence rules.
func extractFromDocument(doc *html.Node) *models.PageMetadata {
	meta := &models.PageMetadata{}
	meta.Title = extractTitle(doc)
	meta.Description = extractDescription(doc)
	meta.Image = extractImage(doc)
	meta.PageText = extractText(doc)
	return meta
}

// extractTitle extracts the page title.
// Priority: og:title > title tag > first h1 > "Untitled".
func extractTitle(n *html.Node) string {
	var ogTitle, htmlTitle, h1Title string

	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				property, _, content := metaAttrs(n)
				if property == "og:title" && ogTitle == "" {
					ogTitle = content
				}
			case "title":
				if htmlTitle == "" && n.FirstChild != nil {
					htmlTitle = n.FirstChild.Data
				}
			case "h1":
				if h1Title == "" && n.FirstChild != nil {
					h1Title = extractTextFromNode(n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)

	if t := strings.TrimSpace(ogTitle); t != "" {
		return t
	}
	if t := strings.TrimSpace(htmlTitle); t != "" {
		return t
	}
	if t := strings.TrimSpace(h1Title); t != "" {
		return t
	}
	return untitled
}

// extractDescription extracts the page description.
// Priority: og:description > meta description > "".
func extractDescription(n *html.Node) string {
	var ogDesc, metaDesc string

	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" {
			property, name, content := metaAttrs(n)
			if property == "og:description" && ogDesc == "" {
				ogDesc = content
			} else if name == "description" && metaDesc == "" {
				metaDesc = content
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)

	if d := strings.TrimSpace(ogDesc); d != "" {
		return d
	}
	return strings.TrimSpace(metaDesc)
}

// extractImage extracts the preview image URL.
// Priority: og:image > twitter:image > nil.
func extractImage(n *html.Node) *string {
	var ogImage, twitterImage string

	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" {
			property, name, content := metaAttrs(n)
			if property == "og:image" && ogImage == "" {
				ogImage = content
			} else if name == "twitter:image" && twitterImage == "" {
				twitterImage = content
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)

	if ogImage != "" {
		return &ogImage
	}
	if twitterImage != "" {
		return &twitterImage
	}
	return nil
}

// metaAttrs pulls the lowercased property/name and raw content attributes
// from a meta element.
func metaAttrs(n *html.Node) (property, name, content string) {
	for _, attr := range n.Attr {
		switch attr.Key {
		case "property":
			property = strings.ToLower(attr.Val)
		case "name":
			name = strings.ToLower(attr.Val)
		case "content":
			content = attr.Val
		}
	}
	return property, name, content
}

// extractText extracts visible body text with whitespace runs collapsed to
// single spaces, truncated to maxPageText characters.
func extractText(n *html.Node) string {
	var buf strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}
		// Skip script and style tags
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)

	text := strings.Join(strings.Fields(buf.String()), " ")
	if len(text) > maxPageText {
		text = text[:maxPageText]
	}
	return text
}

// extractTextFromNode extracts all text content from a single node and its
// children.
func extractTextFromNode(n *html.Node) string {
	var parts []string
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return strings.Join(parts, " ")
}
