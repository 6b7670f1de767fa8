package linkstash

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serveHTML(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(body))
	}))
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https", "https://example.com/page", false},
		{"http", "http://example.com", false},
		{"with query", "https://example.com/a?b=c", false},
		{"relative", "/just/a/path", true},
		{"no scheme", "example.com/page", true},
		{"ftp", "ftp://example.com/file", true},
		{"scheme only", "https://", true},
		{"garbage", "://nope", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestDomain(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.example.com/page", "example.com"},
		{"https://example.com/page", "example.com"},
		{"https://news.example.com", "news.example.com"},
		{"http://www.bbc.co.uk/news", "bbc.co.uk"},
	}

	for _, tt := range tests {
		if got := Domain(tt.url); got != tt.want {
			t.Errorf("Domain(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestExtractTitlePrecedence(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "og:title wins",
			html: `<html><head>
				<meta property="og:title" content="OG Title">
				<title>Doc Title</title>
			</head><body><h1>Heading</h1></body></html>`,
			want: "OG Title",
		},
		{
			name: "title tag when no og",
			html: `<html><head><title>Doc Title</title></head><body><h1>Heading</h1></body></html>`,
			want: "Doc Title",
		},
		{
			name: "h1 when no title tag",
			html: `<html><head></head><body><h1>  Heading  </h1></body></html>`,
			want: "Heading",
		},
		{
			name: "untitled fallback",
			html: `<html><head></head><body><p>no headings here</p></body></html>`,
			want: "Untitled",
		},
		{
			name: "whitespace-only title falls through",
			html: `<html><head><title>   </title></head><body><h1>Heading</h1></body></html>`,
			want: "Heading",
		},
	}

	e := NewExtractor(DefaultExtractorConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serveHTML(t, tt.html)
			defer server.Close()

			meta, degraded := e.ExtractMetadata(context.Background(), server.URL)
			if degraded {
				t.Fatal("expected extraction to succeed")
			}
			if meta.Title != tt.want {
				t.Errorf("Title = %q, want %q", meta.Title, tt.want)
			}
		})
	}
}

func TestExtractMetadataFullPage(t *testing.T) {
	html := `<html><head>
		<meta property="og:title" content="A Great Article">
		<meta property="og:description" content="What the article is about">
		<meta property="og:image" content="https://cdn.example.com/preview.png">
		<meta name="description" content="ignored, og wins">
	</head><body>
		<script>var junk = "should not appear";</script>
		<style>.hidden { display: none }</style>
		<p>First    paragraph
		with   odd    spacing.</p>
		<p>Second paragraph.</p>
	</body></html>`

	server := serveHTML(t, html)
	defer server.Close()

	e := NewExtractor(DefaultExtractorConfig())
	meta, degraded := e.ExtractMetadata(context.Background(), server.URL)

	if degraded {
		t.Fatal("expected extraction to succeed")
	}
	if meta.Title != "A Great Article" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.Description != "What the article is about" {
		t.Errorf("Description = %q", meta.Description)
	}
	if meta.Image == nil || *meta.Image != "https://cdn.example.com/preview.png" {
		t.Errorf("Image = %v", meta.Image)
	}
	if strings.Contains(meta.PageText, "junk") || strings.Contains(meta.PageText, "display") {
		t.Errorf("PageText contains script/style content: %q", meta.PageText)
	}
	if strings.Contains(meta.PageText, "  ") {
		t.Errorf("PageText contains uncollapsed whitespace: %q", meta.PageText)
	}
	if !strings.Contains(meta.PageText, "First paragraph with odd spacing.") {
		t.Errorf("PageText = %q", meta.PageText)
	}
}

func TestExtractDescriptionFallsBackToMetaTag(t *testing.T) {
	html := `<html><head>
		<meta name="description" content="Plain meta description">
	</head><body></body></html>`

	server := serveHTML(t, html)
	defer server.Close()

	e := NewExtractor(DefaultExtractorConfig())
	meta, _ := e.ExtractMetadata(context.Background(), server.URL)

	if meta.Description != "Plain meta description" {
		t.Errorf("Description = %q", meta.Description)
	}
}

func TestExtractImageTwitterFallback(t *testing.T) {
	html := `<html><head>
		<meta name="twitter:image" content="https://cdn.example.com/tw.png">
	</head><body></body></html>`

	server := serveHTML(t, html)
	defer server.Close()

	e := NewExtractor(DefaultExtractorConfig())
	meta, _ := e.ExtractMetadata(context.Background(), server.URL)

	if meta.Image == nil || *meta.Image != "https://cdn.example.com/tw.png" {
		t.Errorf("Image = %v", meta.Image)
	}
}

func TestExtractPageTextTruncated(t *testing.T) {
	long := strings.Repeat("word ", 1000) // 5000 chars of body text
	server := serveHTML(t, "<html><body><p>"+long+"</p></body></html>")
	defer server.Close()

	e := NewExtractor(DefaultExtractorConfig())
	meta, _ := e.ExtractMetadata(context.Background(), server.URL)

	if len(meta.PageText) > maxPageText {
		t.Errorf("PageText length = %d, want <= %d", len(meta.PageText), maxPageText)
	}
}

func TestExtractMetadataFallbackOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	e := NewExtractor(DefaultExtractorConfig())
	meta, degraded := e.ExtractMetadata(context.Background(), server.URL)

	if !degraded {
		t.Fatal("expected degraded extraction")
	}
	if meta.Title != "Unable to fetch title" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.Description != "" || meta.Image != nil || meta.PageText != "" {
		t.Errorf("fallback record not empty: %+v", meta)
	}
}

func TestExtractMetadataFallbackOnUnreachableHost(t *testing.T) {
	// Grab a URL, then shut the server down so the fetch fails.
	server := serveHTML(t, "<html></html>")
	url := server.URL
	server.Close()

	e := NewExtractor(DefaultExtractorConfig())
	meta, degraded := e.ExtractMetadata(context.Background(), url)

	if !degraded {
		t.Fatal("expected degraded extraction")
	}
	if meta.Title != "Unable to fetch title" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.Domain != "127.0.0.1" {
		t.Errorf("Domain = %q, want host preserved from URL", meta.Domain)
	}
}

func TestExtractMetadataSendsUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("<html><head><title>x</title></head></html>"))
	}))
	defer server.Close()

	e := NewExtractor(DefaultExtractorConfig())
	e.ExtractMetadata(context.Background(), server.URL)

	if !strings.Contains(gotUA, "Mozilla/5.0") {
		t.Errorf("User-Agent = %q, want a browser user agent", gotUA)
	}
}
