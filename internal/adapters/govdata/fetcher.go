package govdata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/policyradar/policyradar/internal/core/ports"
)

// Fetcher downloads a URL and extracts readable text. It enforces the
// network-safety policy itself: a domain allowlist plus private-address
// blocking. The orchestration core never re-validates URLs.
type Fetcher struct {
	client         *http.Client
	logger         *slog.Logger
	allowedDomains []string
	allowLocal     bool
	maxBytes       int64
}

// NewFetcher creates the fetcher. allowedDomains are suffixes (".gov",
// ".mil"); allowLocal permits loopback targets for tests.
func NewFetcher(logger *slog.Logger, allowedDomains []string, allowLocal bool, maxBytes int64) *Fetcher {
	if maxBytes <= 0 {
		maxBytes = 10_000_000
	}
	f := &Fetcher{
		logger:         logger,
		allowedDomains: allowedDomains,
		allowLocal:     allowLocal,
		maxBytes:       maxBytes,
	}
	f.client = &http.Client{
		Timeout: 60 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects")
			}
			if reason := f.refuse(req.URL.String()); reason != "" {
				return fmt.Errorf("redirect denied: %s", reason)
			}
			return nil
		},
	}
	return f
}

// Fetch downloads the URL and returns extracted text. A refused or failed
// fetch reports through FetchResult.Error, not a Go error, so the model sees
// the reason.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, maxLength int) (ports.FetchResult, error) {
	// Only schemeless input gets the https default. A URL that declares some
	// other scheme must reach refuse intact so it reports as unsupported.
	if parsed, err := url.Parse(rawURL); err != nil || parsed.Scheme == "" {
		rawURL = "https://" + rawURL
	}
	if reason := f.refuse(rawURL); reason != "" {
		f.logger.Warn("fetch refused", "url", rawURL, "reason", reason)
		return ports.FetchResult{Error: "URL denied: " + reason}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ports.FetchResult{Error: "invalid URL"}, nil
	}
	req.Header.Set("User-Agent", "policyradar/1.0 (research assistant)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain,application/pdf,*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return ports.FetchResult{Error: fmt.Sprintf("fetch failed: %v", err)}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return ports.FetchResult{Error: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, rawURL)}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return ports.FetchResult{Error: fmt.Sprintf("read failed: %v", err)}, nil
	}

	content := string(body)
	title := ""
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/html") || strings.Contains(content, "<html") {
		title = extractTitle(content)
		content = htmlToText(content)
	}

	if maxLength > 0 && len(content) > maxLength {
		content = content[:maxLength] + "\n\n... (content truncated)"
	}
	if strings.TrimSpace(content) == "" {
		return ports.FetchResult{Title: title, Error: "page returned empty content"}, nil
	}
	return ports.FetchResult{Text: content, Title: title}, nil
}

// refuse returns a non-empty reason when the URL must not be fetched.
func (f *Fetcher) refuse(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "unparseable URL"
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "unsupported scheme"
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "missing host"
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() && f.allowLocal {
			return ""
		}
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
			ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return "private or internal address"
		}
		return "raw IP addresses are not allowed"
	}

	if host == "localhost" {
		if f.allowLocal {
			return ""
		}
		return "private or internal address"
	}
	if host == "metadata.google.internal" || strings.HasSuffix(host, ".internal") {
		return "private or internal address"
	}

	for _, suffix := range f.allowedDomains {
		if strings.HasSuffix(host, strings.ToLower(suffix)) {
			return ""
		}
	}
	return "domain is not on the allowlist"
}

var titlePattern = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

func extractTitle(html string) string {
	m := titlePattern.FindStringSubmatch(html)
	if len(m) < 2 {
		return ""
	}
	return strings.Join(strings.Fields(m[1]), " ")
}

// htmlToText strips script/style blocks and tags, then collapses whitespace.
// Not a full parser; good enough for model consumption.
func htmlToText(html string) string {
	result := html
	for _, tag := range []string{"script", "style", "noscript", "nav", "footer", "header"} {
		for {
			lower := strings.ToLower(result)
			open := strings.Index(lower, "<"+tag)
			if open == -1 {
				break
			}
			close := strings.Index(lower[open:], "</"+tag+">")
			if close == -1 {
				result = result[:open]
				break
			}
			end := open + close + len("</"+tag+">")
			result = result[:open] + result[end:]
		}
	}

	var text strings.Builder
	inTag := false
	for _, ch := range result {
		switch {
		case ch == '<':
			inTag = true
		case ch == '>':
			inTag = false
			text.WriteByte(' ')
		case !inTag:
			text.WriteRune(ch)
		}
	}

	lines := strings.Split(text.String(), "\n")
	var cleaned []string
	for _, line := range lines {
		trimmed := strings.Join(strings.Fields(line), " ")
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return strings.Join(cleaned, "\n")
}

var _ ports.ContentFetcher = (*Fetcher)(nil)
