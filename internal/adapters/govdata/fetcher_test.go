package govdata

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func govFetcher(allowLocal bool) *Fetcher {
	return NewFetcher(slog.Default(), []string{".gov", ".mil"}, allowLocal, 0)
}

func TestFetchRefusesOffAllowlistDomains(t *testing.T) {
	f := govFetcher(false)

	res, err := f.Fetch(context.Background(), "https://example.com/page", 0)

	require.NoError(t, err)
	assert.Contains(t, res.Error, "allowlist")
}

func TestFetchRefusesPrivateAddresses(t *testing.T) {
	f := govFetcher(false)

	for _, target := range []string{
		"http://127.0.0.1/secrets",
		"http://10.0.0.5/",
		"http://169.254.169.254/latest/meta-data/",
		"http://localhost/admin",
		"http://metadata.google.internal/computeMetadata/v1/",
		"http://foo.internal/",
	} {
		res, err := f.Fetch(context.Background(), target, 0)
		require.NoError(t, err)
		assert.Contains(t, res.Error, "URL denied", target)
	}
}

func TestFetchRefusesRawPublicIPs(t *testing.T) {
	res, err := govFetcher(false).Fetch(context.Background(), "http://8.8.8.8/", 0)

	require.NoError(t, err)
	assert.Contains(t, res.Error, "raw IP")
}

func TestFetchRefusesUnsupportedSchemes(t *testing.T) {
	res, err := govFetcher(false).Fetch(context.Background(), "ftp://www.epa.gov/file", 0)

	require.NoError(t, err)
	assert.Contains(t, res.Error, "unsupported scheme")
}

func TestFetchDefaultsToHTTPS(t *testing.T) {
	// No scheme at all still passes the allowlist check as https.
	res, err := govFetcher(false).Fetch(context.Background(), "definitely-not-gov.example", 0)

	require.NoError(t, err)
	assert.Contains(t, res.Error, "allowlist")
}

func TestFetchExtractsTextFromHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html>
			<head><title>  EPA  Effluent   Guidelines </title><style>.x{color:red}</style></head>
			<body>
				<script>var hidden = "nope";</script>
				<nav>Site navigation</nav>
				<p>Final rule on effluent limits.</p>
				<footer>Footer junk</footer>
			</body></html>`))
	}))
	defer srv.Close()

	res, err := govFetcher(true).Fetch(context.Background(), srv.URL, 0)

	require.NoError(t, err)
	require.Empty(t, res.Error)
	assert.Equal(t, "EPA Effluent Guidelines", res.Title)
	assert.Contains(t, res.Text, "Final rule on effluent limits.")
	assert.NotContains(t, res.Text, "hidden")
	assert.NotContains(t, res.Text, "Site navigation")
	assert.NotContains(t, res.Text, "Footer junk")
}

func TestFetchTruncatesLongContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("z", 500)))
	}))
	defer srv.Close()

	res, err := govFetcher(true).Fetch(context.Background(), srv.URL, 100)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Text, strings.Repeat("z", 100)))
	assert.Contains(t, res.Text, "content truncated")
}

func TestFetchReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	res, err := govFetcher(true).Fetch(context.Background(), srv.URL, 0)

	require.NoError(t, err)
	assert.Contains(t, res.Error, "HTTP 403")
}

func TestFetchWithoutAllowLocalRefusesLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("never reached"))
	}))
	defer srv.Close()

	res, err := govFetcher(false).Fetch(context.Background(), srv.URL, 0)

	require.NoError(t, err)
	assert.Contains(t, res.Error, "URL denied")
}

func TestExtractTitle(t *testing.T) {
	assert.Equal(t, "A Title", extractTitle(`<title>A Title</title>`))
	assert.Equal(t, "Multi Line", extractTitle("<TITLE>\n Multi \n Line \n</TITLE>"))
	assert.Equal(t, "", extractTitle("<h1>no title tag</h1>"))
}

func TestHTMLToTextHandlesUnclosedBlocks(t *testing.T) {
	// An unclosed script swallows the remainder rather than leaking code.
	out := htmlToText(`<p>visible</p><script>var x = 1;`)
	assert.Contains(t, out, "visible")
	assert.NotContains(t, out, "var x")
}
