package govdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFederalRegisterSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/documents.json", r.URL.Path)
		assert.Equal(t, "pfas", q.Get("conditions[term]"))
		assert.Equal(t, "newest", q.Get("order"))
		assert.Equal(t, "25", q.Get("per_page"), "page size clamps at 25")
		// The window lower bound is a date, not empty.
		gte, err := time.Parse("2006-01-02", q.Get("conditions[publication_date][gte]"))
		require.NoError(t, err)
		assert.True(t, gte.Before(time.Now()))

		_, _ = w.Write([]byte(`{
			"count": 120,
			"results": [{
				"document_number": "2026-01234",
				"title": "PFAS Reporting Rule",
				"type": "Rule",
				"abstract": "Final rule on PFAS reporting.",
				"publication_date": "2026-08-20",
				"agencies": [{"name": "Environmental Protection Agency"}],
				"html_url": "https://www.federalregister.gov/d/2026-01234",
				"pdf_url": "https://www.govinfo.gov/content/pkg/FR-2026-08-20.pdf"
			}]
		}`))
	}))
	defer srv.Close()

	fr := NewFederalRegister(testClient(0), srv.URL)
	result, records, err := fr.Search(context.Background(), "pfas", 30, 100)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Data["result_count"])
	assert.Equal(t, 120, result.Data["total"])
	items := result.Data["results"].([]map[string]any)
	assert.Equal(t, "Environmental Protection Agency", items[0]["agency"])

	require.Len(t, records, 1)
	assert.Equal(t, "federal_register_document", records[0].SourceType)
	assert.Equal(t, "2026-01234", records[0].ID)
	assert.Equal(t, "https://www.federalregister.gov/d/2026-01234", records[0].URL)
	assert.NotEmpty(t, records[0].PDFURL)
}

func TestFederalRegisterSearchEmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count": 0, "results": []}`))
	}))
	defer srv.Close()

	fr := NewFederalRegister(testClient(0), srv.URL)
	result, records, err := fr.Search(context.Background(), "nothing", 30, 10)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Data["result_count"])
	assert.Empty(t, records)
}
