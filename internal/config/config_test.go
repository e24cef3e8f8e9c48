package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	s := Load()

	assert.Equal(t, 8080, s.Port)
	assert.Equal(t, "responses", s.DefaultAPIMode)
	assert.Equal(t, 1200, s.ChunkSize)
	assert.Equal(t, []string{".gov", ".mil"}, s.FetchAllowedDomains)
	assert.Equal(t, 10*time.Minute, s.CacheTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RAG_CHUNK_SIZE", "800")
	t.Setenv("ALLOW_LOCAL_FETCH", "true")
	t.Setenv("FETCH_ALLOWED_DOMAINS", ".gov, .example.org")

	s := Load()

	assert.Equal(t, 9090, s.Port)
	assert.Equal(t, 800, s.ChunkSize)
	assert.True(t, s.AllowLocalFetch)
	assert.Equal(t, []string{".gov", ".example.org"}, s.FetchAllowedDomains)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	assert.Equal(t, 8080, Load().Port)
}

func TestConfiguredSourcesKeyGating(t *testing.T) {
	s := &Settings{}
	open := s.ConfiguredSources()

	// Keyless sources are always on.
	for _, key := range []string{"federal_register", "usaspending", "fiscal_data", "datagov", "doj"} {
		assert.True(t, open[key], key)
	}
	assert.NotContains(t, open, "regulations")
	assert.NotContains(t, open, "searchgov")

	s.GovAPIKey = "k"
	gov := s.ConfiguredSources()
	assert.True(t, gov["regulations"])
	assert.True(t, gov["govinfo"])
	assert.True(t, gov["congress"])

	// Search.gov needs both the affiliate and the access key.
	s.SearchGovAffiliate = "aff"
	assert.NotContains(t, s.ConfiguredSources(), "searchgov")
	s.SearchGovAccessKey = "ak"
	assert.True(t, s.ConfiguredSources()["searchgov"])
}
