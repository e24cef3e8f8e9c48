package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings holds every process-level knob, read once from the environment at
// startup.
type Settings struct {
	Port int

	GovAPIKey          string
	OpenAIAPIKey       string
	GoogleAPIKey       string
	HuggingFaceAPIKey  string
	SearchGovAffiliate string
	SearchGovAccessKey string

	OpenAIModel    string
	GeminiModel    string
	OpenAIBaseURL  string
	GeminiBaseURL  string
	DefaultAPIMode string

	EmbeddingProvider  string
	EmbeddingModel     string
	HuggingFaceBaseURL string
	OllamaBaseURL      string

	RegulationsBaseURL     string
	GovInfoBaseURL         string
	CongressBaseURL        string
	FederalRegisterBaseURL string
	USASpendingBaseURL     string
	FiscalDataBaseURL      string
	DataGovBaseURL         string
	DOJBaseURL             string
	SearchGovBaseURL       string

	DatabasePath string

	CacheTTL       time.Duration
	MaxRetries     int
	InitialBackoff time.Duration

	ChunkSize    int
	ChunkOverlap int
	MaxChunks    int
	TopK         int

	FetchAllowedDomains []string
	AllowLocalFetch     bool
	FetchMaxBytes       int64
}

// Load reads settings from the environment, applying the documented defaults.
func Load() *Settings {
	return &Settings{
		Port: envInt("PORT", 8080),

		GovAPIKey:          os.Getenv("GOV_API_KEY"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		GoogleAPIKey:       os.Getenv("GOOGLE_API_KEY"),
		HuggingFaceAPIKey:  os.Getenv("HUGGINGFACE_API_KEY"),
		SearchGovAffiliate: os.Getenv("SEARCHGOV_AFFILIATE"),
		SearchGovAccessKey: os.Getenv("SEARCHGOV_ACCESS_KEY"),

		OpenAIModel:    envStr("OPENAI_MODEL", "gpt-5.2"),
		GeminiModel:    envStr("GEMINI_MODEL", "gemini-3-pro"),
		OpenAIBaseURL:  envStr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		GeminiBaseURL:  envStr("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		DefaultAPIMode: envStr("DEFAULT_API_MODE", "responses"),

		EmbeddingProvider:  envStr("EMBEDDING_PROVIDER", "local"),
		EmbeddingModel:     envStr("EMBEDDING_MODEL", "sentence-transformers/all-MiniLM-L6-v2"),
		HuggingFaceBaseURL: envStr("HUGGINGFACE_BASE_URL", "https://api-inference.huggingface.co/pipeline/feature-extraction"),
		OllamaBaseURL:      envStr("OLLAMA_HOST", "http://localhost:11434"),

		RegulationsBaseURL:     envStr("REGULATIONS_BASE_URL", "https://api.regulations.gov/v4"),
		GovInfoBaseURL:         envStr("GOVINFO_BASE_URL", "https://api.govinfo.gov"),
		CongressBaseURL:        envStr("CONGRESS_BASE_URL", "https://api.congress.gov/v3"),
		FederalRegisterBaseURL: envStr("FEDERAL_REGISTER_BASE_URL", "https://www.federalregister.gov/api/v1"),
		USASpendingBaseURL:     envStr("USASPENDING_BASE_URL", "https://api.usaspending.gov/api/v2"),
		FiscalDataBaseURL:      envStr("FISCAL_DATA_BASE_URL", "https://api.fiscaldata.treasury.gov/services/api/fiscal_service"),
		DataGovBaseURL:         envStr("DATAGOV_BASE_URL", "https://api.gsa.gov/technology/datagov/v3/action"),
		DOJBaseURL:             envStr("DOJ_BASE_URL", "https://www.justice.gov/api/v1"),
		SearchGovBaseURL:       envStr("SEARCHGOV_BASE_URL", "https://api.gsa.gov/technology/searchgov/v2"),

		DatabasePath: envStr("RADAR_DB_PATH", "radar.db"),

		CacheTTL:       time.Duration(envInt("CACHE_TTL_SECONDS", 600)) * time.Second,
		MaxRetries:     envInt("MAX_RETRIES", 3),
		InitialBackoff: time.Duration(envInt("INITIAL_BACKOFF_MS", 1000)) * time.Millisecond,

		ChunkSize:    envInt("RAG_CHUNK_SIZE", 1200),
		ChunkOverlap: envInt("RAG_CHUNK_OVERLAP", 200),
		MaxChunks:    envInt("RAG_MAX_CHUNKS", 500),
		TopK:         envInt("RAG_TOP_K", 5),

		FetchAllowedDomains: envList("FETCH_ALLOWED_DOMAINS", []string{".gov", ".mil"}),
		AllowLocalFetch:     envBool("ALLOW_LOCAL_FETCH", false),
		FetchMaxBytes:       int64(envInt("FETCH_MAX_RESPONSE_BYTES", 10_000_000)),
	}
}

// ConfiguredSources returns the source keys whose credentials are present.
// Sources with missing credentials are excluded even if a caller requests
// them.
func (s *Settings) ConfiguredSources() map[string]bool {
	configured := map[string]bool{
		"regulations":      s.GovAPIKey != "",
		"govinfo":          s.GovAPIKey != "",
		"congress":         s.GovAPIKey != "",
		"federal_register": true,
		"usaspending":      true,
		"fiscal_data":      true,
		"datagov":          true,
		"doj":              true,
		"searchgov":        s.SearchGovAffiliate != "" && s.SearchGovAccessKey != "",
	}
	out := map[string]bool{}
	for key, ok := range configured {
		if ok {
			out[key] = true
		}
	}
	return out
}

func envStr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func envBool(name string, fallback bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func envList(name string, fallback []string) []string {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if out == nil {
		return fallback
	}
	return out
}
