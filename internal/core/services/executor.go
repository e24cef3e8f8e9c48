package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/policyradar/policyradar/internal/core/domain"
	"github.com/policyradar/policyradar/internal/core/ports"
)

// RegulationsAPI is the slice of the Regulations.gov client the executor needs.
type RegulationsAPI interface {
	SearchDocuments(ctx context.Context, term string, days, pageSize int) (domain.ToolResult, []domain.SourceRecord, error)
	SearchDockets(ctx context.Context, term string, pageSize int) (domain.ToolResult, []domain.SourceRecord, error)
	GetDocument(ctx context.Context, documentID string, includeAttachments bool) (domain.ToolResult, []domain.SourceRecord, error)
	ReadDocumentContent(ctx context.Context, documentID string) (domain.ToolResult, []domain.SourceRecord, error)
}

// GovInfoAPI is the slice of the GovInfo client the executor needs.
type GovInfoAPI interface {
	Search(ctx context.Context, keywords, collection, query string, days, pageSize int) (domain.ToolResult, []domain.SourceRecord, error)
	PackageSummary(ctx context.Context, packageID string) (domain.ToolResult, []domain.SourceRecord, error)
	ReadPackageContent(ctx context.Context, packageID string) (domain.ToolResult, []domain.SourceRecord, error)
}

// CongressAPI searches bills on Congress.gov.
type CongressAPI interface {
	SearchBills(ctx context.Context, query string, days, pageSize int) (domain.ToolResult, []domain.SourceRecord, error)
}

// FederalRegisterAPI searches the Federal Register.
type FederalRegisterAPI interface {
	Search(ctx context.Context, query string, days, pageSize int) (domain.ToolResult, []domain.SourceRecord, error)
}

// SpendingAPI searches USAspending awards.
type SpendingAPI interface {
	SearchAwards(ctx context.Context, query string, pageSize int) (domain.ToolResult, []domain.SourceRecord, error)
}

// FiscalDataAPI queries Treasury Fiscal Data endpoints.
type FiscalDataAPI interface {
	Query(ctx context.Context, dataset string, pageSize int) (domain.ToolResult, []domain.SourceRecord, error)
}

// DataGovAPI searches the Data.gov catalog.
type DataGovAPI interface {
	SearchDatasets(ctx context.Context, query string, pageSize int) (domain.ToolResult, []domain.SourceRecord, error)
}

// DOJAPI searches DOJ press releases.
type DOJAPI interface {
	SearchPress(ctx context.Context, query string, days, pageSize int) (domain.ToolResult, []domain.SourceRecord, error)
}

// SearchGovAPI performs broad .gov web search.
type SearchGovAPI interface {
	Search(ctx context.Context, query string, pageSize int) (domain.ToolResult, []domain.SourceRecord, error)
}

// MemorySearcher answers similarity queries over this session's indexed
// documents and ingests new ones. Full text returned by read/fetch tools is
// indexed so the memory tool can recall it later in the session.
type MemorySearcher interface {
	Search(ctx context.Context, sessionID, query string, topK int) ([]domain.MemoryMatch, error)
	Ingest(ctx context.Context, sessionID, docKey, text string, metadata map[string]string) error
}

// ExecutorDeps bundles the collaborators the executor dispatches to. Nil
// entries make the corresponding tools report an unavailability error as
// result data.
type ExecutorDeps struct {
	Regulations     RegulationsAPI
	GovInfo         GovInfoAPI
	Congress        CongressAPI
	FederalRegister FederalRegisterAPI
	Spending        SpendingAPI
	FiscalData      FiscalDataAPI
	DataGov         DataGovAPI
	DOJ             DOJAPI
	SearchGov       SearchGovAPI
	Fetcher         ports.ContentFetcher
	Memory          MemorySearcher
}

// ToolExecutor maps model-issued tool calls onto the data-source clients.
// Failures never surface as Go errors: a failed call yields a result whose
// data carries an "error" key, so the conversation continues and the model
// can react.
type ToolExecutor struct {
	logger   *slog.Logger
	registry *domain.ToolRegistry
	deps     ExecutorDeps
}

// NewToolExecutor wires the executor over a catalog and its collaborators.
func NewToolExecutor(logger *slog.Logger, registry *domain.ToolRegistry, deps ExecutorDeps) *ToolExecutor {
	return &ToolExecutor{logger: logger, registry: registry, deps: deps}
}

// Execute runs one tool call. It returns the raw result, a compact preview
// for observability steps, and the citable records the call discovered.
func (e *ToolExecutor) Execute(ctx context.Context, call domain.ToolCall, sessionID string) (domain.ToolResult, map[string]any, []domain.SourceRecord) {
	spec, ok := e.registry.Get(call.Name)
	if !ok {
		return e.failure(call, fmt.Sprintf("unknown tool: %s", call.Name))
	}
	if err := spec.ValidateArgs(call.Args); err != nil {
		return e.failure(call, err.Error())
	}

	result, sources, err := e.dispatch(ctx, call, sessionID)
	if err != nil {
		e.logger.Warn("tool call failed", "tool", call.Name, "error", err)
		return e.failure(call, err.Error())
	}
	if result.Data == nil {
		result.Data = map[string]any{}
	}
	e.indexFullText(ctx, call, sessionID, result)
	return result, makePreview(result.Data), sources
}

// indexFullText stores full document text in retrieval memory so the model
// can recall it later via the memory tool. Indexing failures never affect
// the tool result.
func (e *ToolExecutor) indexFullText(ctx context.Context, call domain.ToolCall, sessionID string, result domain.ToolResult) {
	if e.deps.Memory == nil || sessionID == "" {
		return
	}
	text, ok := result.Data["full_text"].(string)
	if !ok || text == "" {
		text, ok = result.Data["text"].(string)
	}
	if !ok || text == "" {
		return
	}
	docKey := argString(call.Args, "document_id")
	if docKey == "" {
		docKey = argString(call.Args, "package_id")
	}
	if docKey == "" {
		docKey = argString(call.Args, "url")
	}
	if docKey == "" {
		return
	}
	meta := map[string]string{"tool": call.Name}
	if title, ok := result.Data["title"].(string); ok && title != "" {
		meta["title"] = title
	}
	if err := e.deps.Memory.Ingest(ctx, sessionID, docKey, text, meta); err != nil {
		e.logger.Warn("failed to index document text", "doc_key", docKey, "error", err)
	}
}

func (e *ToolExecutor) dispatch(ctx context.Context, call domain.ToolCall, sessionID string) (domain.ToolResult, []domain.SourceRecord, error) {
	args := call.Args
	switch call.Name {
	case "regs_search_documents":
		if e.deps.Regulations == nil {
			return unavailable(domain.SourceRegulations)
		}
		return e.deps.Regulations.SearchDocuments(ctx, argString(args, "search_term"), argInt(args, "days", 30), argInt(args, "page_size", 10))
	case "regs_search_dockets":
		if e.deps.Regulations == nil {
			return unavailable(domain.SourceRegulations)
		}
		return e.deps.Regulations.SearchDockets(ctx, argString(args, "search_term"), argInt(args, "page_size", 10))
	case "regs_get_document":
		if e.deps.Regulations == nil {
			return unavailable(domain.SourceRegulations)
		}
		return e.deps.Regulations.GetDocument(ctx, argString(args, "document_id"), argBool(args, "include_attachments"))
	case "regs_read_document_content":
		if e.deps.Regulations == nil {
			return unavailable(domain.SourceRegulations)
		}
		return e.deps.Regulations.ReadDocumentContent(ctx, argString(args, "document_id"))
	case "govinfo_search":
		if e.deps.GovInfo == nil {
			return unavailable(domain.SourceGovInfo)
		}
		return e.deps.GovInfo.Search(ctx,
			argString(args, "keywords"), argString(args, "collection"), argString(args, "query"),
			argInt(args, "days", 30), argInt(args, "page_size", 10))
	case "govinfo_package_summary":
		if e.deps.GovInfo == nil {
			return unavailable(domain.SourceGovInfo)
		}
		return e.deps.GovInfo.PackageSummary(ctx, argString(args, "package_id"))
	case "govinfo_read_package_content":
		if e.deps.GovInfo == nil {
			return unavailable(domain.SourceGovInfo)
		}
		return e.deps.GovInfo.ReadPackageContent(ctx, argString(args, "package_id"))
	case "congress_search_bills":
		if e.deps.Congress == nil {
			return unavailable(domain.SourceCongress)
		}
		return e.deps.Congress.SearchBills(ctx, argString(args, "query"), argInt(args, "days", 30), argInt(args, "page_size", 10))
	case "federal_register_search":
		if e.deps.FederalRegister == nil {
			return unavailable(domain.SourceFederalRegister)
		}
		return e.deps.FederalRegister.Search(ctx, argString(args, "query"), argInt(args, "days", 30), argInt(args, "page_size", 10))
	case "usaspending_search_awards":
		if e.deps.Spending == nil {
			return unavailable(domain.SourceUSASpending)
		}
		return e.deps.Spending.SearchAwards(ctx, argString(args, "query"), argInt(args, "page_size", 10))
	case "fiscal_data_query":
		if e.deps.FiscalData == nil {
			return unavailable(domain.SourceFiscalData)
		}
		return e.deps.FiscalData.Query(ctx, argString(args, "dataset"), argInt(args, "page_size", 10))
	case "datagov_search_datasets":
		if e.deps.DataGov == nil {
			return unavailable(domain.SourceDataGov)
		}
		return e.deps.DataGov.SearchDatasets(ctx, argString(args, "query"), argInt(args, "page_size", 10))
	case "doj_press_search":
		if e.deps.DOJ == nil {
			return unavailable(domain.SourceDOJ)
		}
		return e.deps.DOJ.SearchPress(ctx, argString(args, "query"), argInt(args, "days", 30), argInt(args, "page_size", 10))
	case "searchgov_search":
		if e.deps.SearchGov == nil {
			return unavailable(domain.SourceSearchGov)
		}
		return e.deps.SearchGov.Search(ctx, argString(args, "query"), argInt(args, "page_size", 10))
	case "fetch_url_content":
		return e.fetchURL(ctx, args)
	case "search_pdf_memory":
		return e.searchMemory(ctx, args, sessionID)
	default:
		return domain.ToolResult{}, nil, fmt.Errorf("unknown tool: %s", call.Name)
	}
}

func (e *ToolExecutor) fetchURL(ctx context.Context, args map[string]any) (domain.ToolResult, []domain.SourceRecord, error) {
	if e.deps.Fetcher == nil {
		return domain.ToolResult{}, nil, fmt.Errorf("url fetching is not available")
	}
	url := argString(args, "url")
	maxLength := argInt(args, "max_length", 15000)
	if argBool(args, "full_text") {
		maxLength = 0
	}

	res, err := e.deps.Fetcher.Fetch(ctx, url, maxLength)
	if err != nil {
		return domain.ToolResult{}, nil, err
	}
	if res.Error != "" {
		return domain.ToolResult{Data: map[string]any{"url": url, "error": res.Error}}, nil, nil
	}

	data := map[string]any{
		"url":   url,
		"title": res.Title,
		"text":  res.Text,
	}
	record := domain.SourceRecord{
		SourceType:  "web",
		ID:          url,
		Title:       res.Title,
		URL:         url,
		ContentType: "web_page",
	}
	return domain.ToolResult{Data: data, Images: res.Images}, []domain.SourceRecord{record}, nil
}

func (e *ToolExecutor) searchMemory(ctx context.Context, args map[string]any, sessionID string) (domain.ToolResult, []domain.SourceRecord, error) {
	if e.deps.Memory == nil {
		return domain.ToolResult{}, nil, fmt.Errorf("memory search is not available")
	}
	query := argString(args, "query")
	topK := argInt(args, "top_k", 5)

	matches, err := e.deps.Memory.Search(ctx, sessionID, query, topK)
	if err != nil {
		return domain.ToolResult{}, nil, err
	}
	out := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		out = append(out, map[string]any{
			"text":        m.Text,
			"score":       m.Score,
			"doc_key":     m.DocKey,
			"chunk_index": m.Index,
		})
	}
	return domain.ToolResult{Data: map[string]any{
		"query":       query,
		"matches":     out,
		"match_count": len(out),
	}}, nil, nil
}

func (e *ToolExecutor) failure(call domain.ToolCall, msg string) (domain.ToolResult, map[string]any, []domain.SourceRecord) {
	data := map[string]any{"error": msg}
	return domain.ToolResult{Data: data}, map[string]any{"error": msg}, nil
}

func unavailable(source string) (domain.ToolResult, []domain.SourceRecord, error) {
	return domain.ToolResult{}, nil, fmt.Errorf("source %s is not configured", source)
}

// previewStringLimit bounds string values carried in step previews.
const previewStringLimit = 200

// makePreview compresses a tool result into the small map shown on the
// step event. Large text is cut, nested collections are reduced to counts.
func makePreview(data map[string]any) map[string]any {
	preview := make(map[string]any, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case string:
			if len(val) > previewStringLimit {
				preview[k] = val[:previewStringLimit] + "..."
			} else {
				preview[k] = val
			}
		case []any:
			preview[k+"_count"] = len(val)
		case []map[string]any:
			preview[k+"_count"] = len(val)
		case map[string]any:
			preview[k+"_keys"] = len(val)
		default:
			preview[k] = v
		}
	}
	return preview
}

// ToolLabel renders the human-readable label for a step.
func ToolLabel(name string, args map[string]any) string {
	switch name {
	case "regs_search_documents":
		return fmt.Sprintf("Searching Regulations.gov documents for %q", argString(args, "search_term"))
	case "regs_search_dockets":
		return fmt.Sprintf("Searching Regulations.gov dockets for %q", argString(args, "search_term"))
	case "regs_get_document":
		return fmt.Sprintf("Fetching document %s", argString(args, "document_id"))
	case "regs_read_document_content":
		return fmt.Sprintf("Reading full text of %s", argString(args, "document_id"))
	case "govinfo_search":
		return fmt.Sprintf("Searching GovInfo for %q", argString(args, "keywords"))
	case "govinfo_package_summary":
		return fmt.Sprintf("Fetching GovInfo package %s", argString(args, "package_id"))
	case "govinfo_read_package_content":
		return fmt.Sprintf("Reading GovInfo package %s", argString(args, "package_id"))
	case "congress_search_bills":
		return fmt.Sprintf("Searching Congress.gov bills for %q", argString(args, "query"))
	case "federal_register_search":
		return fmt.Sprintf("Searching the Federal Register for %q", argString(args, "query"))
	case "usaspending_search_awards":
		return fmt.Sprintf("Searching USAspending awards for %q", argString(args, "query"))
	case "fiscal_data_query":
		return fmt.Sprintf("Querying Treasury Fiscal Data (%s)", argString(args, "dataset"))
	case "datagov_search_datasets":
		return fmt.Sprintf("Searching Data.gov for %q", argString(args, "query"))
	case "doj_press_search":
		return fmt.Sprintf("Searching DOJ press releases for %q", argString(args, "query"))
	case "searchgov_search":
		return fmt.Sprintf("Searching .gov sites for %q", argString(args, "query"))
	case "fetch_url_content":
		return fmt.Sprintf("Fetching %s", argString(args, "url"))
	case "search_pdf_memory":
		query := argString(args, "query")
		if len(query) > 60 {
			query = query[:60] + "..."
		}
		return fmt.Sprintf("Searching document memory for %q", query)
	default:
		name = strings.ReplaceAll(name, "_", " ")
		return "Running " + name
	}
}

func argString(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argInt(args map[string]any, key string, def int) int {
	if args == nil {
		return def
	}
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return def
}

func argBool(args map[string]any, key string) bool {
	if args == nil {
		return false
	}
	if v, ok := args[key].(bool); ok {
		return v
	}
	return false
}
