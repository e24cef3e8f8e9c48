package services

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/policyradar/policyradar/internal/core/domain"
)

func strParam(desc string) *openapi3.Schema {
	s := openapi3.NewStringSchema()
	s.Description = desc
	return s
}

func intParam(desc string, def int) *openapi3.Schema {
	s := openapi3.NewIntegerSchema()
	s.Description = desc
	s.Default = def
	return s
}

func boolParam(desc string) *openapi3.Schema {
	s := openapi3.NewBoolSchema()
	s.Description = desc
	s.Default = false
	return s
}

func objectParams(required ...string) *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	s.Required = required
	return s
}

// NewToolCatalog builds the static tool registry. Specs are immutable; the
// orchestrator filters them per request by mode and selected sources.
func NewToolCatalog() *domain.ToolRegistry {
	reg, err := domain.NewToolRegistry(
		domain.ToolSpec{
			Name:        "regs_search_documents",
			Description: "Search for regulatory documents on Regulations.gov including proposed rules, final rules, notices, and other documents. Returns the most recent documents matching the search criteria.",
			Source:      domain.SourceRegulations,
			Parameters: objectParams("search_term").
				WithProperty("search_term", strParam("Search keywords for finding documents (e.g., 'asylum', 'water quality', 'immigration')")).
				WithProperty("days", intParam("Number of days to look back from today (e.g., 30, 60, 90)", 30)).
				WithProperty("page_size", intParam("Number of results to return (max 25)", 10)),
		},
		domain.ToolSpec{
			Name:        "regs_search_dockets",
			Description: "Search for dockets (rulemaking proceedings) on Regulations.gov. Dockets contain the full record of a rulemaking including all related documents and public comments.",
			Source:      domain.SourceRegulations,
			Parameters: objectParams("search_term").
				WithProperty("search_term", strParam("Search keywords for finding dockets")).
				WithProperty("page_size", intParam("Number of results to return", 10)),
		},
		domain.ToolSpec{
			Name:        "regs_get_document",
			Description: "Get detailed information about a specific document from Regulations.gov by its document ID.",
			Source:      domain.SourceRegulations,
			Parameters: objectParams("document_id").
				WithProperty("document_id", strParam("The Regulations.gov document ID (e.g., 'EPA-HQ-OW-2024-0001-0001')")).
				WithProperty("include_attachments", boolParam("Whether to include attachment information")),
		},
		domain.ToolSpec{
			Name:        "regs_read_document_content",
			Description: "Read and extract the full text content of a Regulations.gov document. Use this after searching to get the complete document text for analysis and summarization.",
			Source:      domain.SourceRegulations,
			Parameters: objectParams("document_id").
				WithProperty("document_id", strParam("The Regulations.gov document ID to read")),
		},
		domain.ToolSpec{
			Name:        "govinfo_search",
			Description: "Search GovInfo for Federal Register content and other official government publications. Supports keywords, collection filters, and time windows.",
			Source:      domain.SourceGovInfo,
			Parameters: objectParams("keywords").
				WithProperty("keywords", strParam("Search keywords (e.g., 'immigration', 'water quality'). Use concise topic terms.")).
				WithProperty("collection", strParam("Optional collection code filter (e.g., 'FR' for Federal Register).")).
				WithProperty("days", intParam("Number of days to look back from today (e.g., 30, 60, 90).", 30)).
				WithProperty("query", strParam("Advanced query override. Use only when needed.")).
				WithProperty("page_size", intParam("Number of results to return", 10)),
		},
		domain.ToolSpec{
			Name:        "govinfo_package_summary",
			Description: "Get detailed summary information about a specific GovInfo package by its package ID.",
			Source:      domain.SourceGovInfo,
			Parameters: objectParams("package_id").
				WithProperty("package_id", strParam("The GovInfo package ID")),
		},
		domain.ToolSpec{
			Name:        "govinfo_read_package_content",
			Description: "Read and extract the full text content of a GovInfo package (Federal Register entry, bill, etc.). Use this after searching to get the complete document text for analysis and summarization.",
			Source:      domain.SourceGovInfo,
			Parameters: objectParams("package_id").
				WithProperty("package_id", strParam("The GovInfo package ID to read")),
		},
		domain.ToolSpec{
			Name:        "congress_search_bills",
			Description: "Search Congress.gov for bills and resolutions: status, sponsors, latest actions.",
			Source:      domain.SourceCongress,
			Parameters: objectParams("query").
				WithProperty("query", strParam("Search keywords for bills (e.g., 'border security', 'appropriations')")).
				WithProperty("days", intParam("Number of days to look back from today", 30)).
				WithProperty("page_size", intParam("Number of results to return", 10)),
		},
		domain.ToolSpec{
			Name:        "federal_register_search",
			Description: "Search the Federal Register for rules, proposed rules, notices, and presidential documents.",
			Source:      domain.SourceFederalRegister,
			Parameters: objectParams("query").
				WithProperty("query", strParam("Search keywords")).
				WithProperty("days", intParam("Number of days to look back from today", 30)).
				WithProperty("page_size", intParam("Number of results to return", 10)),
		},
		domain.ToolSpec{
			Name:        "usaspending_search_awards",
			Description: "Search USAspending for federal awards: contracts, grants, recipients and amounts.",
			Source:      domain.SourceUSASpending,
			Parameters: objectParams("query").
				WithProperty("query", strParam("Recipient, agency, or award keywords")).
				WithProperty("page_size", intParam("Number of results to return", 10)),
		},
		domain.ToolSpec{
			Name:        "fiscal_data_query",
			Description: "Query Treasury Fiscal Data time series such as debt to the penny, receipts, and outlays.",
			Source:      domain.SourceFiscalData,
			Parameters: objectParams("dataset").
				WithProperty("dataset", strParam("Fiscal Data endpoint path (e.g., 'v2/accounting/od/debt_to_penny')")).
				WithProperty("page_size", intParam("Number of records to return", 10)),
		},
		domain.ToolSpec{
			Name:        "datagov_search_datasets",
			Description: "Search the Data.gov catalog for open datasets.",
			Source:      domain.SourceDataGov,
			Parameters: objectParams("query").
				WithProperty("query", strParam("Dataset search keywords")).
				WithProperty("page_size", intParam("Number of results to return", 10)),
		},
		domain.ToolSpec{
			Name:        "doj_press_search",
			Description: "Search DOJ press releases and enforcement announcements.",
			Source:      domain.SourceDOJ,
			Parameters: objectParams("query").
				WithProperty("query", strParam("Search keywords")).
				WithProperty("days", intParam("Number of days to look back from today", 30)).
				WithProperty("page_size", intParam("Number of results to return", 10)),
		},
		domain.ToolSpec{
			Name:        "searchgov_search",
			Description: "Broad search across .gov sites via Search.gov.",
			Source:      domain.SourceSearchGov,
			Parameters: objectParams("query").
				WithProperty("query", strParam("Search keywords")).
				WithProperty("page_size", intParam("Number of results to return", 10)),
		},
		domain.ToolSpec{
			Name:        "fetch_url_content",
			Description: "Fetch and extract text content from any government URL. Use this as a fallback when you have a URL but need to read its content.",
			Parameters: objectParams("url").
				WithProperty("url", strParam("The URL to fetch content from (should be a .gov or official government URL)")).
				WithProperty("max_length", intParam("Optional maximum length of text to return. Increase for longer documents.", 15000)).
				WithProperty("full_text", boolParam("Set true to return the full extracted text without truncation.")),
		},
		domain.ToolSpec{
			Name:        "search_pdf_memory",
			Description: "Search indexed PDF content stored in memory for this session. Use this to recall details from PDFs already processed.",
			Parameters: objectParams("query").
				WithProperty("query", strParam("Search query for the PDF memory.")).
				WithProperty("top_k", intParam("Number of matches to return.", 5)),
		},
	)
	if err != nil {
		// The catalog is static; a bad entry is a programming error.
		panic(err)
	}
	return reg
}
