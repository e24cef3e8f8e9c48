package domain

// Source keys identify the government data providers tools are grouped under.
const (
	SourceRegulations     = "regulations"
	SourceGovInfo         = "govinfo"
	SourceCongress        = "congress"
	SourceFederalRegister = "federal_register"
	SourceUSASpending     = "usaspending"
	SourceFiscalData      = "fiscal_data"
	SourceDataGov         = "datagov"
	SourceDOJ             = "doj"
	SourceSearchGov       = "searchgov"
)

// AllSourceKeys returns every source key in stable order.
func AllSourceKeys() []string {
	return []string{
		SourceRegulations,
		SourceGovInfo,
		SourceCongress,
		SourceFederalRegister,
		SourceUSASpending,
		SourceFiscalData,
		SourceDataGov,
		SourceDOJ,
		SourceSearchGov,
	}
}

// SourceDisplayNames maps source keys to human-readable names for citations
// and UI labels.
var SourceDisplayNames = map[string]string{
	SourceRegulations:     "Regulations.gov",
	SourceGovInfo:         "GovInfo",
	SourceCongress:        "Congress.gov",
	SourceFederalRegister: "Federal Register",
	SourceUSASpending:     "USAspending",
	SourceFiscalData:      "Treasury Fiscal Data",
	SourceDataGov:         "Data.gov",
	SourceDOJ:             "Department of Justice",
	SourceSearchGov:       "Search.gov",
}

// SourceDescriptions guide the routing model when it narrows a query to a
// subset of sources.
var SourceDescriptions = map[string]string{
	SourceRegulations:     "Rulemaking documents, dockets, and public comments. Best for proposed and final rules and agency notices.",
	SourceCongress:        "Bills, resolutions, sponsors, and legislative actions. Best for legislation status questions.",
	SourceGovInfo:         "Official publications including the Federal Register, congressional documents, and the US Code.",
	SourceFederalRegister: "Daily journal of rules, proposed rules, notices, and presidential documents.",
	SourceUSASpending:     "Federal award spending: contracts, grants, loans, recipients and amounts.",
	SourceFiscalData:      "Treasury time series: national debt, receipts, outlays, exchange rates.",
	SourceDataGov:         "Catalog of open government datasets across agencies.",
	SourceDOJ:             "Justice Department press releases and enforcement announcements.",
	SourceSearchGov:       "General web search across .gov sites. Use when no specialized source fits.",
}

// SourceSelection is the caller's explicit source preference for one request.
// Auto asks the router to narrow the set with a model call; the boolean fields
// opt individual sources in.
type SourceSelection struct {
	Auto            bool `json:"auto"`
	Regulations     bool `json:"regulations"`
	GovInfo         bool `json:"govinfo"`
	Congress        bool `json:"congress"`
	FederalRegister bool `json:"federal_register"`
	USASpending     bool `json:"usaspending"`
	FiscalData      bool `json:"fiscal_data"`
	DataGov         bool `json:"datagov"`
	DOJ             bool `json:"doj"`
	SearchGov       bool `json:"searchgov"`
}

// Requested returns the explicitly opted-in source keys as a set.
func (s SourceSelection) Requested() map[string]bool {
	out := map[string]bool{}
	for key, on := range map[string]bool{
		SourceRegulations:     s.Regulations,
		SourceGovInfo:         s.GovInfo,
		SourceCongress:        s.Congress,
		SourceFederalRegister: s.FederalRegister,
		SourceUSASpending:     s.USASpending,
		SourceFiscalData:      s.FiscalData,
		SourceDataGov:         s.DataGov,
		SourceDOJ:             s.DOJ,
		SourceSearchGov:       s.SearchGov,
	} {
		if on {
			out[key] = true
		}
	}
	return out
}

// SourceRecord is one citable item discovered during a turn. Records
// accumulate in discovery order; downstream consumers may deduplicate.
type SourceRecord struct {
	SourceType  string         `json:"source_type"`
	ID          string         `json:"id"`
	Title       string         `json:"title,omitempty"`
	Agency      string         `json:"agency,omitempty"`
	Date        string         `json:"date,omitempty"`
	URL         string         `json:"url,omitempty"`
	Excerpt     string         `json:"excerpt,omitempty"`
	PDFURL      string         `json:"pdf_url,omitempty"`
	ContentType string         `json:"content_type,omitempty"`
	Raw         map[string]any `json:"-"`
}
