package govdata

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/policyradar/policyradar/internal/core/domain"
	"github.com/policyradar/policyradar/internal/core/ports"
)

// GovInfo is the GovInfo API adapter.
type GovInfo struct {
	client  *Client
	baseURL string
	apiKey  string
	fetcher ports.ContentFetcher
}

// NewGovInfo creates the adapter.
func NewGovInfo(client *Client, baseURL, apiKey string, fetcher ports.ContentFetcher) *GovInfo {
	return &GovInfo{client: client, baseURL: baseURL, apiKey: apiKey, fetcher: fetcher}
}

func (g *GovInfo) headers() map[string]string {
	return map[string]string{"X-Api-Key": g.apiKey}
}

// Search runs a GovInfo search. keywords build a dateissued-bounded query;
// an explicit query string overrides the built one.
func (g *GovInfo) Search(ctx context.Context, keywords, collection, query string, days, pageSize int) (domain.ToolResult, []domain.SourceRecord, error) {
	if query == "" {
		var parts []string
		if keywords != "" {
			parts = append(parts, keywords)
		}
		if collection != "" {
			parts = append(parts, "collection:"+collection)
		}
		parts = append(parts, fmt.Sprintf("dateissued:range(%s,)", lookbackDate(days).Format("2006-01-02")))
		query = strings.Join(parts, " AND ")
	}

	payload := map[string]any{
		"query":           query,
		"pageSize":        clampPageSize(pageSize, 25),
		"offsetMark":      "*",
		"sorts":           []map[string]any{{"field": "publishdate", "sortOrder": "DESC"}},
		"resultLevel":     "default",
		"historical":      true,
	}

	var resp struct {
		Count   int `json:"count"`
		Results []struct {
			PackageID   string `json:"packageId"`
			GranuleID   string `json:"granuleId"`
			Title       string `json:"title"`
			Collection  string `json:"collectionCode"`
			DateIssued  string `json:"dateIssued"`
			GovAuthors  []any  `json:"governmentAuthor"`
			Download    map[string]any `json:"download"`
		} `json:"results"`
	}
	if err := g.client.PostJSON(ctx, g.baseURL+"/search?api_key="+url.QueryEscape(g.apiKey), nil, payload, &resp); err != nil {
		return domain.ToolResult{}, nil, err
	}

	items := make([]map[string]any, 0, len(resp.Results))
	records := make([]domain.SourceRecord, 0, len(resp.Results))
	for _, item := range resp.Results {
		agency := ""
		if len(item.GovAuthors) > 0 {
			agency = asString(item.GovAuthors[0])
		}
		items = append(items, map[string]any{
			"package_id":  item.PackageID,
			"granule_id":  item.GranuleID,
			"title":       item.Title,
			"collection":  item.Collection,
			"date_issued": item.DateIssued,
			"agency":      agency,
		})
		records = append(records, domain.SourceRecord{
			SourceType: "govinfo_package",
			ID:         item.PackageID,
			Title:      item.Title,
			Agency:     agency,
			Date:       item.DateIssued,
			URL:        "https://www.govinfo.gov/app/details/" + item.PackageID,
			PDFURL:     asString(item.Download["pdfLink"]),
		})
	}

	return domain.ToolResult{Data: map[string]any{
		"results":      items,
		"result_count": len(items),
		"total":        resp.Count,
	}}, records, nil
}

// PackageSummary fetches one package's summary metadata.
func (g *GovInfo) PackageSummary(ctx context.Context, packageID string) (domain.ToolResult, []domain.SourceRecord, error) {
	endpoint := fmt.Sprintf("%s/packages/%s/summary?api_key=%s",
		g.baseURL, url.PathEscape(packageID), url.QueryEscape(g.apiKey))

	var summary map[string]any
	if err := g.client.GetJSON(ctx, endpoint, nil, &summary); err != nil {
		return domain.ToolResult{}, nil, err
	}

	record := domain.SourceRecord{
		SourceType: "govinfo_package",
		ID:         packageID,
		Title:      asString(summary["title"]),
		Agency:     asString(summary["governmentAuthor1"]),
		Date:       asString(summary["dateIssued"]),
		URL:        "https://www.govinfo.gov/app/details/" + packageID,
		Raw:        summary,
	}
	data := map[string]any{
		"package_id":  packageID,
		"title":       summary["title"],
		"collection":  summary["collectionCode"],
		"date_issued": summary["dateIssued"],
		"category":    summary["category"],
		"agency":      summary["governmentAuthor1"],
		"pages":       summary["pages"],
	}
	return domain.ToolResult{Data: data}, []domain.SourceRecord{record}, nil
}

// ReadPackageContent downloads the package's text rendition (html first,
// pdf as fallback) through the content fetcher.
func (g *GovInfo) ReadPackageContent(ctx context.Context, packageID string) (domain.ToolResult, []domain.SourceRecord, error) {
	endpoint := fmt.Sprintf("%s/packages/%s/summary?api_key=%s",
		g.baseURL, url.PathEscape(packageID), url.QueryEscape(g.apiKey))

	var summary map[string]any
	if err := g.client.GetJSON(ctx, endpoint, nil, &summary); err != nil {
		return domain.ToolResult{}, nil, err
	}

	downloads, _ := summary["download"].(map[string]any)
	htmURL := asString(downloads["txtLink"])
	pdfURL := asString(downloads["pdfLink"])
	target := htmURL
	if target == "" {
		target = pdfURL
	}
	if target == "" {
		return domain.ToolResult{Data: map[string]any{
			"package_id": packageID,
			"error":      "package has no downloadable content",
		}}, nil, nil
	}
	if g.apiKey != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + "api_key=" + url.QueryEscape(g.apiKey)
	}

	fetched, err := g.fetcher.Fetch(ctx, target, 0)
	if err != nil {
		return domain.ToolResult{}, nil, err
	}
	if fetched.Error != "" {
		return domain.ToolResult{Data: map[string]any{
			"package_id": packageID,
			"error":      fetched.Error,
		}}, nil, nil
	}

	record := domain.SourceRecord{
		SourceType:  "govinfo_package",
		ID:          packageID,
		Title:       asString(summary["title"]),
		Agency:      asString(summary["governmentAuthor1"]),
		Date:        asString(summary["dateIssued"]),
		URL:         "https://www.govinfo.gov/app/details/" + packageID,
		PDFURL:      pdfURL,
		ContentType: "full_text",
	}
	return domain.ToolResult{
		Data: map[string]any{
			"package_id": packageID,
			"title":      summary["title"],
			"full_text":  fetched.Text,
		},
		Images: fetched.Images,
	}, []domain.SourceRecord{record}, nil
}
