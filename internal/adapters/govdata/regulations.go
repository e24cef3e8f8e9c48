package govdata

import (
	"context"
	"fmt"
	"net/url"

	"github.com/policyradar/policyradar/internal/core/domain"
	"github.com/policyradar/policyradar/internal/core/ports"
)

// Regulations is the Regulations.gov v4 adapter.
type Regulations struct {
	client  *Client
	baseURL string
	apiKey  string
	fetcher ports.ContentFetcher
}

// NewRegulations creates the adapter. The fetcher reads document file
// attachments when full text is requested.
func NewRegulations(client *Client, baseURL, apiKey string, fetcher ports.ContentFetcher) *Regulations {
	return &Regulations{client: client, baseURL: baseURL, apiKey: apiKey, fetcher: fetcher}
}

func (r *Regulations) headers() map[string]string {
	return map[string]string{"X-Api-Key": r.apiKey}
}

type regsListResponse struct {
	Data []struct {
		ID         string         `json:"id"`
		Attributes map[string]any `json:"attributes"`
	} `json:"data"`
	Meta struct {
		TotalElements int `json:"totalElements"`
	} `json:"meta"`
}

// SearchDocuments searches documents posted within the lookback window.
func (r *Regulations) SearchDocuments(ctx context.Context, term string, days, pageSize int) (domain.ToolResult, []domain.SourceRecord, error) {
	q := url.Values{}
	q.Set("filter[searchTerm]", term)
	q.Set("filter[postedDate][ge]", lookbackDate(days).Format("2006-01-02"))
	q.Set("page[size]", fmt.Sprint(clampPageSize(pageSize, 25)))
	q.Set("sort", "-postedDate")

	var resp regsListResponse
	if err := r.client.GetJSON(ctx, r.baseURL+"/documents?"+q.Encode(), r.headers(), &resp); err != nil {
		return domain.ToolResult{}, nil, err
	}

	items := make([]map[string]any, 0, len(resp.Data))
	records := make([]domain.SourceRecord, 0, len(resp.Data))
	for _, d := range resp.Data {
		attrs := d.Attributes
		item := map[string]any{
			"document_id":   d.ID,
			"title":         attrs["title"],
			"document_type": attrs["documentType"],
			"posted_date":   attrs["postedDate"],
			"agency":        attrs["agencyId"],
			"docket_id":     attrs["docketId"],
		}
		items = append(items, item)
		records = append(records, domain.SourceRecord{
			SourceType: "regulations_document",
			ID:         d.ID,
			Title:      asString(attrs["title"]),
			Agency:     asString(attrs["agencyId"]),
			Date:       asString(attrs["postedDate"]),
			URL:        "https://www.regulations.gov/document/" + d.ID,
			Raw:        attrs,
		})
	}

	return domain.ToolResult{Data: map[string]any{
		"results":      items,
		"result_count": len(items),
		"total":        resp.Meta.TotalElements,
	}}, records, nil
}

// SearchDockets searches rulemaking dockets.
func (r *Regulations) SearchDockets(ctx context.Context, term string, pageSize int) (domain.ToolResult, []domain.SourceRecord, error) {
	q := url.Values{}
	q.Set("filter[searchTerm]", term)
	q.Set("page[size]", fmt.Sprint(clampPageSize(pageSize, 25)))
	q.Set("sort", "-lastModifiedDate")

	var resp regsListResponse
	if err := r.client.GetJSON(ctx, r.baseURL+"/dockets?"+q.Encode(), r.headers(), &resp); err != nil {
		return domain.ToolResult{}, nil, err
	}

	items := make([]map[string]any, 0, len(resp.Data))
	records := make([]domain.SourceRecord, 0, len(resp.Data))
	for _, d := range resp.Data {
		attrs := d.Attributes
		items = append(items, map[string]any{
			"docket_id":   d.ID,
			"title":       attrs["title"],
			"docket_type": attrs["docketType"],
			"agency":      attrs["agencyId"],
			"modified":    attrs["lastModifiedDate"],
		})
		records = append(records, domain.SourceRecord{
			SourceType: "regulations_docket",
			ID:         d.ID,
			Title:      asString(attrs["title"]),
			Agency:     asString(attrs["agencyId"]),
			Date:       asString(attrs["lastModifiedDate"]),
			URL:        "https://www.regulations.gov/docket/" + d.ID,
			Raw:        attrs,
		})
	}

	return domain.ToolResult{Data: map[string]any{
		"results":      items,
		"result_count": len(items),
		"total":        resp.Meta.TotalElements,
	}}, records, nil
}

type regsDetailResponse struct {
	Data struct {
		ID         string         `json:"id"`
		Attributes map[string]any `json:"attributes"`
	} `json:"data"`
	Included []struct {
		ID         string         `json:"id"`
		Type       string         `json:"type"`
		Attributes map[string]any `json:"attributes"`
	} `json:"included"`
}

// GetDocument fetches one document's metadata.
func (r *Regulations) GetDocument(ctx context.Context, documentID string, includeAttachments bool) (domain.ToolResult, []domain.SourceRecord, error) {
	endpoint := r.baseURL + "/documents/" + url.PathEscape(documentID)
	if includeAttachments {
		endpoint += "?include=attachments"
	}

	var resp regsDetailResponse
	if err := r.client.GetJSON(ctx, endpoint, r.headers(), &resp); err != nil {
		return domain.ToolResult{}, nil, err
	}

	attrs := resp.Data.Attributes
	data := map[string]any{
		"document_id":   resp.Data.ID,
		"title":         attrs["title"],
		"document_type": attrs["documentType"],
		"posted_date":   attrs["postedDate"],
		"agency":        attrs["agencyId"],
		"docket_id":     attrs["docketId"],
		"summary":       attrs["summary"],
	}
	if includeAttachments && len(resp.Included) > 0 {
		attachments := make([]map[string]any, 0, len(resp.Included))
		for _, inc := range resp.Included {
			attachments = append(attachments, map[string]any{
				"id":    inc.ID,
				"type":  inc.Type,
				"title": inc.Attributes["title"],
			})
		}
		data["attachments"] = attachments
	}

	record := domain.SourceRecord{
		SourceType: "regulations_document",
		ID:         resp.Data.ID,
		Title:      asString(attrs["title"]),
		Agency:     asString(attrs["agencyId"]),
		Date:       asString(attrs["postedDate"]),
		URL:        "https://www.regulations.gov/document/" + resp.Data.ID,
		Excerpt:    asString(attrs["summary"]),
		Raw:        attrs,
	}
	return domain.ToolResult{Data: data}, []domain.SourceRecord{record}, nil
}

// ReadDocumentContent pulls the document's full text by following its file
// format links through the content fetcher.
func (r *Regulations) ReadDocumentContent(ctx context.Context, documentID string) (domain.ToolResult, []domain.SourceRecord, error) {
	var resp regsDetailResponse
	endpoint := r.baseURL + "/documents/" + url.PathEscape(documentID)
	if err := r.client.GetJSON(ctx, endpoint, r.headers(), &resp); err != nil {
		return domain.ToolResult{}, nil, err
	}

	attrs := resp.Data.Attributes
	contentURL, pdfURL := fileFormatURLs(attrs)
	if contentURL == "" && pdfURL == "" {
		return domain.ToolResult{Data: map[string]any{
			"document_id": documentID,
			"error":       "document has no downloadable content",
		}}, nil, nil
	}
	target := contentURL
	if target == "" {
		target = pdfURL
	}

	fetched, err := r.fetcher.Fetch(ctx, target, 0)
	if err != nil {
		return domain.ToolResult{}, nil, err
	}
	if fetched.Error != "" {
		return domain.ToolResult{Data: map[string]any{
			"document_id": documentID,
			"error":       fetched.Error,
		}}, nil, nil
	}

	record := domain.SourceRecord{
		SourceType:  "regulations_document",
		ID:          resp.Data.ID,
		Title:       asString(attrs["title"]),
		Agency:      asString(attrs["agencyId"]),
		Date:        asString(attrs["postedDate"]),
		URL:         "https://www.regulations.gov/document/" + resp.Data.ID,
		PDFURL:      pdfURL,
		ContentType: "full_text",
		Raw:         attrs,
	}
	return domain.ToolResult{
		Data: map[string]any{
			"document_id": documentID,
			"title":       attrs["title"],
			"full_text":   fetched.Text,
		},
		Images: fetched.Images,
	}, []domain.SourceRecord{record}, nil
}

// fileFormatURLs extracts the htm and pdf download links from a document's
// fileFormats attribute.
func fileFormatURLs(attrs map[string]any) (htmURL, pdfURL string) {
	formats, ok := attrs["fileFormats"].([]any)
	if !ok {
		return "", ""
	}
	for _, f := range formats {
		m, ok := f.(map[string]any)
		if !ok {
			continue
		}
		switch asString(m["format"]) {
		case "htm", "html":
			htmURL = asString(m["fileUrl"])
		case "pdf":
			pdfURL = asString(m["fileUrl"])
		}
	}
	return htmURL, pdfURL
}
