package govdata

import (
	"context"
	"fmt"
	"net/url"

	"github.com/policyradar/policyradar/internal/core/domain"
)

// FederalRegister is the federalregister.gov v1 adapter. No API key needed.
type FederalRegister struct {
	client  *Client
	baseURL string
}

// NewFederalRegister creates the adapter.
func NewFederalRegister(client *Client, baseURL string) *FederalRegister {
	return &FederalRegister{client: client, baseURL: baseURL}
}

// Search searches Federal Register documents published in the window.
func (f *FederalRegister) Search(ctx context.Context, query string, days, pageSize int) (domain.ToolResult, []domain.SourceRecord, error) {
	q := url.Values{}
	q.Set("conditions[term]", query)
	q.Set("conditions[publication_date][gte]", lookbackDate(days).Format("2006-01-02"))
	q.Set("per_page", fmt.Sprint(clampPageSize(pageSize, 25)))
	q.Set("order", "newest")
	q.Set("fields[]", "document_number")
	q.Add("fields[]", "title")
	q.Add("fields[]", "type")
	q.Add("fields[]", "abstract")
	q.Add("fields[]", "publication_date")
	q.Add("fields[]", "agencies")
	q.Add("fields[]", "html_url")
	q.Add("fields[]", "pdf_url")

	var resp struct {
		Count   int `json:"count"`
		Results []struct {
			DocumentNumber  string `json:"document_number"`
			Title           string `json:"title"`
			Type            string `json:"type"`
			Abstract        string `json:"abstract"`
			PublicationDate string `json:"publication_date"`
			Agencies        []struct {
				Name string `json:"name"`
			} `json:"agencies"`
			HTMLURL string `json:"html_url"`
			PDFURL  string `json:"pdf_url"`
		} `json:"results"`
	}
	if err := f.client.GetJSON(ctx, f.baseURL+"/documents.json?"+q.Encode(), nil, &resp); err != nil {
		return domain.ToolResult{}, nil, err
	}

	items := make([]map[string]any, 0, len(resp.Results))
	records := make([]domain.SourceRecord, 0, len(resp.Results))
	for _, d := range resp.Results {
		agency := ""
		if len(d.Agencies) > 0 {
			agency = d.Agencies[0].Name
		}
		items = append(items, map[string]any{
			"document_number":  d.DocumentNumber,
			"title":            d.Title,
			"type":             d.Type,
			"abstract":         d.Abstract,
			"publication_date": d.PublicationDate,
			"agency":           agency,
			"url":              d.HTMLURL,
		})
		records = append(records, domain.SourceRecord{
			SourceType: "federal_register_document",
			ID:         d.DocumentNumber,
			Title:      d.Title,
			Agency:     agency,
			Date:       d.PublicationDate,
			URL:        d.HTMLURL,
			Excerpt:    d.Abstract,
			PDFURL:     d.PDFURL,
		})
	}

	return domain.ToolResult{Data: map[string]any{
		"results":      items,
		"result_count": len(items),
		"total":        resp.Count,
	}}, records, nil
}
