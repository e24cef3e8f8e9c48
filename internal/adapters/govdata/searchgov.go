package govdata

import (
	"context"
	"fmt"
	"net/url"

	"github.com/policyradar/policyradar/internal/core/domain"
)

// SearchGov is the Search.gov results API adapter.
type SearchGov struct {
	client    *Client
	baseURL   string
	affiliate string
	accessKey string
}

// NewSearchGov creates the adapter.
func NewSearchGov(client *Client, baseURL, affiliate, accessKey string) *SearchGov {
	return &SearchGov{client: client, baseURL: baseURL, affiliate: affiliate, accessKey: accessKey}
}

// Search performs a broad web search across .gov sites.
func (s *SearchGov) Search(ctx context.Context, query string, pageSize int) (domain.ToolResult, []domain.SourceRecord, error) {
	q := url.Values{}
	q.Set("affiliate", s.affiliate)
	q.Set("access_key", s.accessKey)
	q.Set("query", query)
	q.Set("limit", fmt.Sprint(clampPageSize(pageSize, 20)))

	var resp struct {
		Web struct {
			Total   int `json:"total"`
			Results []struct {
				Title           string `json:"title"`
				URL             string `json:"url"`
				Snippet         string `json:"snippet"`
				PublicationDate string `json:"publication_date"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := s.client.GetJSON(ctx, s.baseURL+"/results/i14y?"+q.Encode(), nil, &resp); err != nil {
		return domain.ToolResult{}, nil, err
	}

	items := make([]map[string]any, 0, len(resp.Web.Results))
	records := make([]domain.SourceRecord, 0, len(resp.Web.Results))
	for _, r := range resp.Web.Results {
		items = append(items, map[string]any{
			"title":   r.Title,
			"url":     r.URL,
			"snippet": r.Snippet,
			"date":    r.PublicationDate,
		})
		records = append(records, domain.SourceRecord{
			SourceType: "searchgov_result",
			ID:         r.URL,
			Title:      r.Title,
			Date:       r.PublicationDate,
			URL:        r.URL,
			Excerpt:    r.Snippet,
		})
	}

	return domain.ToolResult{Data: map[string]any{
		"results":      items,
		"result_count": len(items),
		"total":        resp.Web.Total,
	}}, records, nil
}
