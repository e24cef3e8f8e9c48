package govdata

import (
	"context"
	"fmt"
	"net/url"

	"github.com/policyradar/policyradar/internal/core/domain"
)

// DataGov is the Data.gov CKAN catalog adapter.
type DataGov struct {
	client  *Client
	baseURL string
}

// NewDataGov creates the adapter.
func NewDataGov(client *Client, baseURL string) *DataGov {
	return &DataGov{client: client, baseURL: baseURL}
}

// SearchDatasets searches the open-data catalog.
func (d *DataGov) SearchDatasets(ctx context.Context, query string, pageSize int) (domain.ToolResult, []domain.SourceRecord, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("rows", fmt.Sprint(clampPageSize(pageSize, 25)))
	q.Set("sort", "metadata_modified desc")

	var resp struct {
		Result struct {
			Count   int `json:"count"`
			Results []struct {
				ID           string `json:"id"`
				Name         string `json:"name"`
				Title        string `json:"title"`
				Notes        string `json:"notes"`
				Modified     string `json:"metadata_modified"`
				Organization struct {
					Title string `json:"title"`
				} `json:"organization"`
			} `json:"results"`
		} `json:"result"`
	}
	if err := d.client.GetJSON(ctx, d.baseURL+"/package_search?"+q.Encode(), nil, &resp); err != nil {
		return domain.ToolResult{}, nil, err
	}

	items := make([]map[string]any, 0, len(resp.Result.Results))
	records := make([]domain.SourceRecord, 0, len(resp.Result.Results))
	for _, ds := range resp.Result.Results {
		notes := ds.Notes
		if len(notes) > 300 {
			notes = notes[:300] + "..."
		}
		items = append(items, map[string]any{
			"dataset_id":   ds.ID,
			"name":         ds.Name,
			"title":        ds.Title,
			"description":  notes,
			"organization": ds.Organization.Title,
			"modified":     ds.Modified,
		})
		records = append(records, domain.SourceRecord{
			SourceType: "datagov_dataset",
			ID:         ds.ID,
			Title:      ds.Title,
			Agency:     ds.Organization.Title,
			Date:       ds.Modified,
			URL:        "https://catalog.data.gov/dataset/" + ds.Name,
			Excerpt:    notes,
		})
	}

	return domain.ToolResult{Data: map[string]any{
		"results":      items,
		"result_count": len(items),
		"total":        resp.Result.Count,
	}}, records, nil
}
