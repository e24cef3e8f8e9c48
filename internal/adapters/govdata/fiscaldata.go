package govdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/policyradar/policyradar/internal/core/domain"
)

// FiscalData is the Treasury Fiscal Data adapter. Datasets are addressed by
// endpoint path (e.g. "v2/accounting/od/debt_to_penny").
type FiscalData struct {
	client  *Client
	baseURL string
}

// NewFiscalData creates the adapter.
func NewFiscalData(client *Client, baseURL string) *FiscalData {
	return &FiscalData{client: client, baseURL: baseURL}
}

// Query returns the newest records of a dataset.
func (f *FiscalData) Query(ctx context.Context, dataset string, pageSize int) (domain.ToolResult, []domain.SourceRecord, error) {
	dataset = strings.Trim(dataset, "/")
	if dataset == "" {
		return domain.ToolResult{}, nil, fmt.Errorf("dataset path is required")
	}

	endpoint := fmt.Sprintf("%s/%s?sort=-record_date&page[size]=%d",
		f.baseURL, dataset, clampPageSize(pageSize, 100))

	var resp struct {
		Data []map[string]any `json:"data"`
		Meta struct {
			TotalCount int               `json:"total-count"`
			Labels     map[string]string `json:"labels"`
		} `json:"meta"`
	}
	if err := f.client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return domain.ToolResult{}, nil, err
	}

	latestDate := ""
	if len(resp.Data) > 0 {
		latestDate = asString(resp.Data[0]["record_date"])
	}
	record := domain.SourceRecord{
		SourceType: "fiscal_data_series",
		ID:         dataset,
		Title:      "Treasury Fiscal Data: " + dataset,
		Agency:     "Department of the Treasury",
		Date:       latestDate,
		URL:        "https://fiscaldata.treasury.gov/datasets/",
	}

	return domain.ToolResult{Data: map[string]any{
		"dataset":      dataset,
		"records":      resp.Data,
		"record_count": len(resp.Data),
		"total":        resp.Meta.TotalCount,
		"labels":       resp.Meta.Labels,
	}}, []domain.SourceRecord{record}, nil
}
