package govdata

import (
	"context"
	"fmt"
	"net/url"

	"github.com/policyradar/policyradar/internal/core/domain"
)

// Congress is the Congress.gov v3 adapter.
type Congress struct {
	client  *Client
	baseURL string
	apiKey  string
}

// NewCongress creates the adapter.
func NewCongress(client *Client, baseURL, apiKey string) *Congress {
	return &Congress{client: client, baseURL: baseURL, apiKey: apiKey}
}

// SearchBills searches bills updated within the lookback window.
func (c *Congress) SearchBills(ctx context.Context, query string, days, pageSize int) (domain.ToolResult, []domain.SourceRecord, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("query", query)
	q.Set("fromDateTime", lookbackDate(days).Format("2006-01-02T00:00:00Z"))
	q.Set("limit", fmt.Sprint(clampPageSize(pageSize, 25)))
	q.Set("sort", "updateDate+desc")
	q.Set("format", "json")

	var resp struct {
		Bills []struct {
			Congress     int    `json:"congress"`
			Number       string `json:"number"`
			Type         string `json:"type"`
			Title        string `json:"title"`
			UpdateDate   string `json:"updateDate"`
			OriginChamber string `json:"originChamber"`
			LatestAction struct {
				ActionDate string `json:"actionDate"`
				Text       string `json:"text"`
			} `json:"latestAction"`
		} `json:"bills"`
	}
	if err := c.client.GetJSON(ctx, c.baseURL+"/bill?"+q.Encode(), nil, &resp); err != nil {
		return domain.ToolResult{}, nil, err
	}

	items := make([]map[string]any, 0, len(resp.Bills))
	records := make([]domain.SourceRecord, 0, len(resp.Bills))
	for _, b := range resp.Bills {
		billID := fmt.Sprintf("%d-%s-%s", b.Congress, b.Type, b.Number)
		items = append(items, map[string]any{
			"bill_id":        billID,
			"congress":       b.Congress,
			"number":         b.Number,
			"type":           b.Type,
			"title":          b.Title,
			"origin_chamber": b.OriginChamber,
			"latest_action":  b.LatestAction.Text,
			"action_date":    b.LatestAction.ActionDate,
		})
		records = append(records, domain.SourceRecord{
			SourceType: "congress_bill",
			ID:         billID,
			Title:      b.Title,
			Date:       b.LatestAction.ActionDate,
			URL:        fmt.Sprintf("https://www.congress.gov/bill/%dth-congress/%s/%s", b.Congress, chamberSlug(b.Type), b.Number),
			Excerpt:    b.LatestAction.Text,
		})
	}

	return domain.ToolResult{Data: map[string]any{
		"results":      items,
		"result_count": len(items),
	}}, records, nil
}

func chamberSlug(billType string) string {
	switch billType {
	case "S", "s":
		return "senate-bill"
	case "SRES", "sres":
		return "senate-resolution"
	case "HRES", "hres":
		return "house-resolution"
	default:
		return "house-bill"
	}
}
