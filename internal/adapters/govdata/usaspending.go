package govdata

import (
	"context"
	"fmt"

	"github.com/policyradar/policyradar/internal/core/domain"
)

// USASpending is the USAspending v2 adapter. Searches use POST.
type USASpending struct {
	client  *Client
	baseURL string
}

// NewUSASpending creates the adapter.
func NewUSASpending(client *Client, baseURL string) *USASpending {
	return &USASpending{client: client, baseURL: baseURL}
}

// SearchAwards searches federal awards by keyword.
func (u *USASpending) SearchAwards(ctx context.Context, query string, pageSize int) (domain.ToolResult, []domain.SourceRecord, error) {
	payload := map[string]any{
		"filters": map[string]any{
			"keywords":    []string{query},
			"award_type_codes": []string{"A", "B", "C", "D", "02", "03", "04", "05"},
		},
		"fields": []string{
			"Award ID", "Recipient Name", "Award Amount", "Awarding Agency",
			"Award Type", "Start Date", "End Date", "Description", "generated_internal_id",
		},
		"limit": clampPageSize(pageSize, 25),
		"order": "desc",
		"sort":  "Award Amount",
	}

	var resp struct {
		Results []map[string]any `json:"results"`
	}
	if err := u.client.PostJSON(ctx, u.baseURL+"/search/spending_by_award/", nil, payload, &resp); err != nil {
		return domain.ToolResult{}, nil, err
	}

	items := make([]map[string]any, 0, len(resp.Results))
	records := make([]domain.SourceRecord, 0, len(resp.Results))
	for _, award := range resp.Results {
		awardID := asString(award["Award ID"])
		internalID := asString(award["generated_internal_id"])
		items = append(items, map[string]any{
			"award_id":   awardID,
			"recipient":  award["Recipient Name"],
			"amount":     award["Award Amount"],
			"agency":     award["Awarding Agency"],
			"award_type": award["Award Type"],
			"start_date": award["Start Date"],
			"end_date":   award["End Date"],
		})
		recordURL := ""
		if internalID != "" {
			recordURL = fmt.Sprintf("https://www.usaspending.gov/award/%s", internalID)
		}
		records = append(records, domain.SourceRecord{
			SourceType: "usaspending_award",
			ID:         awardID,
			Title:      fmt.Sprintf("Award %s to %s", awardID, asString(award["Recipient Name"])),
			Agency:     asString(award["Awarding Agency"]),
			Date:       asString(award["Start Date"]),
			URL:        recordURL,
			Excerpt:    asString(award["Description"]),
			Raw:        award,
		})
	}

	return domain.ToolResult{Data: map[string]any{
		"results":      items,
		"result_count": len(items),
	}}, records, nil
}
