package govdata

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/policyradar/policyradar/internal/core/domain"
)

// DOJ is the justice.gov press-release adapter.
type DOJ struct {
	client  *Client
	baseURL string
}

// NewDOJ creates the adapter.
func NewDOJ(client *Client, baseURL string) *DOJ {
	return &DOJ{client: client, baseURL: baseURL}
}

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// SearchPress searches press releases within the lookback window.
func (d *DOJ) SearchPress(ctx context.Context, query string, days, pageSize int) (domain.ToolResult, []domain.SourceRecord, error) {
	q := url.Values{}
	q.Set("searchTerm", query)
	q.Set("pagesize", fmt.Sprint(clampPageSize(pageSize, 25)))
	q.Set("sort", "date")
	q.Set("direction", "DESC")

	var resp struct {
		Results []struct {
			UUID  string `json:"uuid"`
			Title string `json:"title"`
			Body  string `json:"body"`
			Date  any    `json:"date"`
			URL   string `json:"url"`
		} `json:"results"`
	}
	if err := d.client.GetJSON(ctx, d.baseURL+"/press_releases.json?"+q.Encode(), nil, &resp); err != nil {
		return domain.ToolResult{}, nil, err
	}

	cutoff := lookbackDate(days)
	items := make([]map[string]any, 0, len(resp.Results))
	records := make([]domain.SourceRecord, 0, len(resp.Results))
	for _, pr := range resp.Results {
		date := dojDate(pr.Date)
		if !date.IsZero() && date.Before(cutoff) {
			continue
		}
		excerpt := htmlTagPattern.ReplaceAllString(pr.Body, " ")
		excerpt = strings.Join(strings.Fields(excerpt), " ")
		if len(excerpt) > 300 {
			excerpt = excerpt[:300] + "..."
		}
		dateStr := ""
		if !date.IsZero() {
			dateStr = date.Format("2006-01-02")
		}
		items = append(items, map[string]any{
			"id":      pr.UUID,
			"title":   pr.Title,
			"date":    dateStr,
			"excerpt": excerpt,
			"url":     pr.URL,
		})
		records = append(records, domain.SourceRecord{
			SourceType: "doj_press_release",
			ID:         pr.UUID,
			Title:      pr.Title,
			Agency:     "Department of Justice",
			Date:       dateStr,
			URL:        pr.URL,
			Excerpt:    excerpt,
		})
	}

	return domain.ToolResult{Data: map[string]any{
		"results":      items,
		"result_count": len(items),
	}}, records, nil
}

// dojDate handles the API's mixed date encodings: unix seconds as a string
// or number, or a plain date string.
func dojDate(v any) time.Time {
	switch val := v.(type) {
	case float64:
		return time.Unix(int64(val), 0).UTC()
	case string:
		if secs, err := strconv.ParseInt(val, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC()
		}
		if t, err := time.Parse("2006-01-02", val); err == nil {
			return t
		}
	}
	return time.Time{}
}
