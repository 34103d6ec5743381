package fbads

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	logx "fbdownloader/pkg/logx"
)

// Insight is one row of ad performance: one ad on one device on one day.
// Numeric fields arrive as strings from the API and are kept as such here;
// coercion happens when the row is persisted.
type Insight struct {
	DateStart        string              `json:"date_start"`
	AdID             string              `json:"ad_id"`
	Impressions      string              `json:"impressions"`
	Spend            string              `json:"spend"`
	ImpressionDevice string              `json:"impression_device"`
	Actions          []map[string]string `json:"actions"`
	ActionValues     []map[string]string `json:"action_values"`
}

// effectiveStatuses widens the default ACTIVE-only insights filter so paused
// and archived ads keep reporting historical numbers.
var effectiveStatuses = []string{
	"ACTIVE",
	"PAUSED",
	"PENDING_REVIEW",
	"DISAPPROVED",
	"PREAPPROVED",
	"PENDING_BILLING_INFO",
	"CAMPAIGN_PAUSED",
	"ARCHIVED",
	"ADSET_PAUSED",
}

// Insights downloads the ad-level performance of one account for one day,
// broken down by impression device.
func (c *Client) Insights(ctx context.Context, accountID string, day time.Time) ([]Insight, error) {
	date := day.Format("2006-01-02")
	c.log.Info("download ad performance",
		logx.String("account", accountID),
		logx.String("date", date))

	params := url.Values{}
	params.Set("fields", "date_start,ad_id,impressions,actions,spend,action_values")
	params.Set("action_attribution_windows", jsonParam([]string{"28d_click"}))
	params.Set("action_breakdowns", jsonParam([]string{"action_type"}))
	params.Set("breakdowns", jsonParam([]string{"impression_device"}))
	params.Set("level", "ad")
	params.Set("time_range", jsonParam(map[string]string{"since": date, "until": date}))
	params.Set("filtering", jsonParam([]map[string]any{{
		"field":    "ad.effective_status",
		"operator": "IN",
		"value":    effectiveStatuses,
	}}))

	raw, err := c.getAll(ctx, "act_"+accountID+"/insights", params)
	if err != nil {
		return nil, err
	}

	rows := make([]Insight, 0, len(raw))
	for _, r := range raw {
		var row Insight
		if err := json.Unmarshal(r, &row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
