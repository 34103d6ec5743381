package fbads

import (
	"context"
	"encoding/json"
	"net/url"

	logx "fbdownloader/pkg/logx"
)

// statusFilter matches the original exporter: everything except deleted.
var statusFilter = []string{"ACTIVE", "PAUSED", "ARCHIVED"}

// Label is an ad label attached to a campaign, ad set or ad. Label names
// carry "{key=value}" attribute annotations.
type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Campaign struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Labels []Label `json:"adlabels"`
}

type AdSet struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	CampaignID string  `json:"campaign_id"`
	Labels     []Label `json:"adlabels"`
}

type Ad struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	AdSetID string  `json:"adset_id"`
	Labels  []Label `json:"adlabels"`
}

// Campaigns lists the account's campaigns keyed by id.
func (c *Client) Campaigns(ctx context.Context, accountID string) (map[string]Campaign, error) {
	c.log.Info("get campaign data", logx.String("account", accountID))
	raw, err := c.structureList(ctx, accountID, "campaigns", "id,name,adlabels")
	if err != nil {
		return nil, err
	}
	out := make(map[string]Campaign, len(raw))
	for _, r := range raw {
		var v Campaign
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, err
		}
		out[v.ID] = v
	}
	return out, nil
}

// AdSets lists the account's ad sets keyed by id.
func (c *Client) AdSets(ctx context.Context, accountID string) (map[string]AdSet, error) {
	c.log.Info("get ad set data", logx.String("account", accountID))
	raw, err := c.structureList(ctx, accountID, "adsets", "id,name,campaign_id,adlabels")
	if err != nil {
		return nil, err
	}
	out := make(map[string]AdSet, len(raw))
	for _, r := range raw {
		var v AdSet
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, err
		}
		out[v.ID] = v
	}
	return out, nil
}

// Ads lists the account's ads keyed by id.
func (c *Client) Ads(ctx context.Context, accountID string) (map[string]Ad, error) {
	c.log.Info("get ad data", logx.String("account", accountID))
	raw, err := c.structureList(ctx, accountID, "ads", "id,name,adset_id,adlabels")
	if err != nil {
		return nil, err
	}
	out := make(map[string]Ad, len(raw))
	for _, r := range raw {
		var v Ad
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, err
		}
		out[v.ID] = v
	}
	return out, nil
}

func (c *Client) structureList(ctx context.Context, accountID, edge, fields string) ([]json.RawMessage, error) {
	params := url.Values{}
	params.Set("fields", fields)
	params.Set("status", jsonParam(statusFilter))
	return c.getAll(ctx, "act_"+accountID+"/"+edge, params)
}
