package fbads

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	logx "fbdownloader/pkg/logx"
)

// createdTimeFormat is the Graph API timestamp layout ("-0700", no colon).
const createdTimeFormat = "2006-01-02T15:04:05-0700"

// AdAccount is one advertising account the token can read.
type AdAccount struct {
	AccountID string
	Name      string

	// Created is zero when the API omitted created_time.
	Created time.Time

	// TimezoneOffsetHours is the account's reporting timezone as a UTC
	// offset; days are cut over in this timezone, not in UTC.
	TimezoneOffsetHours float64
}

// Location returns the fixed-offset timezone the account reports in.
func (a AdAccount) Location() *time.Location {
	offset := int(a.TimezoneOffsetHours * 3600)
	return time.FixedZone(a.AccountID, offset)
}

// AdAccounts lists the ad accounts of the system user behind the token.
func (c *Client) AdAccounts(ctx context.Context) ([]AdAccount, error) {
	params := url.Values{}
	params.Set("fields", "account_id,name,created_time,timezone_offset_hours_utc")

	raw, err := c.getAll(ctx, "me/adaccounts", params)
	if err != nil {
		return nil, err
	}

	accounts := make([]AdAccount, 0, len(raw))
	for _, r := range raw {
		var row struct {
			AccountID           string  `json:"account_id"`
			Name                string  `json:"name"`
			CreatedTime         string  `json:"created_time"`
			TimezoneOffsetHours float64 `json:"timezone_offset_hours_utc"`
		}
		if err := json.Unmarshal(r, &row); err != nil {
			return nil, err
		}
		acc := AdAccount{
			AccountID:           row.AccountID,
			Name:                row.Name,
			TimezoneOffsetHours: row.TimezoneOffsetHours,
		}
		if row.CreatedTime != "" {
			t, err := time.Parse(createdTimeFormat, row.CreatedTime)
			if err == nil {
				acc.Created = t
			}
		}
		accounts = append(accounts, acc)
	}

	c.log.Info("discovered ad accounts", logx.Int("count", len(accounts)))
	return accounts, nil
}
