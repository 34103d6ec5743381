// Package fbads is a thin Facebook Marketing API client covering the calls
// the downloader needs: ad account discovery, account structure (campaigns,
// ad sets, ads) and per-day ad insights.
//
// Every request passes a client-side rate gate; pagination is followed
// transparently. Error classification (retryable vs. fatal) is left to the
// caller, which knows the scheduling policy.
package fbads

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	logx "fbdownloader/pkg/logx"
)

const defaultBaseURL = "https://graph.facebook.com/v2.10"

// pageSize matches the original exporter; insights rows per ad per device
// rarely exceed this for one day.
const pageSize = "1000"

type Config struct {
	AppID       string
	AppSecret   string
	AccessToken string

	// BaseURL overrides the Graph API endpoint (tests).
	BaseURL string

	// RatePerSec caps outgoing requests. 0 means a conservative default;
	// the remote side still throttles independently of this gate.
	RatePerSec float64

	Timeout time.Duration
}

type Client struct {
	cfg     Config
	httpc   *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func NewClient(cfg Config, log logx.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	return &Client{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		log:     log,
	}
}

// page is the common Graph API list envelope.
type page struct {
	Data   []json.RawMessage `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// getAll performs a paginated GET of <base>/<path>?<params> and returns the
// concatenated data arrays of all pages.
func (c *Client) getAll(ctx context.Context, path string, params url.Values) ([]json.RawMessage, error) {
	params.Set("access_token", c.cfg.AccessToken)
	params.Set("limit", pageSize)
	next := c.cfg.BaseURL + "/" + strings.TrimLeft(path, "/") + "?" + params.Encode()

	var out []json.RawMessage
	for next != "" {
		var p page
		if err := c.getJSON(ctx, next, &p); err != nil {
			return nil, err
		}
		out = append(out, p.Data...)
		// paging.next is an absolute URL that already carries the token.
		next = p.Paging.Next
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError extracts the Graph API error envelope when present; otherwise
// it falls back to a plain HTTP error carrying the status.
func decodeError(status int, body []byte) error {
	var envelope struct {
		Error *RequestError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		envelope.Error.HTTPStatus = status
		return envelope.Error
	}
	return &RequestError{
		Message:    fmt.Sprintf("unexpected response: %s", strings.TrimSpace(string(body))),
		HTTPStatus: status,
	}
}

// jsonParam encodes v the way the Graph API expects structured query params.
func jsonParam(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
