// Package crm pulls scoring inputs from the upstream CRM: the RM directory,
// AUM snapshots, meeting counts, converted policies, and referral leads.
// All calls are rate limited and retried with exponential backoff.
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/config"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
)

// Feed is the subset of the CRM the scorers need. The directory sync and
// input loaders accept this interface so tests can stub it.
type Feed interface {
	Directory(ctx context.Context) ([]model.RM, error)
	AUMSnapshots(ctx context.Context, month model.Month) ([]model.AUMSnapshot, error)
	MeetingCounts(ctx context.Context, month model.Month) ([]model.MeetingCount, error)
	Policies(ctx context.Context, month model.Month) ([]model.InsurancePolicy, error)
	ReferralLeads(ctx context.Context, month model.Month) ([]model.ReferralLead, error)
}

// Client is the HTTP CRM client.
type Client struct {
	baseURL     string
	client      *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	backoffBase time.Duration
}

var _ Feed = (*Client)(nil)

func NewClient(cfg config.CRMConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 10
	}
	return &Client{
		baseURL: cfg.BaseURL,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:     rate.NewLimiter(rate.Limit(perSec), burst),
		maxRetries:  3,
		backoffBase: time.Second,
	}
}

func (c *Client) Directory(ctx context.Context) ([]model.RM, error) {
	var out []model.RM
	err := c.getJSON(ctx, "/api/users", nil, &out)
	return out, err
}

func (c *Client) AUMSnapshots(ctx context.Context, month model.Month) ([]model.AUMSnapshot, error) {
	var out []model.AUMSnapshot
	err := c.getJSON(ctx, "/api/aum", url.Values{"month": {month.String()}}, &out)
	return out, err
}

func (c *Client) MeetingCounts(ctx context.Context, month model.Month) ([]model.MeetingCount, error) {
	var out []model.MeetingCount
	err := c.getJSON(ctx, "/api/meetings", url.Values{"month": {month.String()}}, &out)
	return out, err
}

func (c *Client) Policies(ctx context.Context, month model.Month) ([]model.InsurancePolicy, error) {
	var out []model.InsurancePolicy
	err := c.getJSON(ctx, "/api/policies", url.Values{
		"converted_from": {month.Start().Format(time.RFC3339)},
		"converted_to":   {month.End().Format(time.RFC3339)},
	}, &out)
	return out, err
}

func (c *Client) ReferralLeads(ctx context.Context, month model.Month) ([]model.ReferralLead, error) {
	var out []model.ReferralLead
	err := c.getJSON(ctx, "/api/referrals", url.Values{
		"converted_from": {month.Start().Format(time.RFC3339)},
		"converted_to":   {month.End().Format(time.RFC3339)},
	}, &out)
	return out, err
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return eris.Wrapf(err, "crm: create request %s", path)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return eris.Wrapf(err, "crm: get %s", path)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("crm: unexpected status %d from %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrapf(err, "crm: decode %s", path)
	}
	return nil
}

func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := range c.maxRetries {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		resp, err := c.client.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
			zap.L().Warn("crm request failed, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			c.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("http %d from %s", resp.StatusCode, req.URL.String())
			zap.L().Warn("crm server busy, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1))
			c.backoff(ctx, attempt)
			continue
		}

		return resp, nil
	}
	return nil, eris.Wrap(lastErr, "all retries exhausted")
}

func (c *Client) backoff(ctx context.Context, attempt int) {
	d := time.Duration(float64(c.backoffBase) * math.Pow(2, float64(attempt)))
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	d += time.Duration(rand.Int64N(int64(d) / 2))

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
