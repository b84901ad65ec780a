// Package siteproxy fetches observation schedules from the per-WEMA LCO
// site-proxy services.
package siteproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"observatory-calendar-backend/config"
	"observatory-calendar-backend/internal/observation"
	"observatory-calendar-backend/internal/secrets"
)

// queryTimeLayout is the timestamp format the observation portal expects in
// query parameters.
const queryTimeLayout = "2006-01-02T15:04:05"

// Client talks to the observation-portal API exposed by each WEMA's site
// proxy. The proxy credential is resolved from the secret source on every
// call, never cached.
type Client struct {
	urlTemplate string
	secretPath  string
	horizon     time.Duration
	fetchLimit  int
	secrets     secrets.Source
	httpClient  *http.Client

	// now is swappable for tests.
	now func() time.Time
}

// NewClient creates a site-proxy client from the scheduler configuration.
func NewClient(cfg *config.SchedulerConfig, secretPath string, source secrets.Source) *Client {
	return &Client{
		urlTemplate: cfg.ProxyURLTemplate,
		secretPath:  secretPath,
		horizon:     time.Duration(cfg.HorizonDays) * 24 * time.Hour,
		fetchLimit:  cfg.FetchLimit,
		secrets:     source,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		now:         time.Now,
	}
}

// ScheduleQuery narrows a schedule fetch. The zero value asks for everything
// the proxy reports in the default window.
type ScheduleQuery struct {
	Telescope string
	Start     string
	End       string
	// States filters results client-side; nil returns the raw result.
	States []string
}

func (c *Client) proxyURL(wema, path string) string {
	return fmt.Sprintf(c.urlTemplate, wema) + "/" + path
}

// authHeader resolves the WEMA's proxy credential. Failures here abort the
// caller's cycle, unlike proxy HTTP failures which are treated as soft.
func (c *Client) authHeader(ctx context.Context, wema string) (string, error) {
	value, err := c.secrets.Get(ctx, c.secretPath+"/"+wema)
	if err != nil {
		return "", fmt.Errorf("failed to resolve site-proxy credential for %s: %w", wema, err)
	}
	return value, nil
}

// get performs an authorized GET and returns the body for a 200 response,
// nil otherwise. Network and status failures are logged and soft.
func (c *Client) get(ctx context.Context, wema, path, header string) []byte {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.proxyURL(wema, path), nil)
	if err != nil {
		log.Printf("Error building site-proxy request for %s: %v", wema, err)
		return nil
	}
	req.Header.Set("Authorization", header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("Error calling site proxy for %s: %v", wema, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("Site proxy for %s returned status %d", wema, resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("Error reading site-proxy response for %s: %v", wema, err)
		return nil
	}
	return body
}

// LastScheduleTime returns the timestamp of the most recent schedule
// generation at the WEMA's proxy, or nil when it cannot be determined. A nil
// result is not fatal: callers treat it as "unknown, always refresh". Only
// credential resolution failures propagate.
func (c *Client) LastScheduleTime(ctx context.Context, wema string) (*time.Time, error) {
	header, err := c.authHeader(ctx, wema)
	if err != nil {
		return nil, err
	}

	raw := c.get(ctx, wema, "observation-portal/api/last_scheduled", header)
	if raw == nil {
		return nil, nil
	}

	var body struct {
		LastScheduleTime string `json:"last_schedule_time"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		log.Printf("Error decoding last schedule time for %s: %v", wema, err)
		return nil, nil
	}
	if body.LastScheduleTime == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, body.LastScheduleTime)
	if err != nil {
		log.Printf("Unparsable last schedule time %q for %s: %v", body.LastScheduleTime, wema, err)
		return nil, nil
	}
	return &t, nil
}

// Schedule fetches the observation schedule from the WEMA's proxy. The
// window defaults to [now, now+horizon]. A non-200 response or network
// failure yields an empty schedule, not an error; only credential resolution
// failures propagate.
func (c *Client) Schedule(ctx context.Context, wema string, query ScheduleQuery) ([]observation.Observation, error) {
	header, err := c.authHeader(ctx, wema)
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	start := query.Start
	if start == "" {
		start = now.Format(queryTimeLayout)
	}
	end := query.End
	if end == "" {
		end = now.Add(c.horizon).Format(queryTimeLayout)
	}

	params := url.Values{}
	params.Set("start", start)
	params.Set("end", end)
	params.Set("limit", fmt.Sprintf("%d", c.fetchLimit))
	if query.Telescope != "" {
		params.Set("telescope", query.Telescope)
	}

	raw := c.get(ctx, wema, "observation-portal/api/schedule?"+params.Encode(), header)
	if raw == nil {
		return nil, nil
	}

	var body struct {
		Results []observation.Observation `json:"results"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		log.Printf("Error decoding schedule response for %s: %v", wema, err)
		return nil, nil
	}

	log.Printf("Fetched schedule for %s from %s to %s: %d observations", wema, start, end, len(body.Results))

	if query.States == nil {
		return body.Results, nil
	}

	wanted := make(map[string]bool, len(query.States))
	for _, state := range query.States {
		wanted[state] = true
	}
	var filtered []observation.Observation
	for _, obs := range body.Results {
		if wanted[obs.State] {
			filtered = append(filtered, obs)
		}
	}
	return filtered, nil
}
