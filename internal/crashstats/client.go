// Package crashstats is a client for the Socorro crash reporting API: it
// fetches processed crash reports and samples crash instances for a
// signature across a date range via SuperSearch.
package crashstats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public Socorro instance.
const DefaultBaseURL = "https://crash-stats.mozilla.org/api"

// Client wraps the Socorro API with rate limiting. An API token is optional;
// without one, some processed-crash fields are redacted.
type Client struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewClient creates a Socorro client. rateLimit is requests per second.
func NewClient(baseURL, token string, rateLimit int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if rateLimit <= 0 {
		rateLimit = 5
	}
	return &Client{
		baseURL:     baseURL,
		token:       token,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		rateLimiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
	}
}

// ProcessedCrash is the subset of a processed crash report the pipeline
// consumes.
type ProcessedCrash struct {
	UUID           string `json:"uuid"`
	Signature      string `json:"signature"`
	ProtoSignature string `json:"proto_signature"`
	Product        string `json:"product"`
	Version        string `json:"version"`
	BuildID        string `json:"build"`
	ReleaseChannel string `json:"release_channel"`
	MozCrashReason string `json:"moz_crash_reason"`
	CrashDate      string `json:"date_processed"`
	Platform       string `json:"os_name"`
}

// CrashInstance is one SuperSearch hit.
type CrashInstance struct {
	UUID           string `json:"uuid"`
	BuildID        string `json:"build_id"`
	Version        string `json:"version"`
	ReleaseChannel string `json:"release_channel"`
	Date           string `json:"date"`
}

// get performs one rate-limited API request and decodes the JSON response
// into out.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s/?%s", c.baseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Auth-Token", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("crash-stats %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("crash-stats %s: status %d: %s", endpoint, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// ProcessedCrash fetches one processed crash report by UUID.
func (c *Client) ProcessedCrash(ctx context.Context, crashID string) (*ProcessedCrash, error) {
	params := url.Values{}
	params.Set("crash_id", crashID)

	var crash ProcessedCrash
	if err := c.get(ctx, "ProcessedCrash", params, &crash); err != nil {
		return nil, err
	}
	if crash.Signature == "" {
		return nil, fmt.Errorf("processed crash %s has no signature", crashID)
	}
	return &crash, nil
}

type superSearchResponse struct {
	Hits  []CrashInstance `json:"hits"`
	Total int             `json:"total"`
}

// searchMonth fetches up to perMonth crash instances for a signature in one
// date window.
func (c *Client) searchMonth(ctx context.Context, signature string, from, to time.Time, perMonth int) ([]CrashInstance, error) {
	params := url.Values{}
	params.Set("signature", "="+signature)
	params.Add("date", ">="+from.Format("2006-01-02"))
	params.Add("date", "<"+to.Format("2006-01-02"))
	params.Set("_results_number", fmt.Sprintf("%d", perMonth))
	params.Set("_sort", "-date")
	for _, col := range []string{"uuid", "build_id", "version", "release_channel", "date"} {
		params.Add("_columns", col)
	}

	var resp superSearchResponse
	if err := c.get(ctx, "SuperSearch", params, &resp); err != nil {
		return nil, err
	}
	return resp.Hits, nil
}

// SampleCrashes collects crash instances for a signature over the window
// ending now and spanning months back, sampling each month separately so
// old builds stay represented, then deduplicating by build and version.
func (c *Client) SampleCrashes(ctx context.Context, signature string, months, perMonth int) ([]CrashInstance, error) {
	if months <= 0 {
		months = 6
	}
	if perMonth <= 0 {
		perMonth = 20
	}

	now := time.Now().UTC()
	var all []CrashInstance
	for i := 0; i < months; i++ {
		to := now.AddDate(0, -i, 0)
		from := now.AddDate(0, -i-1, 0)
		hits, err := c.searchMonth(ctx, signature, from, to, perMonth)
		if err != nil {
			return nil, fmt.Errorf("sample month %s: %w", from.Format("2006-01"), err)
		}
		all = append(all, hits...)
	}
	return DedupeByBuild(all), nil
}

// DedupeByBuild keeps the first instance seen for each (build, version)
// pair, preserving input order.
func DedupeByBuild(instances []CrashInstance) []CrashInstance {
	seen := make(map[string]bool, len(instances))
	var out []CrashInstance
	for _, inst := range instances {
		key := inst.BuildID + "\x00" + inst.Version
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, inst)
	}
	return out
}
