// Package bugzilla fetches bug metadata from the Bugzilla REST API. The
// pipeline uses it to cross-check attributed commits: a candidate whose bug
// is already marked as regressed-by the suspect landing is strong
// confirmation.
package bugzilla

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
)

// DefaultBaseURL is the public Bugzilla instance.
const DefaultBaseURL = "https://bugzilla.mozilla.org/rest"

// Client wraps the Bugzilla REST API. An API key is optional; without one,
// security-restricted bugs return errors.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewClient creates a Bugzilla client. rateLimit is requests per second.
func NewClient(baseURL, apiKey string, rateLimit int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if rateLimit <= 0 {
		rateLimit = 5
	}
	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		rateLimiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
	}
}

// Bug is the subset of bug metadata the pipeline consumes.
type Bug struct {
	ID          int      `json:"id"`
	Summary     string   `json:"summary"`
	Status      string   `json:"status"`
	Resolution  string   `json:"resolution"`
	Keywords    []string `json:"keywords"`
	RegressedBy []int    `json:"regressed_by"`
	Regressions []int    `json:"regressions"`
}

// IsRegression reports whether the bug carries the regression keyword.
func (b *Bug) IsRegression() bool {
	for _, kw := range b.Keywords {
		if strings.EqualFold(kw, "regression") {
			return true
		}
	}
	return false
}

type bugResponse struct {
	Bugs []Bug `json:"bugs"`
}

// Bug fetches one bug by ID. Returns nil when the bug does not exist or is
// not visible with the configured credentials.
func (c *Client) Bug(ctx context.Context, id string) (*Bug, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("include_fields", "id,summary,status,resolution,keywords,regressed_by,regressions")
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	reqURL := fmt.Sprintf("%s/bug/%s?%s", c.baseURL, url.PathEscape(id), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bugzilla bug %s: %w", id, err)
	}
	defer resp.Body.Close()

	// Restricted and missing bugs both come back as client errors. Treat
	// them as absent rather than failing the whole analysis.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnauthorized {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("bugzilla bug %s: status %d: %s", id, resp.StatusCode, string(msg))
	}

	var parsed bugResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode bugzilla response: %w", err)
	}
	if len(parsed.Bugs) == 0 {
		return nil, nil
	}
	return &parsed.Bugs[0], nil
}
