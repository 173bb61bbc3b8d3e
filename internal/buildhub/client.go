// Package buildhub resolves build IDs to source revisions via the Buildhub
// search API. Each shipped build is indexed with the changeset it was built
// from, which anchors a crash report to a point in repository history.
package buildhub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public Buildhub instance.
const DefaultBaseURL = "https://buildhub.moz.tools/api/search"

// Client queries the Buildhub search endpoint.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewClient creates a Buildhub client. rateLimit is requests per second.
func NewClient(baseURL string, rateLimit int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if rateLimit <= 0 {
		rateLimit = 5
	}
	return &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		rateLimiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
	}
}

// BuildInfo is the resolved origin of one build.
type BuildInfo struct {
	BuildID  string `json:"build_id"`
	Revision string `json:"revision"`
	Channel  string `json:"channel"`
	Version  string `json:"version"`
	Tree     string `json:"tree"`
	Product  string `json:"product"`
}

// The search index stores documents with nested source/build/target
// sections. Fields are extracted tolerantly because older documents omit
// some of them.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source struct {
				Source struct {
					Product  string `json:"product"`
					Tree     string `json:"tree"`
					Revision string `json:"revision"`
				} `json:"source"`
				Build struct {
					ID string `json:"id"`
				} `json:"build"`
				Target struct {
					Channel string `json:"channel"`
					Version string `json:"version"`
				} `json:"target"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// ResolveBuild looks up a build ID, optionally restricted to one product
// (e.g. "firefox"). Returns nil when the build is not indexed.
func (c *Client) ResolveBuild(ctx context.Context, buildID, product string) (*BuildInfo, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	filters := []map[string]any{
		{"term": map[string]any{"build.id": buildID}},
	}
	if product != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"source.product": product}})
	}
	query := map[string]any{
		"size":  10,
		"query": map[string]any{"bool": map[string]any{"filter": filters}},
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("buildhub search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("buildhub search: status %d: %s", resp.StatusCode, string(msg))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode buildhub response: %w", err)
	}

	// Prefer the first hit carrying a revision; some documents index the
	// build without source metadata.
	for _, hit := range parsed.Hits.Hits {
		src := hit.Source
		if src.Source.Revision == "" {
			continue
		}
		return &BuildInfo{
			BuildID:  buildID,
			Revision: src.Source.Revision,
			Channel:  src.Target.Channel,
			Version:  src.Target.Version,
			Tree:     src.Source.Tree,
			Product:  src.Source.Product,
		}, nil
	}
	return nil, nil
}
