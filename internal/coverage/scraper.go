// Package coverage scrapes per-line test coverage from the coverage
// viewer, which renders its data client-side. A headless browser loads the
// file view and the rendered table is read back out of the DOM.
package coverage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// DefaultViewerURL is the public coverage viewer.
const DefaultViewerURL = "https://coverage.moz.tools"

// Scraper drives a headless browser against the coverage viewer.
type Scraper struct {
	viewerURL string
	execPath  string
	timeout   time.Duration
}

// NewScraper creates a scraper. execPath optionally pins the browser binary;
// empty means chromedp's default lookup.
func NewScraper(viewerURL, execPath string, timeout time.Duration) *Scraper {
	if viewerURL == "" {
		viewerURL = DefaultViewerURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Scraper{viewerURL: viewerURL, execPath: execPath, timeout: timeout}
}

// lineRecord is what the extraction script emits per rendered source line.
type lineRecord struct {
	Line int `json:"line"`
	Hits int `json:"hits"`
}

// The viewer renders one div per source line, carrying the line number in
// its id and the hit count in a data attribute. Uninstrumented lines have no
// hit attribute and are skipped.
const extractScript = `
Array.from(document.querySelectorAll('#file [id^="l"]')).flatMap(el => {
  const line = parseInt(el.id.slice(1), 10);
  if (!Number.isInteger(line)) return [];
  const hits = el.getAttribute('data-hits');
  if (hits === null) return [];
  return [{line: line, hits: parseInt(hits, 10) || 0}];
})
`

// FileCoverage fetches per-line hit counts for one source file at a
// revision ("latest" for the most recent coverage build).
func (s *Scraper) FileCoverage(ctx context.Context, revision, path string) (*FileCoverage, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if s.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(s.execPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, s.timeout)
	defer cancelTimeout()

	viewURL := fmt.Sprintf("%s/#revision=%s&path=%s&view=file",
		s.viewerURL, url.QueryEscape(revision), url.QueryEscape(path))

	var records []lineRecord
	err := chromedp.Run(browserCtx,
		network.Enable(),
		// The viewer caches aggressively; "latest" must not serve stale data.
		network.SetCacheDisabled(true),
		chromedp.Navigate(viewURL),
		chromedp.WaitVisible("#file", chromedp.ByID),
		chromedp.Evaluate(extractScript, &records),
	)
	if err != nil {
		return nil, fmt.Errorf("scrape coverage for %s: %w", path, err)
	}

	cov := &FileCoverage{Revision: revision, Path: path, Lines: make(map[int]int, len(records))}
	for _, rec := range records {
		cov.Lines[rec.Line] = rec.Hits
	}
	return cov, nil
}
