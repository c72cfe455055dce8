package models

import "time"

// Diagnostic records one failure that was reported instead of raised.
type Diagnostic struct {
	Stage   string `json:"stage"`
	Class   string `json:"class"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message"`
}

// CrawlResult holds the overall result of one crawl call. The counters cover
// every fetch the call issued: the catalogue index, listing pages and, for a
// full scrape, detail pages.
type CrawlResult struct {
	Category  string
	Paths     []string
	StartTime time.Time
	EndTime   time.Time
	// PageCount counts fetches that returned a body.
	PageCount int
	// RequestCount counts fetches issued, failed ones included.
	RequestCount int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
	Diagnostics  []Diagnostic
}

// ScrapeResult holds raw product records plus everything the crawl reported.
type ScrapeResult struct {
	Crawl    *CrawlResult
	Products []*RawProduct
}
