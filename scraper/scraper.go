package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/booksdata/config"
	"github.com/aluiziolira/booksdata/models"
	"github.com/aluiziolira/booksdata/parser"
	"github.com/aluiziolira/booksdata/pipeline"
)

// Site layout of the catalogue, relative to the base URL.
const (
	CatalogIndexPath = "category/books_1/index.html"

	StageListing = "listing"
	StageDetail  = "detail"
	StageCollect = "collect"
)

// ListingPath returns the path of a category's listing page. Page 1 is the
// category index.
func ListingPath(categoryPath string, page int) string {
	if page <= 1 {
		return fmt.Sprintf("category/%s/index.html", categoryPath)
	}
	return fmt.Sprintf("category/%s/page-%d.html", categoryPath, page)
}

// DetailPage is the raw body of one product detail page.
type DetailPage struct {
	URL  string
	Body string
}

// Scraper resolves a category, crawls its listing pages and fetches every
// product detail page through a shared Transport.
type Scraper struct {
	cfg       *config.Config
	transport *Transport
	Metrics   *Metrics
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config, opts ...TransportOption) (*Scraper, error) {
	metrics := NewMetrics()
	opts = append([]TransportOption{WithTransportMetrics(metrics)}, opts...)
	transport, err := NewTransport(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Scraper{
		cfg:       cfg,
		transport: transport,
		Metrics:   metrics,
	}, nil
}

// Transport exposes the underlying transport.
func (s *Scraper) Transport() *Transport {
	return s.transport
}

// Open acquires the transport session.
func (s *Scraper) Open() error {
	return s.transport.Open()
}

// Close releases the transport session.
func (s *Scraper) Close() error {
	return s.transport.Close()
}

// WithSession runs fn inside an open transport session and releases it on
// every exit path, including panics.
func (s *Scraper) WithSession(ctx context.Context, fn func(context.Context, *Scraper) error) (err error) {
	if err := s.transport.Open(); err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if cerr := s.transport.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close session: %w", cerr)
		}
	}()
	return fn(ctx, s)
}

// crawlRun accumulates counters and diagnostics for one crawl call.
type crawlRun struct {
	result   *models.CrawlResult
	requests int64
	pages    int64

	mu sync.Mutex
}

func newCrawlRun(category string) *crawlRun {
	return &crawlRun{
		result: &models.CrawlResult{
			Category:     category,
			StartTime:    time.Now(),
			ErrorsByType: make(map[string]int),
		},
	}
}

func (r *crawlRun) fetch(ctx context.Context, t *Transport, path string) (string, error) {
	atomic.AddInt64(&r.requests, 1)
	body, err := t.Fetch(ctx, path)
	if err != nil {
		return "", err
	}
	atomic.AddInt64(&r.pages, 1)
	return body, nil
}

func (r *crawlRun) recordCohort(err ErrCohort, metrics *Metrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range err.Failures {
		r.result.ErrorCount++
		r.result.ErrorsByType[f.Class]++
		r.result.FailedURLs = append(r.result.FailedURLs, f.Key)
		r.result.Diagnostics = append(r.result.Diagnostics, models.Diagnostic{
			Stage:   err.Stage,
			Class:   f.Class,
			URL:     f.Key,
			Message: f.Err.Error(),
		})
	}
	metrics.IncCohort(err.Stage, "discarded")
	slog.Error("cohort discarded",
		slog.String("stage", err.Stage),
		slog.Int("members", err.Size),
		slog.Int("failed", len(err.Failures)),
		slog.Any("classes", err.Classes()),
		slog.Any("error", err),
	)
}

func (r *crawlRun) diagnose(d models.Diagnostic) {
	r.mu.Lock()
	r.result.Diagnostics = append(r.result.Diagnostics, d)
	r.mu.Unlock()
	slog.Warn(d.Message, slog.String("stage", d.Stage), slog.String("class", d.Class))
}

func (r *crawlRun) finish() *models.CrawlResult {
	r.result.EndTime = time.Now()
	r.result.RequestCount = int(atomic.LoadInt64(&r.requests))
	r.result.PageCount = int(atomic.LoadInt64(&r.pages))
	return r.result
}

// Categories fetches the catalogue index and returns the sorted category names.
func (s *Scraper) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.resolveCategories(ctx, nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Scraper) resolveCategories(ctx context.Context, run *crawlRun) (map[string]string, error) {
	var (
		index string
		err   error
	)
	if run != nil {
		index, err = run.fetch(ctx, s.transport, CatalogIndexPath)
	} else {
		index, err = s.transport.Fetch(ctx, CatalogIndexPath)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch catalog index: %w", err)
	}
	categories, err := parser.ParseCategories(index)
	if err != nil {
		return nil, fmt.Errorf("parse catalog index: %w", err)
	}
	return categories, nil
}

// CollectPaths resolves category and gathers every product detail path across
// its listing pages. Pages after the first are fetched as one cohort: a
// single failing page discards the whole cohort, leaving only the first page's
// paths, and the failure is reported in the result's diagnostics.
func (s *Scraper) CollectPaths(ctx context.Context, category string) (*models.CrawlResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	run := newCrawlRun(category)
	paths, err := s.collectPaths(ctx, run, category)
	if err != nil {
		return nil, err
	}
	result := run.finish()
	result.Paths = paths
	return result, nil
}

func (s *Scraper) collectPaths(ctx context.Context, run *crawlRun, category string) ([]string, error) {
	categories, err := s.resolveCategories(ctx, run)
	if err != nil {
		return nil, err
	}
	categoryPath, ok := categories[strings.ToLower(category)]
	if !ok || categoryPath == "" {
		return nil, ErrCategoryNotFound{Category: category}
	}

	first, err := run.fetch(ctx, s.transport, ListingPath(categoryPath, 1))
	if err != nil {
		return nil, fmt.Errorf("fetch first listing page: %w", err)
	}
	paths, err := parser.ParseProductPaths(first)
	if err != nil {
		return nil, fmt.Errorf("parse first listing page: %w", err)
	}
	total, err := parser.ParsePageCount(first)
	if err != nil {
		return nil, err
	}

	if remaining := parser.RemainingPages(total); len(remaining) > 0 {
		keys := make([]string, len(remaining))
		for i, page := range remaining {
			keys[i] = ListingPath(categoryPath, page)
		}
		batches, err := runCohort(ctx, StageListing, s.cfg.MaxConcurrency, keys, func(ctx context.Context, path string) ([]string, error) {
			body, err := run.fetch(ctx, s.transport, path)
			if err != nil {
				return nil, err
			}
			return parser.ParseProductPaths(body)
		})
		var cohortErr ErrCohort
		switch {
		case err == nil:
			s.Metrics.IncCohort(StageListing, "complete")
			for _, batch := range batches {
				paths = append(paths, batch...)
			}
		case errors.As(err, &cohortErr):
			run.recordCohort(cohortErr, s.Metrics)
		default:
			return nil, err
		}
	}

	if len(paths) == 0 {
		run.diagnose(models.Diagnostic{
			Stage:   StageCollect,
			Class:   "empty",
			Message: "no product paths found",
		})
	}

	slog.Info("collected product paths",
		slog.String("category", category),
		slog.Int("paths", len(paths)),
		slog.Int64("requests", atomic.LoadInt64(&run.requests)),
	)
	return paths, nil
}

// FetchAll fetches every product detail page as one cohort. On success it
// returns one page per distinct absolute URL in first-seen order; if any
// member fails it returns ErrCohort and no pages.
func (s *Scraper) FetchAll(ctx context.Context, paths []string) ([]DetailPage, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.fetchAll(ctx, newCrawlRun(""), paths)
}

func (s *Scraper) fetchAll(ctx context.Context, run *crawlRun, paths []string) ([]DetailPage, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	bodies, err := runCohort(ctx, StageDetail, s.cfg.MaxConcurrency, paths, func(ctx context.Context, path string) (string, error) {
		return run.fetch(ctx, s.transport, path)
	})
	if err != nil {
		return nil, err
	}
	s.Metrics.IncCohort(StageDetail, "complete")

	pages := make([]DetailPage, 0, len(paths))
	seen := make(map[string]int, len(paths))
	for i, path := range paths {
		url := s.transport.URL(path)
		if j, ok := seen[url]; ok {
			pages[j].Body = bodies[i]
			continue
		}
		seen[url] = len(pages)
		pages = append(pages, DetailPage{URL: url, Body: bodies[i]})
	}
	return pages, nil
}

// Scrape collects the category's product paths, fetches every detail page and
// parses each into a raw record. Listing and detail fetches share one
// CrawlResult. A discarded detail cohort yields no records and a diagnostic; a
// detail page that fails to parse is returned as an error.
func (s *Scraper) Scrape(ctx context.Context, category string) (*models.ScrapeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	run := newCrawlRun(category)
	paths, err := s.collectPaths(ctx, run, category)
	if err != nil {
		return nil, err
	}
	result := &models.ScrapeResult{}
	defer func() {
		if result.Crawl == nil {
			return
		}
		slog.Info("scrape finished",
			slog.String("category", category),
			slog.Int("products", len(result.Products)),
			slog.Int("pages", result.Crawl.PageCount),
			slog.Int("requests", result.Crawl.RequestCount),
			slog.Int("errors", result.Crawl.ErrorCount),
		)
	}()

	if len(paths) == 0 {
		result.Crawl = run.finish()
		return result, nil
	}

	pages, err := s.fetchAll(ctx, run, paths)
	if err != nil {
		var cohortErr ErrCohort
		if !errors.As(err, &cohortErr) {
			return nil, err
		}
		run.recordCohort(cohortErr, s.Metrics)
		result.Crawl = run.finish()
		result.Crawl.Paths = paths
		return result, nil
	}

	products := make([]*models.RawProduct, 0, len(pages))
	for _, page := range pages {
		product, err := parser.ParseProduct(page.Body, page.URL)
		if err != nil {
			return nil, fmt.Errorf("parse product %s: %w", page.URL, err)
		}
		s.Metrics.IncItems()
		products = append(products, product)
	}
	result.Products = products
	result.Crawl = run.finish()
	result.Crawl.Paths = paths
	return result, nil
}

// SaveData scrapes category, builds the table, applies the normalization steps
// selected in opts and exports it in format ("df" keeps it in memory only).
// An empty scrape yields an empty table and writes nothing.
func (s *Scraper) SaveData(ctx context.Context, category, format, path string, opts pipeline.Options) (*models.Table, error) {
	if err := pipeline.ValidateFormat(format, path); err != nil {
		return nil, err
	}

	result, err := s.Scrape(ctx, category)
	if err != nil {
		return nil, err
	}
	if len(result.Products) == 0 {
		slog.Warn("scrape returned no data", slog.String("category", category))
		return models.NewTable(nil), nil
	}

	table := models.NewTable(result.Products)
	if err := pipeline.Normalize(table, opts); err != nil {
		return nil, err
	}
	if err := pipeline.Export(table, format, path); err != nil {
		return nil, err
	}
	return table, nil
}
