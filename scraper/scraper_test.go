package scraper

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/booksdata/config"
	"github.com/aluiziolira/booksdata/models"
	"github.com/aluiziolira/booksdata/parser"
	"github.com/aluiziolira/booksdata/pipeline"
)

const testBaseURL = "http://example.test/catalogue/"

func newTestScraper(t *testing.T, mutate ...func(*config.Config)) (*Scraper, *httpmock.MockTransport) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = testBaseURL
	for _, fn := range mutate {
		fn(cfg)
	}

	transport := httpmock.NewMockTransport()
	s, err := NewScraper(cfg, WithRoundTripper(transport))
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, transport
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	return httpmock.ResponderFromResponse(resp)
}

func register(transport *httpmock.MockTransport, path string, responder httpmock.Responder) {
	transport.RegisterResponder(http.MethodGet, testBaseURL+path, responder)
}

// indexPage renders the catalogue index with name/slug pairs.
func indexPage(pairs ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="side_categories"><ul class="nav nav-list"><li><a href="../books_1/index.html">Books</a><ul>`)
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(&b, "<li><a href=\"../books/%s/index.html\">\n    %s\n</a></li>", pairs[i+1], pairs[i])
	}
	b.WriteString(`</ul></li></ul></div></body></html>`)
	return b.String()
}

func listingPage(pager string, slugs ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><section><ol class="row">`)
	for _, slug := range slugs {
		fmt.Fprintf(&b, `<li><article class="product_pod"><h3><a href="../../../%s/index.html" title="%s">%s</a></h3></article></li>`, slug, slug, slug)
	}
	b.WriteString(`</ol>`)
	if pager != "" {
		fmt.Fprintf(&b, `<div><ul class="pager"><li class="current">%s</li></ul></div>`, pager)
	}
	b.WriteString(`</section></body></html>`)
	return b.String()
}

func detailPage(title, rating string, rows ...[2]string) string {
	var b strings.Builder
	b.WriteString(`<html><body><article class="product_page"><div class="row">`)
	fmt.Fprintf(&b, `<div class="col-sm-6 product_main"><h1>%s</h1><p class="price_color">£1.00</p><p class="star-rating %s"><i class="icon-star"></i></p></div>`, title, rating)
	b.WriteString(`</div>`)
	if len(rows) > 0 {
		b.WriteString(`<table class="table table-striped">`)
		for _, row := range rows {
			fmt.Fprintf(&b, `<tr><th>%s</th><td>%s</td></tr>`, row[0], row[1])
		}
		b.WriteString(`</table>`)
	}
	b.WriteString(`</article></body></html>`)
	return b.String()
}

func pricedRows(excl, incl, tax, availability string) [][2]string {
	return [][2]string{
		{"UPC", "a897fe39b1053632"},
		{"Product Type", "Books"},
		{models.FieldPriceExclTax, excl},
		{models.FieldPriceInclTax, incl},
		{models.FieldTax, tax},
		{models.FieldAvailability, availability},
		{"Number of reviews", "0"},
	}
}

func registerIndex(transport *httpmock.MockTransport) {
	register(transport, CatalogIndexPath, htmlResponder(indexPage(
		"Default", "default_15",
		"Default Category", "default-category_99",
		"Travel", "travel_2",
	)))
}

func TestListingPath(t *testing.T) {
	assert.Equal(t, "category/books/travel_2/index.html", ListingPath("books/travel_2", 1))
	assert.Equal(t, "category/books/travel_2/index.html", ListingPath("books/travel_2", 0))
	assert.Equal(t, "category/books/travel_2/page-3.html", ListingPath("books/travel_2", 3))
}

func TestErrorTypeLabel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, expected: ClassTimeout},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, expected: ClassTimeout},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, expected: ClassConnection},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "example.test"}, expected: ClassConnection},
		{name: "cancelled", err: context.Canceled, expected: ClassCancelled},
		{name: "status", err: ErrHTTPStatus{StatusCode: http.StatusNotFound, URL: "x"}, expected: ClassHTTPStatus},
		{name: "wrapped status", err: fmt.Errorf("fetch: %w", ErrHTTPStatus{StatusCode: 500}), expected: ClassHTTPStatus},
		{name: "parse", err: parser.ErrMissingElement{Selector: "h1"}, expected: ClassParse},
		{name: "page count", err: parser.ErrPageCount{Text: "x", Err: errors.New("bad")}, expected: ClassParse},
		{name: "other", err: errors.New("some other error"), expected: ClassOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err)); got != tt.expected {
				t.Fatalf("errorTypeLabel(classifyError(%v)) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}

func TestRunCohortPreservesKeyOrder(t *testing.T) {
	keys := []string{"a", "b", "c", "d", "e"}
	got, err := runCohort(context.Background(), "test", 2, keys, func(_ context.Context, key string) (string, error) {
		if key == "a" {
			time.Sleep(20 * time.Millisecond)
		}
		return strings.ToUpper(key), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, got)
}

func TestRunCohortCollectsEveryFailure(t *testing.T) {
	keys := []string{"ok", "missing", "boom", "late"}
	got, err := runCohort(context.Background(), StageDetail, 0, keys, func(_ context.Context, key string) (int, error) {
		switch key {
		case "missing":
			return 0, ErrHTTPStatus{StatusCode: http.StatusNotFound, URL: key}
		case "boom":
			panic("unexpected markup")
		case "late":
			return 0, ErrTimeout{Err: context.DeadlineExceeded}
		}
		return 1, nil
	})
	require.Nil(t, got)

	var cohortErr ErrCohort
	require.True(t, errors.As(err, &cohortErr))
	assert.Equal(t, StageDetail, cohortErr.Stage)
	assert.Equal(t, 4, cohortErr.Size)
	require.Len(t, cohortErr.Failures, 3)
	assert.Equal(t, "missing", cohortErr.Failures[0].Key)
	assert.Equal(t, "boom", cohortErr.Failures[1].Key)
	assert.Equal(t, map[string]int{ClassHTTPStatus: 1, ClassOther: 1, ClassTimeout: 1}, cohortErr.Classes())

	var status ErrHTTPStatus
	assert.True(t, errors.As(err, &status), "member errors must stay reachable")
	assert.Contains(t, err.Error(), "3 of 4 members")
}

func TestSessionLifecycle(t *testing.T) {
	s, transport := newTestScraper(t)
	register(transport, "a.html", htmlResponder("<html></html>"))
	tr := s.Transport()

	assert.Empty(t, tr.SessionID())
	require.NoError(t, s.Open())
	first := tr.SessionID()
	require.NotEmpty(t, first)
	require.NoError(t, s.Open())
	assert.Equal(t, first, tr.SessionID(), "open on an open session is a no-op")

	require.NoError(t, s.Close())
	assert.Empty(t, tr.SessionID())
	require.NoError(t, s.Close(), "closing twice only logs")

	_, err := tr.Fetch(context.Background(), "a.html")
	require.NoError(t, err)
	second := tr.SessionID()
	assert.NotEmpty(t, second)
	assert.NotEqual(t, first, second)
}

func TestWithSessionReleasesOnError(t *testing.T) {
	s, _ := newTestScraper(t)
	boom := errors.New("boom")

	var inside string
	err := s.WithSession(context.Background(), func(_ context.Context, s *Scraper) error {
		inside = s.Transport().SessionID()
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.NotEmpty(t, inside)
	assert.Empty(t, s.Transport().SessionID())
}

func TestFetchSendsConfiguredHeaders(t *testing.T) {
	s, transport := newTestScraper(t, func(cfg *config.Config) {
		cfg.Headers["X-Trace"] = "abc"
		cfg.UserAgent = "booksdata-test"
	})
	register(transport, "h.html", func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("X-Trace") != "abc" {
			return httpmock.NewStringResponse(http.StatusBadRequest, "missing header"), nil
		}
		if req.Header.Get("User-Agent") != "booksdata-test" {
			return httpmock.NewStringResponse(http.StatusBadRequest, "wrong agent"), nil
		}
		return httpmock.NewStringResponse(http.StatusOK, "ok"), nil
	})

	body, err := s.Transport().Fetch(context.Background(), "h.html")
	require.NoError(t, err)
	assert.Equal(t, "ok", body)
}

func TestFetchHTTPStatus(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusServiceUnavailable} {
		t.Run(fmt.Sprintf("status_%d", status), func(t *testing.T) {
			s, transport := newTestScraper(t)
			register(transport, "p.html", httpmock.NewStringResponder(status, "nope"))

			_, err := s.Transport().Fetch(context.Background(), "p.html")
			var statusErr ErrHTTPStatus
			require.True(t, errors.As(err, &statusErr), "got %v", err)
			assert.Equal(t, status, statusErr.StatusCode)
			assert.Equal(t, testBaseURL+"p.html", statusErr.URL)
			assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics.ErrorsTotal.WithLabelValues(ClassHTTPStatus)))
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	s, transport := newTestScraper(t)
	register(transport, "slow.html", func(req *http.Request) (*http.Response, error) {
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(time.Second):
		}
		return httpmock.NewStringResponse(http.StatusOK, "late"), nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.Transport().Fetch(ctx, "slow.html")
	var timeout ErrTimeout
	require.True(t, errors.As(err, &timeout), "got %v", err)
	assert.Equal(t, ClassTimeout, errorTypeLabel(err))
}

func TestFetchCancelledContext(t *testing.T) {
	s, transport := newTestScraper(t)
	register(transport, "a.html", htmlResponder("ok"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Transport().Fetch(ctx, "a.html")
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, transport.GetTotalCallCount())
}

func TestFetchCacheHits(t *testing.T) {
	s, transport := newTestScraper(t, func(cfg *config.Config) { cfg.CacheSize = 8 })
	register(transport, "a.html", htmlResponder("cached"))
	tr := s.Transport()

	for i := 0; i < 3; i++ {
		body, err := tr.Fetch(context.Background(), "a.html")
		require.NoError(t, err)
		assert.Equal(t, "cached", body)
	}
	assert.Equal(t, 1, transport.GetTotalCallCount())
	assert.Equal(t, 2.0, testutil.ToFloat64(s.Metrics.CacheHitsTotal))

	require.NoError(t, tr.Close())
	_, err := tr.Fetch(context.Background(), "a.html")
	require.NoError(t, err)
	assert.Equal(t, 2, transport.GetTotalCallCount(), "close purges the cache")
}

func TestCategoriesSorted(t *testing.T) {
	s, transport := newTestScraper(t)
	registerIndex(transport)

	names, err := s.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "default category", "travel"}, names)
}

func TestCollectPathsCaseInsensitiveLookup(t *testing.T) {
	for _, category := range []string{"default", "DEFAULT", "Default"} {
		t.Run(category, func(t *testing.T) {
			s, transport := newTestScraper(t)
			registerIndex(transport)
			register(transport, "category/books/default_15/index.html",
				htmlResponder(listingPage("", "book-a_1", "book-b_2", "book-c_3")))

			result, err := s.CollectPaths(context.Background(), category)
			require.NoError(t, err)
			assert.Equal(t, []string{"book-a_1/index.html", "book-b_2/index.html", "book-c_3/index.html"}, result.Paths)
			assert.Equal(t, 2, transport.GetTotalCallCount(), "no pager means no further listing fetches")
			assert.Equal(t, 2, result.PageCount)
			assert.Empty(t, result.Diagnostics)

			info := transport.GetCallCountInfo()
			assert.Zero(t, info["GET "+testBaseURL+"category/books/default-category_99/index.html"])
		})
	}
}

func TestCollectPathsCategoryNotFound(t *testing.T) {
	s, transport := newTestScraper(t)
	registerIndex(transport)

	_, err := s.CollectPaths(context.Background(), "poetry")
	var notFound ErrCategoryNotFound
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "poetry", notFound.Category)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestCollectPathsIndexFailure(t *testing.T) {
	s, transport := newTestScraper(t)
	register(transport, CatalogIndexPath, httpmock.NewStringResponder(http.StatusServiceUnavailable, ""))

	_, err := s.CollectPaths(context.Background(), "travel")
	var statusErr ErrHTTPStatus
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestCollectPathsAllPages(t *testing.T) {
	s, transport := newTestScraper(t, func(cfg *config.Config) { cfg.MaxConcurrency = 2 })
	registerIndex(transport)
	register(transport, "category/books/travel_2/index.html", htmlResponder(listingPage("Page 1 of 3", "t1_1", "t2_2")))
	register(transport, "category/books/travel_2/page-2.html", htmlResponder(listingPage("Page 2 of 3", "t3_3", "t4_4")))
	register(transport, "category/books/travel_2/page-3.html", htmlResponder(listingPage("Page 3 of 3", "t5_5")))

	result, err := s.CollectPaths(context.Background(), "Travel")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"t1_1/index.html", "t2_2/index.html",
		"t3_3/index.html", "t4_4/index.html",
		"t5_5/index.html",
	}, result.Paths)
	assert.Equal(t, 4, result.RequestCount)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics.CohortsTotal.WithLabelValues(StageListing, "complete")))
}

func TestCollectPathsDiscardsListingCohortOnFailure(t *testing.T) {
	s, transport := newTestScraper(t)
	registerIndex(transport)
	register(transport, "category/books/travel_2/index.html", htmlResponder(listingPage("Page 1 of 3", "t1_1", "t2_2")))
	register(transport, "category/books/travel_2/page-2.html", htmlResponder(listingPage("Page 2 of 3", "t3_3")))
	register(transport, "category/books/travel_2/page-3.html", httpmock.NewStringResponder(http.StatusInternalServerError, ""))

	result, err := s.CollectPaths(context.Background(), "travel")
	require.NoError(t, err)

	assert.Equal(t, []string{"t1_1/index.html", "t2_2/index.html"}, result.Paths, "successful sibling pages are discarded too")
	assert.Equal(t, 1, result.ErrorCount)
	assert.Equal(t, 1, result.ErrorsByType[ClassHTTPStatus])
	assert.Equal(t, []string{"category/books/travel_2/page-3.html"}, result.FailedURLs)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, StageListing, result.Diagnostics[0].Stage)
	assert.Equal(t, ClassHTTPStatus, result.Diagnostics[0].Class)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics.CohortsTotal.WithLabelValues(StageListing, "discarded")))
}

func TestCollectPathsMalformedPager(t *testing.T) {
	s, transport := newTestScraper(t)
	registerIndex(transport)
	register(transport, "category/books/travel_2/index.html", htmlResponder(listingPage("Page one of many", "t1_1")))

	_, err := s.CollectPaths(context.Background(), "travel")
	var pageErr parser.ErrPageCount
	require.True(t, errors.As(err, &pageErr), "got %v", err)
}

func TestCollectPathsEmptyCategory(t *testing.T) {
	s, transport := newTestScraper(t)
	registerIndex(transport)
	register(transport, "category/books/travel_2/index.html", htmlResponder(listingPage("")))

	result, err := s.CollectPaths(context.Background(), "travel")
	require.NoError(t, err)
	assert.Empty(t, result.Paths)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, StageCollect, result.Diagnostics[0].Stage)
}

func TestFetchAllDedupesInFirstSeenOrder(t *testing.T) {
	s, transport := newTestScraper(t)
	register(transport, "b_2/index.html", htmlResponder("B"))
	register(transport, "a_1/index.html", htmlResponder("A"))

	pages, err := s.FetchAll(context.Background(), []string{"b_2/index.html", "a_1/index.html", "b_2/index.html"})
	require.NoError(t, err)
	assert.Equal(t, []DetailPage{
		{URL: testBaseURL + "b_2/index.html", Body: "B"},
		{URL: testBaseURL + "a_1/index.html", Body: "A"},
	}, pages)
}

func TestFetchAllEmpty(t *testing.T) {
	s, transport := newTestScraper(t)
	pages, err := s.FetchAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, pages)
	assert.Zero(t, transport.GetTotalCallCount())
}

func TestFetchAllDiscardsOnFailure(t *testing.T) {
	s, transport := newTestScraper(t)
	register(transport, "a_1/index.html", htmlResponder("A"))
	register(transport, "b_2/index.html", httpmock.NewStringResponder(http.StatusNotFound, ""))

	pages, err := s.FetchAll(context.Background(), []string{"a_1/index.html", "b_2/index.html"})
	assert.Nil(t, pages)

	var cohortErr ErrCohort
	require.True(t, errors.As(err, &cohortErr))
	require.Len(t, cohortErr.Failures, 1)
	assert.Equal(t, "b_2/index.html", cohortErr.Failures[0].Key)
	assert.Equal(t, ClassHTTPStatus, cohortErr.Failures[0].Class)
}

func registerTravel(transport *httpmock.MockTransport) {
	registerIndex(transport)
	register(transport, "category/books/travel_2/index.html", htmlResponder(listingPage("", "its-only-the-himalayas_981", "full-moon-over-noahs-ark_811")))
	register(transport, "its-only-the-himalayas_981/index.html", htmlResponder(detailPage(
		"It's Only the Himalayas", "Two", pricedRows("£45.17", "£45.17", "£0.00", "In stock (19 available)")...)))
	register(transport, "full-moon-over-noahs-ark_811/index.html", htmlResponder(detailPage(
		"Full Moon over Noah’s Ark", "Four", pricedRows("£49.43", "£49.43", "£0.00", "In stock (15 available)")...)))
}

func TestScrapeEndToEnd(t *testing.T) {
	s, transport := newTestScraper(t)
	registerTravel(transport)

	result, err := s.Scrape(context.Background(), "travel")
	require.NoError(t, err)
	require.Len(t, result.Products, 2)

	first := result.Products[0]
	name, _ := first.Get(models.FieldProductName)
	assert.Equal(t, "It's Only the Himalayas", name)
	url, _ := first.Get(models.FieldURL)
	assert.Equal(t, testBaseURL+"its-only-the-himalayas_981/index.html", url)
	rating, _ := first.Get(models.FieldRating)
	assert.Equal(t, "Two", rating)
	assert.Equal(t, []string{
		models.FieldProductName, models.FieldURL, models.FieldRating,
		"UPC", "Product Type",
		models.FieldPriceExclTax, models.FieldPriceInclTax, models.FieldTax,
		models.FieldAvailability, "Number of reviews",
	}, first.Keys())

	second, _ := result.Products[1].Get(models.FieldProductName)
	assert.Equal(t, "Full Moon over Noah’s Ark", second)
	assert.Equal(t, 2.0, testutil.ToFloat64(s.Metrics.ItemsScrapedTotal))

	// index, one listing page and two detail pages
	assert.Equal(t, 4, result.Crawl.RequestCount)
	assert.Equal(t, 4, result.Crawl.PageCount)
	assert.Equal(t, 4, transport.GetTotalCallCount())
}

func TestScrapeDetailCohortFailure(t *testing.T) {
	s, transport := newTestScraper(t)
	registerIndex(transport)
	register(transport, "category/books/travel_2/index.html", htmlResponder(listingPage("", "ok_1", "gone_2")))
	register(transport, "ok_1/index.html", htmlResponder(detailPage("Ok", "One")))
	register(transport, "gone_2/index.html", httpmock.NewStringResponder(http.StatusGone, ""))

	result, err := s.Scrape(context.Background(), "travel")
	require.NoError(t, err)
	assert.Empty(t, result.Products)
	require.Len(t, result.Crawl.Diagnostics, 1)
	assert.Equal(t, StageDetail, result.Crawl.Diagnostics[0].Stage)
	assert.Equal(t, []string{"gone_2/index.html"}, result.Crawl.FailedURLs)
	assert.Equal(t, 1, result.Crawl.ErrorCount)
	assert.Equal(t, 1, result.Crawl.ErrorsByType[ClassHTTPStatus])
	assert.Equal(t, 4, result.Crawl.RequestCount)
	assert.Equal(t, 3, result.Crawl.PageCount)
	assert.Equal(t, []string{"ok_1/index.html", "gone_2/index.html"}, result.Crawl.Paths)
}

func TestScrapeParseErrorPropagates(t *testing.T) {
	s, transport := newTestScraper(t)
	registerIndex(transport)
	register(transport, "category/books/travel_2/index.html", htmlResponder(listingPage("", "broken_1")))
	register(transport, "broken_1/index.html", htmlResponder(`<html><body><article class="product_page"></article></body></html>`))

	_, err := s.Scrape(context.Background(), "travel")
	var missing parser.ErrMissingElement
	require.True(t, errors.As(err, &missing), "got %v", err)
}

func TestSaveDataDataFrame(t *testing.T) {
	s, transport := newTestScraper(t)
	registerTravel(transport)

	table, err := s.SaveData(context.Background(), "travel", config.FormatDataFrame, "", pipeline.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	rating, _ := table.Get(0, models.FieldRating)
	assert.Equal(t, models.NumberCell(2), rating)
	price, _ := table.Get(1, models.FieldPriceInclTax)
	assert.Equal(t, models.NumberCell(49.43), price)
	stock, _ := table.Get(1, models.FieldAvailability)
	assert.Equal(t, models.NumberCell(15), stock)
	currency, _ := table.Get(0, models.FieldCurrency)
	assert.Equal(t, models.StringCell("£"), currency)
}

func TestSaveDataCSV(t *testing.T) {
	s, transport := newTestScraper(t)
	registerTravel(transport)
	path := filepath.Join(t.TempDir(), "travel.csv")

	opts := pipeline.Options{ProductNameAsIndex: true, RatingAsFloat: true}
	table, err := s.SaveData(context.Background(), "travel", config.FormatCSV, path, opts)
	require.NoError(t, err)
	assert.Equal(t, models.FieldProductName, table.Index())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, table.Columns(), records[0])
	assert.Equal(t, "4", records[2][2])
	assert.Equal(t, "£49.43", records[2][6], "prices were not parsed")
}

func TestSaveDataEmptyScrape(t *testing.T) {
	s, transport := newTestScraper(t)
	registerIndex(transport)
	register(transport, "category/books/travel_2/index.html", htmlResponder(listingPage("")))
	path := filepath.Join(t.TempDir(), "empty.csv")

	table, err := s.SaveData(context.Background(), "travel", config.FormatCSV, path, pipeline.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, table.Empty())
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "nothing is written for an empty scrape")
}

func TestSaveDataUnsupportedFormat(t *testing.T) {
	s, transport := newTestScraper(t)
	registerTravel(transport)

	_, err := s.SaveData(context.Background(), "travel", "parquet", "out.parquet", pipeline.DefaultOptions())
	var unsupported pipeline.ErrUnsupportedFormat
	require.True(t, errors.As(err, &unsupported))
	assert.Zero(t, transport.GetTotalCallCount(), "format is checked before scraping")
}
